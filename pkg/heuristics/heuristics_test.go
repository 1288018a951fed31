package heuristics

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"github.com/ritzau/graph-analyzer/pkg/model/modeltest"
	"github.com/ritzau/graph-analyzer/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, g *model.Graph) *graph.Index {
	t.Helper()
	idx, err := graph.Build(g)
	require.NoError(t, err)
	return idx
}

func TestDefaultFamilyRegistered(t *testing.T) {
	fam, ok := Lookup(DefaultFamily)
	require.True(t, ok)
	assert.Same(t, SSD, fam)
	assert.Same(t, SSD, Default())
	assert.Contains(t, Families(), DefaultFamily)

	for _, role := range []Role{RolePostprocessor, RoleClassifier, RoleLocation, RoleConfidence, RolePriorBox} {
		_, err := fam.Matcher(role)
		assert.NoError(t, err, "role %s", role)
	}
}

func TestFamilyMissingRole(t *testing.T) {
	fam := &Family{Name: "partial", Roles: map[Role]search.Matcher{
		RolePostprocessor: search.Patterns{"Postprocessor"},
	}}
	idx := buildIndex(t, modeltest.SSD())

	_, err := NumClasses(idx, fam)
	assert.True(t, errors.Is(err, ErrUnknownRole))

	order, errs := NMSInputOrder(idx, fam)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrUnknownRole))
	assert.False(t, order.Complete())
}

func TestRegisterCustomFamily(t *testing.T) {
	Register(&Family{
		Name: "yolo-test",
		Roles: map[Role]search.Matcher{
			RolePostprocessor: search.Patterns{"yolo_head"},
			RoleClassifier:    search.Patterns{"cls"},
		},
	})

	fam, ok := Lookup("yolo-test")
	require.True(t, ok)
	assert.Equal(t, "yolo-test", fam.Name)
	assert.Contains(t, Families(), "yolo-test")
}

func TestDetectQuantization(t *testing.T) {
	idx := buildIndex(t, modeltest.QuantizedDetector())
	outputs := graph.ExpandOutputs(idx.Outputs(), SSD.OutputSlots)
	require.Equal(t, []string{
		"TFLite_Detection_PostProcess",
		"TFLite_Detection_PostProcess:1",
		"TFLite_Detection_PostProcess:2",
		"TFLite_Detection_PostProcess:3",
	}, outputs)

	q, err := DetectQuantization(idx, outputs, DefaultQuantStats)
	require.NoError(t, err)
	assert.True(t, q.Quantized)
	assert.Equal(t, "TFLite_Detection_PostProcess", q.Node)
	require.NotNil(t, q.Stats)
	assert.Equal(t, 128.0, q.Stats.Mean)
	assert.Equal(t, 128.0, q.Stats.Std)
}

func TestDetectQuantizationUnflagged(t *testing.T) {
	idx := buildIndex(t, modeltest.SSD())

	q, err := DetectQuantization(idx, idx.OutputNames(), QuantStats{Mean: 127.5, Std: 127.5})
	require.NoError(t, err)
	assert.False(t, q.Quantized)
	assert.Nil(t, q.Stats)

	_, err = DetectQuantization(idx, []string{"no_such_output"}, DefaultQuantStats)
	assert.True(t, errors.Is(err, model.ErrStructural))
}

func TestNumClasses(t *testing.T) {
	idx := buildIndex(t, modeltest.SSD())

	head, err := NumClasses(idx, SSD)
	require.NoError(t, err)
	assert.Equal(t, "BoxPredictor_0/ClassPredictor/BiasAdd", head.Node)
	assert.Equal(t, 91, head.NumClasses)
}

func TestNumClassesNotFound(t *testing.T) {
	idx := buildIndex(t, modeltest.Graph(
		modeltest.Placeholder("image", 1, 8, 8, 3),
		modeltest.Op("features", "Conv2D", "image"),
		modeltest.Op("Postprocessor/Decode", "Decode", "features"),
	))

	_, err := NumClasses(idx, SSD)
	assert.True(t, errors.Is(err, ErrClassifierNotFound))
	assert.Contains(t, err.Error(), "features")
}

func TestNumClassesUnresolvedShape(t *testing.T) {
	idx := buildIndex(t, modeltest.Graph(
		modeltest.Placeholder("image", 1, 8, 8, 3),
		modeltest.WithOutputShape(modeltest.Op("ClassPredictor/BiasAdd", "BiasAdd", "image"), 1, 10, -1),
		modeltest.Op("scores", "Reshape", "ClassPredictor/BiasAdd"),
		modeltest.Op("Postprocessor/convert_scores", "Sigmoid", "scores"),
	))

	_, err := NumClasses(idx, SSD)
	assert.True(t, errors.Is(err, ErrUnresolvedShape))
	assert.Contains(t, err.Error(), "ClassPredictor/BiasAdd")
}

func TestNumClassesRespectsBudget(t *testing.T) {
	idx := buildIndex(t, modeltest.SSD())

	// concat_1 reaches the class predictor through its immediate inputs
	head, err := NumClasses(idx, SSD, search.WithBudget(0))
	require.NoError(t, err)
	assert.Equal(t, 91, head.NumClasses)
}

func TestNMSInputOrder(t *testing.T) {
	idx := buildIndex(t, modeltest.SSD())

	order, errs := NMSInputOrder(idx, SSD)
	assert.Empty(t, errs)
	assert.True(t, order.Complete())
	assert.Equal(t, []string{"MultipleGridAnchorGenerator/Concatenate/concat", "concat", "concat_1"}, order.Inputs)
	assert.Equal(t, [3]int{1, 2, 0}, order.Order)
}

func TestNMSInputOrderWrongCount(t *testing.T) {
	idx := buildIndex(t, modeltest.Graph(
		modeltest.Op("BoxEncodingPredictor/BiasAdd", "BiasAdd"),
		modeltest.Op("ClassPredictor/BiasAdd", "BiasAdd"),
		modeltest.Op("box", "Identity", "BoxEncodingPredictor/BiasAdd"),
		modeltest.Op("cls", "Identity", "ClassPredictor/BiasAdd"),
		modeltest.Op("unrelated", "Const"),
		modeltest.Op("Postprocessor/nms", "NonMaxSuppression", "box", "cls", "unrelated"),
	))

	order, errs := NMSInputOrder(idx, SSD)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrOrdering))
	assert.Equal(t, [3]int{Unresolved, Unresolved, Unresolved}, order.Order)
	assert.Equal(t, []string{"box", "cls"}, order.Inputs)
}

func TestNMSInputOrderUnresolvedRole(t *testing.T) {
	idx := buildIndex(t, modeltest.Graph(
		modeltest.Op("BoxEncodingPredictor/a", "BiasAdd"),
		modeltest.Op("BoxEncodingPredictor/b", "BiasAdd"),
		modeltest.Op("Anchors/const", "Const"),
		modeltest.Op("loc_a", "Identity", "BoxEncodingPredictor/a"),
		modeltest.Op("loc_b", "Identity", "BoxEncodingPredictor/b"),
		modeltest.Op("priors", "Identity", "Anchors/const"),
		modeltest.Op("Postprocessor/nms", "NonMaxSuppression", "loc_a", "loc_b", "priors"),
	))

	order, errs := NMSInputOrder(idx, SSD)
	assert.Equal(t, [3]int{0, Unresolved, 2}, order.Order)
	assert.False(t, order.Complete())

	require.Len(t, errs, 1)
	var roleErr *RoleError
	require.True(t, errors.As(errs[0], &roleErr))
	assert.Equal(t, RoleConfidence, roleErr.Role)
	assert.Equal(t, []string{"loc_a", "loc_b", "priors"}, roleErr.Candidates)
}
