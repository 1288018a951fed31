package analysis

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/dims"
	"github.com/ritzau/graph-analyzer/pkg/heuristics"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"github.com/ritzau/graph-analyzer/pkg/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func options(target Target, declared ...int) Options {
	opts := DefaultOptions()
	opts.Target = target
	opts.DeclaredDims = declared
	return opts
}

func stages(report *Report) []string {
	var result []string
	for _, d := range report.Diagnostics {
		result = append(result, d.Stage)
	}
	return result
}

func TestAnalyzeSSD(t *testing.T) {
	report, idx, err := Analyze(context.Background(), modeltest.SSD(), options(TargetAll), dims.Tokens("1"))
	require.NoError(t, err)
	require.NotNil(t, idx)

	assert.Equal(t, TargetAll, report.Target)
	assert.Equal(t, heuristics.DefaultFamily, report.Family)
	assert.Equal(t, 16, report.NodeCount)
	assert.Equal(t, []string{"image_tensor"}, report.Inputs)
	assert.Equal(t, []int{1, 300, 300, 3}, report.InputDims)
	assert.Equal(t, []string{"detection_boxes", "detection_scores", "num_detections"}, report.Outputs)

	require.NotNil(t, report.Quantization)
	assert.False(t, report.Quantization.Quantized)

	require.NotNil(t, report.Classes)
	assert.Equal(t, 91, report.Classes.NumClasses)
	assert.Equal(t, "BoxPredictor_0/ClassPredictor/BiasAdd", report.Classes.Node)

	require.NotNil(t, report.NMS)
	assert.Equal(t, [3]int{1, 2, 0}, report.NMS.Order)
	assert.Empty(t, report.Diagnostics)
	assert.Empty(t, report.Cycles)
	assert.False(t, report.CompletedAt.IsZero())
}

func TestAnalyzeTFLiteQuantized(t *testing.T) {
	report, _, err := Analyze(context.Background(), modeltest.QuantizedDetector(), options(TargetTFLite), dims.NonInteractive)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 300, 300, 3}, report.InputDims)
	assert.Len(t, report.Outputs, 4)
	require.NotNil(t, report.Quantization)
	assert.True(t, report.Quantization.Quantized)
	assert.Equal(t, heuristics.DefaultQuantStats, *report.Quantization.Stats)

	// tflite does not need detection heads
	assert.Nil(t, report.Classes)
	assert.Nil(t, report.NMS)
}

func TestAnalyzeOpenVINOOnlyDims(t *testing.T) {
	report, _, err := Analyze(context.Background(), modeltest.SSD(), options(TargetOpenVINO, 1, 300, 300, 3), dims.NonInteractive)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 300, 300, 3}, report.InputDims)
	assert.Nil(t, report.Quantization)
	assert.Nil(t, report.Classes)
	assert.Nil(t, report.NMS)
}

func TestAnalyzeTensorRTRequiresClasses(t *testing.T) {
	_, _, err := Analyze(context.Background(), modeltest.Chain(), options(TargetTensorRT, 2, 4), dims.NonInteractive)
	require.Error(t, err)
	assert.True(t, errors.Is(err, heuristics.ErrClassifierNotFound), "got %v", err)
}

func TestAnalyzeAllRecordsDiagnostics(t *testing.T) {
	report, _, err := Analyze(context.Background(), modeltest.Chain(), options(TargetAll), dims.NonInteractive)
	require.NoError(t, err)

	assert.Equal(t, []string{"dims", "classes", "nms"}, stages(report))
	assert.True(t, report.HasErrors())
	assert.Nil(t, report.Classes)
	require.NotNil(t, report.NMS)
	assert.False(t, report.NMS.Complete())
}

func TestAnalyzeMissingDimsFatalForSingleTarget(t *testing.T) {
	_, _, err := Analyze(context.Background(), modeltest.SSD(), options(TargetOpenVINO), dims.NonInteractive)
	assert.True(t, errors.Is(err, dims.ErrNonInteractive), "got %v", err)
}

func TestAnalyzeValidationErrorAlwaysFatal(t *testing.T) {
	_, _, err := Analyze(context.Background(), modeltest.SSD(), options(TargetAll, 1, 300), dims.NonInteractive)
	var verr *dims.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, -1, verr.Axis)
}

func TestAnalyzeUnknownFamily(t *testing.T) {
	opts := options(TargetAll)
	opts.Family = "retinanet"
	_, _, err := Analyze(context.Background(), modeltest.SSD(), opts, dims.NonInteractive)
	assert.True(t, errors.Is(err, ErrUnknownFamily))
}

func TestAnalyzeNoInputsWarns(t *testing.T) {
	g := modeltest.Graph(
		modeltest.Op("c", "Const"),
		modeltest.Op("out", "Identity", "c"),
	)
	report, _, err := Analyze(context.Background(), g, options(TargetOpenVINO), dims.NonInteractive)
	require.NoError(t, err)
	assert.Equal(t, []string{"inputs"}, stages(report))
	assert.False(t, report.HasErrors())
}

func TestAnalyzeUnknownRankUsesDeclared(t *testing.T) {
	input := modeltest.Op("x", model.OpPlaceholder)
	modeltest.WithAttr(input, model.AttrShape, model.ShapeAttr{UnknownRank: true})
	g := modeltest.Graph(input, modeltest.Op("y", "Relu", "x"))

	report, _, err := Analyze(context.Background(), g, options(TargetOpenVINO, 1, 16), dims.NonInteractive)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 16}, report.InputDims)
}

func TestAnalyzeReportsCycles(t *testing.T) {
	g := modeltest.Graph(
		modeltest.Placeholder("x", 1),
		modeltest.Op("a", "Add", "x", "b"),
		modeltest.Op("b", "Relu", "a"),
		modeltest.Op("out", "Identity", "b"),
	)
	report, _, err := Analyze(context.Background(), g, options(TargetOpenVINO), dims.NonInteractive)
	require.NoError(t, err)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, []string{"cycles"}, stages(report))
}

func TestAnalyzeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Analyze(ctx, modeltest.SSD(), options(TargetAll), dims.Tokens("1"))
	assert.True(t, errors.Is(err, context.Canceled))
}
