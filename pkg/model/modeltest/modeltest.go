// Package modeltest builds small computation graphs for tests.
package modeltest

import (
	"github.com/janpfeifer/must"
	"github.com/ritzau/graph-analyzer/pkg/model"
)

// Op creates a node with the given operation tag and raw input references
func Op(name, op string, inputs ...string) *model.Node {
	return &model.Node{
		Name:   name,
		Op:     op,
		Inputs: inputs,
		Attrs:  make(map[string]model.AttrValue),
	}
}

// Placeholder creates an input node declaring the given shape (-1 for unknown axes)
func Placeholder(name string, dims ...int) *model.Node {
	n := Op(name, model.OpPlaceholder)
	n.Attrs[model.AttrShape] = model.ShapeAttr{Dims: dims}
	return n
}

// WithAttr sets an attribute and returns the node, for chaining
func WithAttr(n *model.Node, key string, value model.AttrValue) *model.Node {
	n.Attrs[key] = value
	return n
}

// WithOutputShape annotates the node's first output shape
func WithOutputShape(n *model.Node, dims ...int) *model.Node {
	return WithAttr(n, model.AttrOutputShapes, model.ShapeListAttr{
		Shapes: []model.ShapeAttr{{Dims: dims}},
	})
}

// WithOutputTypes declares count output slots of dtype float
func WithOutputTypes(n *model.Node, count int) *model.Node {
	types := make([]model.DataType, count)
	for i := range types {
		types[i] = 1
	}
	return WithAttr(n, model.AttrOutputTypes, model.TypeListAttr{Types: types})
}

// Graph assembles nodes into a graph. It panics on duplicate names.
func Graph(nodes ...*model.Node) *model.Graph {
	return must.M1(model.NewGraphFromNodes(nodes...))
}

// Chain returns the four-node graph A -> B -> C <- D, with A and D as placeholders
func Chain() *model.Graph {
	return Graph(
		Placeholder("A", -1, 4),
		Op("B", "Relu", "A"),
		Op("C", "Add", "B", "D"),
		Placeholder("D", 1, 4),
	)
}

// SSD returns a trimmed single-shot detector graph in the layout produced by the
// TensorFlow object detection exporter. The post-processing subgraph takes, in
// declaration order, the anchors, the box encodings and the class scores.
func SSD() *model.Graph {
	return Graph(
		Placeholder("image_tensor", -1, 300, 300, 3),
		Op("Preprocessor/sub", "Sub", "image_tensor"),
		Op("FeatureExtractor/conv", "Conv2D", "Preprocessor/sub"),
		WithOutputShape(Op("BoxPredictor_0/BoxEncodingPredictor/BiasAdd", "BiasAdd", "FeatureExtractor/conv"), 1, 1917, 4),
		WithOutputShape(Op("BoxPredictor_0/ClassPredictor/BiasAdd", "BiasAdd", "FeatureExtractor/conv"), 1, 1917, 91),
		Op("concat", "ConcatV2", "BoxPredictor_0/BoxEncodingPredictor/BiasAdd"),
		Op("concat_1", "ConcatV2", "BoxPredictor_0/ClassPredictor/BiasAdd"),
		Op("MultipleGridAnchorGenerator/anchors_0", "Const"),
		Op("MultipleGridAnchorGenerator/Concatenate/concat", "ConcatV2", "MultipleGridAnchorGenerator/anchors_0"),
		Op("Postprocessor/Decode", "Decode", "MultipleGridAnchorGenerator/Concatenate/concat", "Postprocessor/Squeeze"),
		Op("Postprocessor/Squeeze", "Squeeze", "concat"),
		Op("Postprocessor/convert_scores", "Sigmoid", "concat_1"),
		WithOutputTypes(Op("Postprocessor/BatchMultiClassNonMaxSuppression", "NonMaxSuppression",
			"Postprocessor/Decode", "Postprocessor/convert_scores"), 3),
		Op("detection_boxes", "Identity", "Postprocessor/BatchMultiClassNonMaxSuppression"),
		Op("detection_scores", "Identity", "Postprocessor/BatchMultiClassNonMaxSuppression:1"),
		Op("num_detections", "Identity", "Postprocessor/BatchMultiClassNonMaxSuppression:2"),
	)
}

// QuantizedDetector returns a graph ending in a four-output TFLite post-processing node
// flagged as quantized.
func QuantizedDetector() *model.Graph {
	pp := Op("TFLite_Detection_PostProcess", "TFLite_Detection_PostProcess",
		"raw_outputs/box_encodings", "raw_outputs/class_predictions", "anchors")
	WithAttr(pp, model.AttrOutputQuantized, model.BoolAttr(true))
	return Graph(
		Placeholder("normalized_input_image_tensor", 1, 300, 300, 3),
		Op("raw_outputs/box_encodings", "Identity", "normalized_input_image_tensor"),
		Op("raw_outputs/class_predictions", "Identity", "normalized_input_image_tensor"),
		Op("anchors", "Const"),
		pp,
	)
}
