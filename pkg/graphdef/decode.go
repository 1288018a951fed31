// Package graphdef reads frozen TensorFlow graphs into the model package's node representation.
//
// Binary GraphDef files are decoded directly from the protobuf wire format, keeping only the fields
// the analysis needs (names, ops, inputs and the attributes listed in the model package). Every other
// attribute is carried as an opaque value holding its encoded AttrValue. A YAML text form with the
// same content is accepted for hand-written graphs.
package graphdef

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"google.golang.org/protobuf/encoding/protowire"
)

// GraphDef, NodeDef, AttrValue, ListValue and TensorShapeProto field numbers
const (
	graphNodeField = 1

	nodeNameField   = 1
	nodeOpField     = 2
	nodeInputField  = 3
	nodeDeviceField = 4
	nodeAttrField   = 5

	mapKeyField   = 1
	mapValueField = 2

	attrListField  = 1
	attrSField     = 2
	attrIField     = 3
	attrFField     = 4
	attrBField     = 5
	attrTypeField  = 6
	attrShapeField = 7

	listTypeField  = 6
	listShapeField = 7

	shapeDimField         = 2
	shapeUnknownRankField = 3

	dimSizeField = 1
)

// ReadFile loads a graph, choosing the YAML form for .yaml and .yml files and binary GraphDef otherwise
func ReadFile(path string) (*model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model file %q", path)
	}

	var g *model.Graph
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		g, err = ParseYAML(data)
	default:
		g, err = Parse(data)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "model file %q", path)
	}
	logging.Debug("loaded model", "path", path, "nodes", g.Len())
	return g, nil
}

// Parse decodes a binary GraphDef
func Parse(data []byte) (*model.Graph, error) {
	g := model.NewGraph()
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != graphNodeField {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		msg, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		node, err := parseNode(msg)
		if err != nil {
			return 0, errors.WithMessagef(err, "node #%d", g.Len())
		}
		return n, g.AddNode(node)
	})
	if err != nil {
		if errors.Is(err, model.ErrStructural) {
			return nil, err
		}
		return nil, errors.Wrapf(model.ErrStructural, "malformed GraphDef: %v", err)
	}
	return g, nil
}

func parseNode(data []byte) (*model.Node, error) {
	node := &model.Node{Attrs: make(map[string]model.AttrValue)}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case nodeNameField, nodeOpField, nodeInputField:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case nodeNameField:
				node.Name = string(v)
			case nodeOpField:
				node.Op = string(v)
			default:
				node.Inputs = append(node.Inputs, string(v))
			}
			return n, nil
		case nodeAttrField:
			entry, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			key, value, err := parseAttrEntry(entry)
			if err != nil {
				return 0, errors.WithMessagef(err, "node %q", node.Name)
			}
			node.Attrs[key] = value
			return n, nil
		default:
			// device and experimental debug info
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return node, err
}

func parseAttrEntry(data []byte) (string, model.AttrValue, error) {
	var key string
	var value model.AttrValue = model.OpaqueAttr{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case mapKeyField:
			v, n, err := consumeBytes(typ, b)
			key = string(v)
			return n, err
		case mapValueField:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			value, err = parseAttrValue(v)
			return n, err
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return "", nil, errors.WithMessagef(err, "attribute %q", key)
	}
	return key, value, nil
}

func parseAttrValue(data []byte) (model.AttrValue, error) {
	var value model.AttrValue
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case attrListField:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			value, err = parseList(v)
			return n, err
		case attrBField:
			v, n, err := consumeVarint(typ, b)
			value = model.BoolAttr(v != 0)
			return n, err
		case attrShapeField:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			shape, err := parseShape(v)
			value = shape
			return n, err
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = model.OpaqueAttr{Raw: append([]byte(nil), data...)}
	}
	return value, nil
}

// parseList keeps type lists and shape lists; lists of anything else are opaque
func parseList(data []byte) (model.AttrValue, error) {
	var types []model.DataType
	var shapes []model.ShapeAttr
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == listTypeField && typ == protowire.BytesType:
			packed, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return 0, protowire.ParseError(m)
				}
				types = append(types, model.DataType(v))
				packed = packed[m:]
			}
			return n, nil
		case num == listTypeField:
			v, n, err := consumeVarint(typ, b)
			types = append(types, model.DataType(v))
			return n, err
		case num == listShapeField:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			shape, err := parseShape(v)
			shapes = append(shapes, shape)
			return n, err
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	switch {
	case err != nil:
		return nil, err
	case len(shapes) > 0:
		return model.ShapeListAttr{Shapes: shapes}, nil
	case len(types) > 0:
		return model.TypeListAttr{Types: types}, nil
	}
	return model.OpaqueAttr{Raw: protowire.AppendBytes(protowire.AppendTag(nil, attrListField, protowire.BytesType), data)}, nil
}

func parseShape(data []byte) (model.ShapeAttr, error) {
	shape := model.ShapeAttr{Dims: []int{}}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case shapeDimField:
			dim, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			// An absent size is proto3's zero; unknown sizes are written as -1
			size := 0
			err = walk(dim, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != dimSizeField {
					return protowire.ConsumeFieldValue(num, typ, b), nil
				}
				v, n, err := consumeVarint(typ, b)
				size = int(int64(v))
				if size < 0 {
					size = model.UnknownDim
				}
				return n, err
			})
			shape.Dims = append(shape.Dims, size)
			return n, err
		case shapeUnknownRankField:
			v, n, err := consumeVarint(typ, b)
			shape.UnknownRank = v != 0
			return n, err
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return shape, err
}

// walk calls fn for every field of a message. fn returns the number of bytes of the field value
// it consumed, or a negative protowire error code.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		data = data[m:]
	}
	return nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errors.Errorf("unexpected wire type %d for length-delimited field", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errors.Errorf("unexpected wire type %d for varint field", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}
