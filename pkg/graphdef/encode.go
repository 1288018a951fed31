package graphdef

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"google.golang.org/protobuf/encoding/protowire"
)

// Encode writes a graph as a binary GraphDef. Opaque attributes are written back verbatim.
func Encode(g *model.Graph) []byte {
	var b []byte
	for _, node := range g.Nodes() {
		b = protowire.AppendTag(b, graphNodeField, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeNode(node))
	}
	return b
}

// WriteFile saves a graph in the form ReadFile expects for path: YAML for .yaml and .yml, binary otherwise
func WriteFile(path string, g *model.Graph) error {
	data := Encode(g)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var err error
		if data, err = MarshalYAML(g); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write GraphDef %q", path)
	}
	return nil
}

func encodeNode(node *model.Node) []byte {
	b := appendString(nil, nodeNameField, node.Name)
	b = appendString(b, nodeOpField, node.Op)
	for _, input := range node.Inputs {
		b = appendString(b, nodeInputField, input)
	}
	for _, key := range sortedKeys(node.Attrs) {
		entry := appendString(nil, mapKeyField, key)
		entry = protowire.AppendTag(entry, mapValueField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, encodeAttr(node.Attrs[key]))

		b = protowire.AppendTag(b, nodeAttrField, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func encodeAttr(value model.AttrValue) []byte {
	switch v := value.(type) {
	case model.BoolAttr:
		b := protowire.AppendTag(nil, attrBField, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeBool(bool(v)))
	case model.ShapeAttr:
		b := protowire.AppendTag(nil, attrShapeField, protowire.BytesType)
		return protowire.AppendBytes(b, encodeShape(v))
	case model.ShapeListAttr:
		var list []byte
		for _, shape := range v.Shapes {
			list = protowire.AppendTag(list, listShapeField, protowire.BytesType)
			list = protowire.AppendBytes(list, encodeShape(shape))
		}
		b := protowire.AppendTag(nil, attrListField, protowire.BytesType)
		return protowire.AppendBytes(b, list)
	case model.TypeListAttr:
		var packed []byte
		for _, t := range v.Types {
			packed = protowire.AppendVarint(packed, uint64(t))
		}
		list := protowire.AppendTag(nil, listTypeField, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
		b := protowire.AppendTag(nil, attrListField, protowire.BytesType)
		return protowire.AppendBytes(b, list)
	case model.OpaqueAttr:
		return v.Raw
	}
	return nil
}

func encodeShape(shape model.ShapeAttr) []byte {
	var b []byte
	for _, d := range shape.Dims {
		var dim []byte
		if d != 0 {
			dim = protowire.AppendTag(dim, dimSizeField, protowire.VarintType)
			dim = protowire.AppendVarint(dim, uint64(int64(d)))
		}
		b = protowire.AppendTag(b, shapeDimField, protowire.BytesType)
		b = protowire.AppendBytes(b, dim)
	}
	if shape.UnknownRank {
		b = protowire.AppendTag(b, shapeUnknownRankField, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
