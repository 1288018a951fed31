package graphdef

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v3"
)

// yamlGraph is the text form of a GraphDef:
//
//	nodes:
//	  - name: image_tensor
//	    op: Placeholder
//	    attr: {shape: {shape: [-1, 300, 300, 3]}}
type yamlGraph struct {
	Nodes []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	Name  string              `yaml:"name"`
	Op    string              `yaml:"op"`
	Input []string            `yaml:"input,omitempty"`
	Attr  map[string]yamlAttr `yaml:"attr,omitempty"`
}

// yamlAttr mirrors the AttrValue oneof; exactly one field is expected to be set
type yamlAttr struct {
	Shape       []int   `yaml:"shape,omitempty,flow"`
	UnknownRank bool    `yaml:"unknown_rank,omitempty"`
	Shapes      [][]int `yaml:"shapes,omitempty,flow"`
	B           *bool   `yaml:"b,omitempty"`
	Types       []int32 `yaml:"types,omitempty,flow"`
	S           *string `yaml:"s,omitempty"`
	I           *int64  `yaml:"i,omitempty"`
}

// ParseYAML decodes the YAML text form of a graph
func ParseYAML(data []byte) (*model.Graph, error) {
	var doc yamlGraph
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrapf(model.ErrStructural, "malformed graph YAML: %v", err)
	}

	g := model.NewGraph()
	for _, yn := range doc.Nodes {
		node := &model.Node{
			Name:   yn.Name,
			Op:     yn.Op,
			Inputs: yn.Input,
			Attrs:  make(map[string]model.AttrValue, len(yn.Attr)),
		}
		for key, attr := range yn.Attr {
			node.Attrs[key] = attr.value()
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// MarshalYAML renders a graph in the YAML text form. Opaque attributes other than
// strings and integers are omitted, as are rank-0 shapes.
func MarshalYAML(g *model.Graph) ([]byte, error) {
	doc := yamlGraph{Nodes: make([]yamlNode, 0, g.Len())}
	for _, node := range g.Nodes() {
		yn := yamlNode{Name: node.Name, Op: node.Op, Input: node.Inputs}
		for _, key := range sortedKeys(node.Attrs) {
			attr, ok := toYAMLAttr(node.Attrs[key])
			if !ok {
				continue
			}
			if yn.Attr == nil {
				yn.Attr = make(map[string]yamlAttr)
			}
			yn.Attr[key] = attr
		}
		doc.Nodes = append(doc.Nodes, yn)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "failed to encode graph YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode graph YAML")
	}
	return buf.Bytes(), nil
}

func (a yamlAttr) value() model.AttrValue {
	switch {
	case a.Shape != nil || a.UnknownRank:
		return model.ShapeAttr{Dims: a.Shape, UnknownRank: a.UnknownRank}
	case a.Shapes != nil:
		shapes := make([]model.ShapeAttr, len(a.Shapes))
		for i, dims := range a.Shapes {
			shapes[i] = model.ShapeAttr{Dims: dims}
		}
		return model.ShapeListAttr{Shapes: shapes}
	case a.B != nil:
		return model.BoolAttr(*a.B)
	case a.Types != nil:
		types := make([]model.DataType, len(a.Types))
		for i, t := range a.Types {
			types[i] = model.DataType(t)
		}
		return model.TypeListAttr{Types: types}
	case a.S != nil:
		return model.OpaqueAttr{Raw: appendString(nil, attrSField, *a.S)}
	case a.I != nil:
		b := protowire.AppendTag(nil, attrIField, protowire.VarintType)
		return model.OpaqueAttr{Raw: protowire.AppendVarint(b, uint64(*a.I))}
	}
	return model.OpaqueAttr{}
}

func toYAMLAttr(value model.AttrValue) (yamlAttr, bool) {
	switch v := value.(type) {
	case model.ShapeAttr:
		return yamlAttr{Shape: v.Dims, UnknownRank: v.UnknownRank}, len(v.Dims) > 0 || v.UnknownRank
	case model.ShapeListAttr:
		shapes := make([][]int, len(v.Shapes))
		for i, s := range v.Shapes {
			shapes[i] = s.Dims
		}
		return yamlAttr{Shapes: shapes}, true
	case model.BoolAttr:
		b := bool(v)
		return yamlAttr{B: &b}, true
	case model.TypeListAttr:
		types := make([]int32, len(v.Types))
		for i, t := range v.Types {
			types[i] = int32(t)
		}
		return yamlAttr{Types: types}, true
	case model.OpaqueAttr:
		return opaqueToYAML(v.Raw)
	}
	return yamlAttr{}, false
}

// opaqueToYAML recovers the string and integer AttrValue cases
func opaqueToYAML(raw []byte) (yamlAttr, bool) {
	num, typ, n := protowire.ConsumeTag(raw)
	if n < 0 {
		return yamlAttr{}, false
	}
	rest := raw[n:]
	switch {
	case num == attrSField && typ == protowire.BytesType:
		v, m := protowire.ConsumeString(rest)
		if m < 0 || m != len(rest) {
			return yamlAttr{}, false
		}
		return yamlAttr{S: &v}, true
	case num == attrIField && typ == protowire.VarintType:
		v, m := protowire.ConsumeVarint(rest)
		if m < 0 || m != len(rest) {
			return yamlAttr{}, false
		}
		i := int64(v)
		return yamlAttr{I: &i}, true
	}
	return yamlAttr{}, false
}

func sortedKeys(attrs map[string]model.AttrValue) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
