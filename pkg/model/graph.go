package model

import (
	"github.com/pkg/errors"
)

// ErrStructural reports a malformed graph: duplicate names, dangling references or undecodable input.
// Callers cannot recover from it.
var ErrStructural = errors.New("structural error")

// Graph is an in-memory computation graph. It owns its nodes and keeps them in declaration order.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
}

// Node is one operation of the graph
type Node struct {
	Name   string               `json:"name"`
	Op     string               `json:"op"`               // e.g., "Placeholder", "Identity", "ConcatV2"
	Inputs []string             `json:"inputs,omitempty"` // Raw references, see Ref
	Attrs  map[string]AttrValue `json:"-"`
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make([]*Node, 0),
		byName: make(map[string]*Node),
	}
}

// NewGraphFromNodes creates a graph holding the given nodes, in order.
func NewGraphFromNodes(nodes ...*Node) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode appends a node to the graph. Names must be unique.
func (g *Graph) AddNode(node *Node) error {
	if node == nil || node.Name == "" {
		return errors.Wrap(ErrStructural, "node without a name")
	}
	if _, exists := g.byName[node.Name]; exists {
		return errors.Wrapf(ErrStructural, "duplicate node name %q", node.Name)
	}
	if node.Attrs == nil {
		node.Attrs = make(map[string]AttrValue)
	}
	g.nodes = append(g.nodes, node)
	g.byName[node.Name] = node
	return nil
}

// Nodes returns all nodes in declaration order. The slice must not be modified.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Node returns a node by name
func (g *Graph) Node(name string) (*Node, bool) {
	node, exists := g.byName[name]
	return node, exists
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Refs returns the parsed input references of the node, in order
func (n *Node) Refs() []Ref {
	refs := make([]Ref, len(n.Inputs))
	for i, raw := range n.Inputs {
		refs[i] = ParseRef(raw)
	}
	return refs
}

// Bool returns a boolean attribute, false when absent or of another kind
func (n *Node) Bool(key string) bool {
	b, ok := n.Attrs[key].(BoolAttr)
	return ok && bool(b)
}

// Shape returns a shape attribute
func (n *Node) Shape(key string) (ShapeAttr, bool) {
	s, ok := n.Attrs[key].(ShapeAttr)
	return s, ok
}

// TypeList returns a type-list attribute, nil when absent
func (n *Node) TypeList(key string) []DataType {
	if tl, ok := n.Attrs[key].(TypeListAttr); ok {
		return tl.Types
	}
	return nil
}

// NumOutputs returns the number of output slots declared by _output_types (0 when not declared)
func (n *Node) NumOutputs() int {
	return len(n.TypeList(AttrOutputTypes))
}

// OutputShape returns the shape of output slot 0: the first _output_shapes entry,
// or the declared shape attribute when no output shapes were annotated.
func (n *Node) OutputShape() (ShapeAttr, bool) {
	if sl, ok := n.Attrs[AttrOutputShapes].(ShapeListAttr); ok && len(sl.Shapes) > 0 {
		return sl.Shapes[0], true
	}
	return n.Shape(AttrShape)
}
