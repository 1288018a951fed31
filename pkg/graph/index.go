package graph

import (
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// Index is the read-only lookup structure derived from a model.Graph.
// It is built once by Build and never mutated; rebuild it to reflect a different graph.
type Index struct {
	model     *model.Graph
	consumers map[string][]*model.Node // Producer name -> consumers, one entry per input reference
	inputs    []*model.Node            // Placeholders, declaration order
	outputs   []*model.Node            // Nodes nobody consumes, declaration order
	refCount  int

	// Producer -> consumer edges, deduplicated, used for structural diagnostics
	directed *simple.DirectedGraph
	ids      map[string]int64
}

// Build indexes the graph in a single pass over all input references.
// A reference to a node that does not exist is a structural error.
func Build(g *model.Graph) (*Index, error) {
	idx := &Index{
		model:     g,
		consumers: make(map[string][]*model.Node, g.Len()),
		directed:  simple.NewDirectedGraph(),
		ids:       make(map[string]int64, g.Len()),
	}

	for i, node := range g.Nodes() {
		idx.consumers[node.Name] = nil
		idx.ids[node.Name] = int64(i)
		idx.directed.AddNode(simple.Node(i))
		if node.Op == model.OpPlaceholder {
			idx.inputs = append(idx.inputs, node)
		}
	}

	for _, node := range g.Nodes() {
		consumerID := idx.ids[node.Name]
		for _, raw := range node.Inputs {
			producer := model.BaseName(raw)
			producerID, exists := idx.ids[producer]
			if !exists {
				return nil, errors.Wrapf(model.ErrStructural,
					"node %q: input %q references unknown node %q", node.Name, raw, producer)
			}
			idx.consumers[producer] = append(idx.consumers[producer], node)
			idx.refCount++

			// gonum simple graphs reject self loops and parallel edges
			if producerID != consumerID && !idx.directed.HasEdgeFromTo(producerID, consumerID) {
				idx.directed.SetEdge(idx.directed.NewEdge(simple.Node(producerID), simple.Node(consumerID)))
			}
		}
	}

	for _, node := range g.Nodes() {
		if len(idx.consumers[node.Name]) == 0 {
			idx.outputs = append(idx.outputs, node)
		}
	}

	return idx, nil
}

// Model returns the graph the index was built from
func (idx *Index) Model() *model.Graph {
	return idx.model
}

// Node returns a node by its exact name
func (idx *Index) Node(name string) (*model.Node, bool) {
	return idx.model.Node(name)
}

// Lookup resolves a possibly decorated reference ("^name", "name:1") to its producer node
func (idx *Index) Lookup(ref string) (*model.Node, bool) {
	return idx.model.Node(model.BaseName(ref))
}

// Nodes returns all nodes in declaration order
func (idx *Index) Nodes() []*model.Node {
	return idx.model.Nodes()
}

// Len returns the number of indexed nodes
func (idx *Index) Len() int {
	return idx.model.Len()
}

// Consumers returns the nodes consuming any output of the named producer.
// A consumer referencing the producer twice appears twice.
func (idx *Index) Consumers(name string) []*model.Node {
	return idx.consumers[name]
}

// ReferenceCount returns the total number of input references in the graph
func (idx *Index) ReferenceCount() int {
	return idx.refCount
}

// Inputs returns the placeholder nodes in declaration order
func (idx *Index) Inputs() []*model.Node {
	return idx.inputs
}

// Outputs returns the nodes without consumers in declaration order
func (idx *Index) Outputs() []*model.Node {
	return idx.outputs
}

// InputNames returns the names of Inputs
func (idx *Index) InputNames() []string {
	return names(idx.inputs)
}

// OutputNames returns the names of Outputs, without slot expansion
func (idx *Index) OutputNames() []string {
	return names(idx.outputs)
}

// Directed returns the producer -> consumer graph
func (idx *Index) Directed() *simple.DirectedGraph {
	return idx.directed
}

// ID returns the gonum node ID of a named node
func (idx *Index) ID(name string) (int64, bool) {
	id, exists := idx.ids[name]
	return id, exists
}

// NodeByID returns the node with the given gonum ID
func (idx *Index) NodeByID(id int64) *model.Node {
	nodes := idx.model.Nodes()
	if id < 0 || id >= int64(len(nodes)) {
		return nil
	}
	return nodes[id]
}

// ExpandOutputs lists the tensor names produced by nodes.
//
// A node with n > 1 output slots yields "name", "name:1", ..., "name:n-1". The slot count comes
// from slots[name] when present, otherwise from the node's _output_types attribute.
func ExpandOutputs(nodes []*model.Node, slots map[string]int) []string {
	expanded := make([]string, 0, len(nodes))
	for _, node := range nodes {
		count, ok := slots[node.Name]
		if !ok {
			count = node.NumOutputs()
		}
		if count <= 1 {
			expanded = append(expanded, node.Name)
			continue
		}
		for slot := 0; slot < count; slot++ {
			expanded = append(expanded, model.SlotName(node.Name, slot))
		}
	}
	return expanded
}

func names(nodes []*model.Node) []string {
	result := make([]string, len(nodes))
	for i, n := range nodes {
		result[i] = n.Name
	}
	return result
}
