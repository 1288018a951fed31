// Package lens derives views of a computation graph: the edge list served to clients, the
// distance of every node from a selection, and the difference between two analysis runs.
package lens

import (
	"sort"
	"strings"

	"github.com/ritzau/graph-analyzer/pkg/graph"
)

// GraphNode represents a node in the computation graph
type GraphNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type"`             // Operation, e.g. "Conv2D", "Placeholder"
	Parent string `json:"parent,omitempty"` // Enclosing name scope, e.g. "Postprocessor" for "Postprocessor/Decode"
}

// GraphEdge represents an input reference, producer to consumer
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "data" or "control"
	Slot   int    `json:"slot"` // Output slot of the producer
}

// GraphData holds the computation graph for visualization
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// FromIndex lists nodes in declaration order and edges sorted by producer then consumer
func FromIndex(idx *graph.Index) *GraphData {
	data := &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, node := range idx.Nodes() {
		data.Nodes = append(data.Nodes, GraphNode{
			ID:     node.Name,
			Label:  node.Name[strings.LastIndexByte(node.Name, '/')+1:],
			Type:   node.Op,
			Parent: scope(node.Name),
		})
		for _, ref := range node.Refs() {
			edgeType := "data"
			if ref.Control {
				edgeType = "control"
			}
			data.Edges = append(data.Edges, GraphEdge{
				Source: ref.Name,
				Target: node.Name,
				Type:   edgeType,
				Slot:   ref.Slot,
			})
		}
	}
	sort.SliceStable(data.Edges, func(i, j int) bool {
		if data.Edges[i].Source != data.Edges[j].Source {
			return data.Edges[i].Source < data.Edges[j].Source
		}
		return data.Edges[i].Target < data.Edges[j].Target
	})
	return data
}

// scope returns the enclosing name scope, "" at the top level
func scope(name string) string {
	if i := strings.LastIndexByte(name, '/'); i > 0 {
		return name[:i]
	}
	return ""
}
