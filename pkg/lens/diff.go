package lens

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// GraphDiff represents the difference between two graph states
type GraphDiff struct {
	AddedNodes    []GraphNode `json:"addedNodes"`
	RemovedNodes  []string    `json:"removedNodes"`  // Node IDs
	ModifiedNodes []GraphNode `json:"modifiedNodes"` // Nodes with a changed operation
	AddedEdges    []GraphEdge `json:"addedEdges"`
	RemovedEdges  []string    `json:"removedEdges"` // Edge keys (source|target|type|slot)
	FullGraph     bool        `json:"fullGraph"`    // True if there was nothing to compare with
}

// Empty returns true if nothing changed
func (d *GraphDiff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// GraphSnapshot represents a cached graph state for diffing
type GraphSnapshot struct {
	Hash  string
	Nodes map[string]GraphNode // nodeID -> node
	Edges map[string]GraphEdge // edgeKey -> edge
}

// CreateSnapshot creates a snapshot from graph data for diffing
func CreateSnapshot(graph *GraphData) *GraphSnapshot {
	snapshot := &GraphSnapshot{
		Nodes: make(map[string]GraphNode, len(graph.Nodes)),
		Edges: make(map[string]GraphEdge, len(graph.Edges)),
	}
	for _, node := range graph.Nodes {
		snapshot.Nodes[node.ID] = node
	}
	for _, edge := range graph.Edges {
		snapshot.Edges[edgeKey(edge)] = edge
	}

	jsonData, _ := json.Marshal(graph)
	snapshot.Hash = fmt.Sprintf("%x", sha256.Sum256(jsonData))
	return snapshot
}

// ComputeDiff computes the difference between a snapshot and a newer graph.
// Results are sorted by ID so that repeated runs report identically.
func ComputeDiff(oldSnapshot *GraphSnapshot, newGraph *GraphData) *GraphDiff {
	// If no old snapshot, return full graph
	if oldSnapshot == nil {
		return &GraphDiff{
			AddedNodes: newGraph.Nodes,
			AddedEdges: newGraph.Edges,
			FullGraph:  true,
		}
	}

	diff := &GraphDiff{
		AddedNodes:    make([]GraphNode, 0),
		RemovedNodes:  make([]string, 0),
		ModifiedNodes: make([]GraphNode, 0),
		AddedEdges:    make([]GraphEdge, 0),
		RemovedEdges:  make([]string, 0),
	}

	newSnapshot := CreateSnapshot(newGraph)
	if newSnapshot.Hash == oldSnapshot.Hash {
		return diff
	}

	for id, newNode := range newSnapshot.Nodes {
		if oldNode, exists := oldSnapshot.Nodes[id]; !exists {
			diff.AddedNodes = append(diff.AddedNodes, newNode)
		} else if oldNode != newNode {
			diff.ModifiedNodes = append(diff.ModifiedNodes, newNode)
		}
	}
	for id := range oldSnapshot.Nodes {
		if _, exists := newSnapshot.Nodes[id]; !exists {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}
	for key, newEdge := range newSnapshot.Edges {
		if _, exists := oldSnapshot.Edges[key]; !exists {
			diff.AddedEdges = append(diff.AddedEdges, newEdge)
		}
	}
	for key := range oldSnapshot.Edges {
		if _, exists := newSnapshot.Edges[key]; !exists {
			diff.RemovedEdges = append(diff.RemovedEdges, key)
		}
	}

	sort.Slice(diff.AddedNodes, func(i, j int) bool { return diff.AddedNodes[i].ID < diff.AddedNodes[j].ID })
	sort.Slice(diff.ModifiedNodes, func(i, j int) bool { return diff.ModifiedNodes[i].ID < diff.ModifiedNodes[j].ID })
	sort.Slice(diff.AddedEdges, func(i, j int) bool { return edgeKey(diff.AddedEdges[i]) < edgeKey(diff.AddedEdges[j]) })
	sort.Strings(diff.RemovedNodes)
	sort.Strings(diff.RemovedEdges)
	return diff
}

// edgeKey creates a unique key for an edge
func edgeKey(edge GraphEdge) string {
	return fmt.Sprintf("%s|%s|%s|%d", edge.Source, edge.Target, edge.Type, edge.Slot)
}
