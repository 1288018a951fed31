package cycles

import (
	"sort"

	"github.com/ritzau/graph-analyzer/pkg/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// OpNextIteration closes the back edge of a TensorFlow while loop
const OpNextIteration = "NextIteration"

// Cycle is a strongly connected set of nodes
type Cycle struct {
	Nodes []string `json:"nodes"` // Declaration order
	Loop  bool     `json:"loop"`  // Closed by NextIteration, i.e. a while loop rather than a broken graph
}

// Find returns the cycles of the graph in order of their first declared node.
// A node consuming its own output forms a cycle of one.
func Find(idx *graph.Index) []Cycle {
	var sccs [][]int64
	for _, scc := range topo.TarjanSCC(idx.Directed()) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]int64, len(scc))
		for i, n := range scc {
			ids[i] = n.ID()
		}
		sccs = append(sccs, ids)
	}

	// The directed graph omits self edges, so look for them in the references
	for _, node := range idx.Nodes() {
		for _, ref := range node.Refs() {
			if ref.Name == node.Name {
				id, _ := idx.ID(node.Name)
				sccs = append(sccs, []int64{id})
				break
			}
		}
	}

	for _, ids := range sccs {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })

	cycles := make([]Cycle, 0, len(sccs))
	for _, ids := range sccs {
		cycle := Cycle{Nodes: make([]string, 0, len(ids))}
		for _, id := range ids {
			node := idx.NodeByID(id)
			if node == nil {
				continue
			}
			cycle.Nodes = append(cycle.Nodes, node.Name)
			cycle.Loop = cycle.Loop || node.Op == OpNextIteration
		}
		cycles = append(cycles, cycle)
	}
	return cycles
}

// Broken returns the cycles that are not while loops
func Broken(cycles []Cycle) []Cycle {
	var broken []Cycle
	for _, c := range cycles {
		if !c.Loop {
			broken = append(broken, c)
		}
	}
	return broken
}
