package search

import (
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/model"
)

// SubgraphInputs returns the producers outside the subgraph that feed nodes inside it.
//
// A node is inside when its name matches inside. Results are unique and in first-seen order,
// scanning inside nodes in declaration order and their inputs in reference order.
// Control references count as inputs.
func SubgraphInputs(idx *graph.Index, inside Matcher) []*model.Node {
	var result []*model.Node
	collected := make(map[string]bool)

	for _, node := range idx.Nodes() {
		if !inside.Match(node.Name) {
			continue
		}
		for _, raw := range node.Inputs {
			producer, ok := idx.Lookup(raw)
			if !ok || inside.Match(producer.Name) || collected[producer.Name] {
				continue
			}
			collected[producer.Name] = true
			result = append(result, producer)
		}
	}
	return result
}
