// Package search walks an indexed graph from consumers towards producers.
//
//   - Search: bounded breadth-first search for the first input reference matching a Matcher.
//   - SubgraphInputs: the external producers feeding a name-delimited region of the graph.
package search

import (
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
)

// DefaultBudget is the number of expanded nodes after which Search gives up
const DefaultBudget = 50

type options struct {
	budget       int
	trackVisited bool
}

// Option configures Search
type Option func(*options)

// WithBudget sets the visit budget. With a budget of 0 only the inputs of the start node are examined.
func WithBudget(budget int) Option {
	return func(o *options) {
		o.budget = budget
	}
}

// WithVisitedTracking enqueues every producer at most once.
// Without it a node reachable through several paths is expanded once per path,
// and each expansion counts against the budget.
func WithVisitedTracking() Option {
	return func(o *options) {
		o.trackVisited = true
	}
}

// Search walks from start towards its producers, breadth first, and returns the producer of the first
// input reference whose raw text (slot and control decorations included) matches target.
//
// Every expanded node counts against the budget; once the count exceeds it Search returns nil,
// even if unexplored nodes remain. It also returns nil when the reachable producers are exhausted.
func Search(idx *graph.Index, start *model.Node, target Matcher, opts ...Option) *model.Node {
	o := options{budget: DefaultBudget}
	for _, opt := range opts {
		opt(&o)
	}
	if start == nil {
		return nil
	}

	var seen map[string]bool
	if o.trackVisited {
		seen = map[string]bool{start.Name: true}
	}

	queue := []*model.Node{start}
	expanded := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, raw := range node.Inputs {
			producer, ok := idx.Lookup(raw)
			if !ok {
				continue
			}
			if target.Match(raw) {
				logging.Trace("search hit", "start", start.Name, "ref", raw, "expanded", expanded)
				return producer
			}
			if seen != nil {
				if seen[producer.Name] {
					continue
				}
				seen[producer.Name] = true
			}
			queue = append(queue, producer)
		}

		expanded++
		if expanded > o.budget {
			logging.Trace("search budget exhausted", "start", start.Name, "budget", o.budget, "pending", len(queue))
			return nil
		}
	}
	return nil
}
