package heuristics

import (
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"github.com/ritzau/graph-analyzer/pkg/search"
)

var (
	// ErrClassifierNotFound means no post-processing input leads to a classifier head
	ErrClassifierNotFound = errors.New("classifier head not found")

	// ErrUnresolvedShape means the classifier head does not declare its trailing dimension
	ErrUnresolvedShape = errors.New("classifier output shape not declared")
)

// ClassHead is the classifier output node and the number of classes it predicts
type ClassHead struct {
	Node       string `json:"node"`
	NumClasses int    `json:"numClasses"`
}

// NumClasses finds the classifier head feeding the post-processing subgraph and reads the
// class count from the trailing dimension of its output shape.
//
// Candidates are tried in SubgraphInputs order; the first one from which a classifier is reachable wins.
// There is no fallback value: failing to find the head is an error.
func NumClasses(idx *graph.Index, fam *Family, opts ...search.Option) (ClassHead, error) {
	post, err := fam.Matcher(RolePostprocessor)
	if err != nil {
		return ClassHead{}, err
	}
	classifier, err := fam.Matcher(RoleClassifier)
	if err != nil {
		return ClassHead{}, err
	}

	candidates := search.SubgraphInputs(idx, post)
	for _, candidate := range candidates {
		head := search.Search(idx, candidate, classifier, opts...)
		if head == nil {
			continue
		}
		logging.Debug("classifier head found", "candidate", candidate.Name, "head", head.Name)

		shape, ok := head.OutputShape()
		if !ok || shape.Last() <= 0 {
			return ClassHead{}, errors.Wrapf(ErrUnresolvedShape, "node %q", head.Name)
		}
		return ClassHead{Node: head.Name, NumClasses: shape.Last()}, nil
	}

	return ClassHead{}, errors.Wrapf(ErrClassifierNotFound, "searched from %d post-processing inputs %q",
		len(candidates), nodeNames(candidates))
}

func nodeNames(nodes []*model.Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}
