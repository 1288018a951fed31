package heuristics

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"github.com/ritzau/graph-analyzer/pkg/search"
)

// Unresolved marks an NMS input that could not be assigned
const Unresolved = -1

// ErrOrdering means the post-processing subgraph does not have exactly three detection inputs
var ErrOrdering = errors.New("cannot order post-processing inputs")

// NMSOrder maps the three NMS roles (location, confidence, prior box) to candidate positions
type NMSOrder struct {
	Order  [3]int   `json:"order"`  // Index into Inputs per NMSRoles entry, Unresolved when unknown
	Inputs []string `json:"inputs"` // Post-processing inputs that lead to any detection head
}

// RoleError reports one role that no candidate could be assigned to
type RoleError struct {
	Role       Role
	Candidates []string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("no post-processing input resolves to role %q (candidates %q)", e.Role, e.Candidates)
}

// Complete returns true if every role was assigned
func (o NMSOrder) Complete() bool {
	for _, pos := range o.Order {
		if pos == Unresolved {
			return false
		}
	}
	return true
}

// NMSInputOrder determines which post-processing input carries box locations, class confidences and
// prior boxes.
//
// The result is degraded rather than failed: a wrong candidate count yields an all-Unresolved order and
// ErrOrdering, and every role left unassigned contributes a *RoleError. The caller decides whether a
// partial order is usable.
func NMSInputOrder(idx *graph.Index, fam *Family, opts ...search.Option) (NMSOrder, []error) {
	result := NMSOrder{Order: [3]int{Unresolved, Unresolved, Unresolved}}

	post, err := fam.Matcher(RolePostprocessor)
	if err != nil {
		return result, []error{err}
	}
	var roles [3]search.Matcher
	for i, role := range NMSRoles {
		if roles[i], err = fam.Matcher(role); err != nil {
			return result, []error{err}
		}
	}
	anyRole := search.Any(roles[:]...)

	// SubgraphInputs never repeats a node, so the filtered list is already deduplicated
	var candidates []*model.Node
	for _, input := range search.SubgraphInputs(idx, post) {
		if search.Search(idx, input, anyRole, opts...) != nil {
			candidates = append(candidates, input)
		}
	}
	result.Inputs = nodeNames(candidates)

	if len(candidates) != len(NMSRoles) {
		err := errors.Wrapf(ErrOrdering, "expected %d detection inputs, found %d %q",
			len(NMSRoles), len(candidates), result.Inputs)
		logging.Warn("NMS input order unresolved", "error", err)
		return result, []error{err}
	}

	var errs []error
	for i, role := range NMSRoles {
		for pos, candidate := range candidates {
			if search.Search(idx, candidate, roles[i], opts...) != nil {
				result.Order[i] = pos
				break
			}
		}
		if result.Order[i] == Unresolved {
			roleErr := &RoleError{Role: role, Candidates: result.Inputs}
			logging.Warn("NMS role unresolved", "role", string(role))
			errs = append(errs, roleErr)
		}
	}

	logging.Debug("NMS input order", "order", fmt.Sprint(result.Order), "inputs", fmt.Sprint(result.Inputs))
	return result, errs
}
