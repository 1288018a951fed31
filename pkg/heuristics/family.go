// Package heuristics locates semantically significant nodes of detection graphs by name.
//
// Which names mean what is described by a Family: a mapping from Role to a search.Matcher.
// Families are registered by name so new model layouts can be supported without touching
// the search or ordering code.
package heuristics

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/search"
)

// Role is the semantic job of a node or subgraph
type Role string

const (
	RolePostprocessor Role = "postprocessor" // Region whose external inputs are the detection heads
	RoleClassifier    Role = "classifier"    // Per-class prediction head
	RoleLocation      Role = "location"      // Box location predictions
	RoleConfidence    Role = "confidence"    // Class confidence predictions
	RolePriorBox      Role = "priorbox"      // Prior/anchor boxes
)

// NMSRoles are the post-processing inputs, in the order of an NMS input order
var NMSRoles = [3]Role{RoleLocation, RoleConfidence, RolePriorBox}

// DefaultFamily names the family used when none is configured
const DefaultFamily = "ssd"

// ErrUnknownRole is returned when a family has no matcher for a role
var ErrUnknownRole = errors.New("role not defined by family")

// Family describes the naming conventions of one family of models
type Family struct {
	Name  string
	Roles map[Role]search.Matcher

	// OutputSlots overrides the slot count of output nodes that do not declare _output_types
	OutputSlots map[string]int
}

// Matcher returns the matcher registered for role
func (f *Family) Matcher(role Role) (search.Matcher, error) {
	m, ok := f.Roles[role]
	if !ok || m == nil {
		return nil, errors.Wrapf(ErrUnknownRole, "family %q, role %q", f.Name, role)
	}
	return m, nil
}

// SSD matches graphs exported by the TensorFlow object detection API (SSD meta-architecture)
var SSD = &Family{
	Name: DefaultFamily,
	Roles: map[Role]search.Matcher{
		RolePostprocessor: search.Patterns{"Postprocessor", "PostProcess"},
		RoleClassifier:    search.Patterns{"ClassPredictor"},
		RoleLocation:      search.Patterns{"BoxEncodingPredictor"},
		RoleConfidence:    search.Patterns{"ClassPredictor"},
		RolePriorBox:      search.Patterns{"MultipleGridAnchorGenerator", "Anchors", "GridAnchor"},
	},
	OutputSlots: map[string]int{
		"TFLite_Detection_PostProcess": 4,
	},
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Family)
)

func init() {
	Register(SSD)
}

// Register adds a family, replacing any family of the same name
func Register(f *Family) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f.Name] = f
}

// Lookup returns a registered family
func Lookup(name string) (*Family, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Families returns the names of all registered families, sorted
func Families() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the family used when none is configured
func Default() *Family {
	f, _ := Lookup(DefaultFamily)
	return f
}
