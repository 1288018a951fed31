package model

import (
	"strconv"
	"strings"
)

// controlPrefix marks an input that only orders execution and carries no data
const controlPrefix = "^"

// Ref is a parsed input reference of the form [^]name[:slot]
type Ref struct {
	Raw     string // Reference text exactly as written in the graph
	Name    string // Producer node name, decorations stripped
	Slot    int    // Output slot of the producer (0 when omitted)
	Control bool   // Control-only dependency
}

// ParseRef splits an input reference into its parts.
// A suffix that is not a number is kept as part of the name.
func ParseRef(raw string) Ref {
	ref := Ref{Raw: raw}
	name := raw
	if strings.HasPrefix(name, controlPrefix) {
		ref.Control = true
		name = strings.TrimLeft(name, controlPrefix)
	}
	if idx := strings.LastIndexByte(name, ':'); idx >= 0 {
		if slot, err := strconv.Atoi(name[idx+1:]); err == nil && slot >= 0 {
			ref.Slot = slot
			name = name[:idx]
		}
	}
	ref.Name = name
	return ref
}

// BaseName returns the producer node name of a reference
func BaseName(raw string) string {
	return ParseRef(raw).Name
}

// SlotName formats the tensor name for output slot of node. Slot 0 is the bare node name.
func SlotName(node string, slot int) string {
	if slot == 0 {
		return node
	}
	return node + ":" + strconv.Itoa(slot)
}

// String returns the reference in its canonical form
func (r Ref) String() string {
	s := SlotName(r.Name, r.Slot)
	if r.Control {
		return controlPrefix + s
	}
	return s
}
