package ecs

import (
	"slices"
)

// Entity is an opaque handle. It carries no data of its own; it exists while
// at least one component is attached to it. IDs come from a per-World counter
// and are never reused.
type Entity uint32

// NoEntity is the zero handle, used for "no target" references.
const NoEntity Entity = 0

func (e Entity) IsZero() bool { return e == NoEntity }

// Set is an unordered set of entities. Query results are always non-nil.
type Set map[Entity]struct{}

func (s Set) Has(e Entity) bool {
	_, ok := s[e]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted returns the members in ascending ID order (creation order).
func (s Set) Sorted() []Entity {
	out := make([]Entity, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}
