package ecs

import "slices"

// record holds every component attached to one entity: the insertion-ordered
// list and the kind-indexed slot table.
type record struct {
	list  []Component
	slots [MaxKinds]Component
}

// store keeps the three indices (entity → list, entity → kind → component,
// kind → entities) consistent. Every mutation goes through set or purge.
type store struct {
	records map[Entity]*record
	byKind  [MaxKinds]Set
}

func newStore() *store {
	s := &store{records: make(map[Entity]*record, 256)}
	for i := range s.byKind {
		s.byKind[i] = make(Set)
	}
	return s
}

// set attaches c, replacing any component of the same kind in place.
func (s *store) set(e Entity, c Component) {
	k := c.Kind()
	if int(k) >= MaxKinds {
		panic("ecs: component kind out of range: " + k.String())
	}
	rec := s.records[e]
	if rec == nil {
		rec = &record{list: make([]Component, 0, 4)}
		s.records[e] = rec
	}
	if old := rec.slots[k]; old != nil {
		i := slices.IndexFunc(rec.list, func(o Component) bool { return o.Kind() == k })
		rec.list = slices.Delete(rec.list, i, i+1)
	}
	rec.list = append(rec.list, c)
	rec.slots[k] = c
	s.byKind[k][e] = struct{}{}
}

func (s *store) get(e Entity, k Kind) (Component, bool) {
	if int(k) >= MaxKinds {
		return nil, false
	}
	rec := s.records[e]
	if rec == nil {
		return nil, false
	}
	c := rec.slots[k]
	return c, c != nil
}

func (s *store) components(e Entity) []Component {
	rec := s.records[e]
	if rec == nil {
		return nil
	}
	return slices.Clone(rec.list)
}

// purge clears the entity from every index. Unknown entities are ignored.
func (s *store) purge(e Entity) {
	rec := s.records[e]
	if rec == nil {
		return
	}
	for _, c := range rec.list {
		delete(s.byKind[c.Kind()], e)
	}
	delete(s.records, e)
}

func (s *store) entities(k Kind) Set {
	if int(k) >= MaxKinds {
		return nil
	}
	return s.byKind[k]
}
