package ecs

// EntitiesWithComponent returns a copy of the set of entities holding k.
func (w *World) EntitiesWithComponent(k Kind) Set {
	src := w.store.entities(k)
	out := make(Set, len(src))
	for e := range src {
		out[e] = struct{}{}
	}
	return out
}

// EntitiesWithComponents returns the entities holding every kind in kinds.
// The result is empty, never nil, when kinds is empty or nothing matches.
func (w *World) EntitiesWithComponents(kinds ...Kind) Set {
	if len(kinds) == 0 {
		return make(Set)
	}
	// Iterate the smallest index and probe the others.
	smallest := kinds[0]
	for _, k := range kinds[1:] {
		if len(w.store.entities(k)) < len(w.store.entities(smallest)) {
			smallest = k
		}
	}
	out := make(Set)
	for e := range w.store.entities(smallest) {
		match := true
		for _, k := range kinds {
			if _, ok := w.store.get(e, k); !ok {
				match = false
				break
			}
		}
		if match {
			out[e] = struct{}{}
		}
	}
	return out
}

// Get returns the component of type T attached to e.
func Get[T Component](w *World, e Entity) (T, bool) {
	var zero T
	c, ok := w.store.get(e, zero.Kind())
	if !ok {
		return zero, false
	}
	t, ok := c.(T)
	return t, ok
}

// Each2 calls fn, in entity creation order, for every entity holding both A and B.
func Each2[A, B Component](w *World, fn func(Entity, A, B)) {
	var (
		za A
		zb B
	)
	for _, e := range w.EntitiesWithComponents(za.Kind(), zb.Kind()).Sorted() {
		a, _ := Get[A](w, e)
		b, _ := Get[B](w, e)
		fn(e, a, b)
	}
}

// Each3 calls fn, in entity creation order, for every entity holding A, B and C.
func Each3[A, B, C Component](w *World, fn func(Entity, A, B, C)) {
	var (
		za A
		zb B
		zc C
	)
	for _, e := range w.EntitiesWithComponents(za.Kind(), zb.Kind(), zc.Kind()).Sorted() {
		a, _ := Get[A](w, e)
		b, _ := Get[B](w, e)
		c, _ := Get[C](w, e)
		fn(e, a, b, c)
	}
}
