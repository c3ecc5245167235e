package graphics

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/alienworlds/engine/internal/component"
)

// ErrMissingResource matches every *MissingResourceError through errors.Is.
var ErrMissingResource = errors.New("graphics: missing resource")

// MissingResourceError reports a lookup of an unregistered resource id.
type MissingResourceError struct {
	ID component.ResourceID
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.ID)
}

func (e *MissingResourceError) Is(target error) bool { return target == ErrMissingResource }

// firstResourceID keeps generated ids clear of hand-assigned ones.
const firstResourceID = 1000000

// Resources maps ids to meshes, materials and other shared assets. Each
// synchronizer owns one, so independent worlds never share counters.
type Resources struct {
	mu   sync.RWMutex
	next uint64
	byID map[component.ResourceID]any
}

func NewResources() *Resources {
	return &Resources{next: firstResourceID, byID: make(map[component.ResourceID]any)}
}

// Add stores r under a freshly generated id.
func (r *Resources) Add(res any) component.ResourceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := component.ResourceID(strconv.FormatUint(r.next, 10))
	r.next++
	r.byID[id] = res
	return id
}

// Insert stores res under a caller chosen id, replacing any previous value.
func (r *Resources) Insert(id component.ResourceID, res any) {
	r.mu.Lock()
	r.byID[id] = res
	r.mu.Unlock()
}

func (r *Resources) Remove(id component.ResourceID) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func (r *Resources) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Get returns the resource registered under id or a *MissingResourceError.
func (r *Resources) Get(id component.ResourceID) (any, error) {
	r.mu.RLock()
	res, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &MissingResourceError{ID: id}
	}
	return res, nil
}

// Lookup returns the resource under id as a T.
func Lookup[T any](r *Resources, id component.ResourceID) (T, error) {
	var zero T
	res, err := r.Get(id)
	if err != nil {
		return zero, err
	}
	t, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("resource %s is %T, want %T", id, res, zero)
	}
	return t, nil
}
