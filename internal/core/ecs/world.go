package ecs

import (
	"context"
	"sync"
	"time"

	"github.com/alienworlds/engine/internal/core/system"
	"go.uber.org/zap"
)

// System is a unit of per-tick logic operating on a World.
type System = system.System[*World]

// BaseSystem gives systems no-op Setup and Teardown hooks.
type BaseSystem = system.Base[*World]

// SystemFunc adapts a plain tick function into a System.
func SystemFunc(fn func(ctx context.Context, dt time.Duration, w *World) error) System {
	return system.FromFunc(fn)
}

// DefaultTickRate is the self-driving loop rate in ticks per second.
const DefaultTickRate = 60

// World owns all entities, their components and the ordered system list.
// World state may only be touched by the goroutine holding the turn: a
// system inside Tick, or a caller inside Do.
type World struct {
	store      *store
	runner     *system.Runner[*World]
	nextEntity Entity
	tickRate   int
	log        *zap.Logger

	mu     sync.Mutex // protects cancel
	cancel context.CancelFunc
}

func NewWorld(log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		store:    newStore(),
		runner:   system.NewRunner[*World](log),
		tickRate: DefaultTickRate,
		log:      log,
	}
}

// SetTickRate changes the rate used by Run. Non-positive values are ignored.
func (w *World) SetTickRate(hz int) {
	if hz > 0 {
		w.tickRate = hz
	}
}

func (w *World) TickRate() int { return w.tickRate }

// CreateEntity allocates a new ID and attaches the given components.
func (w *World) CreateEntity(components ...Component) Entity {
	w.nextEntity++
	e := w.nextEntity
	w.AddComponents(e, components...)
	return e
}

// RemoveEntity purges e from every index. Unknown entities are a no-op.
func (w *World) RemoveEntity(e Entity) {
	w.store.purge(e)
}

// AddComponent attaches c to e, replacing any component of the same kind.
func (w *World) AddComponent(e Entity, c Component) {
	w.store.set(e, c)
}

func (w *World) AddComponents(e Entity, components ...Component) {
	for _, c := range components {
		w.AddComponent(e, c)
	}
}

// GetComponent returns the component of kind k on e, if any.
func (w *World) GetComponent(e Entity, k Kind) (Component, bool) {
	return w.store.get(e, k)
}

func (w *World) HasComponent(e Entity, k Kind) bool {
	_, ok := w.store.get(e, k)
	return ok
}

// Components returns e's components in insertion order.
func (w *World) Components(e Entity) []Component {
	return w.store.components(e)
}

// Alive reports whether e currently holds any component.
func (w *World) Alive(e Entity) bool {
	_, ok := w.store.records[e]
	return ok
}

// EntityCount returns the number of entities holding at least one component.
func (w *World) EntityCount() int {
	return len(w.store.records)
}

// AddSystem appends s and runs its Setup hook synchronously.
func (w *World) AddSystem(s System) {
	w.runner.Register(w, s)
}

// RemoveSystem runs s's Teardown hook and drops it.
func (w *World) RemoveSystem(s System) bool {
	return w.runner.Unregister(w, s)
}

func (w *World) SystemCount() int { return w.runner.Len() }

// Tick runs every system once. Failures are isolated per system and
// returned combined after all systems have finished.
func (w *World) Tick(ctx context.Context, dt time.Duration) error {
	return w.runner.Tick(ctx, dt, w)
}

// Suspend releases the world to other systems until done is closed. Only
// valid inside a system's Tick.
func (w *World) Suspend(ctx context.Context, done <-chan struct{}) error {
	return w.runner.Suspend(ctx, done)
}

// Do runs fn with exclusive access to the world, between ticks. Use it from
// outside the tick (input glue, the graphics synchronizer) while Run is
// active.
func (w *World) Do(fn func()) {
	w.runner.Exclusive(fn)
}
