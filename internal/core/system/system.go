package system

import (
	"context"
	"time"
)

// System is the interface every per-tick unit of logic implements. W is the
// world type the system operates on; keeping it generic lets the runner live
// below the ECS package without an import cycle.
type System[W any] interface {
	// Setup is called once, synchronously, when the system is registered.
	Setup(w W)
	// Teardown is called once when the system is unregistered.
	Teardown(w W)
	// Tick runs one step of the system. It may suspend on a pending GPU
	// result through Runner.Suspend; other systems keep running meanwhile.
	Tick(ctx context.Context, dt time.Duration, w W) error
}

// Base provides no-op Setup and Teardown for systems that only tick.
type Base[W any] struct{}

func (Base[W]) Setup(W)    {}
func (Base[W]) Teardown(W) {}

// FromFunc adapts a plain function into a System.
func FromFunc[W any](fn func(ctx context.Context, dt time.Duration, w W) error) System[W] {
	return &funcSystem[W]{fn: fn}
}

type funcSystem[W any] struct {
	Base[W]
	fn func(ctx context.Context, dt time.Duration, w W) error
}

func (f *funcSystem[W]) Tick(ctx context.Context, dt time.Duration, w W) error {
	return f.fn(ctx, dt, w)
}
