package system

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes systems each tick in registration order.
//
// Every system's tick is started on its own goroutine, but only the goroutine
// holding the turn lock may touch world state. A system keeps the turn until
// it returns or suspends on a pending result (Suspend), at which point the
// next system in registration order starts. The tick completes once every
// system has returned.
type Runner[W any] struct {
	systems []System[W]
	turn    sync.Mutex // single logical thread of control
	ticking sync.Mutex // ticks never overlap
	log     *zap.Logger
}

func NewRunner[W any](log *zap.Logger) *Runner[W] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner[W]{
		systems: make([]System[W], 0, 16),
		log:     log,
	}
}

// Register appends s and runs its Setup hook before returning.
func (r *Runner[W]) Register(w W, s System[W]) {
	r.systems = append(r.systems, s)
	s.Setup(w)
}

// Unregister removes s and runs its Teardown hook. Reports whether s was found.
func (r *Runner[W]) Unregister(w W, s System[W]) bool {
	i := slices.IndexFunc(r.systems, func(o System[W]) bool { return o == s })
	if i < 0 {
		return false
	}
	r.systems = slices.Delete(r.systems, i, i+1)
	s.Teardown(w)
	return true
}

// Len returns the number of registered systems.
func (r *Runner[W]) Len() int {
	return len(r.systems)
}

// Tick runs one step of every system. A failing or panicking system does not
// stop the others; all failures are returned combined.
func (r *Runner[W]) Tick(ctx context.Context, dt time.Duration, w W) error {
	r.ticking.Lock()
	defer r.ticking.Unlock()

	systems := slices.Clone(r.systems)

	// The group only fans out and joins; failures are collected in errs so
	// that every system's error survives, not just the first.
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, s := range systems {
		// Wait until the previous system has returned or suspended.
		r.turn.Lock()
		g.Go(func() error {
			defer r.turn.Unlock()
			if err := r.safeTick(ctx, s, dt, w); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errs
}

// Suspend gives up the turn until done is closed or ctx ends, then takes it
// back. It must only be called from inside a system's Tick.
func (r *Runner[W]) Suspend(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	default:
	}

	r.turn.Unlock()
	defer r.turn.Lock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exclusive runs fn between ticks while holding the turn. A tick in progress,
// including one whose systems are suspended, finishes first. It must not be
// called from inside a system's Tick.
func (r *Runner[W]) Exclusive(fn func()) {
	r.ticking.Lock()
	defer r.ticking.Unlock()
	r.turn.Lock()
	defer r.turn.Unlock()
	fn()
}

// safeTick runs one system with panic recovery so a single broken system
// cannot take down the whole frame.
func (r *Runner[W]) safeTick(ctx context.Context, s System[W], dt time.Duration, w W) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("system panic recovered",
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("system %T panic: %v", s, rec)
		}
	}()
	if err := s.Tick(ctx, dt, w); err != nil {
		r.log.Warn("system tick failed",
			zap.String("system", fmt.Sprintf("%T", s)),
			zap.Error(err),
		)
		return fmt.Errorf("system %T: %w", s, err)
	}
	return nil
}
