package system

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type world struct{ log []string }

type named struct {
	Base[*world]
	name string
	err  error
}

func (n *named) Tick(_ context.Context, _ time.Duration, w *world) error {
	w.log = append(w.log, n.name)
	return n.err
}

func TestRunnerRegisterUnregister(t *testing.T) {
	r := NewRunner[*world](nil)
	w := &world{}
	a := &named{name: "a"}
	b := &named{name: "b"}
	r.Register(w, a)
	r.Register(w, b)
	if r.Len() != 2 {
		t.Fatalf("expected 2 systems, got %d", r.Len())
	}
	if !r.Unregister(w, a) {
		t.Fatal("expected a to be found")
	}
	if r.Unregister(w, a) {
		t.Fatal("second unregister must report false")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 system, got %d", r.Len())
	}
}

func TestRunnerFuncSystemsAreComparable(t *testing.T) {
	r := NewRunner[*world](nil)
	w := &world{}
	fn := func(context.Context, time.Duration, *world) error { return nil }
	s1 := FromFunc(fn)
	s2 := FromFunc(fn)
	r.Register(w, s1)
	r.Register(w, s2)
	if !r.Unregister(w, s2) || r.Len() != 1 {
		t.Fatal("func systems must be removable by identity")
	}
}

func TestRunnerLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRunner[*world](zap.New(core))
	w := &world{}
	boom := errors.New("boom")
	r.Register(w, &named{name: "a", err: boom})
	r.Register(w, &named{name: "b"})

	err := r.Tick(context.Background(), time.Millisecond, w)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(w.log) != 2 || w.log[0] != "a" || w.log[1] != "b" {
		t.Errorf("unexpected order %v", w.log)
	}
	if n := logs.FilterMessage("system tick failed").Len(); n != 1 {
		t.Errorf("expected 1 failure log, got %d", n)
	}
}

func TestRunnerSuspendFastPath(t *testing.T) {
	r := NewRunner[*world](nil)
	w := &world{}
	done := make(chan struct{})
	close(done)
	r.Register(w, FromFunc(func(ctx context.Context, _ time.Duration, _ *world) error {
		return r.Suspend(ctx, done)
	}))
	if err := r.Tick(context.Background(), time.Millisecond, w); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func TestRunnerExclusiveWaitsForSuspendedTick(t *testing.T) {
	r := NewRunner[*world](nil)
	w := &world{}
	suspended := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	r.Register(w, FromFunc(func(ctx context.Context, _ time.Duration, _ *world) error {
		close(suspended)
		if err := r.Suspend(ctx, release); err != nil {
			return err
		}
		finished.Store(true)
		return nil
	}))

	tickErr := make(chan error, 1)
	go func() { tickErr <- r.Tick(context.Background(), time.Millisecond, w) }()
	<-suspended

	ran := make(chan bool, 1)
	go r.Exclusive(func() { ran <- finished.Load() })

	select {
	case <-ran:
		t.Fatal("Exclusive ran while a system was suspended mid-tick")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-tickErr; err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !<-ran {
		t.Error("Exclusive ran before the suspended system finished")
	}
}

func TestRunnerKeepsEveryFailure(t *testing.T) {
	r := NewRunner[*world](nil)
	w := &world{}
	first, second := errors.New("first"), errors.New("second")
	r.Register(w, &named{name: "a", err: first})
	r.Register(w, &named{name: "b"})
	r.Register(w, &named{name: "c", err: second})

	err := r.Tick(context.Background(), time.Millisecond, w)
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both failures, got %v", err)
	}
	if len(w.log) != 3 {
		t.Errorf("every system must run, got %v", w.log)
	}
}
