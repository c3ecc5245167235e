package ecs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/core/ecs"
	"go.uber.org/zap/zaptest"
)

// --- Test Components ---

const (
	kindPosition ecs.Kind = iota + 1
	kindVelocity
	kindTag
)

type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }
type tag struct{ Name string }

func (*position) Kind() ecs.Kind { return kindPosition }
func (*velocity) Kind() ecs.Kind { return kindVelocity }
func (*tag) Kind() ecs.Kind      { return kindTag }

func newWorld(t *testing.T) *ecs.World {
	t.Helper()
	return ecs.NewWorld(zaptest.NewLogger(t))
}

// go test -run ^TestCreateEntity$ ./internal/core/ecs -count 1
func TestCreateEntity(t *testing.T) {
	w := newWorld(t)
	e1 := w.CreateEntity()
	e2 := w.CreateEntity(&position{X: 1})
	e3 := w.CreateEntity()

	if e1 != 1 || e2 != 2 || e3 != 3 {
		t.Fatalf("expected strictly increasing ids 1,2,3 got %d,%d,%d", e1, e2, e3)
	}
	if w.Alive(e1) {
		t.Error("entity without components should not be alive")
	}
	if !w.Alive(e2) {
		t.Error("entity with a component should be alive")
	}

	w.RemoveEntity(e2)
	if e4 := w.CreateEntity(); e4 != 4 {
		t.Errorf("ids must never be reused, got %d", e4)
	}
}

func TestAddComponentReplacesSameKind(t *testing.T) {
	w := newWorld(t)
	e := w.CreateEntity(&position{X: 1}, &velocity{DX: 2})

	w.AddComponent(e, &position{X: 10})

	comps := w.Components(e)
	if len(comps) != 2 {
		t.Fatalf("expected 2 components after replace, got %d", len(comps))
	}
	count := 0
	for _, c := range comps {
		if c.Kind() == kindPosition {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one position component, got %d", count)
	}

	p, ok := ecs.Get[*position](w, e)
	if !ok || p.X != 10 {
		t.Errorf("expected replaced position X=10, got %+v ok=%v", p, ok)
	}
	if got := w.EntitiesWithComponent(kindPosition); got.Len() != 1 || !got.Has(e) {
		t.Errorf("expected single membership in position index, got %v", got)
	}
	v, ok := ecs.Get[*velocity](w, e)
	if !ok || v.DX != 2 {
		t.Errorf("velocity should survive a position replace, got %+v", v)
	}
}

func TestRemoveEntityPurgesAllIndices(t *testing.T) {
	w := newWorld(t)
	e := w.CreateEntity(&position{}, &velocity{}, &tag{Name: "a"})
	other := w.CreateEntity(&position{})

	w.RemoveEntity(e)

	for _, k := range []ecs.Kind{kindPosition, kindVelocity, kindTag} {
		if w.EntitiesWithComponent(k).Has(e) {
			t.Errorf("entity still present in %v index", k)
		}
		if _, ok := w.GetComponent(e, k); ok {
			t.Errorf("GetComponent(%v) should be absent after removal", k)
		}
	}
	if w.EntitiesWithComponents(kindPosition, kindVelocity).Has(e) {
		t.Error("entity still returned by multi-kind query")
	}
	if len(w.Components(e)) != 0 {
		t.Error("component list not purged")
	}
	if !w.EntitiesWithComponent(kindPosition).Has(other) {
		t.Error("unrelated entity lost")
	}

	// Removing again, or removing an unknown entity, is a no-op.
	w.RemoveEntity(e)
	w.RemoveEntity(999)
}

func TestEntitiesWithComponentsIntersection(t *testing.T) {
	w := newWorld(t)
	onlyA := w.CreateEntity(&position{})
	onlyB := w.CreateEntity(&velocity{})
	both := w.CreateEntity(&position{}, &velocity{})

	got := w.EntitiesWithComponents(kindPosition, kindVelocity)
	if got.Len() != 1 || !got.Has(both) {
		t.Fatalf("expected only %d, got %v", both, got.Sorted())
	}
	if got.Has(onlyA) || got.Has(onlyB) {
		t.Error("intersection leaked single-kind entities")
	}

	t.Run("EmptyKinds", func(t *testing.T) {
		empty := w.EntitiesWithComponents()
		if empty == nil || empty.Len() != 0 {
			t.Errorf("expected empty non-nil set, got %v", empty)
		}
	})

	t.Run("NoMatches", func(t *testing.T) {
		none := w.EntitiesWithComponents(kindTag, kindPosition)
		if none == nil || none.Len() != 0 {
			t.Errorf("expected empty non-nil set, got %v", none)
		}
	})

	t.Run("ResultIsACopy", func(t *testing.T) {
		s := w.EntitiesWithComponent(kindPosition)
		delete(s, onlyA)
		if !w.EntitiesWithComponent(kindPosition).Has(onlyA) {
			t.Error("mutating a query result changed the world index")
		}
	})
}

func TestGetComponentMissing(t *testing.T) {
	w := newWorld(t)
	e := w.CreateEntity(&position{})

	if _, ok := ecs.Get[*velocity](w, e); ok {
		t.Error("expected absent velocity")
	}
	if _, ok := ecs.Get[*position](w, 42); ok {
		t.Error("expected absent component on unknown entity")
	}
}

func TestEach2(t *testing.T) {
	w := newWorld(t)
	w.CreateEntity(&position{})
	e := w.CreateEntity(&position{X: 1}, &velocity{DX: 3})

	calls := 0
	ecs.Each2(w, func(got ecs.Entity, p *position, v *velocity) {
		calls++
		if got != e {
			t.Errorf("unexpected entity %d", got)
		}
		p.X += v.DX
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	p, _ := ecs.Get[*position](w, e)
	if p.X != 4 {
		t.Errorf("in-place mutation lost, X=%v", p.X)
	}
}

// --- Systems ---

type recordingSystem struct {
	ecs.BaseSystem
	name  string
	log   *[]string
	mu    *sync.Mutex
	fail  error
	panic bool
}

func (s *recordingSystem) Setup(*ecs.World) {
	*s.log = append(*s.log, "setup:"+s.name)
}

func (s *recordingSystem) Teardown(*ecs.World) {
	*s.log = append(*s.log, "teardown:"+s.name)
}

func (s *recordingSystem) Tick(context.Context, time.Duration, *ecs.World) error {
	s.mu.Lock()
	*s.log = append(*s.log, "tick:"+s.name)
	s.mu.Unlock()
	if s.panic {
		panic("boom")
	}
	return s.fail
}

func TestSystemsSetupOrderAndTick(t *testing.T) {
	w := newWorld(t)
	var (
		log []string
		mu  sync.Mutex
	)
	a := &recordingSystem{name: "a", log: &log, mu: &mu}
	b := &recordingSystem{name: "b", log: &log, mu: &mu}
	w.AddSystem(a)
	w.AddSystem(b)

	if len(log) != 2 || log[0] != "setup:a" || log[1] != "setup:b" {
		t.Fatalf("setup must run synchronously in registration order, got %v", log)
	}

	if err := w.Tick(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("tick: %v", err)
	}
	// Systems that never suspend run their synchronous work in order.
	if log[2] != "tick:a" || log[3] != "tick:b" {
		t.Errorf("unexpected tick order %v", log[2:])
	}

	if !w.RemoveSystem(a) {
		t.Fatal("RemoveSystem returned false")
	}
	if log[len(log)-1] != "teardown:a" {
		t.Errorf("teardown not called, log=%v", log)
	}
	if w.SystemCount() != 1 {
		t.Errorf("expected 1 system left, got %d", w.SystemCount())
	}
}

func TestTickIsolatesSystemFailures(t *testing.T) {
	w := newWorld(t)
	var (
		log []string
		mu  sync.Mutex
	)
	errBad := errors.New("bad system")
	w.AddSystem(&recordingSystem{name: "fails", log: &log, mu: &mu, fail: errBad})
	w.AddSystem(&recordingSystem{name: "panics", log: &log, mu: &mu, panic: true})
	w.AddSystem(&recordingSystem{name: "ok", log: &log, mu: &mu})

	err := w.Tick(context.Background(), time.Millisecond)
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !errors.Is(err, errBad) {
		t.Errorf("expected wrapped system error, got %v", err)
	}

	ticked := map[string]bool{}
	for _, l := range log {
		ticked[l] = true
	}
	if !ticked["tick:ok"] {
		t.Error("healthy system did not tick after others failed")
	}

	// The world must still be usable after a panic.
	done := make(chan struct{})
	go func() {
		w.Do(func() { w.CreateEntity(&tag{}) })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("world turn lock leaked after panic")
	}
}

type suspendingSystem struct {
	ecs.BaseSystem
	gate    chan struct{}
	resumed bool
}

func (s *suspendingSystem) Tick(ctx context.Context, _ time.Duration, w *ecs.World) error {
	w.CreateEntity(&tag{Name: "before"})
	if err := w.Suspend(ctx, s.gate); err != nil {
		return err
	}
	s.resumed = true
	w.CreateEntity(&tag{Name: "after"})
	return nil
}

type gateOpener struct {
	ecs.BaseSystem
	gate chan struct{}
	saw  int
}

func (s *gateOpener) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	// Runs while the first system is suspended, and sees its synchronous work.
	s.saw = w.EntitiesWithComponent(kindTag).Len()
	close(s.gate)
	return nil
}

func TestSuspendLetsLaterSystemsRun(t *testing.T) {
	w := newWorld(t)
	gate := make(chan struct{})
	first := &suspendingSystem{gate: gate}
	second := &gateOpener{gate: gate}
	w.AddSystem(first)
	w.AddSystem(second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Tick(ctx, time.Millisecond); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !first.resumed {
		t.Error("suspended system never resumed")
	}
	if second.saw != 1 {
		t.Errorf("later system should see earlier synchronous mutation, saw %d", second.saw)
	}
	if n := w.EntitiesWithComponent(kindTag).Len(); n != 2 {
		t.Errorf("expected 2 tagged entities after tick, got %d", n)
	}
}

func TestSuspendHonoursContext(t *testing.T) {
	w := newWorld(t)
	w.AddSystem(&suspendingSystem{gate: make(chan struct{})})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Tick(ctx, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestRunAndStop(t *testing.T) {
	w := newWorld(t)
	w.SetTickRate(200)
	var (
		mu    sync.Mutex
		ticks int
	)
	w.AddSystem(ecs.SystemFunc(func(context.Context, time.Duration, *ecs.World) error {
		mu.Lock()
		ticks++
		mu.Unlock()
		return nil
	}))

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks == 0 {
		t.Error("loop never ticked")
	}
}
