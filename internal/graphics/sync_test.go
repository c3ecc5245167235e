package graphics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/gfx/headless"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	w     *ecs.World
	b     *headless.Backend
	sync  *Synchronizer
	scene *MemScene
	clock *fakeClock
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	b := headless.New(nil, headless.Synchronous(), headless.WithKernels(terrain.Kernels()))
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := New(b, nil, cfg, zaptest.NewLogger(t), WithClock(clock.Now))

	vs, err := BuildMesh("cube", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := UploadMesh(b, "cube", vs)
	if err != nil {
		t.Fatal(err)
	}
	s.Resources().Insert("cube", mesh)
	return &fixture{w: ecs.NewWorld(nil), b: b, sync: s, scene: NewMemScene(), clock: clock}
}

func (f *fixture) update(t *testing.T) error {
	t.Helper()
	return f.sync.Update(context.Background(), f.w, f.scene)
}

// go test -run ^TestMeshProxyLifecycle$ ./internal/graphics -count 1
func TestMeshProxyLifecycle(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	e := f.w.CreateEntity(component.NewTransform(mgl64.Vec3{1, 2, 3}))

	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	if st := f.sync.Stats(); st.ProxiesCreated != 0 {
		t.Fatalf("transform alone must not create a proxy, got %+v", st)
	}

	f.w.AddComponent(e, &component.Mesh{MeshID: "cube"})
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	st := f.sync.Stats()
	if st.ProxiesCreated != 1 || st.Instances != 1 || st.Groups != 1 {
		t.Fatalf("expected exactly one proxy, got %+v", st)
	}

	for i := 0; i < 5; i++ {
		if err := f.update(t); err != nil {
			t.Fatal(err)
		}
	}
	if st := f.sync.Stats(); st.ProxiesCreated != 1 || st.ProxiesRemoved != 0 {
		t.Fatalf("unchanged ticks must not churn proxies, got %+v", st)
	}

	f.w.RemoveEntity(e)
	f.w.AddComponents(e, &component.Mesh{MeshID: "cube"})
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	st = f.sync.Stats()
	if st.ProxiesRemoved != 1 || st.Instances != 0 || st.Groups != 0 {
		t.Fatalf("losing the transform must remove exactly one proxy, got %+v", st)
	}
	if _, _, instanced, _ := f.scene.Counts(); instanced != 0 {
		t.Errorf("empty instance group still in scene")
	}
}

func TestMeshInstancesShareGroup(t *testing.T) {
	f := newFixture(t, Config{InstanceCapacity: 2})
	var es []ecs.Entity
	for i := 0; i < 5; i++ {
		es = append(es, f.w.CreateEntity(
			component.NewTransform(mgl64.Vec3{float64(i), 0, 0}),
			&component.Mesh{MeshID: "cube"},
		))
	}
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	st := f.sync.Stats()
	if st.Groups != 1 || st.Instances != 5 {
		t.Fatalf("expected one shared group with 5 instances, got %+v", st)
	}
	g := f.sync.groups[groupKey{mesh: "cube"}]
	if g.Capacity() < 5 {
		t.Errorf("group did not grow, capacity %d", g.Capacity())
	}
	slot := f.sync.meshes[es[3]]
	if got := g.Matrix(slot.index).Col(3); got.X() != 3 {
		t.Errorf("instance transform not written, got %v", got)
	}

	// A freed slot is reused by the next instance.
	freed := f.sync.meshes[es[1]].index
	f.w.RemoveEntity(es[1])
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	e := f.w.CreateEntity(component.NewTransform(mgl64.Vec3{}), &component.Mesh{MeshID: "cube"})
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	if got := f.sync.meshes[e]; got.group != g || got.index != freed {
		t.Errorf("expected slot %d in the shared group, got %d", freed, got.index)
	}
}

func TestMissingResource(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.w.CreateEntity(component.NewTransform(mgl64.Vec3{}), &component.Mesh{MeshID: "nope"})
	ok := f.w.CreateEntity(component.NewTransform(mgl64.Vec3{}), &component.Mesh{MeshID: "cube"})

	err := f.update(t)
	if !errors.Is(err, ErrMissingResource) {
		t.Fatalf("expected missing resource, got %v", err)
	}
	var mre *MissingResourceError
	if !errors.As(err, &mre) || mre.ID != "nope" {
		t.Errorf("expected typed error for nope, got %v", err)
	}
	if _, tracked := f.sync.meshes[ok]; !tracked {
		t.Error("a missing resource must not block other entities")
	}

	// Registering the resource lets the next frame succeed.
	mesh, _ := Lookup[*Mesh](f.sync.Resources(), "cube")
	f.sync.Resources().Insert("nope", mesh)
	if err := f.update(t); err != nil {
		t.Errorf("expected recovery, got %v", err)
	}
}

func TestCameraAndLightProxies(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cam := f.w.CreateEntity(component.NewCamera(), component.NewTransform(mgl64.Vec3{0, 10, 0}))
	f.w.CreateEntity(&component.Light{Type: component.LightDirectional, Intensity: 1}, component.NewTransform(mgl64.Vec3{}))

	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	cameras, lights, _, _ := f.scene.Counts()
	if cameras != 1 || lights != 1 {
		t.Fatalf("expected 1 camera and 1 light, got %d %d", cameras, lights)
	}
	tr, _ := ecs.Get[*component.Transform](f.w, cam)
	tr.Position = mgl64.Vec3{5, 5, 5}
	_ = f.update(t)
	if p := f.scene.Cameras()[0].Position; p != (mgl64.Vec3{5, 5, 5}) {
		t.Errorf("camera not updated: %v", p)
	}
	if d := f.sync.lights[2].Direction; !d.ApproxEqual(mgl64.Vec3{0, 0, -1}) {
		t.Errorf("unexpected light direction %v", d)
	}

	f.w.RemoveEntity(cam)
	_ = f.update(t)
	if cameras, _, _, _ := f.scene.Counts(); cameras != 0 {
		t.Error("camera proxy not removed")
	}
}

func terrainWith(chunks ...terrain.Chunk) *component.Terrain {
	t := component.NewTerrain(7, 3, 0)
	t.ChunkSize = 8
	for _, c := range chunks {
		t.Chunks[c.Key()] = c
	}
	return t
}

func lod0(n int, y int) []terrain.Chunk {
	out := make([]terrain.Chunk, n)
	for i := range out {
		out[i] = terrain.Chunk{Lod: 0, Position: terrain.Point{X: i, Y: y}}
	}
	return out
}

func TestChunkGenerationBatched(t *testing.T) {
	f := newFixture(t, Config{ChunksPerFrame: 8, RemovalDelay: 10 * time.Millisecond})
	f.w.CreateEntity(terrainWith(lod0(20, 0)...))

	wantGenerating := []int{8, 8, 4, 0}
	wantActive := []int{0, 8, 16, 20}
	for frame := range wantActive {
		if err := f.update(t); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		st := f.sync.Stats()
		if st.ChunksGenerating != wantGenerating[frame] || st.ChunksActive != wantActive[frame] {
			t.Fatalf("frame %d: generating=%d active=%d, want %d %d",
				frame, st.ChunksGenerating, st.ChunksActive, wantGenerating[frame], wantActive[frame])
		}
	}
	if _, _, _, meshes := f.scene.Counts(); meshes != 20 {
		t.Errorf("expected 20 chunk meshes in scene, got %d", meshes)
	}
}

func TestChunkRemovalDelayedAndCapped(t *testing.T) {
	f := newFixture(t, Config{ChunksPerFrame: 8, RemovalsPerFrame: 3, RemovalDelay: 10 * time.Millisecond})
	e := f.w.CreateEntity(terrainWith(lod0(6, 0)...))
	_ = f.update(t)
	_ = f.update(t)
	if st := f.sync.Stats(); st.ChunksActive != 6 {
		t.Fatalf("setup: %+v", st)
	}

	// Move: the old row expires, a new row is queued.
	f.w.AddComponent(e, terrainWith(lod0(2, 1)...))

	_ = f.update(t) // expire old, start new
	st := f.sync.Stats()
	if st.ChunksExpired != 6 || st.ChunksGenerating != 2 {
		t.Fatalf("expected 6 expired and 2 generating, got %+v", st)
	}

	f.clock.Advance(time.Millisecond)
	_ = f.update(t) // new chunks activate, removal waits for the delay
	st = f.sync.Stats()
	if st.ChunksActive != 2 || st.ChunksExpired != 6 {
		t.Fatalf("removal must wait for the delay, got %+v", st)
	}

	f.clock.Advance(10 * time.Millisecond)
	_ = f.update(t)
	if st := f.sync.Stats(); st.ChunksExpired != 3 {
		t.Fatalf("expected 3 removals in one frame, got %+v", st)
	}
	_ = f.update(t)
	st = f.sync.Stats()
	if st.ChunksExpired != 0 || st.ChunksActive != 2 {
		t.Fatalf("expected backlog cleared, got %+v", st)
	}
	if _, _, _, meshes := f.scene.Counts(); meshes != 2 {
		t.Errorf("expected 2 meshes left, got %d", meshes)
	}
}

func TestFailingChunkDoesNotBlockRemoval(t *testing.T) {
	f := newFixture(t, Config{ChunksPerFrame: 8, RemovalDelay: 10 * time.Millisecond})
	generate := terrain.Kernels()[terrain.KernelChunk]
	f.b.RegisterKernel(terrain.KernelChunk, func(b [][]byte, g gfx.Workgroups) error {
		if gfx.Uint32At(b[0], 0) == 1 {
			return errors.New("device lost")
		}
		return generate(b, g)
	})

	good := terrain.Chunk{Lod: 0, Position: terrain.Point{X: 0, Y: 0}}
	bad := terrain.Chunk{Lod: 1, Position: terrain.Point{X: 2, Y: 0}}
	e := f.w.CreateEntity(terrainWith(good, bad))
	for frame := 0; frame < maxChunkAttempts; frame++ {
		if err := f.update(t); err == nil {
			t.Fatalf("frame %d: expected the failing chunk to surface", frame)
		}
	}
	if got := f.sync.ChunkStates(e)[bad.Key()]; got != ChunkFailed {
		t.Fatalf("expected failed chunk, got %v", got)
	}
	if st := f.sync.Stats(); st.ChunksFailed != 1 || st.ChunksActive != 1 || st.ChunksQueued != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if err := f.update(t); err != nil {
		t.Fatalf("failed chunk must not be retried: %v", err)
	}

	// Move on: the good chunk expires and must still be released.
	next := terrain.Chunk{Lod: 0, Position: terrain.Point{X: 0, Y: 5}}
	f.w.AddComponent(e, terrainWith(next))
	_ = f.update(t)
	f.clock.Advance(time.Millisecond)
	_ = f.update(t)
	f.clock.Advance(10 * time.Millisecond)
	_ = f.update(t)
	st := f.sync.Stats()
	if st.ChunksExpired != 0 || st.ChunksFailed != 0 || st.ChunksActive != 1 {
		t.Fatalf("expired chunk not released, got %+v", st)
	}
	if _, ok := f.sync.ChunkStates(e)[good.Key()]; ok {
		t.Error("old chunk still tracked")
	}
}

func TestChunkRevivedBeforeRemoval(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	c := terrain.Chunk{Lod: 1, Position: terrain.Point{X: 2, Y: 2}}
	e := f.w.CreateEntity(terrainWith(c))
	_ = f.update(t)
	_ = f.update(t)

	f.w.AddComponent(e, terrainWith())
	_ = f.update(t)
	if got := f.sync.ChunkStates(e)[c.Key()]; got != ChunkExpired {
		t.Fatalf("expected expired, got %v", got)
	}
	f.w.AddComponent(e, terrainWith(c))
	_ = f.update(t)
	if got := f.sync.ChunkStates(e)[c.Key()]; got != ChunkActive {
		t.Fatalf("expected revived chunk, got %v", got)
	}
	if st := f.sync.Stats(); st.ProxiesCreated != 1 {
		t.Errorf("revival must not regenerate, got %+v", st)
	}
}

func TestTerrainEntityRemovalReleasesChunks(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	e := f.w.CreateEntity(terrainWith(lod0(4, 0)...))
	_ = f.update(t)
	_ = f.update(t)
	buffers := f.b.Stats().Buffers

	f.w.RemoveEntity(e)
	_ = f.update(t)
	if st := f.sync.Stats(); st.ChunksActive != 0 {
		t.Fatalf("chunks survived terrain removal: %+v", st)
	}
	if got := f.b.Stats().Buffers; got != buffers-4 {
		t.Errorf("expected 4 vertex buffers released, %d -> %d", buffers, got)
	}
}

func TestDecorFieldKeepsStaleInstancesUntilReadBack(t *testing.T) {
	b := headless.New(nil, headless.Manual(), headless.WithKernels(terrain.Kernels()))
	s := New(b, nil, DefaultConfig(), nil)
	vs, _ := BuildMesh("quad", 0, nil)
	mesh, _ := UploadMesh(b, "grass", vs)
	s.Resources().Insert("grass", mesh)
	scene := NewMemScene()
	w := ecs.NewWorld(nil)
	ctx := context.Background()

	player := w.CreateEntity(component.NewTransform(mgl64.Vec3{}))
	d := component.NewDecor("grass", 9)
	d.Target = player
	e := w.CreateEntity(d)

	if err := s.Update(ctx, w, scene); err != nil {
		t.Fatal(err)
	}
	if n, placed := s.DecorCount(e); n != 0 || placed {
		t.Fatalf("instances must wait for the GPU count, got %d %v", n, placed)
	}
	b.Flush()
	_ = s.Update(ctx, w, scene)
	first, placed := s.DecorCount(e)
	if !placed || first == 0 {
		t.Fatalf("expected placed instances, got %d %v", first, placed)
	}

	// Moving a long way starts a new scatter; the old instances stay.
	tr, _ := ecs.Get[*component.Transform](w, player)
	tr.Position = mgl64.Vec3{500, 0, 500}
	_ = s.Update(ctx, w, scene)
	if n, _ := s.DecorCount(e); n != first {
		t.Errorf("stale instances dropped before read back: %d vs %d", n, first)
	}
	b.Flush()
	_ = s.Update(ctx, w, scene)
	if f := s.decor[e]; f.cell != terrain.Cell(500, 500, d.Spread) {
		t.Errorf("field not moved, cell %v", f.cell)
	}
}

func TestParticlesEmitter(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	p := component.NewParticles("cube")
	p.Count = 10
	e := f.w.CreateEntity(p, component.NewTransform(mgl64.Vec3{}))
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	if em := f.sync.emitters[e]; em == nil || len(em.slots) != 10 {
		t.Fatalf("expected 10 particles")
	}
	p.Count = 4
	_ = f.update(t)
	if em := f.sync.emitters[e]; len(em.slots) != 4 || em.group.Len() != 4 {
		t.Errorf("emitter did not shrink")
	}
	p.Count = -3
	if err := f.update(t); err != nil {
		t.Fatal(err)
	}
	if em := f.sync.emitters[e]; len(em.slots) != 0 || em.group.Len() != 0 {
		t.Errorf("negative count should empty the emitter, have %d", len(em.slots))
	}
	f.w.RemoveEntity(e)
	_ = f.update(t)
	if st := f.sync.Stats(); st.Emitters != 0 {
		t.Errorf("emitter not released")
	}
}
