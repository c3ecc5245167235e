package graphics

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ChunkState is the lifecycle position of a terrain chunk mesh.
type ChunkState uint8

const (
	ChunkQueued ChunkState = iota
	ChunkGenerating
	ChunkActive
	ChunkExpired
	ChunkFailed
)

// maxChunkAttempts is how many times in a row a chunk may fail to generate
// before it is given up on until it leaves the desired set.
const maxChunkAttempts = 3

func (s ChunkState) String() string {
	switch s {
	case ChunkQueued:
		return "queued"
	case ChunkGenerating:
		return "generating"
	case ChunkActive:
		return "active"
	case ChunkExpired:
		return "expired"
	case ChunkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// chunkParamsSize holds {u32 lod, i32 x, i32 y, f32 chunkSize, u32 seed}.
const chunkParamsSize = 20

type chunkMesh struct {
	chunk  terrain.Chunk
	state  ChunkState
	params gfx.Handle
	out    gfx.Handle
	result *gfx.Future[[]byte]
	proxy  *MeshProxy
	// attempts counts consecutive failed generations.
	attempts int
	// dropped marks a generating chunk that left the desired set.
	dropped bool
}

// chunkSet tracks the chunk meshes of one terrain entity.
type chunkSet struct {
	chunks         map[terrain.Key]*chunkMesh
	queue          []terrain.Key
	lastActivation time.Time
}

func newChunkSet() *chunkSet {
	return &chunkSet{chunks: make(map[terrain.Key]*chunkMesh)}
}

// ChunkStates returns the lifecycle state of every tracked chunk of a
// terrain entity.
func (s *Synchronizer) ChunkStates(e ecs.Entity) map[terrain.Key]ChunkState {
	set, ok := s.terrains[e]
	if !ok {
		return nil
	}
	out := make(map[terrain.Key]ChunkState, len(set.chunks))
	for k, c := range set.chunks {
		out[k] = c.state
	}
	return out
}

func (s *Synchronizer) updateTerrain(w *ecs.World, scene Scene) error {
	var errs error
	now := s.now()
	seen := make(ecs.Set)
	for _, e := range w.EntitiesWithComponent(component.KindTerrain).Sorted() {
		t, _ := ecs.Get[*component.Terrain](w, e)
		seen[e] = struct{}{}
		set, ok := s.terrains[e]
		if !ok {
			set = newChunkSet()
			s.terrains[e] = set
		}
		s.diffChunks(set, t, scene)
		errs = multierr.Append(errs, s.collectChunks(set, t, scene, now))
		errs = multierr.Append(errs, s.startChunks(set, t))
		s.removeExpired(set, scene, now)
	}
	for e, set := range s.terrains {
		if !seen.Has(e) {
			set.releaseAll(s, scene)
			delete(s.terrains, e)
		}
	}
	return errs
}

// diffChunks queues newly desired chunks and expires the ones no longer
// wanted.
func (s *Synchronizer) diffChunks(set *chunkSet, t *component.Terrain, scene Scene) {
	var added []terrain.Chunk
	for k, c := range t.Chunks {
		cm, ok := set.chunks[k]
		switch {
		case !ok:
			set.chunks[k] = &chunkMesh{chunk: c, state: ChunkQueued}
			added = append(added, c)
		case cm.state == ChunkExpired:
			cm.state = ChunkActive
		case cm.dropped:
			cm.dropped = false
		}
	}
	// Finest chunks sit closest to the viewer, so they go first.
	slices.SortFunc(added, func(a, b terrain.Chunk) int {
		if a.Lod != b.Lod {
			return a.Lod - b.Lod
		}
		if a.Position.Y != b.Position.Y {
			return a.Position.Y - b.Position.Y
		}
		return a.Position.X - b.Position.X
	})
	for _, c := range added {
		set.queue = append(set.queue, c.Key())
	}

	for k, cm := range set.chunks {
		if _, ok := t.Chunks[k]; ok {
			continue
		}
		switch cm.state {
		case ChunkQueued, ChunkFailed:
			delete(set.chunks, k)
		case ChunkGenerating:
			cm.dropped = true
		case ChunkActive:
			cm.state = ChunkExpired
		}
	}
}

// collectChunks turns finished GPU results into active meshes.
func (s *Synchronizer) collectChunks(set *chunkSet, t *component.Terrain, scene Scene, now time.Time) error {
	var errs error
	for _, k := range sortedKeys(set.chunks) {
		cm := set.chunks[k]
		if cm.state != ChunkGenerating || !cm.result.IsResolved() {
			continue
		}
		data, err := cm.result.Result()
		s.backend.Release(cm.params)
		s.backend.Release(cm.out)
		cm.params, cm.out, cm.result = 0, 0, nil

		if cm.dropped {
			delete(set.chunks, k)
			continue
		}
		if err != nil {
			s.log.Warn("chunk generation failed", zap.String("chunk", string(k)), zap.Error(err))
			s.retryChunk(set, k, cm, err)
			errs = multierr.Append(errs, err)
			continue
		}

		verts := chunkVertices(cm.chunk, gfx.Float32s(data), t.ChunkSize, t.ColorSeed)
		mesh, err := UploadMesh(s.backend, "chunk:"+string(k), verts)
		if err != nil {
			s.retryChunk(set, k, cm, err)
			errs = multierr.Append(errs, err)
			continue
		}
		cm.proxy = &MeshProxy{Mesh: mesh, Transform: mgl64.Ident4()}
		scene.AddMesh(cm.proxy)
		cm.state = ChunkActive
		cm.attempts = 0
		set.lastActivation = now
		s.created++
		s.log.Debug("chunk active", zap.String("chunk", string(k)))
	}
	return errs
}

// startChunks drains at most ChunksPerFrame entries from the queue.
func (s *Synchronizer) startChunks(set *chunkSet, t *component.Terrain) error {
	started := 0
	for len(set.queue) > 0 && started < s.cfg.ChunksPerFrame {
		k := set.queue[0]
		set.queue = set.queue[1:]
		cm, ok := set.chunks[k]
		if !ok || cm.state != ChunkQueued {
			continue
		}
		if err := s.startChunk(cm, t); err != nil {
			s.log.Warn("chunk generation not started", zap.String("chunk", string(k)), zap.Error(err))
			s.retryChunk(set, k, cm, err)
			return err
		}
		started++
	}
	return nil
}

// retryChunk requeues cm after a failed attempt. After maxChunkAttempts it
// is marked failed instead, which no longer holds back expired removals.
func (s *Synchronizer) retryChunk(set *chunkSet, k terrain.Key, cm *chunkMesh, err error) {
	cm.attempts++
	if cm.attempts >= maxChunkAttempts {
		cm.state = ChunkFailed
		s.log.Error("chunk abandoned",
			zap.String("chunk", string(k)),
			zap.Int("attempts", cm.attempts),
			zap.Error(err),
		)
		return
	}
	cm.state = ChunkQueued
	set.queue = append(set.queue, k)
}

func (s *Synchronizer) startChunk(cm *chunkMesh, t *component.Terrain) error {
	n := terrain.ChunkResolution + 1
	params, err := s.backend.CreateBuffer(chunkParamsSize, gfx.UsageUniform|gfx.UsageCopyDst)
	if err != nil {
		return fmt.Errorf("chunk params: %w", err)
	}
	out, err := s.backend.CreateBuffer(n*n*4, gfx.UsageStorage|gfx.UsageMapRead)
	if err != nil {
		s.backend.Release(params)
		return fmt.Errorf("chunk output: %w", err)
	}

	data := make([]byte, chunkParamsSize)
	gfx.PutUint32At(data, 0, uint32(cm.chunk.Lod))
	gfx.PutUint32At(data, 1, uint32(int32(cm.chunk.Position.X)))
	gfx.PutUint32At(data, 2, uint32(int32(cm.chunk.Position.Y)))
	copy(data[12:], gfx.Float32Bytes(float32(t.ChunkSize)))
	gfx.PutUint32At(data, 4, t.TerrainSeed)

	if err := s.backend.WriteBuffer(params, 0, data); err == nil {
		err = s.backend.DispatchCompute(terrain.KernelChunk, []gfx.Handle{params, out}, gfx.Workgroups{n, n, 1})
	}
	if err != nil {
		s.backend.Release(params)
		s.backend.Release(out)
		return err
	}
	cm.params, cm.out = params, out
	cm.result = gfx.ReadBuffer(s.backend, out)
	cm.state = ChunkGenerating
	return nil
}

// removeExpired releases up to RemovalsPerFrame expired chunks once nothing
// is pending and RemovalDelay has passed since the newest activation, so old
// and new geometry never both go missing.
func (s *Synchronizer) removeExpired(set *chunkSet, scene Scene, now time.Time) {
	for _, cm := range set.chunks {
		if cm.state == ChunkQueued || cm.state == ChunkGenerating {
			return
		}
	}
	if now.Sub(set.lastActivation) < s.cfg.RemovalDelay {
		return
	}
	removed := 0
	for _, k := range sortedKeys(set.chunks) {
		if removed >= s.cfg.RemovalsPerFrame {
			break
		}
		cm := set.chunks[k]
		if cm.state != ChunkExpired {
			continue
		}
		s.releaseChunk(cm, scene)
		delete(set.chunks, k)
		removed++
	}
	if removed > 0 {
		s.log.Debug("expired chunks removed", zap.Int("count", removed))
	}
}

func (s *Synchronizer) releaseChunk(cm *chunkMesh, scene Scene) {
	if cm.proxy != nil {
		scene.RemoveMesh(cm.proxy)
		s.backend.Release(cm.proxy.Mesh.Buffer)
		cm.proxy = nil
		s.removed++
	}
	if cm.params != 0 {
		s.backend.Release(cm.params)
		s.backend.Release(cm.out)
		cm.params, cm.out = 0, 0
	}
}

func (set *chunkSet) releaseAll(s *Synchronizer, scene Scene) {
	for k, cm := range set.chunks {
		s.releaseChunk(cm, scene)
		delete(set.chunks, k)
	}
	set.queue = nil
}

func sortedKeys(m map[terrain.Key]*chunkMesh) []terrain.Key {
	keys := make([]terrain.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// chunkVertices triangulates a (ChunkResolution+1)² height grid covering
// the chunk footprint in world space.
func chunkVertices(c terrain.Chunk, heights []float32, chunkSize float64, colorSeed uint32) []Vertex {
	n := terrain.ChunkResolution + 1
	if len(heights) < n*n {
		return nil
	}
	extent := float64(c.Size()) * chunkSize
	step := extent / terrain.ChunkResolution
	ox, oz := float64(c.Position.X)*chunkSize, float64(c.Position.Y)*chunkSize

	pos := func(i, j int) mgl64.Vec3 {
		return mgl64.Vec3{ox + float64(i)*step, float64(heights[i+j*n]), oz + float64(j)*step}
	}
	hue := terrain.Hash01(int32(colorSeed), 0, colorSeed)
	vertex := func(i, j int) Vertex {
		p := pos(i, j)
		il, ir := max(i-1, 0), min(i+1, n-1)
		jl, jr := max(j-1, 0), min(j+1, n-1)
		dx := pos(ir, j).Sub(pos(il, j))
		dz := pos(i, jr).Sub(pos(i, jl))
		normal := dz.Cross(dx).Normalize()
		return Vertex{
			Position: [3]float32{float32(p[0]), float32(p[1]), float32(p[2])},
			Normal:   [3]float32{float32(normal[0]), float32(normal[1]), float32(normal[2])},
			Color:    heightColor(p[1], hue),
		}
	}

	out := make([]Vertex, 0, terrain.ChunkResolution*terrain.ChunkResolution*6)
	for j := 0; j < terrain.ChunkResolution; j++ {
		for i := 0; i < terrain.ChunkResolution; i++ {
			a, b, cc, d := vertex(i, j), vertex(i+1, j), vertex(i+1, j+1), vertex(i, j+1)
			out = append(out, a, d, cc, a, cc, b)
		}
	}
	return out
}

// heightColor picks water below zero and a seed-tinted land colour above.
func heightColor(h, hue float64) component.Color {
	if h < 0 {
		g := math.Max(0.2, 1-math.Abs(h)/terrain.HeightAmplitude*4)
		return component.Color{0, uint8(g * 0x99), uint8(g * 0xdd), 0xff}
	}
	g := math.Max(0.1, math.Min(1, h/terrain.HeightAmplitude))
	return component.Color{
		uint8(g * 0x33 * (1 + hue)),
		uint8(g * 0xff),
		uint8(g * 0x11 * (2 - hue)),
		0xff,
	}
}
