package graphics

import (
	"fmt"
	"math"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// decorParamsSize holds {f32 cx, f32 cz, f32 spread, f32 radius,
// u32 seed, u32 capacity, u32 terrainSeed}.
const decorParamsSize = 28

// decorField scatters instances around a moving centre. The instance count
// is computed on the GPU; until a new scatter is read back the previous
// instances stay in place.
type decorField struct {
	meshID   component.ResourceID
	group    *InstanceGroup
	slots    []int
	cell     terrain.Point
	placed   bool
	capacity int

	pending     *gfx.Future[[]byte]
	pendingCell terrain.Point
	params, out gfx.Handle
}

func (s *Synchronizer) updateDecor(w *ecs.World, scene Scene) error {
	var errs error
	seen := make(ecs.Set)
	terrainSeed := firstTerrainSeed(w)
	for _, e := range w.EntitiesWithComponent(component.KindDecor).Sorted() {
		d, _ := ecs.Get[*component.Decor](w, e)
		seen[e] = struct{}{}

		f, ok := s.decor[e]
		if ok && f.meshID != d.MeshID {
			s.releaseDecor(e, f, scene)
			ok = false
		}
		if !ok {
			var err error
			if f, err = s.newDecorField(d); err != nil {
				s.log.Warn("decor field not created", zap.Uint32("entity", uint32(e)), zap.Error(err))
				errs = multierr.Append(errs, err)
				continue
			}
			s.decor[e] = f
			scene.AddInstanced(f.group)
			s.created++
		}

		if f.pending != nil && f.pending.IsResolved() {
			errs = multierr.Append(errs, s.applyDecor(f))
		}

		center, ok := decorCenter(w, e, d)
		if !ok || d.Spread <= 0 {
			continue
		}
		cell := terrain.Cell(center.X(), center.Z(), d.Spread)
		if f.pending == nil && (!f.placed || cell != f.cell) {
			if err := s.scatterDecor(f, d, cell, terrainSeed); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	for e, f := range s.decor {
		if !seen.Has(e) {
			s.releaseDecor(e, f, scene)
		}
	}
	return errs
}

func (s *Synchronizer) newDecorField(d *component.Decor) (*decorField, error) {
	mesh, err := Lookup[*Mesh](s.res, d.MeshID)
	if err != nil {
		return nil, err
	}
	cells := 2*int(math.Ceil(d.Radius)) + 1
	capacity := cells * cells
	g, err := newInstanceGroup(s.backend, mesh, nil, capacity)
	if err != nil {
		return nil, err
	}
	return &decorField{meshID: d.MeshID, group: g, capacity: capacity}, nil
}

func (s *Synchronizer) scatterDecor(f *decorField, d *component.Decor, cell terrain.Point, terrainSeed uint32) error {
	params, err := s.backend.CreateBuffer(decorParamsSize, gfx.UsageUniform|gfx.UsageCopyDst)
	if err != nil {
		return fmt.Errorf("decor params: %w", err)
	}
	out, err := s.backend.CreateBuffer(4+f.capacity*16, gfx.UsageStorage|gfx.UsageMapRead)
	if err != nil {
		s.backend.Release(params)
		return fmt.Errorf("decor output: %w", err)
	}
	cx := (float64(cell.X) + 0.5) * d.Spread
	cz := (float64(cell.Y) + 0.5) * d.Spread
	data := gfx.Float32Bytes(float32(cx), float32(cz), float32(d.Spread), float32(d.Radius), 0, 0, 0)
	gfx.PutUint32At(data, 4, d.Seed)
	gfx.PutUint32At(data, 5, uint32(f.capacity))
	gfx.PutUint32At(data, 6, terrainSeed)
	if err = s.backend.WriteBuffer(params, 0, data); err == nil {
		err = s.backend.DispatchCompute(terrain.KernelDecor, []gfx.Handle{params, out}, gfx.Workgroups{1, 1, 1})
	}
	if err != nil {
		s.backend.Release(params)
		s.backend.Release(out)
		return err
	}
	f.params, f.out = params, out
	f.pending = gfx.ReadBuffer(s.backend, out)
	f.pendingCell = cell
	return nil
}

func (s *Synchronizer) applyDecor(f *decorField) error {
	data, err := f.pending.Result()
	s.backend.Release(f.params)
	s.backend.Release(f.out)
	f.params, f.out, f.pending = 0, 0, nil
	if err != nil {
		return fmt.Errorf("decor scatter: %w", err)
	}

	count := min(int(gfx.Uint32At(data, 0)), f.capacity)
	for len(f.slots) > count {
		f.group.Free(f.slots[len(f.slots)-1])
		f.slots = f.slots[:len(f.slots)-1]
	}
	for len(f.slots) < count {
		i, err := f.group.Alloc()
		if err != nil {
			return err
		}
		f.slots = append(f.slots, i)
	}
	inst := gfx.Float32s(data[4 : 4+count*16])
	white := component.Color{255, 255, 255, 255}
	var errs error
	for n, slot := range f.slots {
		p := inst[n*4:]
		scale := float64(p[3])
		m := mgl64.Translate3D(float64(p[0]), float64(p[1]), float64(p[2])).
			Mul4(mgl64.Scale3D(scale, scale, scale))
		errs = multierr.Append(errs, f.group.Set(slot, m, white))
	}
	f.cell = f.pendingCell
	f.placed = true
	return errs
}

func (s *Synchronizer) releaseDecor(e ecs.Entity, f *decorField, scene Scene) {
	if f.pending != nil {
		// The map completes on its own; the buffers go with it.
		pending, params, out := f.pending, f.params, f.out
		go func() {
			_, _ = pending.Result()
			s.backend.Release(params)
			s.backend.Release(out)
		}()
	}
	scene.RemoveInstanced(f.group)
	f.group.release()
	delete(s.decor, e)
	s.removed++
}

// DecorCount returns the number of placed instances of a decor entity.
func (s *Synchronizer) DecorCount(e ecs.Entity) (int, bool) {
	f, ok := s.decor[e]
	if !ok {
		return 0, false
	}
	return len(f.slots), f.placed
}

func decorCenter(w *ecs.World, e ecs.Entity, d *component.Decor) (mgl64.Vec3, bool) {
	src := e
	if !d.Target.IsZero() {
		src = d.Target
	}
	if t, ok := ecs.Get[*component.Transform](w, src); ok {
		return t.Position, true
	}
	return mgl64.Vec3{}, false
}

func firstTerrainSeed(w *ecs.World) uint32 {
	for _, e := range w.EntitiesWithComponent(component.KindTerrain).Sorted() {
		if t, ok := ecs.Get[*component.Terrain](w, e); ok {
			return t.TerrainSeed
		}
	}
	return 0
}
