package graphics

import (
	"math"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const particleSpread = 4.0

// emitter animates Count instances of a mesh orbiting its entity.
type emitter struct {
	meshID component.ResourceID
	group  *InstanceGroup
	slots  []int
	born   float64
}

func (s *Synchronizer) updateParticles(w *ecs.World, scene Scene) error {
	var errs error
	seen := make(ecs.Set)
	now := float64(s.now().UnixNano()) / 1e9
	ecs.Each2(w, func(e ecs.Entity, p *component.Particles, t *component.Transform) {
		seen[e] = struct{}{}
		em, ok := s.emitters[e]
		if ok && em.meshID != p.MeshID {
			s.releaseEmitter(e, em, scene)
			ok = false
		}
		if !ok {
			mesh, err := Lookup[*Mesh](s.res, p.MeshID)
			if err != nil {
				s.log.Warn("emitter not created", zap.Uint32("entity", uint32(e)), zap.Error(err))
				errs = multierr.Append(errs, err)
				return
			}
			g, err := newInstanceGroup(s.backend, mesh, nil, max(p.Count, 1))
			if err != nil {
				errs = multierr.Append(errs, err)
				return
			}
			em = &emitter{meshID: p.MeshID, group: g, born: now}
			s.emitters[e] = em
			scene.AddInstanced(g)
			s.created++
		}

		count := max(p.Count, 0)
		for len(em.slots) > count {
			em.group.Free(em.slots[len(em.slots)-1])
			em.slots = em.slots[:len(em.slots)-1]
		}
		for len(em.slots) < count {
			i, err := em.group.Alloc()
			if err != nil {
				errs = multierr.Append(errs, err)
				return
			}
			em.slots = append(em.slots, i)
		}

		color := component.Color{255, 255, 255, 255}
		if p.Emissive {
			color[3] = 0
		}
		age := now - em.born
		base := t.Matrix()
		for n, slot := range em.slots {
			errs = multierr.Append(errs, em.group.Set(slot, base.Mul4(particleOffset(e, n, age)), color))
		}
	})
	for e, em := range s.emitters {
		if !seen.Has(e) {
			s.releaseEmitter(e, em, scene)
		}
	}
	return errs
}

// particleOffset places particle n of entity e on a slowly rotating shell.
func particleOffset(e ecs.Entity, n int, age float64) mgl64.Mat4 {
	seed := uint32(e)
	r := particleSpread * (0.25 + terrain.Hash01(int32(n), 0, seed))
	theta := 2*math.Pi*terrain.Hash01(int32(n), 1, seed) + age*(0.2+terrain.Hash01(int32(n), 2, seed))
	y := particleSpread * (terrain.Hash01(int32(n), 3, seed) - 0.5)
	size := 0.05 + 0.1*terrain.Hash01(int32(n), 4, seed)
	return mgl64.Translate3D(r*math.Cos(theta), y, r*math.Sin(theta)).
		Mul4(mgl64.Scale3D(size, size, size))
}

func (s *Synchronizer) releaseEmitter(e ecs.Entity, em *emitter, scene Scene) {
	scene.RemoveInstanced(em.group)
	em.group.release()
	delete(s.emitters, e)
	s.removed++
}
