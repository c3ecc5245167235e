// Package graphics mirrors ECS state onto GPU-backed proxies. The
// Synchronizer reconciles each visual aspect every frame: it queries the
// world, creates proxies for entities seen for the first time, pushes the
// latest component values, and releases proxies whose entity disappeared.
package graphics

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/gfx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config tunes per-frame GPU work.
type Config struct {
	// ChunksPerFrame caps how many queued terrain chunks start generating
	// in one frame.
	ChunksPerFrame int
	// RemovalsPerFrame caps how many expired chunks are released per frame.
	RemovalsPerFrame int
	// RemovalDelay is how long expired chunks linger after the newest
	// activation.
	RemovalDelay time.Duration
	// InstanceCapacity is the initial slot count of an instance buffer.
	InstanceCapacity int
}

func DefaultConfig() Config {
	return Config{
		ChunksPerFrame:   8,
		RemovalsPerFrame: 8,
		RemovalDelay:     10 * time.Millisecond,
		InstanceCapacity: 64,
	}
}

// Stats is a snapshot of synchronizer state.
type Stats struct {
	Cameras          int
	Lights           int
	Instances        int
	Groups           int
	ChunksQueued     int
	ChunksGenerating int
	ChunksActive     int
	ChunksExpired    int
	ChunksFailed     int
	DecorFields      int
	Emitters         int
	ProxiesCreated   uint64
	ProxiesRemoved   uint64
}

type groupKey struct {
	mesh     component.ResourceID
	material component.ResourceID
}

type meshSlot struct {
	key   groupKey
	group *InstanceGroup
	index int
}

// Synchronizer owns every graphics proxy. Update must run with exclusive
// access to the world, between ticks.
type Synchronizer struct {
	cfg     Config
	backend gfx.Backend
	res     *Resources
	log     *zap.Logger
	now     func() time.Time

	cameras  map[ecs.Entity]*Camera
	lights   map[ecs.Entity]*Light
	meshes   map[ecs.Entity]*meshSlot
	groups   map[groupKey]*InstanceGroup
	terrains map[ecs.Entity]*chunkSet
	decor    map[ecs.Entity]*decorField
	emitters map[ecs.Entity]*emitter

	created uint64
	removed uint64
}

type Option func(*Synchronizer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func New(b gfx.Backend, res *Resources, cfg Config, log *zap.Logger, opts ...Option) *Synchronizer {
	def := DefaultConfig()
	if cfg.ChunksPerFrame <= 0 {
		cfg.ChunksPerFrame = def.ChunksPerFrame
	}
	if cfg.RemovalsPerFrame <= 0 {
		cfg.RemovalsPerFrame = def.RemovalsPerFrame
	}
	if cfg.RemovalDelay < 0 {
		cfg.RemovalDelay = 0
	}
	if cfg.InstanceCapacity <= 0 {
		cfg.InstanceCapacity = def.InstanceCapacity
	}
	if res == nil {
		res = NewResources()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synchronizer{
		cfg:      cfg,
		backend:  b,
		res:      res,
		log:      log,
		now:      time.Now,
		cameras:  make(map[ecs.Entity]*Camera),
		lights:   make(map[ecs.Entity]*Light),
		meshes:   make(map[ecs.Entity]*meshSlot),
		groups:   make(map[groupKey]*InstanceGroup),
		terrains: make(map[ecs.Entity]*chunkSet),
		decor:    make(map[ecs.Entity]*decorField),
		emitters: make(map[ecs.Entity]*emitter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) Resources() *Resources { return s.res }
func (s *Synchronizer) Config() Config        { return s.cfg }

// Update reconciles every visual aspect against the world. Failures in one
// aspect do not stop the others; they are returned combined. Unknown
// resource ids surface as *MissingResourceError.
func (s *Synchronizer) Update(ctx context.Context, w *ecs.World, scene Scene) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs error
	errs = multierr.Append(errs, s.updateCameras(w, scene))
	errs = multierr.Append(errs, s.updateLights(w, scene))
	errs = multierr.Append(errs, s.updateMeshes(w, scene))
	errs = multierr.Append(errs, s.updateTerrain(w, scene))
	errs = multierr.Append(errs, s.updateDecor(w, scene))
	errs = multierr.Append(errs, s.updateParticles(w, scene))
	return errs
}

// Close releases every proxy.
func (s *Synchronizer) Close(scene Scene) {
	empty := ecs.NewWorld(nil)
	_ = s.Update(context.Background(), empty, scene)
	for e, set := range s.terrains {
		set.releaseAll(s, scene)
		delete(s.terrains, e)
	}
}

func (s *Synchronizer) Stats() Stats {
	st := Stats{
		Cameras:        len(s.cameras),
		Lights:         len(s.lights),
		Instances:      len(s.meshes),
		Groups:         len(s.groups),
		DecorFields:    len(s.decor),
		Emitters:       len(s.emitters),
		ProxiesCreated: s.created,
		ProxiesRemoved: s.removed,
	}
	for _, set := range s.terrains {
		for _, c := range set.chunks {
			switch c.state {
			case ChunkQueued:
				st.ChunksQueued++
			case ChunkGenerating:
				st.ChunksGenerating++
			case ChunkActive:
				st.ChunksActive++
			case ChunkExpired:
				st.ChunksExpired++
			case ChunkFailed:
				st.ChunksFailed++
			}
		}
	}
	return st
}

func (s *Synchronizer) updateCameras(w *ecs.World, scene Scene) error {
	seen := make(ecs.Set)
	ecs.Each2(w, func(e ecs.Entity, cam *component.Camera, t *component.Transform) {
		seen[e] = struct{}{}
		proxy, ok := s.cameras[e]
		if !ok {
			proxy = &Camera{}
			s.cameras[e] = proxy
			scene.AddCamera(proxy)
			s.created++
			s.log.Debug("camera proxy created", zap.Uint32("entity", uint32(e)))
		}
		proxy.Position = t.Position
		proxy.Rotation = t.Rotation
		proxy.Near, proxy.Far = cam.Near, cam.Far
	})
	for e, proxy := range s.cameras {
		if !seen.Has(e) {
			scene.RemoveCamera(proxy)
			delete(s.cameras, e)
			s.removed++
			s.log.Debug("camera proxy removed", zap.Uint32("entity", uint32(e)))
		}
	}
	return nil
}

func (s *Synchronizer) updateLights(w *ecs.World, scene Scene) error {
	seen := make(ecs.Set)
	ecs.Each2(w, func(e ecs.Entity, l *component.Light, t *component.Transform) {
		seen[e] = struct{}{}
		proxy, ok := s.lights[e]
		if !ok {
			proxy = &Light{}
			s.lights[e] = proxy
			scene.AddLight(proxy)
			s.created++
		}
		proxy.Type = l.Type
		proxy.Color = l.Color
		proxy.Intensity = l.Intensity
		proxy.Position = t.Position
		proxy.Direction = t.Rotation.Rotate(forward)
	})
	for e, proxy := range s.lights {
		if !seen.Has(e) {
			scene.RemoveLight(proxy)
			delete(s.lights, e)
			s.removed++
		}
	}
	return nil
}

func (s *Synchronizer) updateMeshes(w *ecs.World, scene Scene) error {
	var errs error
	seen := make(ecs.Set)
	ecs.Each2(w, func(e ecs.Entity, m *component.Mesh, t *component.Transform) {
		seen[e] = struct{}{}
		key := groupKey{mesh: m.MeshID}
		color := component.Color{255, 255, 255, 255}
		if mat, ok := ecs.Get[*component.Material](w, e); ok {
			key.material = mat.MaterialID
			color = mat.Color
		}

		slot, ok := s.meshes[e]
		if ok && slot.key != key {
			s.releaseSlot(e, slot, scene)
			ok = false
		}
		if !ok {
			var err error
			if slot, err = s.allocSlot(key, scene); err != nil {
				s.log.Warn("mesh proxy not created",
					zap.Uint32("entity", uint32(e)), zap.Error(err))
				errs = multierr.Append(errs, err)
				return
			}
			s.meshes[e] = slot
			s.created++
		}
		if err := slot.group.Set(slot.index, t.Matrix(), color); err != nil {
			errs = multierr.Append(errs, err)
		}
	})
	for e, slot := range s.meshes {
		if !seen.Has(e) {
			s.releaseSlot(e, slot, scene)
		}
	}
	return errs
}

func (s *Synchronizer) allocSlot(key groupKey, scene Scene) (*meshSlot, error) {
	g, ok := s.groups[key]
	if !ok {
		mesh, err := Lookup[*Mesh](s.res, key.mesh)
		if err != nil {
			return nil, err
		}
		var mat Material
		if key.material != "" {
			if mat, err = Lookup[Material](s.res, key.material); err != nil {
				return nil, err
			}
		}
		if g, err = newInstanceGroup(s.backend, mesh, mat, s.cfg.InstanceCapacity); err != nil {
			return nil, err
		}
		s.groups[key] = g
		scene.AddInstanced(g)
	}
	i, err := g.Alloc()
	if err != nil {
		return nil, err
	}
	return &meshSlot{key: key, group: g, index: i}, nil
}

func (s *Synchronizer) releaseSlot(e ecs.Entity, slot *meshSlot, scene Scene) {
	slot.group.Free(slot.index)
	delete(s.meshes, e)
	s.removed++
	if slot.group.Len() == 0 {
		scene.RemoveInstanced(slot.group)
		slot.group.release()
		delete(s.groups, slot.key)
	}
}
