package prefab

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/data"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// ErrUnknownPrefab is returned when a scene or the network names a recipe
// that does not exist.
var ErrUnknownPrefab = errors.New("unknown prefab")

// Options carries the world-wide values recipes read.
type Options struct {
	Seed      uint32
	ColorSeed uint32
	ChunkSize float64
}

type recipe func(w *ecs.World, e data.EntityEntry, o *builder) (ecs.Entity, error)

var recipes = map[string]recipe{
	"player": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		id := Player(w, vec(e.Position), meshOr(e.Mesh, ShipMesh))
		if e.Particles != "" {
			p := component.NewParticles(component.ResourceID(e.Particles))
			p.Count = 0
			w.AddComponent(id, p)
		}
		if e.Sound != "" {
			snd := component.NewSound(component.ResourceID(e.Sound))
			snd.Playing, snd.Loop = false, true
			w.AddComponent(id, snd)
		}
		return id, nil
	},
	"opponent": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		return Opponent(w, vec(e.Position)), nil
	},
	"insect": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		return Insect(w, vec(e.Position), meshOr(e.Mesh, InsectMesh)), nil
	},
	"orbit-camera": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		return OrbitCamera(w, ecs.NoEntity, euler(e.Rotation)), nil
	},
	"follow-camera": func(w *ecs.World, _ data.EntityEntry, _ *builder) (ecs.Entity, error) {
		return FollowCamera(w, ecs.NoEntity), nil
	},
	"free-camera": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		return FreeCamera(w, vec(e.Position)), nil
	},
	"light": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		kind, intensity := component.LightDirectional, 1.0
		if l := e.Light; l != nil {
			switch l.Type {
			case "", "directional":
			case "point":
				kind = component.LightPoint
			default:
				return ecs.NoEntity, fmt.Errorf("unknown light type %q", l.Type)
			}
			if l.Intensity > 0 {
				intensity = l.Intensity
			}
		}
		id := Light(w, euler(e.Rotation), kind, intensity)
		if e.Color != nil {
			l, _ := ecs.Get[*component.Light](w, id)
			l.Color = component.Color(*e.Color)
		}
		return id, nil
	},
	"terrain": func(w *ecs.World, _ data.EntityEntry, b *builder) (ecs.Entity, error) {
		return Terrain(w, b.opts.Seed, b.opts.ColorSeed, b.opts.ChunkSize, ecs.NoEntity), nil
	},
	"decor": func(w *ecs.World, e data.EntityEntry, b *builder) (ecs.Entity, error) {
		if e.Mesh == "" {
			return ecs.NoEntity, errors.New("decor needs a mesh")
		}
		// Each field gets its own seed so stacked fields do not coincide.
		seed := b.opts.Seed + uint32(b.decor)
		b.decor++
		return Decor(w, component.ResourceID(e.Mesh), seed, e.Spread, e.Radius, ecs.NoEntity), nil
	},
	"particles": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		if e.Mesh == "" {
			return ecs.NoEntity, errors.New("particles need a mesh")
		}
		return Particles(w, vec(e.Position), component.ResourceID(e.Mesh), e.Count), nil
	},
	"mesh": func(w *ecs.World, e data.EntityEntry, _ *builder) (ecs.Entity, error) {
		if e.Mesh == "" {
			return ecs.NoEntity, errors.New("mesh prefab needs a mesh")
		}
		id := Model(w, vec(e.Position), component.ResourceID(e.Mesh), component.ResourceID(e.Material))
		if e.Color != nil {
			mat, ok := ecs.Get[*component.Material](w, id)
			if !ok {
				mat = &component.Material{}
				w.AddComponent(id, mat)
			}
			mat.Color = component.Color(*e.Color)
		}
		return id, nil
	},
}

// Names lists the known recipes.
func Names() []string {
	out := make([]string, 0, len(recipes))
	for n := range recipes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type builder struct {
	opts  Options
	decor int
}

func (b *builder) build(w *ecs.World, e data.EntityEntry) (ecs.Entity, error) {
	r, ok := recipes[e.Prefab]
	if !ok {
		return ecs.NoEntity, fmt.Errorf("%w %q", ErrUnknownPrefab, e.Prefab)
	}
	id, err := r(w, e, b)
	if err != nil {
		return ecs.NoEntity, fmt.Errorf("%s: %w", e.Prefab, err)
	}
	if t, ok := ecs.Get[*component.Transform](w, id); ok {
		if e.Rotation != ([3]float64{}) {
			t.Rotation = euler(e.Rotation)
		}
		if e.Scale > 0 {
			t.Scale = mgl64.Vec3{e.Scale, e.Scale, e.Scale}
		}
	}
	if v := vec(e.Velocity); v != (mgl64.Vec3{}) {
		vel, ok := ecs.Get[*component.Velocity](w, id)
		if !ok {
			vel = &component.Velocity{}
			w.AddComponent(id, vel)
		}
		vel.Linear = v
	}
	if e.Label != "" {
		w.AddComponent(id, &component.Label{Name: e.Label})
	}
	return id, nil
}

// Build creates the entities of s in order and then points every target
// reference at the entity carrying that label. It returns the labelled
// entities. On error the entities created so far are left in the world.
func Build(w *ecs.World, s *data.Scene, opts Options, log *zap.Logger) (map[string]ecs.Entity, error) {
	if log == nil {
		log = zap.NewNop()
	}
	b := &builder{opts: opts}
	labels := make(map[string]ecs.Entity)
	built := make([]ecs.Entity, len(s.Entities))
	for i, e := range s.Entities {
		id, err := b.build(w, e)
		if err != nil {
			return labels, fmt.Errorf("scene %s entity %d: %w", s.Name, i, err)
		}
		built[i] = id
		if e.Label != "" {
			labels[e.Label] = id
		}
	}
	for i, e := range s.Entities {
		if e.Target == "" {
			continue
		}
		target, ok := labels[e.Target]
		if !ok {
			return labels, fmt.Errorf("scene %s entity %d: target %q is not a label", s.Name, i, e.Target)
		}
		retarget(w, built[i], target, e.Follow)
	}
	log.Info("scene built",
		zap.String("scene", s.Name),
		zap.Int("entities", len(built)),
		zap.Strings("labels", s.Labels()),
	)
	return labels, nil
}

// retarget points whatever target-taking components id has at target. A
// follow entry, or a plain mesh with a target, makes id follow it.
func retarget(w *ecs.World, id, target ecs.Entity, follow *data.FollowEntry) {
	hit := false
	if c, ok := ecs.Get[*component.OrbitCamera](w, id); ok {
		c.Target, hit = target, true
	}
	if c, ok := ecs.Get[*component.FollowCamera](w, id); ok {
		c.Target, hit = target, true
	}
	if c, ok := ecs.Get[*component.Terrain](w, id); ok {
		c.Target, hit = target, true
	}
	if c, ok := ecs.Get[*component.Decor](w, id); ok {
		c.Target, hit = target, true
	}
	if follow == nil && hit {
		return
	}
	axis := [3]bool{true, true, true}
	if follow != nil {
		axis = [3]bool{follow.X, follow.Y, follow.Z}
	}
	w.AddComponent(id, &component.Follow{Target: target, Axis: axis})
}

// Spawn builds prefab at pos with default parameters. Its signature matches
// what the network system expects for remote entities.
func (o Options) Spawn(w *ecs.World, prefab string, pos mgl64.Vec3) (ecs.Entity, error) {
	b := &builder{opts: o}
	return b.build(w, data.EntityEntry{Prefab: prefab, Position: [3]float64{pos[0], pos[1], pos[2]}})
}

func vec(v [3]float64) mgl64.Vec3 { return mgl64.Vec3(v) }

func meshOr(id string, def component.ResourceID) component.ResourceID {
	if id == "" {
		return def
	}
	return component.ResourceID(id)
}
