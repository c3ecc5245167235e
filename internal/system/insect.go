package system

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/scripting"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// DamageRadius is the kill radius of a shot around its impact point.
const DamageRadius = 4.0

const (
	insectSearchMin = 10.0
	insectSearchMax = 20.0
	insectArrive    = 10.0
	insectAccel     = 0.2
)

// InsectAISystem wanders insects between random nearby targets. Steering
// comes from the Lua function insect_steer; when no engine is configured,
// or the script fails, the built-in steering is used instead.
type InsectAISystem struct {
	ecs.BaseSystem
	lua          *scripting.Engine
	rng          *rand.Rand
	scriptFailed bool
	log          *zap.Logger
}

func NewInsectAISystem(lua *scripting.Engine, seed uint64, log *zap.Logger) *InsectAISystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &InsectAISystem{
		lua: lua,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log: log,
	}
}

func (s *InsectAISystem) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	ents := w.EntitiesWithComponents(component.KindInsect, component.KindPhysics, component.KindVelocity, component.KindTransform)
	for _, e := range ents.Sorted() {
		bug, _ := ecs.Get[*component.Insect](w, e)
		if bug.Mode == component.InsectDead {
			continue
		}
		phy, _ := ecs.Get[*component.Physics](w, e)
		vel, _ := ecs.Get[*component.Velocity](w, e)
		t, _ := ecs.Get[*component.Transform](w, e)

		in := scripting.InsectContext{
			Mode:     bug.Mode.String(),
			Position: t.Position,
			Velocity: vel.Linear,
			Target:   bug.Target,
			Grounded: phy.Grounded,
			Rand:     [4]float64{s.rng.Float64(), s.rng.Float64(), s.rng.Float64(), s.rng.Float64()},
		}
		out := s.steer(e, in)

		if m, ok := component.ParseInsectMode(out.Mode); ok {
			bug.Mode = m
		} else {
			s.log.Debug("ignoring unknown insect mode", zap.Uint32("entity", uint32(e)), zap.String("mode", out.Mode))
		}
		if out.HasTarget {
			bug.Target = out.Target
		}
		vel.Linear = vel.Linear.Add(out.Accel)
		if out.HasYaw {
			t.Rotation = mgl64.QuatRotate(out.Yaw, mgl64.Vec3{0, 1, 0})
		}
	}
	return nil
}

func (s *InsectAISystem) steer(e ecs.Entity, in scripting.InsectContext) scripting.InsectSteer {
	if s.lua == nil {
		return builtinSteer(in)
	}
	out, err := s.lua.SteerInsect(in)
	if err != nil {
		if !s.scriptFailed {
			s.log.Warn("insect script failed, using built-in steering", zap.Uint32("entity", uint32(e)), zap.Error(err))
			s.scriptFailed = true
		}
		return builtinSteer(in)
	}
	return out
}

func builtinSteer(in scripting.InsectContext) scripting.InsectSteer {
	out := scripting.InsectSteer{Mode: in.Mode}
	switch in.Mode {
	case "idle":
		out.Mode = "searching"
	case "searching":
		wander := func(r, flip float64) float64 {
			n := insectSearchMin + r*(insectSearchMax-insectSearchMin)
			if flip < 0.5 {
				n = -n
			}
			return n
		}
		out.Mode = "navigating"
		out.Target = in.Position.Add(mgl64.Vec3{wander(in.Rand[0], in.Rand[1]), 0, wander(in.Rand[2], in.Rand[3])})
		out.HasTarget = true
	case "navigating":
		// Can't steer while in the air
		if !in.Grounded {
			return out
		}
		diff := in.Target.Sub(in.Position)
		dist := diff.Len()
		if dist < insectArrive {
			out.Mode = "searching"
			return out
		}
		out.Accel = diff.Mul(insectAccel / dist)
		v := in.Velocity.Add(out.Accel)
		out.Yaw = math.Atan2(v[2], -v[0]) - math.Pi/2
		out.HasYaw = true
	}
	return out
}

// ApplyDamage kills every living insect within radius of at and returns how
// many were hit.
func ApplyDamage(w *ecs.World, at mgl64.Vec3, radius float64) int {
	hits := 0
	ecs.Each2(w, func(e ecs.Entity, bug *component.Insect, t *component.Transform) {
		if bug.Mode == component.InsectDead || t.Position.Sub(at).Len() > radius {
			return
		}
		bug.Mode = component.InsectDead
		if v, ok := ecs.Get[*component.Velocity](w, e); ok {
			v.Linear = mgl64.Vec3{}
			v.Angular = mgl64.Vec3{}
		}
		hits++
	})
	return hits
}
