package system

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const (
	// Gravity is the downward acceleration in units/s².
	Gravity = 8.0
	// HoverGap is how far above the surface a resting body sits.
	HoverGap = 0.5
	// CollideSpeed is the minimum rate at which a body sunk into the
	// terrain is lifted back out.
	CollideSpeed = 32.0
	// Friction is the fraction of horizontal speed lost per second on the ground.
	Friction = 0.333

	bounce          = 0.25
	groundTolerance = 0.1
)

// HeightSource answers terrain height lookups. A nil future means the
// returned height is ready; otherwise the tile is still being extracted and
// the height must be read from the future's tile.
type HeightSource interface {
	Lookup(x, z float64) (float64, *gfx.Future[*terrain.Tile])
}

var _ HeightSource = (*terrain.HeightCache)(nil)

// PhysicsSystem integrates velocities, then applies gravity, terrain
// collision and ground friction to entities with a Physics component.
// Without a HeightSource it only integrates and applies gravity.
type PhysicsSystem struct {
	ecs.BaseSystem
	heights HeightSource
	log     *zap.Logger
}

func NewPhysicsSystem(heights HeightSource, log *zap.Logger) *PhysicsSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &PhysicsSystem{heights: heights, log: log}
}

func (s *PhysicsSystem) Tick(ctx context.Context, dt time.Duration, w *ecs.World) error {
	secs := dt.Seconds()

	ecs.Each2(w, func(_ ecs.Entity, phy *component.Physics, v *component.Velocity) {
		v.Linear[1] -= Gravity * phy.GravityMultiplier * secs
	})
	ecs.Each2(w, func(_ ecs.Entity, t *component.Transform, v *component.Velocity) {
		t.Position = t.Position.Add(v.Linear.Mul(secs))
		if v.Angular != (mgl64.Vec3{}) {
			a := v.Angular.Mul(secs)
			t.Rotation = t.Rotation.Mul(eulerQuat(a[0], a[1], a[2])).Normalize()
		}
	})
	ecs.Each2(w, func(_ ecs.Entity, t *component.EulerTransform, v *component.Velocity) {
		t.Position = t.Position.Add(v.Linear.Mul(secs))
		t.Rotation = t.Rotation.Add(v.Angular.Mul(secs))
	})

	if s.heights == nil {
		return nil
	}
	for _, e := range w.EntitiesWithComponents(component.KindPhysics, component.KindVelocity).Sorted() {
		pos, ok := positionOf(w, e)
		if !ok {
			continue
		}
		ground, ok, err := s.groundAt(ctx, w, pos[0], pos[2])
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		// The entity may have changed while this system was suspended.
		phy, ok1 := ecs.Get[*component.Physics](w, e)
		vel, ok2 := ecs.Get[*component.Velocity](w, e)
		pos, ok3 := positionOf(w, e)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		collide(pos, vel, phy, ground, secs)
	}
	return nil
}

// groundAt returns the terrain height under (x, z), suspending on the tile
// extraction when it is still in flight. ok is false when no height could
// be produced.
func (s *PhysicsSystem) groundAt(ctx context.Context, w *ecs.World, x, z float64) (float64, bool, error) {
	h, fut := s.heights.Lookup(x, z)
	if fut == nil {
		return h, true, nil
	}
	if err := w.Suspend(ctx, fut.Done()); err != nil {
		return 0, false, err
	}
	tile, err := fut.Result()
	if err != nil {
		s.log.Warn("height tile unavailable", zap.Float64("x", x), zap.Float64("z", z), zap.Error(err))
		return 0, false, nil
	}
	return tile.At(x, z), true, nil
}

func collide(pos *mgl64.Vec3, vel *component.Velocity, phy *component.Physics, ground, secs float64) {
	target := ground + HoverGap
	if pos[1] < target {
		speed := vel.Linear.Len()
		if vel.Linear[1] < 0 {
			vel.Linear[1] = -vel.Linear[1] * bounce
		}
		step := max(CollideSpeed, speed) * secs
		if target-pos[1] < step {
			pos[1] = target
		} else {
			pos[1] += step
		}
	}
	phy.Grounded = pos[1] <= target+groundTolerance
	if phy.Grounded {
		k := max(0, 1-Friction*phy.FrictionMultiplier*secs)
		vel.Linear[0] *= k
		vel.Linear[2] *= k
	}
}
