package system

import (
	"context"
	"math"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/core/event"
	"github.com/alienworlds/engine/internal/input"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const (
	ShipSpeed       = 32.0
	ShipBoostSpeed  = 256.0
	ShipRotateSpeed = 4.0
	// ShotRange is how far ahead of the ship a shot lands.
	ShotRange = 32.0

	FreeCameraSpeed      = 64.0
	FreeCameraBoostSpeed = 1024.0

	OrbitRotateSpeed = 4.0
	OrbitMinDistance = 1.0
	OrbitMaxDistance = 10000.0

	// lookScale converts pointer movement to half-turns.
	lookScale = math.Pi / 1000
)

// Shot is emitted on the bus when the local player fires.
type Shot struct {
	Shooter ecs.Entity
	Impact  mgl64.Vec3
}

// PlayerInputSystem flies the local player's ship: pitch, yaw and roll turn
// it, thrust pushes along its local up axis, and the gun fires at a point
// ahead of it. Thrust also drives the exhaust particles and engine sound.
type PlayerInputSystem struct {
	ecs.BaseSystem
	input input.Source
	bus   *event.Bus // nil disables Shot events
	now   func() time.Time
	log   *zap.Logger
}

func NewPlayerInputSystem(src input.Source, bus *event.Bus, log *zap.Logger) *PlayerInputSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlayerInputSystem{input: src, bus: bus, now: time.Now, log: log}
}

func (s *PlayerInputSystem) Tick(_ context.Context, dt time.Duration, w *ecs.World) error {
	secs := dt.Seconds()
	in := s.input

	speed := ShipSpeed
	if in.Held(input.KeyBoost) > 0 {
		speed = ShipBoostSpeed
	}
	pitch := in.Held(input.KeyForward) - in.Held(input.KeyBackward)
	yaw := in.Held(input.KeyRight) - in.Held(input.KeyLeft)
	roll := in.Held(input.KeyRollLeft) - in.Held(input.KeyRollRight)
	var thrust float64
	if v := in.Held(input.KeyThrust); math.Abs(v) > input.Deadzone {
		thrust = v
	}
	if v := in.Held(input.KeyBrake); math.Abs(v) > input.Deadzone {
		thrust = -v
	}
	yaw += input.Deadzoned(in.Axis(input.RightStickX))
	pitch -= input.Deadzoned(in.Axis(input.LeftStickY))
	roll -= input.Deadzoned(in.Axis(input.LeftStickX))

	turn := secs * ShipRotateSpeed
	adjust := eulerQuat(pitch*turn, yaw*turn, roll*turn)
	fire := in.Held(input.KeyFire) > 0

	ecs.Each3(w, func(e ecs.Entity, _ *component.Player, t *component.Transform, v *component.Velocity) {
		t.Rotation = t.Rotation.Mul(adjust).Normalize()
		if thrust != 0 {
			dir := t.Rotation.Rotate(mgl64.Vec3{0, thrust, 0}).Normalize()
			v.Linear = v.Linear.Add(dir.Mul(speed * secs))
		}
		if p, ok := ecs.Get[*component.Particles](w, e); ok {
			p.Count = int(256 * max(thrust, 0))
		}
		if snd, ok := ecs.Get[*component.Sound](w, e); ok {
			snd.Playing = thrust > 0
		}
		if fire {
			s.fire(w, e, t)
		}
	})
	return nil
}

func (s *PlayerInputSystem) fire(w *ecs.World, e ecs.Entity, t *component.Transform) {
	gun, ok := ecs.Get[*component.Gun](w, e)
	if !ok {
		return
	}
	now := s.now()
	if !gun.CanFire(now) {
		return
	}
	gun.Fire(now)
	impact := t.Position.Add(t.Rotation.Rotate(mgl64.Vec3{0, ShotRange, 0}))
	hits := ApplyDamage(w, impact, DamageRadius)
	s.log.Debug("shot fired",
		zap.Uint32("entity", uint32(e)),
		zap.Float64s("impact", impact[:]),
		zap.Int("hits", hits),
	)
	if s.bus != nil {
		event.Emit(s.bus, Shot{Shooter: e, Impact: impact})
	}
}

// FreeCameraInputSystem flies free cameras along the world axes and turns
// them with pointer movement.
type FreeCameraInputSystem struct {
	ecs.BaseSystem
	input input.Source
}

func NewFreeCameraInputSystem(src input.Source) *FreeCameraInputSystem {
	return &FreeCameraInputSystem{input: src}
}

func (s *FreeCameraInputSystem) Tick(_ context.Context, dt time.Duration, w *ecs.World) error {
	in := s.input
	speed := FreeCameraSpeed
	if in.Held(input.KeyBoost) > 0 {
		speed = FreeCameraBoostSpeed
	}
	var adjust mgl64.Vec3
	axis := func(pos, neg input.Key) float64 {
		switch {
		case in.Held(pos) > 0:
			return 1
		case in.Held(neg) > 0:
			return -1
		}
		return 0
	}
	adjust[0] = axis(input.KeyRight, input.KeyLeft)
	adjust[1] = axis(input.KeyUp, input.KeyDown)
	adjust[2] = axis(input.KeyForward, input.KeyBackward)
	dx, dy := in.TakeLook()

	ecs.Each2(w, func(_ ecs.Entity, _ *component.FreeCamera, t *component.Transform) {
		if dx != 0 || dy != 0 {
			t.Rotation = t.Rotation.Mul(eulerQuat(dy*lookScale, dx*lookScale, 0)).Normalize()
		}
		if adjust != (mgl64.Vec3{}) {
			t.Position = t.Position.Add(adjust.Normalize().Mul(speed * dt.Seconds()))
		}
	})
	return nil
}

// OrbitCameraInputSystem turns orbit cameras with the right stick and the
// pointer, and zooms them with the wheel.
type OrbitCameraInputSystem struct {
	ecs.BaseSystem
	input input.Source
}

func NewOrbitCameraInputSystem(src input.Source) *OrbitCameraInputSystem {
	return &OrbitCameraInputSystem{input: src}
}

func (s *OrbitCameraInputSystem) Tick(_ context.Context, dt time.Duration, w *ecs.World) error {
	in := s.input
	secs := dt.Seconds()
	yaw := input.Shape(in.Axis(input.RightStickX)) * OrbitRotateSpeed
	pitch := input.Shape(in.Axis(input.RightStickY)) * OrbitRotateSpeed
	dx, dy := in.TakeLook()
	wheel := in.TakeWheel()

	ecs.Each2(w, func(_ ecs.Entity, cam *component.OrbitCamera, t *component.Transform) {
		t.Rotation = t.Rotation.Mul(eulerQuat(pitch*secs, yaw*secs, 0))
		if dx != 0 || dy != 0 {
			t.Rotation = t.Rotation.Mul(eulerQuat(dy*lookScale, dx*lookScale, 0))
		}
		t.Rotation = t.Rotation.Normalize()
		if wheel != 0 {
			cam.Distance = mgl64.Clamp(cam.Distance*(1+wheel/1000), OrbitMinDistance, OrbitMaxDistance)
		}
	})
	return nil
}
