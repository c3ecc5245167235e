package system

import (
	"math"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/core/event"
	"github.com/alienworlds/engine/internal/input"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap/zaptest"
)

var up = mgl64.Vec3{0, 1, 0}

func newShip(w *ecs.World) ecs.Entity {
	return w.CreateEntity(
		&component.Player{},
		component.NewTransform(mgl64.Vec3{}),
		&component.Velocity{},
		component.NewParticles("exhaust"),
		component.NewSound("engine"),
		component.NewGun(),
	)
}

func TestPlayerThrustAndBrake(t *testing.T) {
	in := input.NewState()
	w := newWorld(t, NewPlayerInputSystem(in, nil, zaptest.NewLogger(t)))
	ship := newShip(w)
	vel, _ := ecs.Get[*component.Velocity](w, ship)
	particles, _ := ecs.Get[*component.Particles](w, ship)
	snd, _ := ecs.Get[*component.Sound](w, ship)

	in.Press(input.KeyThrust, 1)
	tick(t, w, 500*time.Millisecond)
	if !near(vel.Linear, mgl64.Vec3{0, ShipSpeed / 2, 0}) {
		t.Errorf("thrust velocity %v", vel.Linear)
	}
	if particles.Count != 256 || !snd.Playing {
		t.Errorf("exhaust %d sound %v while thrusting", particles.Count, snd.Playing)
	}

	in.Release(input.KeyThrust)
	in.Press(input.KeyBrake, 1)
	tick(t, w, 500*time.Millisecond)
	if !near(vel.Linear, mgl64.Vec3{}) {
		t.Errorf("brake velocity %v", vel.Linear)
	}
	if particles.Count != 0 || snd.Playing {
		t.Errorf("exhaust %d sound %v while braking", particles.Count, snd.Playing)
	}

	in.Release(input.KeyBrake)
	in.Press(input.KeyThrust, 1)
	in.Press(input.KeyBoost, 1)
	tick(t, w, 250*time.Millisecond)
	if !near(vel.Linear, mgl64.Vec3{0, ShipBoostSpeed / 4, 0}) {
		t.Errorf("boost velocity %v", vel.Linear)
	}
}

func TestPlayerTurns(t *testing.T) {
	in := input.NewState()
	w := newWorld(t, NewPlayerInputSystem(in, nil, zaptest.NewLogger(t)))
	ship := newShip(w)
	tr, _ := ecs.Get[*component.Transform](w, ship)

	in.Press(input.KeyRight, 1)
	tick(t, w, 250*time.Millisecond)
	if want := mgl64.QuatRotate(1, up); !sameRotation(tr.Rotation, want) {
		t.Errorf("yaw: rotation %v, want %v", tr.Rotation, want)
	}

	// Thrust follows the ship's local up axis.
	in.Release(input.KeyRight)
	tr.Rotation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	in.Press(input.KeyThrust, 1)
	tick(t, w, time.Second)
	vel, _ := ecs.Get[*component.Velocity](w, ship)
	if !near(vel.Linear, mgl64.Vec3{-ShipSpeed, 0, 0}) {
		t.Errorf("rotated thrust %v", vel.Linear)
	}
}

func TestPlayerFire(t *testing.T) {
	in := input.NewState()
	bus := event.NewBus()
	var shots []Shot
	event.Subscribe(bus, func(s Shot) { shots = append(shots, s) })

	sys := NewPlayerInputSystem(in, bus, zaptest.NewLogger(t))
	now := time.Unix(1000, 0)
	sys.now = func() time.Time { return now }
	w := newWorld(t, sys)
	ship := newShip(w)
	near1 := w.CreateEntity(&component.Insect{}, component.NewTransform(mgl64.Vec3{0, ShotRange + 1, 0}))
	far := w.CreateEntity(&component.Insect{}, component.NewTransform(mgl64.Vec3{0, 0, 50}))

	in.Press(input.KeyFire, 1)
	tick(t, w, time.Millisecond)
	tick(t, w, time.Millisecond) // still cooling down

	bus.SwapBuffers()
	bus.DispatchAll()
	if len(shots) != 1 {
		t.Fatalf("expected one shot, got %d", len(shots))
	}
	if shots[0].Shooter != ship || !near(shots[0].Impact, mgl64.Vec3{0, ShotRange, 0}) {
		t.Errorf("shot %+v", shots[0])
	}
	if bug, _ := ecs.Get[*component.Insect](w, near1); bug.Mode != component.InsectDead {
		t.Error("insect at the impact point survived")
	}
	if bug, _ := ecs.Get[*component.Insect](w, far); bug.Mode == component.InsectDead {
		t.Error("distant insect killed")
	}

	now = now.Add(time.Second)
	tick(t, w, time.Millisecond)
	bus.SwapBuffers()
	bus.DispatchAll()
	if len(shots) != 2 {
		t.Errorf("gun did not fire again after cooldown, shots=%d", len(shots))
	}
}

func TestFreeCameraInput(t *testing.T) {
	in := input.NewState()
	w := newWorld(t, NewFreeCameraInputSystem(in))
	cam := w.CreateEntity(&component.FreeCamera{}, component.NewTransform(mgl64.Vec3{}))
	tr, _ := ecs.Get[*component.Transform](w, cam)

	tick(t, w, time.Second)
	if tr.Position != (mgl64.Vec3{}) {
		t.Errorf("camera moved without input: %v", tr.Position)
	}

	in.Press(input.KeyForward, 1)
	in.Press(input.KeyRight, 1)
	tick(t, w, time.Second)
	d := FreeCameraSpeed / math.Sqrt2
	if !near(tr.Position, mgl64.Vec3{d, 0, d}) {
		t.Errorf("position %v", tr.Position)
	}

	in.Release(input.KeyForward)
	in.Release(input.KeyRight)
	in.Look(500, 0)
	tick(t, w, time.Second)
	if want := mgl64.QuatRotate(math.Pi/2, up); !sameRotation(tr.Rotation, want) {
		t.Errorf("look rotation %v, want %v", tr.Rotation, want)
	}
}

func TestOrbitCameraInput(t *testing.T) {
	in := input.NewState()
	w := newWorld(t, NewOrbitCameraInputSystem(in))
	cam := w.CreateEntity(component.NewOrbitCamera(ecs.NoEntity), component.NewTransform(mgl64.Vec3{}))
	tr, _ := ecs.Get[*component.Transform](w, cam)
	oc, _ := ecs.Get[*component.OrbitCamera](w, cam)

	in.SetAxis(input.RightStickX, 0.05)
	tick(t, w, time.Second)
	if !sameRotation(tr.Rotation, mgl64.QuatIdent()) {
		t.Errorf("stick inside the deadzone turned the camera: %v", tr.Rotation)
	}

	in.SetAxis(input.RightStickX, 1)
	tick(t, w, 250*time.Millisecond)
	if want := mgl64.QuatRotate(1, up); !sameRotation(tr.Rotation, want) {
		t.Errorf("rotation %v, want %v", tr.Rotation, want)
	}

	in.Scroll(1000)
	tick(t, w, 0)
	if oc.Distance != 32 {
		t.Errorf("distance %v after zoom out", oc.Distance)
	}
	in.Scroll(1e9)
	tick(t, w, 0)
	if oc.Distance != OrbitMaxDistance {
		t.Errorf("distance %v not clamped", oc.Distance)
	}
}
