package system

import (
	"math"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/input"
	"github.com/go-gl/mathgl/mgl64"
)

func TestOrbitCameraBoom(t *testing.T) {
	w := newWorld(t, NewOrbitCameraSystem())
	target := w.CreateEntity(component.NewTransform(mgl64.Vec3{10, 0, 0}))
	cam := w.CreateEntity(component.NewOrbitCamera(target), component.NewTransform(mgl64.Vec3{}))
	orphan := w.CreateEntity(component.NewOrbitCamera(999), component.NewTransform(mgl64.Vec3{1, 1, 1}))

	tick(t, w, time.Millisecond)

	tr, _ := ecs.Get[*component.Transform](w, cam)
	if !near(tr.Position, mgl64.Vec3{10, 0, -16}) {
		t.Errorf("camera at %v", tr.Position)
	}
	if tr, _ := ecs.Get[*component.Transform](w, orphan); tr.Position != (mgl64.Vec3{1, 1, 1}) {
		t.Error("camera with a missing target moved")
	}
}

func TestFollowCameraTrailsTarget(t *testing.T) {
	w := newWorld(t, NewFollowCameraSystem(nil))
	target := w.CreateEntity(component.NewTransform(mgl64.Vec3{0, 5, 0}))
	ttr, _ := ecs.Get[*component.Transform](w, target)
	ttr.Rotation = mgl64.QuatRotate(math.Pi/2, up)
	cam := w.CreateEntity(component.NewFollowCamera(target), component.NewTransform(mgl64.Vec3{}))

	// A full second is enough to catch up with a quarter turn.
	tick(t, w, time.Second)

	tr, _ := ecs.Get[*component.Transform](w, cam)
	if !sameRotation(tr.Rotation, ttr.Rotation) {
		t.Errorf("rotation %v, want %v", tr.Rotation, ttr.Rotation)
	}
	if !near(tr.Position, mgl64.Vec3{-16, 5, 0}) {
		t.Errorf("position %v", tr.Position)
	}
}

func TestFollowCameraEasesAndClamps(t *testing.T) {
	in := input.NewState()
	w := newWorld(t, NewFollowCameraSystem(in))
	target := w.CreateEntity(component.NewTransform(mgl64.Vec3{}))
	ttr, _ := ecs.Get[*component.Transform](w, target)
	ttr.Rotation = mgl64.QuatRotate(math.Pi/2, up)
	cam := w.CreateEntity(component.NewFollowCamera(target), component.NewTransform(mgl64.Vec3{}))
	fc, _ := ecs.Get[*component.FollowCamera](w, cam)
	fc.Distance = 1

	tick(t, w, 100*time.Millisecond)

	tr, _ := ecs.Get[*component.Transform](w, cam)
	if sameRotation(tr.Rotation, ttr.Rotation) || sameRotation(tr.Rotation, mgl64.QuatIdent()) {
		t.Errorf("camera should be part way round, got %v", tr.Rotation)
	}
	if fc.Distance != FollowMinDistance {
		t.Errorf("distance %v not clamped", fc.Distance)
	}

	in.Scroll(1000)
	in.SetAxis(input.RightStickY, 1)
	tick(t, w, 500*time.Millisecond)
	if fc.Distance != 2*FollowMinDistance {
		t.Errorf("distance %v after zoom", fc.Distance)
	}
	if want := mgl64.QuatRotate(0.5, mgl64.Vec3{1, 0, 0}); !sameRotation(fc.Rotation, want) {
		t.Errorf("tilt %v, want %v", fc.Rotation, want)
	}
}
