package system

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/input"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	FollowMinDistance = 3.0
	FollowMaxDistance = 10000.0
)

// boom places a camera distance units behind rot, shifted by offset in the
// camera's frame, around target.
func boom(target mgl64.Vec3, rot mgl64.Quat, offset mgl64.Vec3, distance float64) mgl64.Vec3 {
	return target.Add(rot.Rotate(offset.Add(mgl64.Vec3{0, 0, -distance})))
}

// OrbitCameraSystem keeps orbit cameras on their boom around the target.
// Orientation is driven by OrbitCameraInputSystem.
type OrbitCameraSystem struct {
	ecs.BaseSystem
}

func NewOrbitCameraSystem() *OrbitCameraSystem { return &OrbitCameraSystem{} }

func (s *OrbitCameraSystem) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	ecs.Each2(w, func(_ ecs.Entity, cam *component.OrbitCamera, t *component.Transform) {
		target, ok := positionOf(w, cam.Target)
		if !ok {
			return
		}
		cam.Distance = mgl64.Clamp(cam.Distance, OrbitMinDistance, OrbitMaxDistance)
		t.Position = boom(*target, t.Rotation, cam.Offset, cam.Distance)
	})
	return nil
}

// FollowCameraSystem eases follow cameras towards their target's
// orientation and trails them behind it. With an input source the right
// stick tilts the camera and the wheel changes its distance.
type FollowCameraSystem struct {
	ecs.BaseSystem
	input input.Source // may be nil
}

func NewFollowCameraSystem(src input.Source) *FollowCameraSystem {
	return &FollowCameraSystem{input: src}
}

func (s *FollowCameraSystem) Tick(_ context.Context, dt time.Duration, w *ecs.World) error {
	secs := dt.Seconds()
	var tilt, wheel float64
	if s.input != nil {
		tilt = input.Deadzoned(s.input.Axis(input.RightStickY))
		wheel = s.input.TakeWheel()
	}

	ecs.Each2(w, func(_ ecs.Entity, cam *component.FollowCamera, t *component.Transform) {
		if tilt != 0 {
			cam.Rotation = cam.Rotation.Mul(eulerQuat(tilt*secs, 0, 0)).Normalize()
		}
		if wheel != 0 {
			cam.Distance *= 1 + wheel/1000
		}
		cam.Distance = mgl64.Clamp(cam.Distance, FollowMinDistance, FollowMaxDistance)

		target, ok := ecs.Get[*component.Transform](w, cam.Target)
		if !ok {
			return
		}
		goal := target.Rotation.Mul(cam.Rotation)
		// Catch up faster the further the camera has fallen behind.
		similar := 1 / max(0.1, t.Rotation.Dot(goal))
		t.Rotation = mgl64.QuatNlerp(t.Rotation, goal, min(1, secs*similar))
		t.Position = boom(target.Position, t.Rotation, cam.Offset, cam.Distance)
	})
	return nil
}
