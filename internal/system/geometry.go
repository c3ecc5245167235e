package system

import (
	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// eulerQuat builds the rotation for pitch (X), yaw (Y) and roll (Z) applied
// as yaw · pitch · roll.
func eulerQuat(pitch, yaw, roll float64) mgl64.Quat {
	return mgl64.AnglesToQuat(yaw, pitch, roll, mgl64.YXZ)
}

// positionOf returns e's position from either transform variant.
func positionOf(w *ecs.World, e ecs.Entity) (*mgl64.Vec3, bool) {
	if t, ok := ecs.Get[*component.Transform](w, e); ok {
		return &t.Position, true
	}
	if t, ok := ecs.Get[*component.EulerTransform](w, e); ok {
		return &t.Position, true
	}
	return nil, false
}
