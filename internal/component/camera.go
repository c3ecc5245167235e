package component

import (
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Camera marks an entity as a viewpoint. Its Transform places it.
type Camera struct {
	Near, Far float64
}

func NewCamera() *Camera { return &Camera{Near: 1, Far: 10000} }

func (*Camera) Kind() ecs.Kind { return KindCamera }

// OrbitCamera circles Target under stick control.
type OrbitCamera struct {
	Target   ecs.Entity
	Distance float64
	Offset   mgl64.Vec3
	Rotation mgl64.Quat
}

func NewOrbitCamera(target ecs.Entity) *OrbitCamera {
	return &OrbitCamera{Target: target, Distance: 16, Rotation: mgl64.QuatIdent()}
}

func (*OrbitCamera) Kind() ecs.Kind { return KindOrbitCamera }

// FollowCamera trails Target, easing towards its orientation.
type FollowCamera struct {
	Target   ecs.Entity
	Distance float64
	Offset   mgl64.Vec3
	Rotation mgl64.Quat
}

func NewFollowCamera(target ecs.Entity) *FollowCamera {
	return &FollowCamera{Target: target, Distance: 16, Rotation: mgl64.QuatIdent()}
}

func (*FollowCamera) Kind() ecs.Kind { return KindFollowCamera }

// FreeCamera flies under direct keyboard control.
type FreeCamera struct{}

func (*FreeCamera) Kind() ecs.Kind { return KindFreeCamera }
