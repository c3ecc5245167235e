package component

import (
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Transform places an entity with a quaternion rotation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

func NewTransform(pos mgl64.Vec3) *Transform {
	return &Transform{
		Position: pos,
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

func (*Transform) Kind() ecs.Kind { return KindTransform }

// Matrix returns translation · rotation · scale.
func (t *Transform) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(t.Position.Elem()).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl64.Scale3D(t.Scale.Elem()))
}

// EulerTransform places an entity with XYZ euler angles in radians.
type EulerTransform struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scale    mgl64.Vec3
}

func NewEulerTransform(pos mgl64.Vec3) *EulerTransform {
	return &EulerTransform{Position: pos, Scale: mgl64.Vec3{1, 1, 1}}
}

func (*EulerTransform) Kind() ecs.Kind { return KindEulerTransform }

// RotationMatrix applies X, then Y, then Z.
func (t *EulerTransform) RotationMatrix() mgl64.Mat4 {
	return mgl64.HomogRotate3DZ(t.Rotation[2]).
		Mul4(mgl64.HomogRotate3DY(t.Rotation[1])).
		Mul4(mgl64.HomogRotate3DX(t.Rotation[0]))
}

func (t *EulerTransform) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(t.Position.Elem()).
		Mul4(t.RotationMatrix()).
		Mul4(mgl64.Scale3D(t.Scale.Elem()))
}

// Velocity is linear velocity in units per second and angular velocity in
// radians per second around each axis.
type Velocity struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

func (*Velocity) Kind() ecs.Kind { return KindVelocity }

// Physics opts an entity into gravity and terrain collision.
type Physics struct {
	GravityMultiplier  float64
	FrictionMultiplier float64
	Grounded           bool
}

func NewPhysics() *Physics {
	return &Physics{GravityMultiplier: 1, FrictionMultiplier: 1}
}

func (*Physics) Kind() ecs.Kind { return KindPhysics }

// Follow copies the target's position on the masked axes, keeping the
// follower's initial offset.
type Follow struct {
	Target ecs.Entity
	Axis   [3]bool
}

func (*Follow) Kind() ecs.Kind { return KindFollow }
