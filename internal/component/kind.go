// Package component defines every component variant attached to entities.
// Each variant has a stable Kind; Kind methods never dereference their
// receiver so ecs.Get can resolve a kind from a nil pointer.
package component

import "github.com/alienworlds/engine/internal/core/ecs"

const (
	KindTransform ecs.Kind = iota + 1
	KindEulerTransform
	KindVelocity
	KindMesh
	KindMaterial
	KindCamera
	KindOrbitCamera
	KindFollowCamera
	KindFreeCamera
	KindLight
	KindTerrain
	KindDecor
	KindParticles
	KindSound
	KindPhysics
	KindNetwork
	KindPlayer
	KindFollow
	KindInsect
	KindGun
	KindLabel
)

func init() {
	for k, name := range map[ecs.Kind]string{
		KindTransform:      "Transform",
		KindEulerTransform: "EulerTransform",
		KindVelocity:       "Velocity",
		KindMesh:           "Mesh",
		KindMaterial:       "Material",
		KindCamera:         "Camera",
		KindOrbitCamera:    "OrbitCamera",
		KindFollowCamera:   "FollowCamera",
		KindFreeCamera:     "FreeCamera",
		KindLight:          "Light",
		KindTerrain:        "Terrain",
		KindDecor:          "Decor",
		KindParticles:      "Particles",
		KindSound:          "Sound",
		KindPhysics:        "Physics",
		KindNetwork:        "Network",
		KindPlayer:         "Player",
		KindFollow:         "Follow",
		KindInsect:         "Insect",
		KindGun:            "Gun",
		KindLabel:          "Label",
	} {
		ecs.RegisterKindName(k, name)
	}
}

// ResourceID names a mesh, material or sound registered with the graphics
// or audio layer.
type ResourceID string
