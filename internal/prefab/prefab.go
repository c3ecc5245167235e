// Package prefab builds entities from named recipes and assembles scenes.
package prefab

import (
	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Mesh ids the built-in recipes fall back to.
const (
	ShipMesh   component.ResourceID = "player-ship"
	InsectMesh component.ResourceID = "insect"
)

func Player(w *ecs.World, pos mgl64.Vec3, mesh component.ResourceID) ecs.Entity {
	return w.CreateEntity(
		&component.Player{},
		component.NewTransform(pos),
		&component.Velocity{},
		component.NewPhysics(),
		component.NewGun(),
		&component.Mesh{MeshID: mesh},
	)
}

// Opponent mirrors a remote player. Its state comes from the network, so it
// carries no physics.
func Opponent(w *ecs.World, pos mgl64.Vec3) ecs.Entity {
	return w.CreateEntity(
		component.NewTransform(pos),
		&component.Velocity{},
		&component.Mesh{MeshID: ShipMesh},
		&component.Material{Color: component.Color{255, 80, 80, 255}},
	)
}

func Insect(w *ecs.World, pos mgl64.Vec3, mesh component.ResourceID) ecs.Entity {
	return w.CreateEntity(
		&component.Insect{},
		component.NewTransform(pos),
		&component.Velocity{},
		component.NewPhysics(),
		&component.Mesh{MeshID: mesh},
	)
}

func OrbitCamera(w *ecs.World, target ecs.Entity, rot mgl64.Quat) ecs.Entity {
	t := component.NewTransform(mgl64.Vec3{})
	cam := component.NewOrbitCamera(target)
	cam.Rotation = rot
	return w.CreateEntity(t, component.NewCamera(), cam)
}

func FollowCamera(w *ecs.World, target ecs.Entity) ecs.Entity {
	return w.CreateEntity(component.NewTransform(mgl64.Vec3{}), component.NewCamera(), component.NewFollowCamera(target))
}

func FreeCamera(w *ecs.World, pos mgl64.Vec3) ecs.Entity {
	return w.CreateEntity(component.NewTransform(pos), component.NewCamera(), &component.FreeCamera{})
}

func Light(w *ecs.World, rot mgl64.Quat, kind component.LightKind, intensity float64) ecs.Entity {
	t := component.NewTransform(mgl64.Vec3{})
	t.Rotation = rot
	return w.CreateEntity(t, &component.Light{Type: kind, Color: component.Color{255, 255, 255, 255}, Intensity: intensity})
}

func Terrain(w *ecs.World, seed, colorSeed uint32, chunkSize float64, target ecs.Entity) ecs.Entity {
	t := component.NewTerrain(seed, colorSeed, target)
	if chunkSize > 0 {
		t.ChunkSize = chunkSize
	}
	return w.CreateEntity(t)
}

func Decor(w *ecs.World, mesh component.ResourceID, seed uint32, spread, radius float64, target ecs.Entity) ecs.Entity {
	d := component.NewDecor(mesh, seed)
	if spread > 0 {
		d.Spread = spread
	}
	if radius > 0 {
		d.Radius = radius
	}
	d.Target = target
	return w.CreateEntity(d)
}

func Particles(w *ecs.World, pos mgl64.Vec3, mesh component.ResourceID, count int) ecs.Entity {
	p := component.NewParticles(mesh)
	p.Count = count
	return w.CreateEntity(component.NewTransform(pos), p)
}

// Model places a plain mesh, optionally with a material resource.
func Model(w *ecs.World, pos mgl64.Vec3, mesh, material component.ResourceID) ecs.Entity {
	e := w.CreateEntity(component.NewTransform(pos), &component.Mesh{MeshID: mesh})
	if material != "" {
		w.AddComponent(e, &component.Material{MaterialID: material, Color: component.Color{255, 255, 255, 255}})
	}
	return e
}

// euler converts scene rotations (pitch, yaw, roll in radians) to a quaternion.
func euler(r [3]float64) mgl64.Quat {
	return mgl64.AnglesToQuat(r[1], r[0], r[2], mgl64.YXZ)
}
