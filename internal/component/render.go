package component

import (
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Color is 8-bit RGBA.
type Color [4]uint8

// Mesh attaches a registered mesh resource.
type Mesh struct {
	MeshID ResourceID
}

func (*Mesh) Kind() ecs.Kind { return KindMesh }

// Material overrides the surface of a mesh.
type Material struct {
	MaterialID ResourceID
	Color      Color
	Emissive   bool
	Noise      mgl64.Vec4
}

func NewMaterial() *Material {
	return &Material{Color: Color{255, 0, 0, 255}}
}

func (*Material) Kind() ecs.Kind { return KindMaterial }

type LightKind uint8

const (
	LightDirectional LightKind = iota
	LightPoint
)

func (k LightKind) String() string {
	if k == LightPoint {
		return "point"
	}
	return "directional"
}

type Light struct {
	Type      LightKind
	Color     Color
	Intensity float64
}

func (*Light) Kind() ecs.Kind { return KindLight }

// Particles emits Count instances of a mesh around the entity.
type Particles struct {
	MeshID   ResourceID
	Count    int
	Emissive bool
}

func NewParticles(mesh ResourceID) *Particles {
	return &Particles{MeshID: mesh, Count: 256}
}

func (*Particles) Kind() ecs.Kind { return KindParticles }

// Decor scatters instances of a mesh on the terrain around Target.
type Decor struct {
	MeshID ResourceID
	Seed   uint32
	Spread float64
	Radius float64
	Target ecs.Entity
}

func NewDecor(mesh ResourceID, seed uint32) *Decor {
	return &Decor{MeshID: mesh, Seed: seed, Spread: 8, Radius: 3}
}

func (*Decor) Kind() ecs.Kind { return KindDecor }

type Sound struct {
	SoundID ResourceID
	Playing bool
	Volume  float64
	Loop    bool
}

func NewSound(id ResourceID) *Sound {
	return &Sound{SoundID: id, Playing: true, Volume: 1}
}

func (*Sound) Kind() ecs.Kind { return KindSound }

// Label gives an entity a scene-local name used to resolve references.
type Label struct {
	Name string
}

func (*Label) Kind() ecs.Kind { return KindLabel }
