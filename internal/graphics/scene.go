package graphics

import (
	"sync"

	"github.com/alienworlds/engine/internal/component"
	"github.com/go-gl/mathgl/mgl64"
)

// Scene receives the proxies the synchronizer creates and drops. Drawing is
// the renderer's concern.
type Scene interface {
	AddCamera(c *Camera)
	RemoveCamera(c *Camera)
	AddLight(l *Light)
	RemoveLight(l *Light)
	AddInstanced(g *InstanceGroup)
	RemoveInstanced(g *InstanceGroup)
	AddMesh(m *MeshProxy)
	RemoveMesh(m *MeshProxy)
}

type Camera struct {
	Position  mgl64.Vec3
	Rotation  mgl64.Quat
	Near, Far float64
}

// View returns the world-to-camera matrix.
func (c *Camera) View() mgl64.Mat4 {
	m := mgl64.Translate3D(c.Position.Elem()).Mul4(c.Rotation.Normalize().Mat4())
	return m.Inv()
}

type Light struct {
	Type      component.LightKind
	Position  mgl64.Vec3
	Direction mgl64.Vec3
	Color     component.Color
	Intensity float64
}

// MeshProxy is a standalone mesh placed in the scene, such as a terrain chunk.
type MeshProxy struct {
	Mesh      *Mesh
	Transform mgl64.Mat4
	Material  Material
}

// MemScene is a Scene that only records membership. The headless driver
// and the tests use it.
type MemScene struct {
	mu        sync.Mutex
	cameras   map[*Camera]struct{}
	lights    map[*Light]struct{}
	instanced map[*InstanceGroup]struct{}
	meshes    map[*MeshProxy]struct{}
}

func NewMemScene() *MemScene {
	return &MemScene{
		cameras:   make(map[*Camera]struct{}),
		lights:    make(map[*Light]struct{}),
		instanced: make(map[*InstanceGroup]struct{}),
		meshes:    make(map[*MeshProxy]struct{}),
	}
}

func (s *MemScene) AddCamera(c *Camera)    { s.mu.Lock(); s.cameras[c] = struct{}{}; s.mu.Unlock() }
func (s *MemScene) RemoveCamera(c *Camera) { s.mu.Lock(); delete(s.cameras, c); s.mu.Unlock() }
func (s *MemScene) AddLight(l *Light)      { s.mu.Lock(); s.lights[l] = struct{}{}; s.mu.Unlock() }
func (s *MemScene) RemoveLight(l *Light)   { s.mu.Lock(); delete(s.lights, l); s.mu.Unlock() }

func (s *MemScene) AddInstanced(g *InstanceGroup) {
	s.mu.Lock()
	s.instanced[g] = struct{}{}
	s.mu.Unlock()
}

func (s *MemScene) RemoveInstanced(g *InstanceGroup) {
	s.mu.Lock()
	delete(s.instanced, g)
	s.mu.Unlock()
}

func (s *MemScene) AddMesh(m *MeshProxy)    { s.mu.Lock(); s.meshes[m] = struct{}{}; s.mu.Unlock() }
func (s *MemScene) RemoveMesh(m *MeshProxy) { s.mu.Lock(); delete(s.meshes, m); s.mu.Unlock() }

// Counts returns the number of cameras, lights, instance groups and meshes.
func (s *MemScene) Counts() (cameras, lights, instanced, meshes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cameras), len(s.lights), len(s.instanced), len(s.meshes)
}

// Cameras returns the registered cameras in no particular order.
func (s *MemScene) Cameras() []*Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Camera, 0, len(s.cameras))
	for c := range s.cameras {
		out = append(out, c)
	}
	return out
}

var _ Scene = (*MemScene)(nil)

// forward is the direction a zero rotation faces.
var forward = mgl64.Vec3{0, 0, -1}
