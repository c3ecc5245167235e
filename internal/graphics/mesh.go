package graphics

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/gfx"
)

// Vertex is one point of a mesh: position, normal and 8-bit colour.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Color    component.Color
}

// VertexSize is the packed size of a Vertex in bytes.
const VertexSize = 28

// VertexBytes packs vs in the vertex buffer layout.
func VertexBytes(vs []Vertex) []byte {
	out := make([]byte, len(vs)*VertexSize)
	for i, v := range vs {
		o := out[i*VertexSize:]
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(o[j*4:], math.Float32bits(v.Position[j]))
			binary.LittleEndian.PutUint32(o[12+j*4:], math.Float32bits(v.Normal[j]))
		}
		copy(o[24:28], v.Color[:])
	}
	return out
}

// MeshBuilder generates the vertices of a named mesh. Builders are pure.
type MeshBuilder func(seed uint32, params map[string]float64) []Vertex

var (
	buildersMu sync.RWMutex
	builders   = map[string]MeshBuilder{
		"cube":  buildCube,
		"quad":  buildQuad,
		"plane": buildPlane,
	}
)

// RegisterMeshBuilder adds a generator under name, replacing any previous one.
func RegisterMeshBuilder(name string, b MeshBuilder) {
	buildersMu.Lock()
	builders[name] = b
	buildersMu.Unlock()
}

// MeshBuilders lists the registered generator names.
func MeshBuilders() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	out := make([]string, 0, len(builders))
	for n := range builders {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func BuildMesh(name string, seed uint32, params map[string]float64) ([]Vertex, error) {
	buildersMu.RLock()
	b, ok := builders[name]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown mesh builder %q", name)
	}
	return b(seed, params), nil
}

// Mesh is a vertex buffer resident on the backend.
type Mesh struct {
	Name     string
	Vertices int
	Buffer   gfx.Handle
}

// UploadMesh creates a vertex buffer holding vs.
func UploadMesh(b gfx.Backend, name string, vs []Vertex) (*Mesh, error) {
	data := VertexBytes(vs)
	h, err := b.CreateBuffer(len(data), gfx.UsageVertex|gfx.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", name, err)
	}
	if err := b.WriteBuffer(h, 0, data); err != nil {
		b.Release(h)
		return nil, fmt.Errorf("mesh %s: %w", name, err)
	}
	return &Mesh{Name: name, Vertices: len(vs), Buffer: h}, nil
}

func param(p map[string]float64, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func colorParam(p map[string]float64) component.Color {
	return component.Color{
		uint8(param(p, "r", 255)),
		uint8(param(p, "g", 255)),
		uint8(param(p, "b", 255)),
		uint8(param(p, "a", 255)),
	}
}

func quadFace(center, u, v, n [3]float32, c component.Color) []Vertex {
	corner := func(su, sv float32) Vertex {
		var p [3]float32
		for i := range p {
			p[i] = center[i] + u[i]*su + v[i]*sv
		}
		return Vertex{Position: p, Normal: n, Color: c}
	}
	a, b, cc, d := corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)
	return []Vertex{a, b, cc, a, cc, d}
}

func buildQuad(_ uint32, p map[string]float64) []Vertex {
	s := float32(param(p, "size", 1)) / 2
	return quadFace([3]float32{}, [3]float32{s, 0, 0}, [3]float32{0, s, 0}, [3]float32{0, 0, 1}, colorParam(p))
}

func buildCube(_ uint32, p map[string]float64) []Vertex {
	s := float32(param(p, "size", 1)) / 2
	c := colorParam(p)
	out := make([]Vertex, 0, 36)
	faces := [][3][3]float32{
		{{0, 0, s}, {s, 0, 0}, {0, s, 0}},
		{{0, 0, -s}, {-s, 0, 0}, {0, s, 0}},
		{{s, 0, 0}, {0, 0, -s}, {0, s, 0}},
		{{-s, 0, 0}, {0, 0, s}, {0, s, 0}},
		{{0, s, 0}, {s, 0, 0}, {0, 0, -s}},
		{{0, -s, 0}, {s, 0, 0}, {0, 0, s}},
	}
	for _, f := range faces {
		var n [3]float32
		for i := range n {
			n[i] = f[0][i] / s
		}
		out = append(out, quadFace(f[0], f[1], f[2], n, c)...)
	}
	return out
}

// buildPlane is a flat grid on the XZ plane with optional seeded jitter.
func buildPlane(seed uint32, p map[string]float64) []Vertex {
	size := param(p, "size", 16)
	div := max(int(param(p, "divisions", 4)), 1)
	jitter := param(p, "jitter", 0)
	c := colorParam(p)
	step := size / float64(div)

	height := func(i, j int) float32 {
		if jitter == 0 {
			return 0
		}
		h := uint32(i)*0x27d4eb2d ^ uint32(j)*0x165667b1 ^ seed
		h ^= h >> 15
		h *= 0x85ebca6b
		h ^= h >> 13
		return float32((float64(h%1000)/1000 - 0.5) * jitter)
	}
	at := func(i, j int) Vertex {
		return Vertex{
			Position: [3]float32{float32(float64(i)*step - size/2), height(i, j), float32(float64(j)*step - size/2)},
			Normal:   [3]float32{0, 1, 0},
			Color:    c,
		}
	}
	out := make([]Vertex, 0, div*div*6)
	for j := 0; j < div; j++ {
		for i := 0; i < div; i++ {
			a, b, cc, d := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
			out = append(out, a, cc, b, a, d, cc)
		}
	}
	return out
}
