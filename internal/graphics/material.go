package graphics

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/alienworlds/engine/internal/component"
)

// Material is the capability set the renderer needs from any surface.
type Material interface {
	// BindingData is the uniform block bound while drawing.
	BindingData() []byte
	WritesDepth() bool
	Kind() MaterialKind
}

type MaterialKind uint8

const (
	MaterialSimple MaterialKind = iota
	MaterialSand
	MaterialWater
	MaterialSky
)

var materialNames = map[MaterialKind]string{
	MaterialSimple: "simple",
	MaterialSand:   "sand",
	MaterialWater:  "water",
	MaterialSky:    "sky",
}

func (k MaterialKind) String() string {
	if n, ok := materialNames[k]; ok {
		return n
	}
	return fmt.Sprintf("MaterialKind(%d)", uint8(k))
}

// ParseMaterialKind resolves a name used in resource manifests.
func ParseMaterialKind(name string) (MaterialKind, error) {
	for k, n := range materialNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown material kind %q", name)
}

// MaterialParams is the union of fields any material variant may read.
type MaterialParams struct {
	Color  component.Color
	Dither bool
	Noise  [4]float64
}

var materialFactories = map[MaterialKind]func(MaterialParams) Material{
	MaterialSimple: func(p MaterialParams) Material { return &SimpleMaterial{Color: p.Color, Dither: p.Dither} },
	MaterialSand:   func(p MaterialParams) Material { return &SandMaterial{Color: p.Color, Noise: p.Noise} },
	MaterialWater:  func(p MaterialParams) Material { return &WaterMaterial{Color: p.Color} },
	MaterialSky:    func(p MaterialParams) Material { return &SkyMaterial{Color: p.Color} },
}

// NewMaterial builds the variant registered for kind.
func NewMaterial(kind MaterialKind, p MaterialParams) (Material, error) {
	f, ok := materialFactories[kind]
	if !ok {
		return nil, fmt.Errorf("no material registered for %s", kind)
	}
	return f(p), nil
}

func colorBytes(buf []byte, c component.Color) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(c[i])/255))
	}
}

// SimpleMaterial is a flat colour with optional dithering:
// struct { color: vec4f, dither: u32 }.
type SimpleMaterial struct {
	Color  component.Color
	Dither bool
}

func (m *SimpleMaterial) BindingData() []byte {
	buf := make([]byte, 20)
	colorBytes(buf, m.Color)
	if m.Dither {
		binary.LittleEndian.PutUint32(buf[16:], 1)
	}
	return buf
}

func (*SimpleMaterial) WritesDepth() bool  { return true }
func (*SimpleMaterial) Kind() MaterialKind { return MaterialSimple }

// SandMaterial perturbs its colour with a noise vector.
type SandMaterial struct {
	Color component.Color
	Noise [4]float64
}

func (m *SandMaterial) BindingData() []byte {
	buf := make([]byte, 32)
	colorBytes(buf, m.Color)
	for i, v := range m.Noise {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func (*SandMaterial) WritesDepth() bool  { return true }
func (*SandMaterial) Kind() MaterialKind { return MaterialSand }

// WaterMaterial is blended and does not write depth.
type WaterMaterial struct {
	Color component.Color
}

func (m *WaterMaterial) BindingData() []byte {
	buf := make([]byte, 16)
	colorBytes(buf, m.Color)
	return buf
}

func (*WaterMaterial) WritesDepth() bool  { return false }
func (*WaterMaterial) Kind() MaterialKind { return MaterialWater }

type SkyMaterial struct {
	Color component.Color
}

func (m *SkyMaterial) BindingData() []byte {
	buf := make([]byte, 16)
	colorBytes(buf, m.Color)
	return buf
}

func (*SkyMaterial) WritesDepth() bool  { return false }
func (*SkyMaterial) Kind() MaterialKind { return MaterialSky }
