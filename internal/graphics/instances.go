package graphics

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/go-gl/mathgl/mgl64"
)

// InstanceStride is the per-instance layout: a column-major mat4x4f
// followed by an rgba32f colour.
const InstanceStride = 64 + 16

// InstanceGroup draws one mesh many times from a shared instance buffer.
// Slots are handed out from a free list, independently of entity ids.
type InstanceGroup struct {
	Mesh     *Mesh
	Material Material

	backend  gfx.Backend
	buffer   gfx.Handle
	capacity int
	mirror   []byte
	used     []bool
	free     []int
	live     int
}

func newInstanceGroup(b gfx.Backend, mesh *Mesh, mat Material, capacity int) (*InstanceGroup, error) {
	capacity = max(capacity, 1)
	h, err := b.CreateBuffer(capacity*InstanceStride, gfx.UsageStorage|gfx.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("instance buffer: %w", err)
	}
	return &InstanceGroup{
		Mesh:     mesh,
		Material: mat,
		backend:  b,
		buffer:   h,
		capacity: capacity,
		mirror:   make([]byte, capacity*InstanceStride),
		used:     make([]bool, capacity),
	}, nil
}

// Buffer returns the current instance buffer. It changes when the group grows.
func (g *InstanceGroup) Buffer() gfx.Handle { return g.buffer }
func (g *InstanceGroup) Capacity() int      { return g.capacity }

// Len returns the number of allocated slots.
func (g *InstanceGroup) Len() int { return g.live }

// Alloc reserves a slot, growing the buffer when full.
func (g *InstanceGroup) Alloc() (int, error) {
	if n := len(g.free); n > 0 {
		i := g.free[n-1]
		g.free = g.free[:n-1]
		g.used[i] = true
		g.live++
		return i, nil
	}
	i := slices.Index(g.used, false)
	if i < 0 {
		if err := g.grow(g.capacity * 2); err != nil {
			return -1, err
		}
		i = slices.Index(g.used, false)
	}
	g.used[i] = true
	g.live++
	return i, nil
}

// Free returns slot i to the free list and zeroes it so it draws nothing.
func (g *InstanceGroup) Free(i int) {
	if i < 0 || i >= g.capacity || !g.used[i] {
		return
	}
	g.used[i] = false
	g.free = append(g.free, i)
	g.live--
	zero := make([]byte, InstanceStride)
	copy(g.mirror[i*InstanceStride:], zero)
	_ = g.backend.WriteBuffer(g.buffer, i*InstanceStride, zero)
}

// Set writes the transform and colour of slot i.
func (g *InstanceGroup) Set(i int, m mgl64.Mat4, c component.Color) error {
	if i < 0 || i >= g.capacity || !g.used[i] {
		return fmt.Errorf("instance slot %d not allocated", i)
	}
	buf := g.mirror[i*InstanceStride : (i+1)*InstanceStride]
	for j, v := range m {
		binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(float32(v)))
	}
	for j := 0; j < 4; j++ {
		binary.LittleEndian.PutUint32(buf[64+j*4:], math.Float32bits(float32(c[j])/255))
	}
	return g.backend.WriteBuffer(g.buffer, i*InstanceStride, buf)
}

// Matrix reads back the transform of slot i from the CPU mirror.
func (g *InstanceGroup) Matrix(i int) mgl64.Mat4 {
	var m mgl64.Mat4
	buf := g.mirror[i*InstanceStride:]
	for j := range m {
		m[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:])))
	}
	return m
}

func (g *InstanceGroup) grow(capacity int) error {
	h, err := g.backend.CreateBuffer(capacity*InstanceStride, gfx.UsageStorage|gfx.UsageCopyDst)
	if err != nil {
		return fmt.Errorf("grow instance buffer: %w", err)
	}
	mirror := make([]byte, capacity*InstanceStride)
	copy(mirror, g.mirror)
	if err := g.backend.WriteBuffer(h, 0, mirror); err != nil {
		g.backend.Release(h)
		return fmt.Errorf("grow instance buffer: %w", err)
	}
	g.backend.Release(g.buffer)
	g.buffer = h
	g.mirror = mirror
	g.used = append(g.used, make([]bool, capacity-g.capacity)...)
	g.capacity = capacity
	return nil
}

func (g *InstanceGroup) release() {
	g.backend.Release(g.buffer)
	g.buffer = 0
}
