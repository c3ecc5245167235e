package terrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/alienworlds/engine/internal/gfx"
)

// Compute pipeline names.
const (
	KernelExtract = "terrain.extract"
	KernelHeight  = "terrain.height"
	KernelChunk   = "terrain.chunk"
	KernelDecor   = "terrain.decor"
)

// ChunkResolution is the number of height samples along one edge of a
// chunk mesh, excluding the closing row.
const ChunkResolution = 16

var errBindings = errors.New("terrain: wrong number of bindings")

// Kernels returns the CPU implementations of the terrain compute pipelines,
// for backends that run kernels on the host.
func Kernels() map[string]gfx.KernelFunc {
	return map[string]gfx.KernelFunc{
		KernelExtract: extractKernel,
		KernelHeight:  heightKernel,
		KernelChunk:   chunkKernel,
		KernelDecor:   decorKernel,
	}
}

// extractKernel: params {f32 originX, f32 originZ, u32 size, u32 seed};
// out size*size f32 heights, row-major by z.
func extractKernel(b [][]byte, _ gfx.Workgroups) error {
	if len(b) != 2 {
		return errBindings
	}
	p := gfx.Float32s(b[0][:8])
	size := int(gfx.Uint32At(b[0], 2))
	seed := gfx.Uint32At(b[0], 3)
	if len(b[1]) < size*size*4 {
		return fmt.Errorf("terrain: extract output too small for %d²", size)
	}
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			h := Height(float64(p[0])+float64(i), float64(p[1])+float64(j), seed)
			copy(b[1][(i+j*size)*4:], gfx.Float32Bytes(float32(h)))
		}
	}
	return nil
}

// heightKernel: params {f32 x, f32 y, f32 z, u32 seed}; out {x, height, z}.
func heightKernel(b [][]byte, _ gfx.Workgroups) error {
	if len(b) != 2 {
		return errBindings
	}
	p := gfx.Float32s(b[0][:12])
	seed := gfx.Uint32At(b[0], 3)
	h := Height(float64(p[0]), float64(p[2]), seed)
	copy(b[1], gfx.Float32Bytes(p[0], float32(h), p[2]))
	return nil
}

// chunkKernel: params {u32 lod, i32 x, i32 y, f32 chunkSize, u32 seed};
// out (ChunkResolution+1)² f32 heights across the chunk footprint.
func chunkKernel(b [][]byte, _ gfx.Workgroups) error {
	if len(b) != 2 {
		return errBindings
	}
	lod := int(gfx.Uint32At(b[0], 0))
	cx := int32(gfx.Uint32At(b[0], 1))
	cy := int32(gfx.Uint32At(b[0], 2))
	size := float64(gfx.Float32s(b[0][12:16])[0])
	seed := gfx.Uint32At(b[0], 4)

	n := ChunkResolution + 1
	if len(b[1]) < n*n*4 {
		return fmt.Errorf("terrain: chunk output too small")
	}
	extent := float64(int(1)<<lod) * size
	ox, oz := float64(cx)*size, float64(cy)*size
	step := extent / ChunkResolution
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			h := Height(ox+float64(i)*step, oz+float64(j)*step, seed)
			copy(b[1][(i+j*n)*4:], gfx.Float32Bytes(float32(h)))
		}
	}
	return nil
}

// decorKernel scatters instances on a jittered grid around a centre.
// params {f32 cx, f32 cz, f32 spread, f32 radius, u32 seed, u32 capacity,
// u32 terrainSeed};
// out {u32 count, then count × (x, y, z, scale) f32}.
func decorKernel(b [][]byte, _ gfx.Workgroups) error {
	if len(b) != 2 {
		return errBindings
	}
	p := gfx.Float32s(b[0][:16])
	seed := gfx.Uint32At(b[0], 4)
	capacity := int(gfx.Uint32At(b[0], 5))
	terrainSeed := gfx.Uint32At(b[0], 6)
	cx, cz, spread, radius := float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])
	if spread <= 0 {
		return fmt.Errorf("terrain: decor spread must be positive")
	}

	count := 0
	cells := int32(math.Ceil(radius))
	gx, gz := int32(math.Floor(cx/spread)), int32(math.Floor(cz/spread))
	for j := -cells; j <= cells && count < capacity; j++ {
		for i := -cells; i <= cells && count < capacity; i++ {
			x, z := gx+i, gz+j
			if Hash01(x, z, seed^0x5bd1e995) < 0.5 {
				continue
			}
			px := (float64(x) + Hash01(x, z, seed)) * spread
			pz := (float64(z) + Hash01(z, x, seed)) * spread
			if math.Hypot(px-cx, pz-cz) > radius*spread {
				continue
			}
			scale := 0.5 + Hash01(x, z, seed+1)
			off := 4 + count*16
			if off+16 > len(b[1]) {
				break
			}
			copy(b[1][off:], gfx.Float32Bytes(float32(px), float32(Height(px, pz, terrainSeed)), float32(pz), float32(scale)))
			count++
		}
	}
	gfx.PutUint32At(b[1], 0, uint32(count))
	return nil
}
