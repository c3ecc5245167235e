package terrain

import (
	"sync"

	"github.com/ojrac/opensimplex-go"
)

const (
	heightOctaves   = 6
	heightFrequency = 1.0 / 512.0
	// HeightAmplitude bounds the magnitude of Height.
	HeightAmplitude = 256.0
)

var (
	fieldsMu sync.RWMutex
	fields   = make(map[uint32]opensimplex.Noise)
)

// field returns the shared simplex field for seed. Fields are read-only once
// built.
func field(seed uint32) opensimplex.Noise {
	fieldsMu.RLock()
	n, ok := fields[seed]
	fieldsMu.RUnlock()
	if ok {
		return n
	}

	fieldsMu.Lock()
	defer fieldsMu.Unlock()
	if n, ok := fields[seed]; ok {
		return n
	}
	n = opensimplex.NewNormalized(int64(seed))
	fields[seed] = n
	return n
}

// Height returns the terrain elevation at world position (x, z) for seed.
// It is the CPU reference of the extraction kernel and is deterministic.
func Height(x, z float64, seed uint32) float64 {
	n := field(seed)
	var (
		sum  float64
		amp  = 1.0
		freq = heightFrequency
		norm float64
	)
	for o := 0; o < heightOctaves; o++ {
		// Offset each octave so their lattices do not line up at the origin.
		off := float64(o) * 97.31
		sum += amp * n.Eval2(x*freq+off, z*freq-off)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return (sum/norm*2 - 1) * HeightAmplitude
}

// pcg3d is the three-lane PCG hash (Jarzynski and Olano, JCGT 2020).
func pcg3d(x, y, z uint32) (uint32, uint32, uint32) {
	x = x*1664525 + 1013904223
	y = y*1664525 + 1013904223
	z = z*1664525 + 1013904223

	x += y * z
	y += z * x
	z += x * y

	x ^= x >> 16
	y ^= y >> 16
	z ^= z >> 16

	x += y * z
	y += z * x
	z += x * y
	return x, y, z
}

// Hash01 returns a deterministic value in [0, 1) for an integer pair and seed.
func Hash01(x, z int32, seed uint32) float64 {
	h, _, _ := pcg3d(uint32(x), uint32(z), seed)
	return float64(h) / (1 << 32)
}
