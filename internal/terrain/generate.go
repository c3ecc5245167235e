package terrain

import (
	"math"
	"slices"
)

// DefaultRange is the half-width, in coarse chunks, of the sampled
// neighbourhood around the viewer.
const DefaultRange = 2

// GenerateChunks returns the chunks that should be resident for a viewer at
// grid position (x, y). Resolution increases towards the viewer: a chunk at
// level L+1 is split into its four level-L children when its centre is closer
// than 3·2^L to the viewer. The result tiles the sampled neighbourhood without
// gaps or overlaps and is sorted by (lod, y, x), so identical inputs always
// produce identical output.
func GenerateChunks(x, y float64, minLod, maxLod, rng int) []Chunk {
	if minLod < 0 {
		minLod = 0
	}
	if maxLod < minLod {
		maxLod = minLod
	}
	if rng < 0 {
		rng = 0
	}

	base := 1 << maxLod
	chunks := make([]Chunk, 0, (2*rng+1)*(2*rng+1)*4)
	for j := -rng; j <= rng; j++ {
		for i := -rng; i <= rng; i++ {
			px := int(math.Floor(x)) + i*base
			py := int(math.Floor(y)) + j*base
			cs := subdivide(px, py, maxLod)
			chunks = append(chunks, cs[:]...)
		}
	}
	chunks = clean(chunks)

	for lod := maxLod - 1; lod >= minLod; lod-- {
		scale := float64(int(1) << lod)
		next := make([]Chunk, 0, len(chunks)+12)
		for _, c := range chunks {
			if c.Lod == lod+1 {
				cx := float64(c.Position.X) + scale
				cy := float64(c.Position.Y) + scale
				if math.Hypot(cx-x, cy-y) < 3*scale {
					cs := c.Children()
					next = append(next, cs[:]...)
					continue
				}
			}
			next = append(next, c)
		}
		chunks = clean(next)
	}

	sortChunks(chunks)
	return chunks
}

func clean(chunks []Chunk) []Chunk {
	return RemoveOverlaps(RemoveDuplicates(chunks))
}

// RemoveDuplicates drops repeated chunks, keeping the first occurrence.
func RemoveDuplicates(chunks []Chunk) []Chunk {
	seen := make(map[Chunk]struct{}, len(chunks))
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// RemoveOverlaps drops every chunk whose footprint is overlapped by a
// strictly finer chunk. Chunks are bucketed on a grid whose cell matches the
// coarsest chunk present, so each chunk is only tested against the finer
// chunks sharing one of at most four cells.
func RemoveOverlaps(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return slices.Clone(chunks)
	}
	maxLod := 0
	for _, c := range chunks {
		maxLod = max(maxLod, c.Lod)
	}
	cell := 1 << maxLod

	grid := make(map[Point][]int, len(chunks))
	for i, c := range chunks {
		for _, p := range cellsOf(c, cell) {
			grid[p] = append(grid[p], i)
		}
	}

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !overlappedByFiner(c, chunks, grid, cell) {
			out = append(out, c)
		}
	}
	return out
}

func overlappedByFiner(c Chunk, chunks []Chunk, grid map[Point][]int, cell int) bool {
	if c.Lod == 0 {
		return false
	}
	for _, p := range cellsOf(c, cell) {
		for _, i := range grid[p] {
			o := chunks[i]
			if o.Lod < c.Lod && c.Overlaps(o) {
				return true
			}
		}
	}
	return false
}

// cellsOf lists the distinct grid cells touched by c. A chunk is never larger
// than a cell, so it touches at most four.
func cellsOf(c Chunk, cell int) []Point {
	s := c.Size()
	x0 := floorDiv(c.Position.X, cell)
	y0 := floorDiv(c.Position.Y, cell)
	x1 := floorDiv(c.Position.X+s-1, cell)
	y1 := floorDiv(c.Position.Y+s-1, cell)
	out := make([]Point, 0, 4)
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			out = append(out, Point{cx, cy})
		}
	}
	return out
}

func sortChunks(chunks []Chunk) {
	slices.SortFunc(chunks, func(a, b Chunk) int {
		if a.Lod != b.Lod {
			return a.Lod - b.Lod
		}
		if a.Position.Y != b.Position.Y {
			return a.Position.Y - b.Position.Y
		}
		return a.Position.X - b.Position.X
	})
}

// Cell returns the chunk-grid cell containing the world position (x, z) for
// a reference chunk size. Recomputation of the resident set is only needed
// when this value changes.
func Cell(x, z, chunkSize float64) Point {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return Point{
		X: int(math.Floor(x / chunkSize)),
		Y: int(math.Floor(z / chunkSize)),
	}
}
