package terrain

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is an integer position on the chunk grid.
type Point struct {
	X, Y int
}

// Chunk is one terrain tile. A chunk at level Lod covers a square of
// 2^Lod grid units with its minimum corner at Position.
type Chunk struct {
	Lod      int
	Position Point
}

// Key is the stable identity of a chunk, serialized as "lod,x,y".
type Key string

func (c Chunk) Key() Key {
	return Key(strconv.Itoa(c.Lod) + "," + strconv.Itoa(c.Position.X) + "," + strconv.Itoa(c.Position.Y))
}

func (c Chunk) String() string { return string(c.Key()) }

// Size returns the edge length of the chunk in grid units.
func (c Chunk) Size() int { return 1 << c.Lod }

// Center returns the centre of the chunk footprint.
func (c Chunk) Center() (float64, float64) {
	h := float64(c.Size()) / 2
	return float64(c.Position.X) + h, float64(c.Position.Y) + h
}

// Children returns the four chunks one level finer that tile c.
// A chunk at lod 0 has no children and returns itself four times.
func (c Chunk) Children() [4]Chunk {
	if c.Lod == 0 {
		return [4]Chunk{c, c, c, c}
	}
	return subdivide(c.Position.X, c.Position.Y, c.Lod-1)
}

// Overlaps reports whether the footprints of c and o share any area.
// Chunks that only touch along an edge do not overlap.
func (c Chunk) Overlaps(o Chunk) bool {
	cs, os := c.Size(), o.Size()
	return c.Position.X < o.Position.X+os && o.Position.X < c.Position.X+cs &&
		c.Position.Y < o.Position.Y+os && o.Position.Y < c.Position.Y+cs
}

// Contains reports whether the grid point (x, y) lies inside c.
func (c Chunk) Contains(x, y float64) bool {
	s := float64(c.Size())
	px, py := float64(c.Position.X), float64(c.Position.Y)
	return x >= px && y >= py && x < px+s && y < py+s
}

// ParseKey is the inverse of Chunk.Key.
func ParseKey(k Key) (Chunk, error) {
	parts := strings.Split(string(k), ",")
	if len(parts) != 3 {
		return Chunk{}, fmt.Errorf("terrain: malformed chunk key %q", k)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Chunk{}, fmt.Errorf("terrain: malformed chunk key %q: %w", k, err)
		}
		v[i] = n
	}
	if v[0] < 0 {
		return Chunk{}, fmt.Errorf("terrain: negative lod in chunk key %q", k)
	}
	return Chunk{Lod: v[0], Position: Point{X: v[1], Y: v[2]}}, nil
}

// subdivide returns the four lod-level chunks tiling the 2^(lod+1) aligned
// cell that contains (x, y).
func subdivide(x, y, lod int) [4]Chunk {
	scale := 1 << lod
	cx := floorDiv(x, scale*2) * scale * 2
	cy := floorDiv(y, scale*2) * scale * 2
	return [4]Chunk{
		{Lod: lod, Position: Point{cx, cy}},
		{Lod: lod, Position: Point{cx + scale, cy}},
		{Lod: lod, Position: Point{cx, cy + scale}},
		{Lod: lod, Position: Point{cx + scale, cy + scale}},
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
