package terrain

import (
	"fmt"
	"math"
	"sync"

	"github.com/alienworlds/engine/internal/gfx"
	"go.uber.org/zap"
)

// DefaultTileSize is the edge length, in world units, of one extracted
// height tile.
const DefaultTileSize = 1024

// Tile is a square block of extracted heights at one-unit spacing.
type Tile struct {
	Origin  Point
	Size    int
	Heights []float32
}

// At returns the height at world position (x, z), which must lie inside t.
func (t *Tile) At(x, z float64) float64 {
	i := int(math.Floor(x)) - t.Origin.X
	j := int(math.Floor(z)) - t.Origin.Y
	i = min(max(i, 0), t.Size-1)
	j = min(max(j, 0), t.Size-1)
	return float64(t.Heights[i+j*t.Size])
}

// HeightCache extracts terrain heights on the GPU one tile at a time and
// keeps the results. Concurrent lookups of a tile that is still building
// share the same future.
type HeightCache struct {
	backend  gfx.Backend
	seed     uint32
	tileSize int
	log      *zap.Logger

	mu    sync.Mutex
	tiles map[Point]*gfx.Future[*Tile]
}

func NewHeightCache(b gfx.Backend, seed uint32, tileSize int, log *zap.Logger) *HeightCache {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HeightCache{
		backend:  b,
		seed:     seed,
		tileSize: tileSize,
		log:      log,
		tiles:    make(map[Point]*gfx.Future[*Tile]),
	}
}

func (c *HeightCache) Seed() uint32 { return c.seed }

// TileFor returns the tile coordinate containing world position (x, z).
func (c *HeightCache) TileFor(x, z float64) Point {
	return Cell(x, z, float64(c.tileSize))
}

// Tile returns the future for tile p, starting its extraction if needed.
func (c *HeightCache) Tile(p Point) *gfx.Future[*Tile] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.tiles[p]; ok {
		return f
	}
	c.log.Debug("building height tile", zap.Int("x", p.X), zap.Int("z", p.Y))
	f := c.build(p)
	c.tiles[p] = f
	return f
}

// Lookup returns the height at (x, z) if its tile is ready. Otherwise it
// returns the pending tile future; callers suspend on it and read the tile
// from its result.
func (c *HeightCache) Lookup(x, z float64) (float64, *gfx.Future[*Tile]) {
	f := c.Tile(c.TileFor(x, z))
	if !f.IsResolved() {
		return 0, f
	}
	t, err := f.Result()
	if err != nil {
		return 0, f
	}
	return t.At(x, z), nil
}

// Len returns the number of tiles built or building.
func (c *HeightCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}

func (c *HeightCache) build(p Point) *gfx.Future[*Tile] {
	size := c.tileSize
	origin := Point{X: p.X * size, Y: p.Y * size}

	params, err := c.backend.CreateBuffer(16, gfx.UsageUniform|gfx.UsageCopyDst)
	if err != nil {
		return c.fail(p, fmt.Errorf("height tile params: %w", err))
	}
	out, err := c.backend.CreateBuffer(size*size*4, gfx.UsageStorage|gfx.UsageMapRead)
	if err != nil {
		c.backend.Release(params)
		return c.fail(p, fmt.Errorf("height tile output: %w", err))
	}
	release := func() {
		c.backend.Release(params)
		c.backend.Release(out)
	}

	data := gfx.Float32Bytes(float32(origin.X), float32(origin.Y), 0, 0)
	gfx.PutUint32At(data, 2, uint32(size))
	gfx.PutUint32At(data, 3, c.seed)
	if err := c.backend.WriteBuffer(params, 0, data); err != nil {
		release()
		return c.fail(p, err)
	}
	groups := gfx.Workgroups{(size + 7) / 8, (size + 7) / 8, 1}
	if err := c.backend.DispatchCompute(KernelExtract, []gfx.Handle{params, out}, groups); err != nil {
		release()
		return c.fail(p, err)
	}

	f := gfx.NewFuture[*Tile]()
	raw := gfx.ReadBuffer(c.backend, out)
	go func() {
		bytes, err := raw.Result()
		release()
		if err != nil {
			c.forget(p)
			f.Resolve(nil, fmt.Errorf("height tile %v: %w", p, err))
			return
		}
		f.Resolve(&Tile{Origin: origin, Size: size, Heights: gfx.Float32s(bytes)}, nil)
	}()
	return f
}

// fail records nothing so the next lookup retries.
func (c *HeightCache) fail(p Point, err error) *gfx.Future[*Tile] {
	c.log.Warn("height tile build failed", zap.Int("x", p.X), zap.Int("z", p.Y), zap.Error(err))
	go c.forget(p)
	return gfx.Resolved[*Tile](nil, err)
}

func (c *HeightCache) forget(p Point) {
	c.mu.Lock()
	delete(c.tiles, p)
	c.mu.Unlock()
}
