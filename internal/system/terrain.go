package system

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/config"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/terrain"
	"go.uber.org/zap"
)

// TerrainSystem picks the resident chunk set for every Terrain component
// from the position of its target. The set is only regenerated when the
// target crosses into a different chunk-grid cell.
type TerrainSystem struct {
	ecs.BaseSystem
	minLod, maxLod, rng int
	log                 *zap.Logger
}

func NewTerrainSystem(cfg config.TerrainConfig, log *zap.Logger) *TerrainSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &TerrainSystem{minLod: cfg.MinLod, maxLod: cfg.MaxLod, rng: cfg.Range, log: log}
}

func (s *TerrainSystem) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	for _, e := range w.EntitiesWithComponent(component.KindTerrain).Sorted() {
		t, _ := ecs.Get[*component.Terrain](w, e)
		pos, ok := positionOf(w, t.Target)
		if !ok {
			continue
		}
		s.move(e, t, pos[0], pos[2])
	}
	return nil
}

func (s *TerrainSystem) move(e ecs.Entity, t *component.Terrain, x, z float64) {
	cell := terrain.Cell(x, z, t.ChunkSize)
	if t.Placed && cell == t.CurrentChunk {
		return
	}
	t.CurrentChunk = cell
	t.Placed = true

	chunks := terrain.GenerateChunks(float64(cell.X), float64(cell.Y), s.minLod, s.maxLod, s.rng)
	t.Chunks = make(map[terrain.Key]terrain.Chunk, len(chunks))
	for _, c := range chunks {
		t.Chunks[c.Key()] = c
	}
	s.log.Debug("terrain chunks regenerated",
		zap.Uint32("entity", uint32(e)),
		zap.Int("cell_x", cell.X),
		zap.Int("cell_z", cell.Y),
		zap.Int("chunks", len(chunks)),
	)
}
