package component

import (
	"time"

	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultChunkSize is the reference chunk edge in world units.
const DefaultChunkSize = 128

// Terrain holds the resident chunk set chosen around Target.
type Terrain struct {
	Chunks map[terrain.Key]terrain.Chunk
	// CurrentChunk is valid once Placed is set.
	CurrentChunk terrain.Point
	Placed       bool
	ChunkSize    float64
	TerrainSeed  uint32
	ColorSeed    uint32
	Target       ecs.Entity
}

func NewTerrain(terrainSeed, colorSeed uint32, target ecs.Entity) *Terrain {
	return &Terrain{
		Chunks:      make(map[terrain.Key]terrain.Chunk),
		ChunkSize:   DefaultChunkSize,
		TerrainSeed: terrainSeed,
		ColorSeed:   colorSeed,
		Target:      target,
	}
}

func (*Terrain) Kind() ecs.Kind { return KindTerrain }

// Network marks an entity mirrored from, or announced to, the relay.
type Network struct {
	RemoteID uint32
	Prefab   string
}

func (*Network) Kind() ecs.Kind { return KindNetwork }

// Player marks the locally controlled entity.
type Player struct{}

func (*Player) Kind() ecs.Kind { return KindPlayer }

type Gun struct {
	LastFired time.Time
	// FireRate is shots per second.
	FireRate float64
}

func NewGun() *Gun { return &Gun{FireRate: 4} }

func (*Gun) Kind() ecs.Kind { return KindGun }

// CanFire reports whether the cooldown has elapsed at now.
func (g *Gun) CanFire(now time.Time) bool {
	if g.LastFired.IsZero() || g.FireRate <= 0 {
		return true
	}
	return now.Sub(g.LastFired) > time.Duration(float64(time.Second)/g.FireRate)
}

func (g *Gun) Fire(now time.Time) { g.LastFired = now }

// InsectMode is the state of the insect AI.
type InsectMode uint8

const (
	InsectIdle InsectMode = iota
	InsectSearching
	InsectNavigating
	InsectDead
)

func (m InsectMode) String() string {
	switch m {
	case InsectIdle:
		return "idle"
	case InsectSearching:
		return "searching"
	case InsectNavigating:
		return "navigating"
	case InsectDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ParseInsectMode is the inverse of InsectMode.String.
func ParseInsectMode(s string) (InsectMode, bool) {
	for m := InsectIdle; m <= InsectDead; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return InsectIdle, false
}

type Insect struct {
	Mode   InsectMode
	Target mgl64.Vec3
}

func (*Insect) Kind() ecs.Kind { return KindInsect }
