package data

import (
	"fmt"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/graphics"
	"go.uber.org/multierr"
)

// MeshEntry names a generated mesh resource.
type MeshEntry struct {
	ID      component.ResourceID `yaml:"id"`
	Builder string               `yaml:"builder"`
	// Seeded meshes vary with the world seed; others use Seed as given.
	Seeded bool               `yaml:"seeded"`
	Seed   uint32             `yaml:"seed"`
	Params map[string]float64 `yaml:"params"`
}

// MaterialEntry names a material resource.
type MaterialEntry struct {
	ID     component.ResourceID `yaml:"id"`
	Kind   string               `yaml:"kind"`
	Color  [4]uint8             `yaml:"color"`
	Dither bool                 `yaml:"dither"`
	Noise  [4]float64           `yaml:"noise"`
}

// Manifest lists the resources a scene needs before its entities are built.
type Manifest struct {
	Meshes    []MeshEntry     `yaml:"meshes"`
	Materials []MaterialEntry `yaml:"materials"`
}

// Count returns the number of resources in the manifest.
func (m Manifest) Count() int {
	return len(m.Meshes) + len(m.Materials)
}

// Register builds every resource in m and inserts it into res under its id.
// All entries are attempted; failures are returned combined.
func (m Manifest) Register(b gfx.Backend, res *graphics.Resources, worldSeed uint32) error {
	var errs error
	for _, e := range m.Meshes {
		seed := e.Seed
		if e.Seeded {
			seed ^= worldSeed
		}
		vs, err := graphics.BuildMesh(e.Builder, seed, e.Params)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mesh %s: %w", e.ID, err))
			continue
		}
		mesh, err := graphics.UploadMesh(b, string(e.ID), vs)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mesh %s: %w", e.ID, err))
			continue
		}
		res.Insert(e.ID, mesh)
	}
	for _, e := range m.Materials {
		kind, err := graphics.ParseMaterialKind(e.Kind)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("material %s: %w", e.ID, err))
			continue
		}
		mat, err := graphics.NewMaterial(kind, graphics.MaterialParams{
			Color:  component.Color(e.Color),
			Dither: e.Dither,
			Noise:  e.Noise,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("material %s: %w", e.ID, err))
			continue
		}
		res.Insert(e.ID, mat)
	}
	return errs
}
