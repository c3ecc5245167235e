package data

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scenes/*.yaml
var bundled embed.FS

// ErrUnknownScene is returned for a bundled scene name that does not exist.
var ErrUnknownScene = errors.New("unknown scene")

// EntityEntry describes one prefab instance. Which fields matter depends on
// the prefab; unused ones are ignored.
type EntityEntry struct {
	Prefab    string       `yaml:"prefab"`
	Label     string       `yaml:"label"`
	Position  [3]float64   `yaml:"position"`
	Rotation  [3]float64   `yaml:"rotation"` // euler radians
	Scale     float64      `yaml:"scale"`    // uniform; 0 means 1
	Velocity  [3]float64   `yaml:"velocity"`
	Target    string       `yaml:"target"` // label of another entity
	Mesh      string       `yaml:"mesh"`
	Material  string       `yaml:"material"`
	Color     *[4]uint8    `yaml:"color"`
	Spread    float64      `yaml:"spread"`
	Radius    float64      `yaml:"radius"`
	Count     int          `yaml:"count"`
	Particles string       `yaml:"particles"` // thruster mesh of a player
	Sound     string       `yaml:"sound"`
	Light     *LightEntry  `yaml:"light"`
	Follow    *FollowEntry `yaml:"follow"`
}

type LightEntry struct {
	Type      string  `yaml:"type"` // directional or point
	Intensity float64 `yaml:"intensity"`
}

// FollowEntry keeps an entity level with Target on the flagged axes.
type FollowEntry struct {
	X bool `yaml:"x"`
	Y bool `yaml:"y"`
	Z bool `yaml:"z"`
}

// Scene is a resource manifest plus the entities built from it.
type Scene struct {
	Name      string        `yaml:"name"`
	Resources Manifest      `yaml:"resources"`
	Entities  []EntityEntry `yaml:"entities"`
}

// Labels returns the labels of all entities in declaration order.
func (s *Scene) Labels() []string {
	var out []string
	for _, e := range s.Entities {
		if e.Label != "" {
			out = append(out, e.Label)
		}
	}
	return out
}

// Validate checks that labels are unique and every target names one.
func (s *Scene) Validate() error {
	labels := make(map[string]bool, len(s.Entities))
	for i, e := range s.Entities {
		if e.Prefab == "" {
			return fmt.Errorf("entity %d: prefab is required", i)
		}
		if e.Count < 0 {
			return fmt.Errorf("entity %d (%s): count %d is negative", i, e.Prefab, e.Count)
		}
		if e.Label == "" {
			continue
		}
		if labels[e.Label] {
			return fmt.Errorf("entity %d: duplicate label %q", i, e.Label)
		}
		labels[e.Label] = true
	}
	for i, e := range s.Entities {
		if e.Target != "" && !labels[e.Target] {
			return fmt.Errorf("entity %d (%s): target %q is not a label", i, e.Prefab, e.Target)
		}
	}
	return nil
}

// ParseScene decodes and validates a scene document.
func ParseScene(raw []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scene %s: %w", s.Name, err)
	}
	return &s, nil
}

// LoadScene reads a scene file from disk.
func LoadScene(p string) (*Scene, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(raw)
}

// BundledScene returns one of the scenes compiled into the binary.
func BundledScene(name string) (*Scene, error) {
	raw, err := bundled.ReadFile(path.Join("scenes", name+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownScene, name, strings.Join(BundledScenes(), ", "))
	}
	if err != nil {
		return nil, err
	}
	return ParseScene(raw)
}

// BundledScenes lists the names accepted by BundledScene.
func BundledScenes() []string {
	entries, _ := bundled.ReadDir("scenes")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}
