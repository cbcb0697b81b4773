// internal/worldmap/worldmap.go
package worldmap

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jason-s-yu/stranded/internal/tiles"
)

//go:embed maps/driftwood.yaml
var defaultMapYAML []byte

// ResourceKind is what a site yields.
type ResourceKind string

const (
	Food  ResourceKind = "food"
	Water ResourceKind = "water"
)

// ResourceSite is a named location that yields food or water a limited number
// of times. Uses == 1 is a single-use site.
type ResourceSite struct {
	Key    string       `yaml:"key" json:"key"`
	Name   string       `yaml:"name" json:"name"`
	Kind   ResourceKind `yaml:"kind" json:"kind"`
	At     tiles.Coord  `yaml:"at" json:"at"`
	Amount int          `yaml:"amount" json:"amount"`
	Uses   int          `yaml:"uses" json:"uses"`
}

// Map is the static island definition a room is played on.
type Map struct {
	Name      string
	Intro     string
	Land      tiles.Set
	Water     tiles.Set
	Start     tiles.Coord
	Resources map[string]ResourceSite
}

type mapFile struct {
	Name      string         `yaml:"name"`
	Intro     string         `yaml:"intro"`
	Grid      string         `yaml:"grid"`
	Resources []ResourceSite `yaml:"resources"`
}

// Default returns the embedded Driftwood Atoll map.
func Default() (*Map, error) {
	return Parse(defaultMapYAML)
}

// Load reads a map definition from disk.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML map definition.
// Grid legend: '.' land, '~' water, 'S' start (land), ' ' open sea.
func Parse(data []byte) (*Map, error) {
	var f mapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse map YAML: %w", err)
	}

	m := &Map{
		Name:      f.Name,
		Intro:     strings.TrimSpace(f.Intro),
		Land:      tiles.NewSet(),
		Water:     tiles.NewSet(),
		Resources: make(map[string]ResourceSite, len(f.Resources)),
	}

	startFound := false
	for y, row := range strings.Split(strings.TrimRight(f.Grid, "\n"), "\n") {
		for x, ch := range row {
			c := tiles.Coord{X: x, Y: y}
			switch ch {
			case '.':
				m.Land.Add(c)
			case '~':
				m.Water.Add(c)
			case 'S':
				if startFound {
					return nil, fmt.Errorf("map %q has more than one start tile", f.Name)
				}
				m.Land.Add(c)
				m.Start = c
				startFound = true
			case ' ':
			default:
				return nil, fmt.Errorf("map %q: unknown grid symbol %q at %s", f.Name, ch, c)
			}
		}
	}
	if !startFound {
		return nil, fmt.Errorf("map %q has no start tile", f.Name)
	}

	for _, site := range f.Resources {
		if site.Key == "" {
			return nil, fmt.Errorf("map %q: resource site without key", f.Name)
		}
		if _, dup := m.Resources[site.Key]; dup {
			return nil, fmt.Errorf("map %q: duplicate resource site %q", f.Name, site.Key)
		}
		if site.Kind != Food && site.Kind != Water {
			return nil, fmt.Errorf("map %q: resource %q has unknown kind %q", f.Name, site.Key, site.Kind)
		}
		if site.Uses <= 0 {
			return nil, fmt.Errorf("map %q: resource %q must have at least one use", f.Name, site.Key)
		}
		if !m.Land.Has(site.At) && !m.Water.Has(site.At) {
			return nil, fmt.Errorf("map %q: resource %q at %s is off the map", f.Name, site.Key, site.At)
		}
		m.Resources[site.Key] = site
	}
	return m, nil
}

// SiteAt returns the resource site on a tile, if any.
func (m *Map) SiteAt(c tiles.Coord) (ResourceSite, bool) {
	for _, site := range m.Resources {
		if site.At == c {
			return site, true
		}
	}
	return ResourceSite{}, false
}
