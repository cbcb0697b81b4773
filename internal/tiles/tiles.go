// internal/tiles/tiles.go
package tiles

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Coord is a single map tile. It text-encodes as "x,y" so it can be used as a
// JSON map key and read back from model output.
type Coord struct {
	X int
	Y int
}

func (c Coord) String() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// ParseCoord parses "x,y" (whitespace tolerant).
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("invalid coordinate %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Coord{}, fmt.Errorf("invalid x in coordinate %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Coord{}, fmt.Errorf("invalid y in coordinate %q: %w", s, err)
	}
	return Coord{X: x, Y: y}, nil
}

func (c Coord) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Coord) UnmarshalText(b []byte) error {
	parsed, err := ParseCoord(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Neighbors returns the four cardinal neighbours in N, E, S, W order.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{
		{X: c.X, Y: c.Y - 1},
		{X: c.X + 1, Y: c.Y},
		{X: c.X, Y: c.Y + 1},
		{X: c.X - 1, Y: c.Y},
	}
}

// Set is an unordered set of coordinates.
type Set map[Coord]struct{}

// NewSet builds a set from the given coordinates.
func NewSet(coords ...Coord) Set {
	s := make(Set, len(coords))
	for _, c := range coords {
		s[c] = struct{}{}
	}
	return s
}

func (s Set) Has(c Coord) bool {
	_, ok := s[c]
	return ok
}

func (s Set) Add(c Coord) {
	s[c] = struct{}{}
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns the members ordered by row, then column.
func (s Set) Sorted() []Coord {
	out := make([]Coord, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var coords []Coord
	if err := json.Unmarshal(b, &coords); err != nil {
		return err
	}
	*s = NewSet(coords...)
	return nil
}

// AdjacentTiles returns every tile that cardinally borders an explored tile,
// belongs to land or water, and is not explored yet. It is the only source of
// truth for which tiles a day's resolution may reveal.
func AdjacentTiles(explored, land, water Set) Set {
	out := make(Set)
	for c := range explored {
		for _, n := range c.Neighbors() {
			if explored.Has(n) {
				continue
			}
			if land.Has(n) || water.Has(n) {
				out.Add(n)
			}
		}
	}
	return out
}
