package tiles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// island is a 3x3 land block with a water ring on the east side.
func island() (land, water Set) {
	land = NewSet()
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			land.Add(Coord{X: x, Y: y})
		}
	}
	water = NewSet(Coord{X: 3, Y: 0}, Coord{X: 3, Y: 1}, Coord{X: 3, Y: 2})
	return land, water
}

func TestAdjacentTilesFromCenter(t *testing.T) {
	land, water := island()
	explored := NewSet(Coord{X: 1, Y: 1})

	adj := AdjacentTiles(explored, land, water)
	assert.Equal(t, []Coord{{1, 0}, {0, 1}, {2, 1}, {1, 2}}, adj.Sorted())
}

func TestAdjacentTilesIncludesWaterAndSkipsVoid(t *testing.T) {
	land, water := island()
	explored := NewSet(Coord{X: 2, Y: 0})

	adj := AdjacentTiles(explored, land, water)
	assert.True(t, adj.Has(Coord{X: 3, Y: 0}), "water neighbour should be revealable")
	assert.True(t, adj.Has(Coord{X: 1, Y: 0}))
	assert.True(t, adj.Has(Coord{X: 2, Y: 1}))
	assert.False(t, adj.Has(Coord{X: 2, Y: -1}), "tile outside land and water must never be returned")
	assert.Len(t, adj, 3)
}

func TestAdjacentTilesNeverReturnsExplored(t *testing.T) {
	land, water := island()
	explored := NewSet(Coord{X: 0, Y: 0}, Coord{X: 1, Y: 0}, Coord{X: 0, Y: 1})

	adj := AdjacentTiles(explored, land, water)
	for c := range adj {
		assert.False(t, explored.Has(c), "explored tile %s returned", c)
		assert.True(t, land.Has(c) || water.Has(c), "tile %s not on the map", c)
	}
	assert.Equal(t, []Coord{{2, 0}, {1, 1}, {0, 2}}, adj.Sorted())
}

func TestAdjacentTilesIsIdempotent(t *testing.T) {
	land, water := island()
	explored := NewSet(Coord{X: 1, Y: 1}, Coord{X: 2, Y: 1})

	first := AdjacentTiles(explored, land, water)
	second := AdjacentTiles(explored, land, water)
	assert.Equal(t, first.Sorted(), second.Sorted())
}

func TestAdjacentTilesNoDiagonals(t *testing.T) {
	land, water := island()
	adj := AdjacentTiles(NewSet(Coord{X: 0, Y: 0}), land, water)
	assert.False(t, adj.Has(Coord{X: 1, Y: 1}))
}

func TestCoordTextEncoding(t *testing.T) {
	c, err := ParseCoord(" 4, -2 ")
	require.NoError(t, err)
	assert.Equal(t, Coord{X: 4, Y: -2}, c)

	_, err = ParseCoord("4")
	assert.Error(t, err)
	_, err = ParseCoord("a,b")
	assert.Error(t, err)

	data, err := json.Marshal(map[Coord]bool{{X: 1, Y: 2}: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1,2":true}`, string(data))
}

func TestSetJSON(t *testing.T) {
	s := NewSet(Coord{X: 2, Y: 1}, Coord{X: 0, Y: 0}, Coord{X: 1, Y: 1})
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["0,0","1,1","2,1"]`, string(data))

	var back Set
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}
