package chronicle

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/stranded/internal/tiles"
)

func TestRedisPublisherPushesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	pub := NewRedisPublisher(rdb, "")
	rec := DayRecord{
		ID:        uuid.New(),
		RoomCode:  "ABCD",
		Day:       3,
		Narration: "The tide turned.",
		HPChanges: map[string]int{"alice": -1},
		Revealed:  []tiles.Coord{{X: 4, Y: 3}},
		Food:      2,
		Water:     5,
	}
	require.NoError(t, pub.Publish(context.Background(), rec))
	require.NoError(t, pub.Publish(context.Background(), rec))

	items, err := mr.List(DefaultQueueName)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], `"revealed_tiles":["4,3"]`)

	got, err := Decode(items[0])
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestConnectFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr, 0)
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not json")
	assert.Error(t, err)
}
