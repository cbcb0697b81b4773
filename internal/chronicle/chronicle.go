// internal/chronicle/chronicle.go
package chronicle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/stranded/internal/tiles"
)

// DefaultQueueName is the Redis list that day records are pushed to.
const DefaultQueueName = "stranded_days"

// DayRecord is the archived summary of one resolved day. It is written for
// the historian and never read back by the game server.
type DayRecord struct {
	ID        uuid.UUID      `json:"id"`
	RoomCode  string         `json:"room_code"`
	Day       int            `json:"day"`
	Narration string         `json:"narration"`
	Fallback  bool           `json:"fallback"`
	HPChanges map[string]int `json:"hp_changes"`
	Revealed  []tiles.Coord  `json:"revealed_tiles"`
	Food      int            `json:"food"`
	Water     int            `json:"water"`
	Timestamp int64          `json:"timestamp"`
}

// Publisher ships day records somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, rec DayRecord) error
}

// NopPublisher discards records. Used when no Redis is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DayRecord) error { return nil }

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisPublisher pushes JSON records onto a Redis list.
type RedisPublisher struct {
	client *redis.Client
	queue  string
}

func NewRedisPublisher(client *redis.Client, queue string) *RedisPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisPublisher{client: client, queue: queue}
}

// Publish serializes rec and RPUSHes it to the queue.
func (p *RedisPublisher) Publish(ctx context.Context, rec DayRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal DayRecord: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Decode parses one queued payload.
func Decode(payload string) (DayRecord, error) {
	var rec DayRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return DayRecord{}, fmt.Errorf("invalid day record: %w", err)
	}
	return rec, nil
}
