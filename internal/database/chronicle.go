// internal/database/chronicle.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/stranded/internal/chronicle"
)

const chronicleSchema = `
	CREATE TABLE IF NOT EXISTS day_chronicle (
		id          UUID PRIMARY KEY,
		room_code   TEXT        NOT NULL,
		day         INTEGER     NOT NULL,
		narration   TEXT        NOT NULL,
		fallback    BOOLEAN     NOT NULL DEFAULT FALSE,
		hp_changes  JSONB       NOT NULL DEFAULT '{}',
		revealed    JSONB       NOT NULL DEFAULT '[]',
		food        INTEGER     NOT NULL,
		water       INTEGER     NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)
`

// ChronicleStore archives day records in Postgres.
type ChronicleStore struct {
	pool *pgxpool.Pool
}

func NewChronicleStore(pool *pgxpool.Pool) *ChronicleStore {
	return &ChronicleStore{pool: pool}
}

// EnsureSchema creates the day_chronicle table if it is missing.
func (s *ChronicleStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, chronicleSchema); err != nil {
		return fmt.Errorf("create day_chronicle: %w", err)
	}
	return nil
}

// InsertDayRecords writes a batch in one transaction. Records already
// archived are skipped.
func (s *ChronicleStore) InsertDayRecords(ctx context.Context, recs []chronicle.DayRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertDayRecordTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert day %d of room %s: %w", rec.Day, rec.RoomCode, err)
			}
		}
		return nil
	})
}

func insertDayRecordTx(ctx context.Context, tx pgx.Tx, rec chronicle.DayRecord) error {
	hp, err := json.Marshal(rec.HPChanges)
	if err != nil {
		return err
	}
	revealed, err := json.Marshal(rec.Revealed)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO day_chronicle (
			id, room_code, day, narration, fallback, hp_changes, revealed, food, water, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, q,
		rec.ID, rec.RoomCode, rec.Day, rec.Narration, rec.Fallback,
		hp, revealed, rec.Food, rec.Water, time.UnixMilli(rec.Timestamp),
	)
	return err
}
