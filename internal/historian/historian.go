// internal/historian/historian.go pops day records from the Redis chronicle
// queue and archives them in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/chronicle"
)

// Store persists a batch of day records.
type Store interface {
	InsertDayRecords(ctx context.Context, recs []chronicle.DayRecord) error
}

// Options tune the batching behaviour.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each BLPOP so shutdown is noticed promptly.
	PopTimeout time.Duration
}

// Service drains the chronicle queue into a Store.
type Service struct {
	redisClient *redis.Client
	store       Store
	opts        Options
	logger      *logrus.Logger

	batchMu sync.Mutex
	batch   []chronicle.DayRecord
}

func NewService(rdb *redis.Client, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.Queue == "" {
		opts.Queue = chronicle.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		redisClient: rdb,
		store:       store,
		opts:        opts,
		logger:      logger,
		batch:       make([]chronicle.DayRecord, 0, opts.BatchSize),
	}
}

// Run pops records until ctx is cancelled, then flushes what is left.
func (hs *Service) Run(ctx context.Context) error {
	hs.logger.Infof("historian started on queue %s", hs.opts.Queue)

	done := make(chan struct{})
	go hs.flushLoop(ctx, done)
	defer func() {
		<-done
		hs.flush(context.Background())
		hs.logger.Info("historian stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := hs.redisClient.BLPop(ctx, hs.opts.PopTimeout, hs.opts.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			hs.logger.Errorf("BLPop: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(hs.opts.PopTimeout):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		// res[0] is the queue name and res[1] the payload.
		rec, err := chronicle.Decode(res[1])
		if err != nil {
			hs.logger.Warnf("dropping record: %v", err)
			continue
		}
		hs.appendToBatch(ctx, rec)
	}
}

func (hs *Service) flushLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(hs.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.flush(ctx)
		}
	}
}

func (hs *Service) appendToBatch(ctx context.Context, rec chronicle.DayRecord) {
	hs.batchMu.Lock()
	hs.batch = append(hs.batch, rec)
	full := len(hs.batch) >= hs.opts.BatchSize
	hs.batchMu.Unlock()

	if full {
		hs.flush(ctx)
	}
}

// flush writes the pending batch. A failed batch is put back for the next flush.
func (hs *Service) flush(ctx context.Context) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]chronicle.DayRecord, len(hs.batch))
	copy(batchCopy, hs.batch)

	if err := hs.store.InsertDayRecords(ctx, batchCopy); err != nil {
		hs.logger.Errorf("flush of %d records failed: %v", len(batchCopy), err)
		return
	}
	hs.batch = hs.batch[:0]
	hs.logger.Debugf("flushed %d day records", len(batchCopy))
}
