package worker

// retry_cron.go
// Background goroutine that periodically moves dead-lettered sale events back
// onto their queue while they still have replay budget. Entries over budget
// stay in the DLQ for manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
	// MaxReplays bounds how many times one job goes back through the pool.
	MaxReplays = 3
)

// RetryCronConfig holds all dependencies for the replay goroutine.
type RetryCronConfig struct {
	RDB   *redis.Client
	Queue string
}

// StartRetryCron ticks every 30s and replays up to retryBatchSize entries.
// It respects ctx for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Queue == "" {
		cfg.Queue = QueueSaleEvents
	}
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Str("queue", cfg.Queue).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				replayDLQ(ctx, cfg)
			}
		}
	}()
}

func replayDLQ(ctx context.Context, cfg RetryCronConfig) {
	dlqKey := DLQPrefix + cfg.Queue
	parkedKey := dlqKey + ":parked"
	replayed := 0

	for i := 0; i < retryBatchSize; i++ {
		raw, err := cfg.RDB.RPop(ctx, dlqKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: failed to read DLQ")
			return
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Msg("retry_cron: unreadable DLQ entry, parking")
			_ = cfg.RDB.LPush(ctx, parkedKey, raw).Err()
			continue
		}

		job, ok := replayable(entry)
		if !ok {
			_ = cfg.RDB.LPush(ctx, parkedKey, raw).Err()
			log.Warn().Str("job_type", entry.Job.Type).Int("attempts", entry.Job.Attempts).
				Msg("retry_cron: replay budget exhausted, parked")
			continue
		}
		encoded, err := json.Marshal(job)
		if err != nil {
			continue
		}
		if err := cfg.RDB.LPush(ctx, entry.OriginalQueue, encoded).Err(); err != nil {
			// put it back; next tick retries
			_ = cfg.RDB.RPush(ctx, dlqKey, raw).Err()
			log.Error().Err(err).Msg("retry_cron: failed to requeue job")
			return
		}
		replayed++
	}

	if replayed > 0 {
		log.Info().Int("count", replayed).Str("queue", cfg.Queue).Msg("retry_cron: replayed dead-lettered jobs")
	}
}

// replayable reports whether entry still has replay budget. Attempts carry
// over so the budget spans every pass through the pool.
func replayable(entry DLQEntry) (Job, bool) {
	if entry.Job.Type == "" || entry.Job.Type == "invalid" {
		return Job{}, false
	}
	if entry.Job.Attempts >= maxJobAttempts*MaxReplays {
		return Job{}, false
	}
	return entry.Job, true
}
