package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gestorpos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueSaleEvents = "jobs:sale_events"

	JobSaleSettled = "sale.settled"

	maxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// Handler processes the payload of one job type.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// WorkerHandlers routes job types to their handlers.
type WorkerHandlers map[string]Handler

// Dispatcher enqueues async jobs into Redis lists. Publishing goes through a
// circuit breaker so a Redis outage fails fast instead of stalling requests.
type Dispatcher struct {
	rdb *redis.Client
	cb  *infra.CircuitBreaker
}

func NewDispatcher(rdb *redis.Client, cb *infra.CircuitBreaker) *Dispatcher {
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig())
	}
	return &Dispatcher{rdb: rdb, cb: cb}
}

// EnqueueSaleEvent pushes a sale.settled job.
func (d *Dispatcher) EnqueueSaleEvent(ctx context.Context, ev SaleEvent) error {
	return d.enqueue(ctx, QueueSaleEvents, JobSaleSettled, ev)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.cb.Execute(func() error {
		return d.rdb.LPush(ctx, queue, encoded).Err()
	})
}

// StartWorkerPool launches numWorkers goroutines consuming the sale event
// queue. Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers WorkerHandlers, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueSaleEvents).Result()
			if err != nil || len(result) < 2 {
				continue
			}
			job, err := processJob(ctx, handlers, result[1])
			if err != nil {
				SendToDLQ(ctx, rdb, result[0], job, err.Error())
			}
		}
	}
}

var errUnknownJob = errors.New("no handler registered for job type")

// processJob decodes raw and runs the matching handler with retries. The
// decoded job is returned so a failure can be dead-lettered as is.
func processJob(ctx context.Context, handlers WorkerHandlers, raw string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal job")
		return Job{Type: "invalid", Payload: json.RawMessage(raw)}, err
	}
	h, ok := handlers[job.Type]
	if !ok {
		return job, errUnknownJob
	}
	err := withRetry(ctx, maxJobAttempts, func(attempt int) error {
		job.Attempts++
		return h.Process(ctx, job.Payload)
	})
	if err != nil {
		log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed")
		return job, err
	}
	log.Debug().Str("type", job.Type).Msg("job processed")
	return job, nil
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// (immediate, 1s, 2s …). Returns the last error when every attempt fails.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * retryUnit
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// retryUnit is the base backoff; tests shrink it.
var retryUnit = time.Second
