package worker

// sale_event_worker.go
// Processes sale.settled jobs from QueueSaleEvents: drops the cached copies of
// the sale so reads see the committed document.

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SaleEvent is the payload of a sale.settled job.
type SaleEvent struct {
	Owner     string    `json:"owner"`
	SaleID    uuid.UUID `json:"sale_id"`
	Code      int64     `json:"code"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
}

// SaleCacheEvicter removes cached sales.
type SaleCacheEvicter interface {
	Evict(ctx context.Context, owner string, id uuid.UUID, code int64) error
}

type SaleEventWorker struct {
	cache SaleCacheEvicter
}

func NewSaleEventWorker(cache SaleCacheEvicter) *SaleEventWorker {
	return &SaleEventWorker{cache: cache}
}

func (w *SaleEventWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var ev SaleEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if ev.Owner == "" || ev.Code == 0 {
		return errors.New("sale_event_worker: owner and code are required")
	}
	if err := w.cache.Evict(ctx, ev.Owner, ev.SaleID, ev.Code); err != nil {
		return err
	}
	log.Debug().
		Str("owner", ev.Owner).
		Int64("sale_code", ev.Code).
		Str("operation", ev.Operation).
		Msg("sale_event_worker: cache evicted")
	return nil
}
