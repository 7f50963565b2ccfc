package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gestorpos/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const saleCacheTTL = 5 * time.Minute

// SaleCache keeps committed sales in Redis under both their id and their
// (owner, code) keys. Entries are evicted by the sale event worker.
type SaleCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSaleCache(rdb *redis.Client) *SaleCache {
	return &SaleCache{rdb: rdb, ttl: saleCacheTTL}
}

func saleIDKey(owner string, id uuid.UUID) string {
	return fmt.Sprintf("sales:%s:id:%s", owner, id)
}

func saleCodeKey(owner string, code int64) string {
	return fmt.Sprintf("sales:%s:code:%d", owner, code)
}

func saleVersionKey(owner string) string {
	return fmt.Sprintf("sales:%s:version", owner)
}

var errStaleSale = errors.New("sale cache: generation moved")

// GetByID returns the cached sale, or false on a miss or any Redis error.
func (c *SaleCache) GetByID(ctx context.Context, owner string, id uuid.UUID) (*model.Sale, bool) {
	return c.get(ctx, saleIDKey(owner, id))
}

func (c *SaleCache) GetByCode(ctx context.Context, owner string, code int64) (*model.Sale, bool) {
	return c.get(ctx, saleCodeKey(owner, code))
}

func (c *SaleCache) get(ctx context.Context, key string) (*model.Sale, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("sale cache: read failed")
		}
		return nil, false
	}
	var sale model.Sale
	if err := json.Unmarshal(raw, &sale); err != nil {
		return nil, false
	}
	return &sale, true
}

// Version returns the owner's cache generation, -1 when Redis is unreachable.
// Evict bumps it, so a Set carrying an older generation is dropped.
func (c *SaleCache) Version(ctx context.Context, owner string) int64 {
	v, err := c.rdb.Get(ctx, saleVersionKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("sale cache: version read failed")
		return -1
	}
	return v
}

// Set stores sale under both keys unless the owner's generation moved past
// version. Failures are logged and ignored.
func (c *SaleCache) Set(ctx context.Context, sale *model.Sale, version int64) {
	if version < 0 {
		return
	}
	data, err := json.Marshal(sale)
	if err != nil {
		return
	}
	vkey := saleVersionKey(sale.Owner)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleSale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, saleIDKey(sale.Owner, sale.ID), data, c.ttl)
			pipe.Set(ctx, saleCodeKey(sale.Owner, sale.Code), data, c.ttl)
			return nil
		})
		return err
	}, vkey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleSale), errors.Is(err, redis.TxFailedErr):
		log.Debug().Int64("sale_code", sale.Code).Msg("sale cache: stale write skipped")
	default:
		log.Warn().Err(err).Int64("sale_code", sale.Code).Msg("sale cache: write failed")
	}
}

// Evict drops both keys and bumps the owner's generation in one transaction.
func (c *SaleCache) Evict(ctx context.Context, owner string, id uuid.UUID, code int64) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, saleIDKey(owner, id), saleCodeKey(owner, code))
		pipe.Incr(ctx, saleVersionKey(owner))
		return nil
	})
	return err
}
