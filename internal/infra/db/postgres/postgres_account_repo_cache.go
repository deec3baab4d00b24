package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	"hookstudio/internal/infra/metrics"
	red "hookstudio/internal/infra/redis"
)

var _ repository.AccountRepository = (*accountRepoCacheDecorator)(nil)

// accountRepoCacheDecorator caches non-transactional reads. Reads inside a
// transaction, or with repository.WithoutCache, always go to the database.
// Writes drop the key once their transaction commits.
type accountRepoCacheDecorator struct {
	inner  repository.AccountRepository
	cache  red.RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
	group  singleflight.Group
}

func NewAccountRepoCacheDecorator(inner repository.AccountRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.AccountRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &accountRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func accountKey(id string) string { return fmt.Sprintf("account:id:%s", id) }

func (d *accountRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if err := d.inner.Create(ctx, tx, a); err != nil {
		return err
	}
	d.invalidateAfterCommit(ctx, a.ID)
	return nil
}

func (d *accountRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if inTx(tx) || repository.CacheBypassed(ctx) {
		metrics.IncCacheRequest("account", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}

	key := accountKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var a model.Account
		if json.Unmarshal([]byte(val), &a) == nil {
			metrics.IncCacheRequest("account", "hit")
			return &a, nil
		}
	} else if !red.IsMiss(err) {
		d.logger.Warn().Err(err).Str("key", key).Msg("account cache read failed")
	}

	metrics.IncCacheRequest("account", "miss")
	// concurrent misses for one id share a single database read
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		// waiters share this read, so one caller's cancellation must not fail the rest
		ctx := context.WithoutCancel(ctx)
		a, err := d.inner.FindByID(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(a); err == nil {
			_ = d.cache.Set(ctx, key, b, d.ttl)
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Account).Clone(), nil
}

func (d *accountRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if err := d.inner.Update(ctx, tx, a); err != nil {
		return err
	}
	d.invalidateAfterCommit(ctx, a.ID)
	return nil
}

// invalidateAfterCommit drops the key once the write is visible to other readers.
func (d *accountRepoCacheDecorator) invalidateAfterCommit(ctx context.Context, id string) {
	repository.AfterCommit(ctx, func() {
		if err := d.cache.Del(context.WithoutCancel(ctx), accountKey(id)); err != nil {
			d.logger.Warn().Err(err).Str("account_id", id).Msg("account cache invalidation failed")
		}
	})
}
