package usecase

import (
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"hookstudio/internal/domain"
	"hookstudio/internal/infra/metrics"
)

// rowLockTx is used for every read-check-write unit: rows read through the tx
// are locked, so ReadCommitted is enough.
var rowLockTx = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// retryOnConflict runs fn a second time when the first attempt lost a
// compare-and-set race. A second conflict is returned to the caller.
func retryOnConflict(log *zerolog.Logger, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	metrics.IncConcurrencyConflict(op)
	log.Debug().Str("op", op).Msg("concurrency conflict, retrying once")

	err = fn()
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		metrics.IncConcurrencyConflict(op)
	}
	return err
}
