package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/infra/metrics"
	red "hookstudio/internal/infra/redis"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

// CodeSpec describes a code to create. An empty Code is generated.
type CodeSpec struct {
	Code      string
	Type      model.CodeType
	Value     int64
	Plan      model.Plan
	MaxUses   int
	ExpiresAt *time.Time
	CreatedBy string
}

type RedemptionUseCase interface {
	// Redeem applies the code's benefit and consumes one use as a single unit.
	Redeem(ctx context.Context, accountID, rawCode string, now time.Time) (*model.RedemptionResult, error)
	CreateCode(ctx context.Context, spec CodeSpec, now time.Time) (*model.RedemptionCode, error)
}

type redemptionUC struct {
	codes   repository.RedemptionCodeRepository
	ledger  LedgerUseCase
	tm      repository.TransactionManager
	locker  red.Locker // optional
	lockTTL time.Duration
	log     *zerolog.Logger
	dev     bool
}

func NewRedemptionUseCase(
	codes repository.RedemptionCodeRepository,
	ledger LedgerUseCase,
	tm repository.TransactionManager,
	locker red.Locker,
	lockTTL time.Duration,
	logger *zerolog.Logger,
	dev bool,
) *redemptionUC {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &redemptionUC{
		codes:   codes,
		ledger:  ledger,
		tm:      tm,
		locker:  locker,
		lockTTL: lockTTL,
		log:     logger,
		dev:     dev,
	}
}

func (uc *redemptionUC) Redeem(ctx context.Context, accountID, rawCode string, now time.Time) (*model.RedemptionResult, error) {
	defer logging.TraceDuration(uc.log, "RedemptionUC.Redeem")()

	code := model.NormalizeCode(rawCode)
	if accountID == "" || code == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := uc.log.With().Str("account_id", accountID).Str("code", logging.Redact(code, uc.dev)).Logger()

	if uc.locker != nil {
		key := red.RedeemLockKey(accountID, code)
		token, err := uc.locker.TryLock(ctx, key, uc.lockTTL)
		switch {
		case err == nil:
			defer func() {
				if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("release redeem lock failed")
				}
			}()
		case errors.Is(err, domain.ErrConcurrencyConflict):
			metrics.IncRedemption("", domain.Reason(err))
			return nil, err
		default:
			// the row locks below still serialize the attempt
			log.Warn().Err(err).Msg("redeem lock unavailable")
		}
	}

	var (
		res      *model.RedemptionResult
		codeType string
	)
	err := retryOnConflict(uc.log, "redeem", func() error {
		return uc.tm.WithTx(ctx, rowLockTx, func(ctx context.Context, tx repository.Tx) error {
			c, err := uc.codes.FindByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			codeType = string(c.Type)
			if err := c.Validate(accountID, now); err != nil {
				return err
			}
			a, err := uc.ledger.ApplyBenefit(ctx, tx, accountID, c.Benefit(), now)
			if err != nil {
				return err
			}
			if err := uc.codes.ConsumeUse(ctx, tx, c.ID, accountID); err != nil {
				return err
			}
			res = &model.RedemptionResult{Type: c.Type, Value: c.Value, Account: a.View(now)}
			return nil
		})
	})
	if err != nil {
		metrics.IncRedemption(codeType, domain.Reason(err))
		if errors.Is(err, domain.ErrRedemptionInvalid) || errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("reason", domain.Reason(err)).Msg("redemption rejected")
		} else {
			log.Error().Err(err).Msg("redemption failed")
		}
		return nil, err
	}

	metrics.IncRedemption(string(res.Type), "success")
	log.Info().Str("type", string(res.Type)).Int64("value", res.Value).Msg("code redeemed")
	return res, nil
}

func (uc *redemptionUC) CreateCode(ctx context.Context, spec CodeSpec, now time.Time) (*model.RedemptionCode, error) {
	defer logging.TraceDuration(uc.log, "RedemptionUC.CreateCode")()

	raw := spec.Code
	if strings.TrimSpace(raw) == "" {
		var err error
		if raw, err = generateCode(); err != nil {
			return nil, err
		}
	}
	c, err := model.NewRedemptionCode(raw, spec.Type, spec.Value, spec.Plan, spec.MaxUses, spec.ExpiresAt, spec.CreatedBy, now)
	if err != nil {
		return nil, err
	}
	if err := uc.codes.Create(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	uc.log.Info().Str("code", logging.Redact(c.Code, uc.dev)).Str("type", string(c.Type)).Int("max_uses", c.MaxUses).Msg("redemption code created")
	return c, nil
}

// codeAlphabet avoids look-alike characters such as O/0 and I/1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateCode returns a random code formatted XXXX-XXXX-XXXX.
func generateCode() (string, error) {
	var b strings.Builder
	n := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < 12; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		k, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[k.Int64()])
	}
	return b.String(), nil
}
