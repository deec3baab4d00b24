package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
)

var _ repository.RedemptionCodeRepository = (*RedemptionCodeRepo)(nil)

type RedemptionCodeRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionCodeRepo(pool *pgxpool.Pool) *RedemptionCodeRepo {
	return &RedemptionCodeRepo{pool: pool}
}

func (r *RedemptionCodeRepo) Create(ctx context.Context, tx repository.Tx, c *model.RedemptionCode) error {
	const q = `
INSERT INTO redemption_codes (
  id, code, type, value, plan, max_uses, used_count, used_by, is_active, expires_at, created_by, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	usedBy := c.UsedBy
	if usedBy == nil {
		usedBy = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.Code, c.Type, c.Value, nullablePlan(c.Plan), c.MaxUses, c.UsedCount, usedBy,
		c.IsActive, c.ExpiresAt, c.CreatedBy, c.CreatedAt)
	return mapError("create redemption code", err)
}

func (r *RedemptionCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionCode, error) {
	q := `
SELECT id, code, type, value, plan, max_uses, used_count, used_by, is_active, expires_at, created_by, created_at
  FROM redemption_codes WHERE code=$1` + forUpdate(tx)
	var (
		c    model.RedemptionCode
		plan *string
	)
	if err := pickRow(ctx, r.pool, tx, q, model.NormalizeCode(code)).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &plan, &c.MaxUses, &c.UsedCount, &c.UsedBy,
		&c.IsActive, &c.ExpiresAt, &c.CreatedBy, &c.CreatedAt,
	); err != nil {
		return nil, mapError("find redemption code", err)
	}
	if plan != nil {
		c.Plan = model.Plan(*plan)
	}
	c.CreatedAt = c.CreatedAt.In(model.CanonicalZone)
	if c.ExpiresAt != nil {
		t := c.ExpiresAt.In(model.CanonicalZone)
		c.ExpiresAt = &t
	}
	return &c, nil
}

// ConsumeUse increments used_count only while uses remain and accountID is not
// in used_by yet; the condition and the write are one statement.
func (r *RedemptionCodeRepo) ConsumeUse(ctx context.Context, tx repository.Tx, codeID, accountID string) error {
	const q = `
UPDATE redemption_codes
   SET used_count = used_count + 1, used_by = array_append(used_by, $2::text)
 WHERE id=$1 AND used_count < max_uses AND NOT ($2::text = ANY(used_by));`
	tag, err := execSQL(ctx, r.pool, tx, q, codeID, accountID)
	if err != nil {
		return mapError("consume redemption code", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	const why = `SELECT used_count >= max_uses, $2::text = ANY(used_by) FROM redemption_codes WHERE id=$1;`
	var exhausted, used bool
	if err := pickRow(ctx, r.pool, tx, why, codeID, accountID).Scan(&exhausted, &used); err != nil {
		return mapError("consume redemption code", err)
	}
	switch {
	case exhausted:
		return domain.ErrCodeExhausted
	case used:
		return domain.ErrCodeAlreadyUsed
	default:
		return domain.ErrConcurrencyConflict
	}
}
