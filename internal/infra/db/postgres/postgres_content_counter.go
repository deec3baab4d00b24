package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"hookstudio/internal/domain/ports/repository"
)

var _ repository.ContentCounter = (*ContentCounter)(nil)

// ContentCounter reads owned-entity counts from tables maintained by the
// template, collection and scheduling services.
type ContentCounter struct {
	pool *pgxpool.Pool
}

func NewContentCounter(pool *pgxpool.Pool) *ContentCounter {
	return &ContentCounter{pool: pool}
}

func (c *ContentCounter) CountTemplates(ctx context.Context, accountID string) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM templates WHERE owner_id=$1;`, accountID)
}

func (c *ContentCounter) CountCollections(ctx context.Context, accountID string) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM collections WHERE owner_id=$1;`, accountID)
}

func (c *ContentCounter) CountScheduledPosts(ctx context.Context, accountID string) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM scheduled_posts WHERE owner_id=$1;`, accountID)
}

func (c *ContentCounter) count(ctx context.Context, q, accountID string) (int, error) {
	var n int
	if err := pickRow(ctx, c.pool, repository.NoTX, q, accountID).Scan(&n); err != nil {
		return 0, mapError("count content", err)
	}
	return n, nil
}
