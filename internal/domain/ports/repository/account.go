package repository

import (
	"context"

	"hookstudio/internal/domain/model"
)

// AccountRepository persists Account aggregates.
type AccountRepository interface {
	// Create inserts a new account; ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, tx Tx, a *model.Account) error
	// FindByID loads an account. Inside a transaction the row is locked for update.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	// Update writes the whole account if its stored version still equals a.Version,
	// then bumps a.Version. A lost race returns domain.ErrConcurrencyConflict.
	Update(ctx context.Context, tx Tx, a *model.Account) error
}
