package repository

import "context"

// ContentCounter exposes owned-entity counts from the template, collection
// and scheduling collaborators.
type ContentCounter interface {
	CountTemplates(ctx context.Context, accountID string) (int, error)
	CountCollections(ctx context.Context, accountID string) (int, error)
	CountScheduledPosts(ctx context.Context, accountID string) (int, error)
}
