//go:build !integration

package postgres

import (
	"context"
	"time"

	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	red "hookstudio/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerAccountRepo mocks the database repository that the Account decorator wraps.
type mockInnerAccountRepo struct {
	CreateFunc   func(ctx context.Context, tx repository.Tx, a *model.Account) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	UpdateFunc   func(ctx context.Context, tx repository.Tx, a *model.Account) error
}

func (m *mockInnerAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	return m.CreateFunc(ctx, tx, a)
}
func (m *mockInnerAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerAccountRepo) Update(ctx context.Context, tx repository.Tx, a *model.Account) error {
	return m.UpdateFunc(ctx, tx, a)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
