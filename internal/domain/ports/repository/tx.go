package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle owned by the storage implementation.
type Tx interface{}

// NoTX runs a repository call outside any transaction.
var NoTX Tx

// TransactionManager runs fn inside one storage transaction and passes the
// handle on as tx. Repositories called with that handle lock the rows they
// read, so a read-check-write sequence in fn is serialized per record.
// A non-nil error from fn rolls back every write fn made. Hooks queued with
// AfterCommit on fn's ctx run only after a successful commit.
//
// Repositories must accept a nil tx as the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks opens a hook scope for one transaction. The returned finish
// runs the queued hooks in order when committed is true and drops them otherwise.
func WithCommitHooks(ctx context.Context) (context.Context, func(committed bool)) {
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), func(committed bool) {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		if !committed {
			return
		}
		for _, fn := range fns {
			fn()
		}
	}
}

// AfterCommit queues fn until the surrounding transaction commits.
// Outside a hook scope fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

type cacheBypassKey struct{}

// WithoutCache marks reads made with ctx as needing the committed row,
// so caching decorators must go to storage.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheBypassKey{}, true)
}

func CacheBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(cacheBypassKey{}).(bool)
	return v
}
