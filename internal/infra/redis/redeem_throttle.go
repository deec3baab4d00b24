package redis

import (
	"context"
	"fmt"
	"time"
)

// RedeemBudget is what is left of an account's redemption attempts in the current window.
type RedeemBudget struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // time until the window rolls over
}

// RedeemThrottle caps code redemption attempts per account.
// Windows are aligned to multiples of the window length, so every replica
// agrees on where a window ends without reading the key's TTL.
type RedeemThrottle struct {
	client RedisClient
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedeemThrottle(client RedisClient, limit int, window time.Duration) *RedeemThrottle {
	if window <= 0 {
		window = time.Minute
	}
	return &RedeemThrottle{client: client, limit: limit, window: window, now: time.Now}
}

// Attempt records one redemption attempt by accountID.
// A non-positive limit disables the throttle.
func (t *RedeemThrottle) Attempt(ctx context.Context, accountID string) (RedeemBudget, error) {
	if t.limit <= 0 {
		return RedeemBudget{Allowed: true, Remaining: -1}, nil
	}

	now := t.now().UTC()
	start := now.Truncate(t.window)
	left := start.Add(t.window).Sub(now)
	key := redeemAttemptKey(accountID, start)

	count, err := t.client.Incr(ctx, key)
	if err != nil {
		return RedeemBudget{}, err
	}
	if count == 1 {
		// the key outlives its window slightly so a late Incr never resurrects it
		if err := t.client.Expire(ctx, key, left+time.Second); err != nil {
			return RedeemBudget{}, err
		}
	}

	if count > int64(t.limit) {
		return RedeemBudget{Allowed: false, RetryAfter: left}, nil
	}
	return RedeemBudget{Allowed: true, Remaining: t.limit - int(count), RetryAfter: left}, nil
}

func redeemAttemptKey(accountID string, windowStart time.Time) string {
	return fmt.Sprintf("rate_limit:redeem:%s:%d", accountID, windowStart.Unix())
}
