package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// setIfNewer writes balance and version only when the cached version is older.
// KEYS[1] = key, ARGV[1] = balance, ARGV[2] = version, ARGV[3] = ttl in ms (0 = none).
var setIfNewer = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'b', ARGV[1], 'v', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// BalanceCache implements ports.BalanceCache using Redis.
// Each account is a hash {b: balance as decimal string, v: account version}.
type BalanceCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewBalanceCache creates a new Redis-backed balance cache. A zero ttl keeps entries until deleted.
func NewBalanceCache(client *goredis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
		ttl:    ttl,
	}
}

// Get returns the cached balance, or nil, nil if the key does not exist.
func (c *BalanceCache) Get(ctx context.Context, accountID string) (*decimal.Decimal, error) {
	val, err := c.client.HGet(ctx, c.prefix+accountID, "b").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		return nil, fmt.Errorf("redis balance decode %q: %w", val, err)
	}
	return &balance, nil
}

// Set stores the balance of the given account version. An entry for the same or a newer
// version is left untouched, so a slow reader cannot overwrite a committed balance.
func (c *BalanceCache) Set(ctx context.Context, accountID string, balance decimal.Decimal, version int64) error {
	err := setIfNewer.Run(ctx, c.client,
		[]string{c.prefix + accountID},
		balance.String(), version, c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

// Delete removes cached balances. Missing keys are not an error.
func (c *BalanceCache) Delete(ctx context.Context, accountIDs ...string) error {
	if len(accountIDs) == 0 {
		return nil
	}
	keys := make([]string, len(accountIDs))
	for i, id := range accountIDs {
		keys[i] = c.prefix + id
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis balance delete: %w", err)
	}
	return nil
}
