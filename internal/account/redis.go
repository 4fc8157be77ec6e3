package account

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisAccountsKey = "reserve:accounts"

func redisHoldingsKey(id ID) string {
	return fmt.Sprintf("reserve:holdings:{%s}", id)
}

func redisField(key Key) string {
	return key.World + "|" + key.Currency
}

// RedisPersister writes account snapshots to Redis: one hash of balances per
// account plus a set of known account ids.
type RedisPersister struct {
	rdb redis.UniversalClient
}

// NewRedisPersister constructs a Redis-backed durability hook.
func NewRedisPersister(rdb redis.UniversalClient) *RedisPersister {
	return &RedisPersister{rdb: rdb}
}

// Persist applies the snapshot inside a MULTI/EXEC block.
func (p *RedisPersister) Persist(ctx context.Context, snap Snapshot) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := redisHoldingsKey(snap.Account)
		if snap.Deleted {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, redisAccountsKey, snap.Account.String())
			return nil
		}
		if snap.Created {
			pipe.SAdd(ctx, redisAccountsKey, snap.Account.String())
		}
		for k, amount := range snap.Balances {
			pipe.HSet(ctx, key, redisField(k), amount.String())
		}
		return nil
	})
	return err
}
