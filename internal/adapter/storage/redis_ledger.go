package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/store-sim/internal/core/domain"
)

const stockKeyPrefix = "stock:"

const (
	scriptUnknownItem = -1
	scriptNegative    = -2
)

// reserveScript takes min(desired, current) units in one round trip.
var reserveScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return -1
end

current = tonumber(current)
if current < 0 then
	return -2
end

local take = math.min(tonumber(ARGV[1]), current)
if take > 0 then
	redis.call('DECRBY', KEYS[1], take)
end
return take
`)

var addScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('INCRBY', KEYS[1], ARGV[1])
`)

// RedisLedger keeps stock counters in Redis so several processes can share
// one ledger. The item set is fixed at construction.
type RedisLedger struct {
	client    redis.UniversalClient
	namespace string
	ids       []domain.ItemID
}

// NewRedisLedger seeds the catalog's stock counters under namespace and
// returns a ledger over them. Counters that already exist are left as they
// are, so a process joining a namespace sees the live stock rather than
// resetting it to the catalog's figures.
func NewRedisLedger(ctx context.Context, client redis.UniversalClient, namespace string, items []domain.Item) (*RedisLedger, error) {
	l := &RedisLedger{client: client, namespace: namespace}
	seen := make(map[domain.ItemID]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			return nil, domain.Inconsistent("duplicate item %d", it.ID)
		}
		if it.Stock < 0 {
			return nil, domain.Inconsistent("item %d starts with negative stock %d", it.ID, it.Stock)
		}
		seen[it.ID] = struct{}{}
		l.ids = append(l.ids, it.ID)
	}
	slices.Sort(l.ids)

	pipe := client.TxPipeline()
	for _, it := range items {
		pipe.SetNX(ctx, l.key(it.ID), it.Stock, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("init stock counters: %w", err)
	}
	return l, nil
}

func (l *RedisLedger) key(id domain.ItemID) string {
	return l.namespace + stockKeyPrefix + strconv.FormatInt(int64(id), 10)
}

func (l *RedisLedger) Reserve(ctx context.Context, itemID domain.ItemID, desired int) (int, error) {
	if desired <= 0 {
		if err := l.known(itemID); err != nil {
			return 0, err
		}
		return 0, &domain.InvalidAmountError{ItemID: itemID, Amount: desired}
	}

	taken, err := reserveScript.Run(ctx, l.client, []string{l.key(itemID)}, desired).Int()
	if err != nil {
		return 0, fmt.Errorf("reserve item %d: %w", itemID, err)
	}
	switch taken {
	case scriptUnknownItem:
		return 0, &domain.UnknownItemError{ItemID: itemID}
	case scriptNegative:
		return 0, domain.Inconsistent("item %d has negative stock", itemID)
	}
	return taken, nil
}

func (l *RedisLedger) Release(ctx context.Context, itemID domain.ItemID, quantity int) error {
	return l.add(ctx, itemID, quantity)
}

func (l *RedisLedger) Replenish(ctx context.Context, itemID domain.ItemID, amount int) error {
	return l.add(ctx, itemID, amount)
}

func (l *RedisLedger) add(ctx context.Context, itemID domain.ItemID, amount int) error {
	if amount <= 0 {
		if err := l.known(itemID); err != nil {
			return err
		}
		return &domain.InvalidAmountError{ItemID: itemID, Amount: amount}
	}
	res, err := addScript.Run(ctx, l.client, []string{l.key(itemID)}, amount).Int()
	if err != nil {
		return fmt.Errorf("add stock to item %d: %w", itemID, err)
	}
	if res == scriptUnknownItem {
		return &domain.UnknownItemError{ItemID: itemID}
	}
	return nil
}

func (l *RedisLedger) StockOf(ctx context.Context, itemID domain.ItemID) (int, error) {
	n, err := l.client.Get(ctx, l.key(itemID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, &domain.UnknownItemError{ItemID: itemID}
	}
	if err != nil {
		return 0, fmt.Errorf("get stock of item %d: %w", itemID, err)
	}
	return n, nil
}

func (l *RedisLedger) ItemsWithStock(ctx context.Context) ([]domain.ItemID, error) {
	return l.filter(ctx, func(n int) bool { return n > 0 })
}

func (l *RedisLedger) ItemsWithZeroStock(ctx context.Context) ([]domain.ItemID, error) {
	return l.filter(ctx, func(n int) bool { return n == 0 })
}

func (l *RedisLedger) filter(ctx context.Context, keep func(int) bool) ([]domain.ItemID, error) {
	if len(l.ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(l.ids))
	for i, id := range l.ids {
		keys[i] = l.key(id)
	}
	vals, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read stock counters: %w", err)
	}

	var out []domain.ItemID
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, domain.Inconsistent("stock counter for item %d is missing", l.ids[i])
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("parse stock of item %d: %w", l.ids[i], err)
		}
		if keep(n) {
			out = append(out, l.ids[i])
		}
	}
	return out, nil
}

func (l *RedisLedger) known(itemID domain.ItemID) error {
	if _, ok := slices.BinarySearch(l.ids, itemID); !ok {
		return &domain.UnknownItemError{ItemID: itemID}
	}
	return nil
}
