package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foldline/market-ledger/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for market and user lookups. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary.
//
// The cache never participates in the transaction boundary: WithTx
// callbacks read fresh, row-locked state from the primary, so a stale
// cached market cannot enter a trade or resolution computation. The
// wrapper only records which rows a committed transaction wrote and
// drops their keys afterwards.
type CachedStore struct {
	primary Store
	rdb     redisCache
	ttl     time.Duration
}

// redisCache is the slice of the redis client the cache layer uses.
type redisCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.primary.CreateUser(ctx, u); err != nil {
		return err
	}
	s.cacheSet(ctx, userKey(u.ID), u)
	return nil
}

func (s *CachedStore) SaveUser(ctx context.Context, u *model.User) error {
	if err := s.primary.SaveUser(ctx, u); err != nil {
		return err
	}
	s.rdb.Del(ctx, userKey(u.ID))
	return nil
}

func (s *CachedStore) DeleteUser(ctx context.Context, id string) error {
	if err := s.primary.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, userKey(id))
	return nil
}

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheSet(ctx, marketKey(m.ID), m)
	return nil
}

func (s *CachedStore) SaveMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.SaveMarket(ctx, m); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(m.ID))
	return nil
}

func (s *CachedStore) DeleteMarket(ctx context.Context, id string) error {
	if err := s.primary.DeleteMarket(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if s.cacheGet(ctx, userKey(id), &u) {
		return &u, nil
	}

	fresh, err := s.primary.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, userKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	var m model.Market
	if s.cacheGet(ctx, marketKey(id), &m) {
		return &m, nil
	}

	fresh, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, marketKey(id), fresh)
	return fresh, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error) {
	return s.primary.ListTransactionsByMarket(ctx, marketID)
}

func (s *CachedStore) ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.primary.ListTransactionsByUser(ctx, userID)
}

// --- Transaction boundary ---

// WithTx delegates to the primary store and, after a successful commit,
// invalidates the cache keys of every row the callback saved.
func (s *CachedStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var touched []string

	err := s.primary.WithTx(ctx, func(tx Tx) error {
		rec := &recordingTx{Tx: tx}
		if err := fn(rec); err != nil {
			return err
		}
		touched = rec.keys
		return nil
	})
	if err != nil {
		return err
	}

	if len(touched) > 0 {
		s.rdb.Del(ctx, touched...)
	}
	return nil
}

// recordingTx passes everything through to the wrapped Tx while noting
// which cache keys the writes dirty.
type recordingTx struct {
	Tx
	keys []string
}

func (t *recordingTx) SaveUser(ctx context.Context, u *model.User) error {
	if err := t.Tx.SaveUser(ctx, u); err != nil {
		return err
	}
	t.keys = append(t.keys, userKey(u.ID))
	return nil
}

func (t *recordingTx) SaveMarket(ctx context.Context, m *model.Market) error {
	if err := t.Tx.SaveMarket(ctx, m); err != nil {
		return err
	}
	t.keys = append(t.keys, marketKey(m.ID))
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheSet(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) cacheGet(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func marketKey(id string) string { return fmt.Sprintf("market:%s", id) }
func userKey(id string) string   { return fmt.Sprintf("user:%s", id) }
