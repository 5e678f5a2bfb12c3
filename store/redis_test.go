package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/model"
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeRedis implements redisCache in memory and records deletions, so
// the cache layer can be exercised without a live server.
type fakeRedis struct {
	data    map[string]string
	deleted []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	f.deleted = append(f.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func newCachedEnv(t *testing.T) (*CachedStore, *MemoryStore, *fakeRedis) {
	t.Helper()
	ms := NewMemoryStore()
	fr := newFakeRedis()
	return &CachedStore{primary: ms, rdb: fr, ttl: time.Minute}, ms, fr
}

func testMarket(id string) *model.Market {
	return &model.Market{
		ID:        id,
		Title:     id,
		Liquidity: dec(100),
		YesShares: decimal.Zero,
		NoShares:  decimal.Zero,
		Price:     dec(0.5),
	}
}

func TestCachedStore_ReadThroughServesCache(t *testing.T) {
	cs, ms, _ := newCachedEnv(t)
	ctx := context.Background()

	// Seed the primary directly so the first cached read is a miss.
	if err := ms.CreateMarket(ctx, testMarket("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := cs.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Drift the primary behind the cache's back; the plain read path
	// should keep answering from the cached snapshot.
	m, _ := ms.GetMarket(ctx, "m1")
	m.YesShares = dec(9)
	if err := ms.SaveMarket(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := cs.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.YesShares.Equal(first.YesShares) {
		t.Errorf("expected the cached row, got yes_shares=%s", second.YesShares)
	}
}

func TestCachedStore_TxReadsBypassStaleCache(t *testing.T) {
	cs, ms, _ := newCachedEnv(t)
	ctx := context.Background()

	// CreateMarket populates the cache with the zero-share snapshot.
	if err := cs.CreateMarket(ctx, testMarket("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Advance the primary without going through the cache wrapper.
	m, _ := ms.GetMarket(ctx, "m1")
	m.YesShares = dec(50)
	if err := ms.SaveMarket(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, _ := cs.GetMarket(ctx, "m1")
	if !cached.YesShares.IsZero() {
		t.Fatalf("expected the stale cached snapshot, got yes_shares=%s", cached.YesShares)
	}

	// The transactional read path must see the primary's current row,
	// never the cached one.
	err := cs.WithTx(ctx, func(tx Tx) error {
		locked, err := tx.GetMarketForUpdate(ctx, "m1")
		if err != nil {
			return err
		}
		if !locked.YesShares.Equal(dec(50)) {
			t.Errorf("transactional read served stale state: yes_shares=%s", locked.YesShares)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCachedStore_WithTxInvalidatesSavedRows(t *testing.T) {
	cs, ms, fr := newCachedEnv(t)
	ctx := context.Background()

	if err := cs.CreateUser(ctx, &model.User{ID: "u1", Username: "u1", Balance: dec(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cs.CreateMarket(ctx, testMarket("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := cs.WithTx(ctx, func(tx Tx) error {
		u, err := tx.GetUserForUpdate(ctx, "u1")
		if err != nil {
			return err
		}
		u.Balance = dec(5)
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}

		m, err := tx.GetMarketForUpdate(ctx, "m1")
		if err != nil {
			return err
		}
		m.YesShares = dec(7)
		return tx.SaveMarket(ctx, m)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both dirtied keys dropped after commit, and only those.
	want := map[string]bool{userKey("u1"): true, marketKey("m1"): true}
	if len(fr.deleted) != 2 || !want[fr.deleted[0]] || !want[fr.deleted[1]] {
		t.Errorf("expected exactly the saved keys invalidated, got %v", fr.deleted)
	}

	// The next read misses the cache and serves the committed row.
	u, err := cs.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.Balance.Equal(dec(5)) {
		t.Errorf("expected committed balance 5, got %s", u.Balance)
	}

	fresh, _ := ms.GetUser(ctx, "u1")
	if !fresh.Balance.Equal(dec(5)) {
		t.Errorf("primary must hold the committed balance, got %s", fresh.Balance)
	}
}

func TestCachedStore_WithTxErrorSkipsInvalidation(t *testing.T) {
	cs, ms, fr := newCachedEnv(t)
	ctx := context.Background()

	if err := cs.CreateUser(ctx, &model.User{ID: "u1", Username: "u1", Balance: dec(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	err := cs.WithTx(ctx, func(tx Tx) error {
		u, err := tx.GetUserForUpdate(ctx, "u1")
		if err != nil {
			return err
		}
		u.Balance = dec(0)
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	// Nothing committed, so nothing is invalidated.
	if len(fr.deleted) != 0 {
		t.Errorf("rolled-back tx must not invalidate keys, deleted %v", fr.deleted)
	}
	fresh, _ := ms.GetUser(ctx, "u1")
	if !fresh.Balance.Equal(dec(100)) {
		t.Errorf("primary balance must roll back to 100, got %s", fresh.Balance)
	}
}

func TestCachedStore_SaveAndDeleteInvalidate(t *testing.T) {
	cs, _, fr := newCachedEnv(t)
	ctx := context.Background()

	if err := cs.CreateMarket(ctx, testMarket("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, _ := cs.GetMarket(ctx, "m1")
	m.YesShares = dec(3)
	if err := cs.SaveMarket(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, cached := fr.data[marketKey("m1")]; cached {
		t.Error("save must drop the cached row")
	}

	if err := cs.DeleteMarket(ctx, "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cs.GetMarket(ctx, "m1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
