package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/foldline/market-ledger/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// WithTx emulates the database transaction boundary with copy-on-commit
// staging under a single mutex: the callback works against staged copies
// and nothing becomes visible unless it returns nil.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User
	markets map[string]*model.Market
	txs     []model.Transaction
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*model.User),
		markets: make(map[string]*model.Market),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username %s: %w", u.Username, model.ErrUsernameTaken)
		}
	}

	// Store a copy to avoid external mutation.
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUserLocked(s.users, u)
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	delete(s.users, id)

	// Cascade: drop the user's transactions, like the schema's
	// ON DELETE CASCADE.
	kept := s.txs[:0]
	for _, t := range s.txs {
		if t.UserID != id {
			kept = append(kept, t)
		}
	}
	s.txs = kept
	return nil
}

func saveUserLocked(users map[string]*model.User, u *model.User) error {
	if _, ok := users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrNotFound)
	}
	cp := *u
	users[u.ID] = &cp
	return nil
}

// --- Markets ---

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("market %s already exists", m.ID)
	}
	cp := copyMarket(m)
	s.markets[m.ID] = cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", id, model.ErrNotFound)
	}
	return copyMarket(m), nil
}

func (s *MemoryStore) SaveMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMarketLocked(s.markets, m)
}

func (s *MemoryStore) DeleteMarket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[id]; !ok {
		return fmt.Errorf("market %s: %w", id, model.ErrNotFound)
	}
	delete(s.markets, id)

	kept := s.txs[:0]
	for _, t := range s.txs {
		if t.MarketID != id {
			kept = append(kept, t)
		}
	}
	s.txs = kept
	return nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *copyMarket(m))
	}
	return markets, nil
}

func saveMarketLocked(markets map[string]*model.Market, m *model.Market) error {
	if _, ok := markets[m.ID]; !ok {
		return fmt.Errorf("market %s: %w", m.ID, model.ErrNotFound)
	}
	markets[m.ID] = copyMarket(m)
	return nil
}

// copyMarket deep-copies a market, including the resolution pointer, so
// staged and committed state never alias.
func copyMarket(m *model.Market) *model.Market {
	cp := *m
	if m.Resolution != nil {
		r := *m.Resolution
		cp.Resolution = &r
	}
	return &cp
}

// --- Transactions ---

func (s *MemoryStore) ListTransactionsByMarket(_ context.Context, marketID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterTxs(s.txs, func(t model.Transaction) bool { return t.MarketID == marketID }), nil
}

func (s *MemoryStore) ListTransactionsByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterTxs(s.txs, func(t model.Transaction) bool { return t.UserID == userID }), nil
}

func filterTxs(txs []model.Transaction, keep func(model.Transaction) bool) []model.Transaction {
	var result []model.Transaction
	for _, t := range txs {
		if keep(t) {
			result = append(result, t)
		}
	}
	return result
}

// --- Transaction boundary ---

// WithTx serializes on the store mutex and stages all writes; they are
// applied only if fn returns nil.
func (s *MemoryStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mt := &memoryTx{
		store:   s,
		users:   make(map[string]*model.User),
		markets: make(map[string]*model.Market),
	}
	if err := fn(mt); err != nil {
		return err
	}

	// Commit staged writes.
	for id, u := range mt.users {
		s.users[id] = u
	}
	for id, m := range mt.markets {
		s.markets[id] = m
	}
	s.txs = append(s.txs, mt.created...)
	return nil
}

// memoryTx is the staged view handed to WithTx callbacks. Reads fall
// through to committed state when a row has not been staged yet.
type memoryTx struct {
	store   *MemoryStore
	users   map[string]*model.User
	markets map[string]*model.Market
	created []model.Transaction
}

func (t *memoryTx) GetUserForUpdate(_ context.Context, id string) (*model.User, error) {
	if u, ok := t.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	u, ok := t.store.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (t *memoryTx) SaveUser(_ context.Context, u *model.User) error {
	if _, staged := t.users[u.ID]; !staged {
		if _, ok := t.store.users[u.ID]; !ok {
			return fmt.Errorf("user %s: %w", u.ID, model.ErrNotFound)
		}
	}
	cp := *u
	t.users[u.ID] = &cp
	return nil
}

func (t *memoryTx) GetMarketForUpdate(_ context.Context, id string) (*model.Market, error) {
	if m, ok := t.markets[id]; ok {
		return copyMarket(m), nil
	}
	m, ok := t.store.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", id, model.ErrNotFound)
	}
	return copyMarket(m), nil
}

func (t *memoryTx) SaveMarket(_ context.Context, m *model.Market) error {
	if _, staged := t.markets[m.ID]; !staged {
		if _, ok := t.store.markets[m.ID]; !ok {
			return fmt.Errorf("market %s: %w", m.ID, model.ErrNotFound)
		}
	}
	t.markets[m.ID] = copyMarket(m)
	return nil
}

func (t *memoryTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	t.created = append(t.created, *tr)
	return nil
}

func (t *memoryTx) ListTransactionsByMarket(_ context.Context, marketID string) ([]model.Transaction, error) {
	result := filterTxs(t.store.txs, func(tx model.Transaction) bool { return tx.MarketID == marketID })
	for _, tx := range t.created {
		if tx.MarketID == marketID {
			result = append(result, tx)
		}
	}
	return result, nil
}
