// Package ledger implements the transactional settlement engine on top
// of the LMSR pricing engine: buying exposure, resolving markets, and
// crediting payouts, each as an all-or-nothing operation against the
// persistence collaborator.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/lmsr"
	"github.com/foldline/market-ledger/metrics"
	"github.com/foldline/market-ledger/model"
	"github.com/foldline/market-ledger/store"
)

// Engine orchestrates trades and resolutions. Serializability per market
// comes from the store's transaction boundary: both mutating operations
// lock the market row first and hold it until commit, so two trades on
// the same market, or a trade racing a resolution, never interleave
// their read-modify-write.
type Engine struct {
	store store.Store
}

// NewEngine creates a settlement engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// CreateUser registers a new user with a non-negative starting balance.
func (e *Engine) CreateUser(ctx context.Context, username string, balance decimal.Decimal) (*model.User, error) {
	if balance.IsNegative() {
		return nil, model.ErrInvalidBalance
	}

	u := &model.User{
		ID:       uuid.New().String(),
		Username: username,
		Balance:  balance,
	}
	if err := e.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	slog.Info("user created", "id", u.ID, "username", username)
	return u, nil
}

// CreateMarket opens a new market with the given liquidity parameter.
// Shares start at zero, so the implied probability starts at 0.5.
func (e *Engine) CreateMarket(ctx context.Context, title, description string, liquidity decimal.Decimal) (*model.Market, error) {
	mm, err := lmsr.NewMarketMaker(liquidity)
	if err != nil {
		return nil, err
	}
	price, err := mm.Price(decimal.Zero, decimal.Zero)
	if err != nil {
		return nil, err
	}

	m := &model.Market{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Liquidity:   liquidity,
		YesShares:   decimal.Zero,
		NoShares:    decimal.Zero,
		Price:       price,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateMarket(ctx, m); err != nil {
		return nil, err
	}

	metrics.OpenMarkets.Inc()
	slog.Info("market created",
		"id", m.ID,
		"title", title,
		"liquidity", liquidity.String(),
	)
	return m, nil
}

// ExecuteTrade buys amount shares on the given side for the given user.
// It validates everything before the first write: the amount must be
// positive, the market open, and the user's balance must cover the LMSR
// cost. The transaction record, the balance debit, and the share/price
// update then commit together or not at all.
func (e *Engine) ExecuteTrade(ctx context.Context, userID, marketID string, side model.Side, amount decimal.Decimal) (*model.Transaction, decimal.Decimal, error) {
	if !side.Valid() {
		return nil, decimal.Decimal{}, model.ErrInvalidSide
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, decimal.Decimal{}, model.ErrInvalidAmount
	}

	start := time.Now()
	var (
		entry *model.Transaction
		cost  decimal.Decimal
	)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		market, err := tx.GetMarketForUpdate(ctx, marketID)
		if err != nil {
			return err
		}
		if market.Resolved() {
			return fmt.Errorf("market %s: %w", marketID, model.ErrMarketResolved)
		}

		user, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		cost, err = lmsr.SimulateCost(amount, side, market)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(cost) {
			return fmt.Errorf("user %s needs %s: %w", userID, cost, model.ErrInsufficientBalance)
		}

		entry = &model.Transaction{
			ID:        uuid.New().String(),
			UserID:    userID,
			MarketID:  marketID,
			Side:      side,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.CreateTransaction(ctx, entry); err != nil {
			return err
		}

		user.Balance = user.Balance.Sub(cost)
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}

		if side == model.SideYes {
			market.YesShares = market.YesShares.Add(amount)
		} else {
			market.NoShares = market.NoShares.Add(amount)
		}
		// The cached price is derived state: recompute it from the new
		// share vector on every mutation.
		market.Price, err = lmsr.CurrentPrice(market)
		if err != nil {
			return err
		}
		return tx.SaveMarket(ctx, market)
	})
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			metrics.TradeRejections.WithLabelValues(reason).Inc()
		}
		return nil, decimal.Decimal{}, err
	}

	metrics.TradesTotal.WithLabelValues(string(side)).Inc()
	metrics.TradeCost.Observe(cost.InexactFloat64())
	metrics.TradeLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())

	slog.Info("trade executed",
		"transaction_id", entry.ID,
		"user", userID,
		"market", marketID,
		"side", side,
		"amount", amount.String(),
		"cost", cost.String(),
	)
	return entry, cost, nil
}

// ResolveMarket flips an open market to its terminal Resolved(outcome)
// state and credits every winning transaction's full share amount
// (1 share = 1 unit) to its holder. The resolution flip and all credits
// commit as one atomic unit; a second resolution fails cleanly with
// ErrMarketResolved and writes nothing.
func (e *Engine) ResolveMarket(ctx context.Context, marketID string, outcome bool) error {
	var totalPayout decimal.Decimal

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		market, err := tx.GetMarketForUpdate(ctx, marketID)
		if err != nil {
			return err
		}
		if market.Resolved() {
			return fmt.Errorf("market %s: %w", marketID, model.ErrMarketResolved)
		}

		market.Resolution = &outcome
		if err := tx.SaveMarket(ctx, market); err != nil {
			return err
		}

		txs, err := tx.ListTransactionsByMarket(ctx, marketID)
		if err != nil {
			return err
		}

		// Aggregate winning amounts per user so each winner's row is
		// locked and written once.
		payouts := make(map[string]decimal.Decimal)
		var order []string
		for _, t := range txs {
			if !t.Side.Wins(outcome) {
				continue
			}
			if _, ok := payouts[t.UserID]; !ok {
				order = append(order, t.UserID)
			}
			payouts[t.UserID] = payouts[t.UserID].Add(t.Amount)
		}

		for _, userID := range order {
			user, err := tx.GetUserForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			user.Balance = user.Balance.Add(payouts[userID])
			if err := tx.SaveUser(ctx, user); err != nil {
				return err
			}
			totalPayout = totalPayout.Add(payouts[userID])
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.MarketsResolvedTotal.WithLabelValues(fmt.Sprintf("%t", outcome)).Inc()
	metrics.PayoutsTotal.Add(totalPayout.InexactFloat64())
	metrics.OpenMarkets.Dec()

	slog.Info("market resolved",
		"market", marketID,
		"outcome", outcome,
		"total_payout", totalPayout.String(),
	)
	return nil
}

// rejectionReason maps validation failures onto a low-cardinality metric
// label; unexpected errors are not counted as rejections.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, model.ErrMarketResolved):
		return "market_resolved"
	case errors.Is(err, model.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}
