package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/lmsr"
	"github.com/foldline/market-ledger/model"
)

// Quote helpers expose the pure pricing and solver functions over the
// persisted (possibly cache-served) market state. They never mutate
// anything, so reading through the cache is safe here.

// QuoteCost returns the cost of hypothetically buying amount shares on
// the given side of the market.
func (e *Engine) QuoteCost(ctx context.Context, marketID string, side model.Side, amount decimal.Decimal) (decimal.Decimal, error) {
	market, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return lmsr.SimulateCost(amount, side, market)
}

// QuotePrice returns the implied YES probability after a hypothetical
// buy of amount shares on the given side.
func (e *Engine) QuotePrice(ctx context.Context, marketID string, side model.Side, amount decimal.Decimal) (decimal.Decimal, error) {
	market, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return lmsr.SimulatePrice(amount, side, market)
}

// QuoteAmountForPrice returns the share amount on the given side needed
// to move the market to the target price.
func (e *Engine) QuoteAmountForPrice(ctx context.Context, marketID string, side model.Side, target decimal.Decimal) (decimal.Decimal, error) {
	market, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return lmsr.RequiredAmountForPrice(target, side, market)
}

// QuoteAmountForCost returns the share amount on the given side that the
// budget purchases.
func (e *Engine) QuoteAmountForCost(ctx context.Context, marketID string, side model.Side, cost decimal.Decimal) (decimal.Decimal, error) {
	market, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return lmsr.AmountForCost(cost, side, market)
}

// QuoteLimitOrder sizes an order bounded by both a maximum spend and a
// target price, returning the amount and the inferred direction.
func (e *Engine) QuoteLimitOrder(ctx context.Context, marketID string, bid, target decimal.Decimal) (decimal.Decimal, model.Side, error) {
	market, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	return lmsr.LimitOrderToPrice(bid, target, market)
}
