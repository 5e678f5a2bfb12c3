// Package lmsr implements the Logarithmic Market Scoring Rule (LMSR)
// automated market maker for binary prediction markets: the cost and
// price potentials, hypothetical-trade simulation, and the inverse
// solvers that answer "how much do I need to trade or spend to reach a
// target price".
//
// The LMSR was proposed by Robin Hanson and provides:
//   - Bounded loss for the market maker (capped at b * ln(n))
//   - Continuous pricing with infinite liquidity
//   - Path-independent cost function
//
// All monetary values use shopspring/decimal — never float64 for money.
// Internal transcendental math uses the log-sum-exp trick for numerical
// stability, with results immediately converted to decimal. The naive
// forms overflow float64 once shares/b exceeds ~709, so the stabilized
// evaluation is a correctness requirement, not an optimization.
//
// Reference: Hanson, R. (2003) "Combinatorial Information Market Design"
package lmsr

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/model"
)

var (
	// ErrInvalidLiquidity is returned when b <= 0.
	ErrInvalidLiquidity = errors.New("lmsr: liquidity parameter b must be positive")

	// ErrNegativeAmount is returned for negative share amounts or
	// negative budgets. Selling is out of scope for this engine.
	ErrNegativeAmount = errors.New("lmsr: amount must not be negative")

	// ErrPriceOutOfRange is returned when a target price lies outside
	// the open interval (0, 1), where the logit is undefined.
	ErrPriceOutOfRange = errors.New("lmsr: target price must be in (0, 1)")

	// ErrCostOutOfRange is returned when a budget is large enough that
	// the inverse cost function has no solution — spending it would
	// require pushing the implied probability to 1 or beyond.
	ErrCostOutOfRange = errors.New("lmsr: cost would push price past certainty")

	// ErrSharesOutOfRange is returned when a share quantity is too large
	// for the float64 evaluation of the cost and price potentials.
	ErrSharesOutOfRange = errors.New("lmsr: share state exceeds the representable range")

	// Scale is the number of decimal places for price/cost/amount rounding.
	Scale int32 = 8
)

// MarketMaker evaluates the LMSR potentials for a fixed liquidity
// parameter b. It is stateless; share quantities are passed as
// arguments, not stored.
type MarketMaker struct {
	b decimal.Decimal
}

// NewMarketMaker creates an LMSR market maker with the given liquidity
// parameter b. Higher b → more liquidity, lower price impact per trade.
// Maximum market-maker loss is bounded by b * ln(2) for binary markets.
func NewMarketMaker(b decimal.Decimal) (*MarketMaker, error) {
	// decimal holds values past float64's ceiling; those would turn
	// every downstream computation into +Inf.
	if b.LessThanOrEqual(decimal.Zero) || math.IsInf(b.InexactFloat64(), 1) {
		return nil, ErrInvalidLiquidity
	}
	return &MarketMaker{b: b}, nil
}

// B returns the liquidity parameter.
func (m *MarketMaker) B() decimal.Decimal {
	return m.b
}

// logSumExp computes ln(exp(x) + exp(y)) using the log-sum-exp trick to
// prevent floating-point overflow. Without the max shift, exp overflows
// float64 when the argument exceeds ~709.
//
// LSE(x, y) = max + ln(exp(x - max) + exp(y - max)); the shifted
// arguments are <= 0, so the exponentials stay in (0, 1].
func logSumExp(x, y float64) float64 {
	maxVal := math.Max(x, y)
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}
	return maxVal + math.Log(math.Exp(x-maxVal)+math.Exp(y-maxVal))
}

// finiteDecimal converts a float64 result back to decimal, reporting
// sentinel when the intermediate escaped float64 range. NewFromFloat
// panics on non-finite input, so every conversion goes through here.
func finiteDecimal(f float64, sentinel error) (decimal.Decimal, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Decimal{}, sentinel
	}
	return decimal.NewFromFloat(f).Round(Scale), nil
}

// Cost computes the LMSR cost potential:
//
//	C(q) = b * ln(exp(qYes/b) + exp(qNo/b))
//
// evaluated through logSumExp so it stays finite for share counts of any
// realistic magnitude. Share quantities beyond float64 range are
// rejected with ErrSharesOutOfRange.
func (m *MarketMaker) Cost(qYes, qNo decimal.Decimal) (decimal.Decimal, error) {
	bf := m.b.InexactFloat64()
	cost := bf * m.logCost(qYes.InexactFloat64(), qNo.InexactFloat64())
	return finiteDecimal(cost, ErrSharesOutOfRange)
}

// logCost returns C(q)/b in float64, the form the inverse solver works in.
func (m *MarketMaker) logCost(qy, qn float64) float64 {
	bf := m.b.InexactFloat64()
	return logSumExp(qy/bf, qn/bf)
}

// Price computes the instantaneous price (implied probability) of the
// YES outcome:
//
//	p_yes = exp(qYes/b) / (exp(qYes/b) + exp(qNo/b))
//
// This is the softmax of the share vector, evaluated with the same max
// shift as Cost. The result lies in (0, 1) and is not clamped.
func (m *MarketMaker) Price(qYes, qNo decimal.Decimal) (decimal.Decimal, error) {
	p := m.priceFloat(qYes.InexactFloat64(), qNo.InexactFloat64())
	return finiteDecimal(p, ErrSharesOutOfRange)
}

// PriceNo returns the instantaneous price of the NO outcome: 1 - p_yes.
func (m *MarketMaker) PriceNo(qYes, qNo decimal.Decimal) (decimal.Decimal, error) {
	p, err := m.Price(qYes, qNo)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(1).Sub(p), nil
}

func (m *MarketMaker) priceFloat(qy, qn float64) float64 {
	bf := m.b.InexactFloat64()
	maxVal := math.Max(qy/bf, qn/bf)
	expYes := math.Exp(qy/bf - maxVal)
	expNo := math.Exp(qn/bf - maxVal)
	return expYes / (expYes + expNo)
}

// MaxLoss returns the maximum possible loss for the market maker:
// b * ln(2) for a binary market.
func (m *MarketMaker) MaxLoss() decimal.Decimal {
	bf := m.b.InexactFloat64()
	return decimal.NewFromFloat(bf * math.Log(2)).Round(Scale)
}

// makerFor builds a MarketMaker from a market's liquidity column.
func makerFor(mkt *model.Market) (*MarketMaker, error) {
	return NewMarketMaker(mkt.Liquidity)
}

// CurrentPrice recomputes the implied YES probability from a market's
// share state. The cached Price column is derived from this; callers
// must never feed the cached value back into a trade computation.
func CurrentPrice(mkt *model.Market) (decimal.Decimal, error) {
	mm, err := makerFor(mkt)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return mm.Price(mkt.YesShares, mkt.NoShares)
}
