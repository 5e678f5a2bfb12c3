package lmsr

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/model"
)

// logit computes ln(p / (1-p)), the inverse of the logistic price curve.
// Defined only on the open interval (0, 1).
func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// RequiredAmountForPrice solves for the number of shares of the given
// side needed to move the implied YES probability to target:
//
//	Δq_yes = b * (logit(target) - logit(current))
//
// For the NO side the sign inverts. The current logit never needs the
// price itself: logit(p_yes) = (qYes - qNo) / b exactly, which stays
// finite for share states whose price has saturated in float64. The
// result is clamped to >= 0: if the market already sits past the target
// in that direction, no shares are required.
func RequiredAmountForPrice(target decimal.Decimal, side model.Side, mkt *model.Market) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Decimal{}, model.ErrInvalidSide
	}
	if target.LessThanOrEqual(decimal.Zero) || target.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, ErrPriceOutOfRange
	}
	mm, err := makerFor(mkt)
	if err != nil {
		return decimal.Decimal{}, err
	}

	bf := mm.b.InexactFloat64()
	currentLogit := (mkt.YesShares.InexactFloat64() - mkt.NoShares.InexactFloat64()) / bf

	targetLogit := logit(target.InexactFloat64())
	if math.IsInf(targetLogit, 0) {
		// A decimal target strictly inside (0, 1) can still round to
		// exactly 0 or 1 in float64.
		return decimal.Decimal{}, ErrPriceOutOfRange
	}

	deltaYes := bf * (targetLogit - currentLogit)
	if side == model.SideNo {
		deltaYes = -deltaYes
	}
	if deltaYes <= 0 {
		return decimal.Zero, nil
	}
	return finiteDecimal(deltaYes, ErrSharesOutOfRange)
}

// AmountForCost inverts the cost function: given a budget, it returns
// the share amount purchasable on the given side.
//
// Working in log space, with t = C(q)/b + cost/b the target log-value
// and o = q_other/b the opposite side's coordinate:
//
//	q_side'/b = t + log1p(-exp(o - t))
//
// The exponent o - t must be strictly negative; it reaches zero exactly
// when the budget would push the implied probability to 1, at which
// point no finite share amount solves the equation and the budget is
// rejected. This form avoids the catastrophic cancellation and overflow
// of the naive algebraic inverse for large share counts.
func AmountForCost(cost decimal.Decimal, side model.Side, mkt *model.Market) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Decimal{}, model.ErrInvalidSide
	}
	if cost.IsNegative() {
		return decimal.Decimal{}, ErrNegativeAmount
	}
	mm, err := makerFor(mkt)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if cost.IsZero() {
		return decimal.Zero, nil
	}

	bf := mm.b.InexactFloat64()
	q := mkt.YesShares.InexactFloat64() / bf
	other := mkt.NoShares.InexactFloat64() / bf
	if side == model.SideNo {
		q, other = other, q
	}

	t := logSumExp(q, other) + cost.InexactFloat64()/bf

	expo := other - t
	if expo >= 0 {
		return decimal.Decimal{}, ErrCostOutOfRange
	}

	amount := bf * (t + math.Log1p(-math.Exp(expo)) - q)
	if amount <= 0 {
		// Float rounding can leave a vanishing negative residue for
		// budgets near zero.
		return decimal.Zero, nil
	}
	// A budget past float64's ceiling drives t, and then amount, to
	// +Inf; report the domain error instead of feeding it to decimal.
	return finiteDecimal(amount, ErrCostOutOfRange)
}

// LimitOrderToPrice sizes an order capped by both a maximum spend and a
// target price. The trade direction follows from which side of the
// current price the target lies on; the returned amount is the smaller
// of what the bid affords and what just reaches the target, so the
// order fills up to whichever constraint binds first.
func LimitOrderToPrice(bid, target decimal.Decimal, mkt *model.Market) (decimal.Decimal, model.Side, error) {
	if target.LessThanOrEqual(decimal.Zero) || target.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, "", ErrPriceOutOfRange
	}
	if bid.IsNegative() {
		return decimal.Decimal{}, "", ErrNegativeAmount
	}

	current, err := CurrentPrice(mkt)
	if err != nil {
		return decimal.Decimal{}, "", err
	}

	side := model.SideNo
	if target.GreaterThan(current) {
		side = model.SideYes
	}

	byBudget, err := AmountForCost(bid, side, mkt)
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	byTarget, err := RequiredAmountForPrice(target, side, mkt)
	if err != nil {
		return decimal.Decimal{}, "", err
	}

	amount := byBudget
	if byTarget.LessThan(amount) {
		amount = byTarget
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, "", ErrNegativeAmount
	}
	return amount, side, nil
}
