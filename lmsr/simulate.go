package lmsr

import (
	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/model"
)

// shadowShares returns the share vector after hypothetically adding
// amount to the chosen side. The passed market is never mutated.
func shadowShares(amount decimal.Decimal, side model.Side, mkt *model.Market) (qYes, qNo decimal.Decimal) {
	qYes, qNo = mkt.YesShares, mkt.NoShares
	if side == model.SideYes {
		qYes = qYes.Add(amount)
	} else {
		qNo = qNo.Add(amount)
	}
	return qYes, qNo
}

func validateTradeArgs(amount decimal.Decimal, side model.Side) error {
	if !side.Valid() {
		return model.ErrInvalidSide
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// SimulateCost returns the marginal cost of buying amount shares on the
// given side:
//
//	cost = C(q + amount·e_side) - C(q)
//
// The cost is strictly increasing in amount (convexity of C) and >= 0
// for amount >= 0. Negative amounts are rejected; selling is out of
// scope.
func SimulateCost(amount decimal.Decimal, side model.Side, mkt *model.Market) (decimal.Decimal, error) {
	if err := validateTradeArgs(amount, side); err != nil {
		return decimal.Decimal{}, err
	}
	mm, err := makerFor(mkt)
	if err != nil {
		return decimal.Decimal{}, err
	}

	qYes, qNo := shadowShares(amount, side, mkt)
	after, err := mm.Cost(qYes, qNo)
	if err != nil {
		return decimal.Decimal{}, err
	}
	before, err := mm.Cost(mkt.YesShares, mkt.NoShares)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return after.Sub(before), nil
}

// SimulatePrice returns the implied YES probability after hypothetically
// buying amount shares on the given side, without mutating the market.
func SimulatePrice(amount decimal.Decimal, side model.Side, mkt *model.Market) (decimal.Decimal, error) {
	if err := validateTradeArgs(amount, side); err != nil {
		return decimal.Decimal{}, err
	}
	mm, err := makerFor(mkt)
	if err != nil {
		return decimal.Decimal{}, err
	}

	qYes, qNo := shadowShares(amount, side, mkt)
	return mm.Price(qYes, qNo)
}
