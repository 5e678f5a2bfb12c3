package lmsr

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/model"
)

// --- RequiredAmountForPrice ---

func TestRequiredAmountForPrice_ClosedForm(t *testing.T) {
	// From a fresh market (logit 0), reaching 0.6 needs b * logit(0.6).
	amount, err := RequiredAmountForPrice(d(0.6), model.SideYes, mkt(0, 0, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := 100 * math.Log(0.6/0.4)
	if amount.Sub(d(expected)).Abs().GreaterThan(d(0.000001)) {
		t.Errorf("expected %.8f shares, got %s", expected, amount)
	}
}

func TestRequiredAmountForPrice_LandsOnTarget(t *testing.T) {
	tolerance := d(0.000001)

	tests := []struct {
		name      string
		qYes, qNo float64
		target    float64
		side      model.Side
	}{
		{"yes up from origin", 0, 0, 0.6, model.SideYes},
		{"yes up from skew", 30, 10, 0.8, model.SideYes},
		{"no down from origin", 0, 0, 0.3, model.SideNo},
		{"no down from skew", 10, 40, 0.1, model.SideNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mkt(tt.qYes, tt.qNo, 100)
			amount, err := RequiredAmountForPrice(d(tt.target), tt.side, m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			landed, err := SimulatePrice(amount, tt.side, m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if landed.Sub(d(tt.target)).Abs().GreaterThan(tolerance) {
				t.Errorf("buying %s should land on %.2f, got %s", amount, tt.target, landed)
			}
		})
	}
}

func TestRequiredAmountForPrice_AlreadyPastTarget(t *testing.T) {
	// Current price is well above 0.6; no YES shares are required.
	amount, err := RequiredAmountForPrice(d(0.6), model.SideYes, mkt(100, 0, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.IsZero() {
		t.Errorf("expected 0 when already past target, got %s", amount)
	}
}

func TestRequiredAmountForPrice_RejectsOutOfRangeTargets(t *testing.T) {
	m := mkt(0, 0, 100)
	for _, target := range []float64{0, 1, -0.1, 1.5} {
		_, err := RequiredAmountForPrice(d(target), model.SideYes, m)
		if !errors.Is(err, ErrPriceOutOfRange) {
			t.Errorf("target %.2f: expected ErrPriceOutOfRange, got %v", target, err)
		}
	}
}

func TestRequiredAmountForPrice_TargetRoundsToCertainty(t *testing.T) {
	// Strictly inside (0, 1) as a decimal, but the nearest float64 is
	// exactly 1, where the logit blows up.
	target, _ := decimal.NewFromString("0.9999999999999999999")
	_, err := RequiredAmountForPrice(target, model.SideYes, mkt(0, 0, 100))
	if !errors.Is(err, ErrPriceOutOfRange) {
		t.Errorf("expected ErrPriceOutOfRange, got %v", err)
	}
}

func TestRequiredAmountForPrice_SharesBeyondFloatRange(t *testing.T) {
	huge, _ := decimal.NewFromString("1e310")
	m := &model.Market{Liquidity: d(100), YesShares: huge, NoShares: decimal.Zero}
	_, err := RequiredAmountForPrice(d(0.5), model.SideNo, m)
	if !errors.Is(err, ErrSharesOutOfRange) {
		t.Errorf("expected ErrSharesOutOfRange, got %v", err)
	}
}

func TestRequiredAmountForPrice_SaturatedShareState(t *testing.T) {
	// Shares large enough that the float price saturates to 1; the
	// logit identity (qYes-qNo)/b must keep the solve finite.
	m := mkt(1e6, 0, 100)
	amount, err := RequiredAmountForPrice(d(0.5), model.SideNo, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d(1e6)) {
		t.Errorf("expected 1e6 NO shares to rebalance, got %s", amount)
	}
}

// --- AmountForCost ---

func TestAmountForCost_RoundTripsSimulateCost(t *testing.T) {
	tolerance := d(0.00001)

	tests := []struct {
		name      string
		qYes, qNo float64
		amount    float64
		side      model.Side
	}{
		{"yes at origin", 0, 0, 10, model.SideYes},
		{"no at origin", 0, 0, 10, model.SideNo},
		{"yes from skew", 30, 10, 25, model.SideYes},
		{"no from skew", 30, 10, 25, model.SideNo},
		{"large buy", 0, 0, 500, model.SideYes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mkt(tt.qYes, tt.qNo, 100)
			cost, err := SimulateCost(d(tt.amount), tt.side, m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			back, err := AmountForCost(cost, tt.side, m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if back.Sub(d(tt.amount)).Abs().GreaterThan(tolerance) {
				t.Errorf("round trip drifted: bought %.2f, solved %s", tt.amount, back)
			}
		})
	}
}

func TestAmountForCost_ZeroBudget(t *testing.T) {
	amount, err := AmountForCost(d(0), model.SideYes, mkt(0, 0, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.IsZero() {
		t.Errorf("zero budget should buy zero shares, got %s", amount)
	}
}

func TestAmountForCost_RejectsNegativeBudget(t *testing.T) {
	_, err := AmountForCost(d(-5), model.SideYes, mkt(0, 0, 100))
	if !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestAmountForCost_BudgetBeyondFloatRange(t *testing.T) {
	// decimal carries budgets past float64's ceiling; the log-space
	// target goes to +Inf and the solver must report the domain error
	// rather than panic converting the result back to decimal.
	budget, _ := decimal.NewFromString("1e311")
	_, err := AmountForCost(budget, model.SideYes, mkt(0, 0, 100))
	if !errors.Is(err, ErrCostOutOfRange) {
		t.Errorf("expected ErrCostOutOfRange, got %v", err)
	}
}

func TestAmountForCost_DegenerateExponent(t *testing.T) {
	// A budget so small it vanishes against the share scale collapses
	// the intermediate exponent to zero; the solver must report the
	// domain error rather than compute log1p(-1).
	m := mkt(0, 100000, 100)
	tiny, _ := decimal.NewFromString("1e-320")
	_, err := AmountForCost(tiny, model.SideYes, m)
	if !errors.Is(err, ErrCostOutOfRange) {
		t.Errorf("expected ErrCostOutOfRange, got %v", err)
	}
}

// --- LimitOrderToPrice ---

func TestLimitOrderToPrice_BudgetBinds(t *testing.T) {
	m := mkt(0, 0, 100)
	bid, target := d(5), d(0.6)

	amount, side, err := LimitOrderToPrice(bid, target, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if side != model.SideYes {
		t.Errorf("target above current price should infer YES, got %s", side)
	}

	byBudget, _ := AmountForCost(bid, side, m)
	if !amount.Equal(byBudget) {
		t.Errorf("small bid should bind on budget: got %s, budget allows %s", amount, byBudget)
	}
}

func TestLimitOrderToPrice_TargetBinds(t *testing.T) {
	m := mkt(0, 0, 100)
	bid, target := d(100000), d(0.6)

	amount, side, err := LimitOrderToPrice(bid, target, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if side != model.SideYes {
		t.Errorf("expected YES, got %s", side)
	}

	byTarget, _ := RequiredAmountForPrice(target, side, m)
	if !amount.Equal(byTarget) {
		t.Errorf("large bid should bind on price cap: got %s, target needs %s", amount, byTarget)
	}
}

func TestLimitOrderToPrice_NeverExceedsEitherCap(t *testing.T) {
	m := mkt(25, 40, 100)
	bid, target := d(30), d(0.7)

	amount, side, err := LimitOrderToPrice(bid, target, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byBudget, _ := AmountForCost(bid, side, m)
	byTarget, _ := RequiredAmountForPrice(target, side, m)
	if amount.GreaterThan(byBudget) {
		t.Errorf("amount %s exceeds budget cap %s", amount, byBudget)
	}
	if amount.GreaterThan(byTarget) {
		t.Errorf("amount %s exceeds price cap %s", amount, byTarget)
	}
}

func TestLimitOrderToPrice_InfersNoBelowCurrent(t *testing.T) {
	amount, side, err := LimitOrderToPrice(d(10), d(0.3), mkt(0, 0, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if side != model.SideNo {
		t.Errorf("target below current price should infer NO, got %s", side)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		t.Errorf("expected a positive fill, got %s", amount)
	}
}

func TestLimitOrderToPrice_TargetEqualsCurrent(t *testing.T) {
	amount, _, err := LimitOrderToPrice(d(10), d(0.5), mkt(0, 0, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.IsZero() {
		t.Errorf("target at current price needs nothing, got %s", amount)
	}
}

func TestLimitOrderToPrice_RejectsBadInputs(t *testing.T) {
	m := mkt(0, 0, 100)

	if _, _, err := LimitOrderToPrice(d(10), d(1), m); !errors.Is(err, ErrPriceOutOfRange) {
		t.Errorf("expected ErrPriceOutOfRange for target=1, got %v", err)
	}
	if _, _, err := LimitOrderToPrice(d(-1), d(0.6), m); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount for negative bid, got %v", err)
	}
}
