package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

type Limits struct {
	MaxNotional decimal.Decimal
	MaxStopPct  decimal.Decimal
	MaxLeverage int
}

func Default() Limits {
	return Limits{
		MaxNotional: decimal.NewFromInt(1000),
		MaxStopPct:  decimal.RequireFromString("0.5"),
		MaxLeverage: 10,
	}
}

// CheckSizing validates the configured sizing once at startup.
func (l Limits) CheckSizing(sz core.Sizing, leverage int) error {
	if !sz.Notional.IsPositive() {
		return errors.New("trade notional must be > 0")
	}
	if sz.Notional.GreaterThan(l.MaxNotional) {
		return fmt.Errorf("trade notional %s above limit %s", sz.Notional, l.MaxNotional)
	}
	if !sz.StopPct.IsPositive() || sz.StopPct.GreaterThan(l.MaxStopPct) {
		return fmt.Errorf("stop loss %s%% outside (0, %s%%]", sz.StopPct.Shift(2), l.MaxStopPct.Shift(2))
	}
	if leverage < 1 || leverage > l.MaxLeverage {
		return fmt.Errorf("leverage %d outside [1, %d]", leverage, l.MaxLeverage)
	}
	return nil
}

// Validate gates open intents before they reach the execution provider.
// Close intents always pass so a stopped position can exit.
func (l Limits) Validate(in core.OrderIntent) error {
	if in.Kind == core.IntentClose {
		return nil
	}
	if !in.Quantity.IsPositive() || !in.Price.IsPositive() {
		return errors.New("quantity and price must be > 0")
	}
	if n := in.Quantity.Mul(in.Price); n.GreaterThan(l.MaxNotional.Mul(decimal.RequireFromString("1.0001"))) {
		return fmt.Errorf("notional %s above limit %s", n.StringFixed(2), l.MaxNotional)
	}
	return nil
}
