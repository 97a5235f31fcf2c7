package core

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Transition computes the next state of a symbol from the latest closed candle
// and the current signal. It is pure: the caller decides whether to apply the
// returned state, which it must only do after every intent was executed.
func Transition(st SymbolState, sig Signal, c Candle, sz Sizing) (SymbolState, []OrderIntent) {
	switch st.Phase {
	case WaitingReentry:
		if sig.Side() == SideNone || sig.Side() != st.Side {
			return st, nil
		}
		return open(st, st.Side, c, sz, ReasonReentry)
	case Flat:
		if sig == SignalNone {
			return st, nil
		}
		return open(st, sig.Side(), c, sz, ReasonSignal)
	case Open:
		if !StopHit(st, c) {
			return st, nil
		}
		in := OrderIntent{
			Kind:      IntentClose,
			Symbol:    st.Symbol,
			Side:      st.Side,
			Quantity:  st.Quantity,
			Price:     c.Close,
			StopPrice: st.StopPrice,
			Reason:    ReasonStopLoss,
		}
		next := SymbolState{Symbol: st.Symbol, Phase: WaitingReentry, Side: st.Side, UpdatedAt: c.Start}
		return next, []OrderIntent{in}
	}
	return st, nil
}

// StopHit reports whether the candle's extremes breached the stop of an open position.
func StopHit(st SymbolState, c Candle) bool {
	if st.Phase != Open {
		return false
	}
	switch st.Side {
	case Long:
		return c.Low.LessThanOrEqual(st.StopPrice)
	case Short:
		return c.High.GreaterThanOrEqual(st.StopPrice)
	}
	return false
}

// StopPrice is entry*(1-pct) for longs and entry*(1+pct) for shorts.
func StopPrice(side Side, entry, pct decimal.Decimal) decimal.Decimal {
	if side == Short {
		return entry.Mul(one.Add(pct))
	}
	return entry.Mul(one.Sub(pct))
}

func open(st SymbolState, side Side, c Candle, sz Sizing, reason string) (SymbolState, []OrderIntent) {
	entry := c.Close
	if !entry.IsPositive() || !sz.Notional.IsPositive() || !sz.StopPct.IsPositive() || sz.StopPct.GreaterThanOrEqual(one) {
		return st, nil
	}
	qty := sz.Notional.Div(entry)
	stop := StopPrice(side, entry, sz.StopPct)
	next := SymbolState{
		Symbol:     st.Symbol,
		Phase:      Open,
		Side:       side,
		EntryPrice: entry,
		Quantity:   qty,
		StopPrice:  stop,
		UpdatedAt:  c.Start,
	}
	in := OrderIntent{
		Kind:      IntentOpen,
		Symbol:    st.Symbol,
		Side:      side,
		Quantity:  qty,
		Price:     entry,
		StopPrice: stop,
		Reason:    reason,
	}
	return next, []OrderIntent{in}
}
