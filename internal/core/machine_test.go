package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func candle(open, high, low, close string) Candle {
	return Candle{Symbol: "BTCUSDT", Open: d(open), High: d(high), Low: d(low), Close: d(close)}
}

var sizing = Sizing{Notional: d("6"), StopPct: d("0.02")}

func openLong() SymbolState {
	return SymbolState{Symbol: "BTCUSDT", Phase: Open, Side: Long, EntryPrice: d("100"), Quantity: d("0.06"), StopPrice: d("98")}
}

func TestTransitionFromFlat(t *testing.T) {
	tests := []struct {
		name      string
		sig       Signal
		wantPhase Phase
		wantSide  Side
		wantStop  string
		intents   int
	}{
		{name: "long signal opens long", sig: SignalLong, wantPhase: Open, wantSide: Long, wantStop: "98", intents: 1},
		{name: "short signal opens short", sig: SignalShort, wantPhase: Open, wantSide: Short, wantStop: "102", intents: 1},
		{name: "no signal stays flat", sig: SignalNone, wantPhase: Flat, wantSide: SideNone, wantStop: "0", intents: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := SymbolState{Symbol: "BTCUSDT"}
			next, intents := Transition(st, tt.sig, candle("99", "101", "99", "100"), sizing)
			if next.Phase != tt.wantPhase || next.Side != tt.wantSide {
				t.Fatalf("got %s/%s, want %s/%s", next.Phase, next.Side, tt.wantPhase, tt.wantSide)
			}
			if !next.StopPrice.Equal(d(tt.wantStop)) {
				t.Errorf("stop = %s, want %s", next.StopPrice, tt.wantStop)
			}
			if len(intents) != tt.intents {
				t.Fatalf("intents = %d, want %d", len(intents), tt.intents)
			}
			if tt.intents == 1 {
				in := intents[0]
				if in.Kind != IntentOpen || in.Side != tt.wantSide || in.Reason != ReasonSignal {
					t.Errorf("unexpected intent %+v", in)
				}
				if !in.Quantity.Equal(d("0.06")) {
					t.Errorf("qty = %s, want 0.06", in.Quantity)
				}
				if !next.EntryPrice.Equal(d("100")) {
					t.Errorf("entry = %s, want 100", next.EntryPrice)
				}
			}
		})
	}
}

func TestTransitionStopLoss(t *testing.T) {
	tests := []struct {
		name    string
		st      SymbolState
		c       Candle
		trigger bool
	}{
		{name: "long low below stop", st: openLong(), c: candle("100", "101", "97", "99"), trigger: true},
		{name: "long low touches stop", st: openLong(), c: candle("100", "101", "98", "99"), trigger: true},
		{name: "long close above stop", st: openLong(), c: candle("100", "101", "98.5", "99"), trigger: false},
		{
			name:    "short high above stop",
			st:      SymbolState{Symbol: "BTCUSDT", Phase: Open, Side: Short, EntryPrice: d("100"), Quantity: d("0.06"), StopPrice: d("102")},
			c:       candle("100", "102.5", "99", "101"),
			trigger: true,
		},
		{
			name:    "short high below stop",
			st:      SymbolState{Symbol: "BTCUSDT", Phase: Open, Side: Short, EntryPrice: d("100"), Quantity: d("0.06"), StopPrice: d("102")},
			c:       candle("100", "101.9", "95", "96"),
			trigger: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, sig := range []Signal{SignalNone, SignalLong, SignalShort} {
				next, intents := Transition(tt.st, sig, tt.c, sizing)
				if !tt.trigger {
					if next != tt.st || len(intents) != 0 {
						t.Fatalf("signal %s: state changed without stop: %+v %v", sig, next, intents)
					}
					continue
				}
				if next.Phase != WaitingReentry || next.Side != tt.st.Side {
					t.Fatalf("got %s/%s, want waiting_reentry/%s", next.Phase, next.Side, tt.st.Side)
				}
				if len(intents) != 1 || intents[0].Kind != IntentClose || intents[0].Reason != ReasonStopLoss {
					t.Fatalf("unexpected intents %+v", intents)
				}
				if !intents[0].Quantity.Equal(tt.st.Quantity) {
					t.Errorf("close qty = %s, want %s", intents[0].Quantity, tt.st.Quantity)
				}
			}
		})
	}
}

func TestTransitionReentry(t *testing.T) {
	waiting := SymbolState{Symbol: "BTCUSDT", Phase: WaitingReentry, Side: Long}

	for _, sig := range []Signal{SignalNone, SignalShort} {
		next, intents := Transition(waiting, sig, candle("101", "103", "100", "102"), sizing)
		if next != waiting || len(intents) != 0 {
			t.Fatalf("signal %s re-entered: %+v %v", sig, next, intents)
		}
	}

	next, intents := Transition(waiting, SignalLong, candle("101", "103", "100", "102"), sizing)
	if next.Phase != Open || next.Side != Long {
		t.Fatalf("got %s/%s, want open/long", next.Phase, next.Side)
	}
	if !next.EntryPrice.Equal(d("102")) || !next.StopPrice.Equal(d("99.96")) {
		t.Errorf("entry=%s stop=%s, want 102/99.96", next.EntryPrice, next.StopPrice)
	}
	if !next.Quantity.Equal(d("6").Div(d("102"))) {
		t.Errorf("qty = %s, want recomputed from the new close", next.Quantity)
	}
	if len(intents) != 1 || intents[0].Kind != IntentOpen || intents[0].Reason != ReasonReentry {
		t.Fatalf("unexpected intents %+v", intents)
	}
}

func TestTransitionOpenIsIdempotent(t *testing.T) {
	st := openLong()
	c := candle("100", "103", "99", "102")
	first, in1 := Transition(st, SignalShort, c, sizing)
	second, in2 := Transition(first, SignalShort, c, sizing)
	if first != st || second != st || len(in1)+len(in2) != 0 {
		t.Fatalf("open position changed: %+v %+v %v %v", first, second, in1, in2)
	}
}

func TestTransitionRejectsBadInputs(t *testing.T) {
	st := SymbolState{Symbol: "BTCUSDT"}
	tests := []struct {
		name string
		c    Candle
		sz   Sizing
	}{
		{name: "zero close", c: candle("1", "1", "0", "0"), sz: sizing},
		{name: "zero notional", c: candle("100", "100", "100", "100"), sz: Sizing{StopPct: d("0.02")}},
		{name: "zero stop pct", c: candle("100", "100", "100", "100"), sz: Sizing{Notional: d("6")}},
		{name: "stop pct of 100%", c: candle("100", "100", "100", "100"), sz: Sizing{Notional: d("6"), StopPct: d("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, intents := Transition(st, SignalLong, tt.c, tt.sz)
			if next.Phase != Flat || len(intents) != 0 {
				t.Fatalf("opened on invalid input: %+v", next)
			}
		})
	}
}

// Random walk over many candles checking the state invariants after every step.
func TestTransitionInvariants(t *testing.T) {
	st := SymbolState{Symbol: "BTCUSDT"}
	price := d("100")
	sigs := []Signal{SignalLong, SignalNone, SignalShort, SignalNone, SignalLong, SignalShort}
	moves := []string{"-3", "1", "2.5", "-0.5", "4", "-4.2", "0.3"}
	for i := 0; i < 200; i++ {
		move := d(moves[i%len(moves)])
		next := price.Add(move)
		if !next.IsPositive() {
			next = d("50")
		}
		high := decimal.Max(price, next).Add(d("1"))
		low := decimal.Min(price, next).Sub(d("1"))
		c := Candle{Symbol: "BTCUSDT", Open: price, High: high, Low: low, Close: next}
		st, _ = Transition(st, sigs[i%len(sigs)], c, sizing)
		price = next

		if st.Phase == Open {
			if !st.Quantity.IsPositive() || !st.EntryPrice.IsPositive() {
				t.Fatalf("step %d: open with qty=%s entry=%s", i, st.Quantity, st.EntryPrice)
			}
			if st.Side == Long && !st.StopPrice.LessThan(st.EntryPrice) {
				t.Fatalf("step %d: long stop %s not below entry %s", i, st.StopPrice, st.EntryPrice)
			}
			if st.Side == Short && !st.StopPrice.GreaterThan(st.EntryPrice) {
				t.Fatalf("step %d: short stop %s not above entry %s", i, st.StopPrice, st.EntryPrice)
			}
		}
		if st.Phase == WaitingReentry && st.Side == SideNone {
			t.Fatalf("step %d: waiting without a side", i)
		}
	}
}

func TestPhaseText(t *testing.T) {
	for _, p := range []Phase{Flat, Open, WaitingReentry} {
		b, _ := p.MarshalText()
		var got Phase
		if err := got.UnmarshalText(b); err != nil || got != p {
			t.Errorf("phase %s round trip = %s, %v", p, got, err)
		}
	}
	var p Phase
	if err := p.UnmarshalText([]byte("closed")); err == nil {
		t.Error("expected error for unknown phase")
	}
}
