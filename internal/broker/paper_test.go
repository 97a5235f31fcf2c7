package broker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPaperRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		side    core.Side
		entry   string
		exit    string
		wantPnL string
	}{
		{name: "long loss", side: core.Long, entry: "100", exit: "98", wantPnL: "-0.12"},
		{name: "long win", side: core.Long, entry: "100", exit: "110", wantPnL: "0.6"},
		{name: "short loss", side: core.Short, entry: "100", exit: "102", wantPnL: "-0.12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPaper(d("1000"))
			open := core.OrderIntent{Kind: core.IntentOpen, Symbol: "BTCUSDT", Side: tt.side, Quantity: d("0.06"), Price: d(tt.entry)}
			f, err := p.OpenPosition(ctx, open)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if !strings.HasPrefix(f.OrderID, "paper-") {
				t.Errorf("order id = %q", f.OrderID)
			}
			if _, err := p.OpenPosition(ctx, open); err == nil {
				t.Error("second open on the same symbol should fail")
			}

			cl := core.OrderIntent{Kind: core.IntentClose, Symbol: "BTCUSDT", Side: tt.side, Quantity: d("0.06"), Price: d(tt.exit)}
			if _, err := p.ClosePosition(ctx, cl); err != nil {
				t.Fatalf("close: %v", err)
			}
			trades := p.Trades()
			if len(trades) != 1 || !trades[0].PnL.Equal(d(tt.wantPnL)) {
				t.Fatalf("trades = %+v, want pnl %s", trades, tt.wantPnL)
			}
			b, _ := p.Balance(ctx)
			if !b.Equity.Equal(d("1000").Add(d(tt.wantPnL))) {
				t.Errorf("equity = %s", b.Equity)
			}
		})
	}
}

func TestPaperFailNext(t *testing.T) {
	p := NewPaper(d("100"))
	boom := errors.New("exchange down")
	p.FailNext(boom)
	in := core.OrderIntent{Kind: core.IntentOpen, Symbol: "ETHUSDT", Side: core.Long, Quantity: d("1"), Price: d("10")}
	if _, err := p.OpenPosition(context.Background(), in); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want injected failure", err)
	}
	if _, err := p.OpenPosition(context.Background(), in); err != nil {
		t.Fatalf("failure should apply once: %v", err)
	}
	if _, err := p.ClosePosition(context.Background(), core.OrderIntent{Symbol: "BTCUSDT"}); err == nil {
		t.Error("close without position should fail")
	}
}

func TestPaperAdoptRestoredPosition(t *testing.T) {
	tests := []struct {
		name    string
		st      core.SymbolState
		exit    string
		wantErr bool
		wantPnL string
	}{
		{
			name:    "long",
			st:      core.SymbolState{Symbol: "BTCUSDT", Phase: core.Open, Side: core.Long, EntryPrice: d("100"), Quantity: d("0.06"), StopPrice: d("98")},
			exit:    "97",
			wantPnL: "-0.18",
		},
		{
			name:    "short",
			st:      core.SymbolState{Symbol: "BTCUSDT", Phase: core.Open, Side: core.Short, EntryPrice: d("100"), Quantity: d("0.06"), StopPrice: d("102")},
			exit:    "103",
			wantPnL: "-0.18",
		},
		{name: "waiting", st: core.SymbolState{Symbol: "BTCUSDT", Phase: core.WaitingReentry, Side: core.Long}, wantErr: true},
		{name: "zero quantity", st: core.SymbolState{Symbol: "BTCUSDT", Phase: core.Open, Side: core.Long, EntryPrice: d("100")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPaper(d("1000"))
			err := p.Adopt(tt.st)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("adopt: %v", err)
			}
			cl := core.OrderIntent{Kind: core.IntentClose, Symbol: "BTCUSDT", Side: tt.st.Side, Quantity: tt.st.Quantity, Price: d(tt.exit)}
			f, err := p.ClosePosition(ctx, cl)
			if err != nil {
				t.Fatalf("close after adopt: %v", err)
			}
			if !f.Quantity.Equal(tt.st.Quantity) {
				t.Errorf("fill qty = %s", f.Quantity)
			}
			trades := p.Trades()
			if len(trades) != 1 || !trades[0].PnL.Equal(d(tt.wantPnL)) {
				t.Fatalf("trades = %+v, want pnl %s", trades, tt.wantPnL)
			}
		})
	}
}
