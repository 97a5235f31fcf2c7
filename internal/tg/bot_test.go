package tg

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

type fakeView struct {
	states   []core.SymbolState
	failures map[string]int
}

func (v fakeView) Mode() string                 { return "paper" }
func (v fakeView) Interval() string             { return "15m" }
func (v fakeView) Snapshot() []core.SymbolState { return v.states }
func (v fakeView) Failures(symbol string) int   { return v.failures[symbol] }

type fakeBalance struct{ err error }

func (f fakeBalance) Balance(context.Context) (core.Balance, error) {
	return core.Balance{Asset: "USDT", Equity: decimal.RequireFromString("10000.5"), Available: decimal.NewFromInt(9994)}, f.err
}

type fakeHistory []core.TradeLogEntry

func (h fakeHistory) LastN(int) ([]core.TradeLogEntry, error) { return h, nil }

type fakeSender struct {
	sent []gobot.MessageConfig
	err  error
}

func (s *fakeSender) Send(c gobot.Chattable) (gobot.Message, error) {
	if m, ok := c.(gobot.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return gobot.Message{}, s.err
}

func newTestBot() *Bot {
	d := decimal.RequireFromString
	view := fakeView{
		states: []core.SymbolState{
			{Symbol: "BTCUSDT", Phase: core.Open, Side: core.Long, EntryPrice: d("100"), Quantity: d("0.06"), StopPrice: d("98")},
			{Symbol: "ETHUSDT", Phase: core.WaitingReentry, Side: core.Short},
			{Symbol: "DOGEUSDT", Phase: core.Flat},
		},
		failures: map[string]int{"DOGEUSDT": 2},
	}
	hist := fakeHistory{{
		TS: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Symbol: "BTCUSDT", Event: "close", Side: "long",
		Qty: d("0.06"), Price: d("97.5"), PnL: d("-0.15"),
	}}
	return &Bot{chatID: 42, view: view, balances: fakeBalance{}, history: hist}
}

func TestAnswer(t *testing.T) {
	b := newTestBot()
	tests := []struct {
		cmd  string
		want []string
	}{
		{"/help", []string{"/status", "/positions"}},
		{"/status", []string{"Mode: paper | TF: 15m", "BTCUSDT: open long", "ETHUSDT: waiting_reentry short", "DOGEUSDT: flat (2 failed ticks)"}},
		{"/status@reentry_bot", []string{"BTCUSDT: open long"}},
		{"/positions", []string{"BTCUSDT LONG 0.060000 @ 100.0000 | SL 98.0000"}},
		{"/trades", []string{"05-01 12:00 BTCUSDT close LONG", "PnL -0.1500"}},
		{"/balance", []string{"USDT equity 10000.50 | available 9994.00"}},
		{"/assets", []string{"USDT equity"}},
		{"hello", []string{"Unknown command"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got := b.answer(context.Background(), tt.cmd)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("answer(%q) = %q, missing %q", tt.cmd, got, w)
				}
			}
		})
	}
	if got := b.answer(context.Background(), "/positions"); strings.Contains(got, "ETHUSDT") {
		t.Errorf("waiting symbol listed as position: %q", got)
	}
}

func TestAnswerDegrades(t *testing.T) {
	b := &Bot{view: fakeView{}, balances: fakeBalance{err: errors.New("down")}}
	if got := b.answer(context.Background(), "/balance"); got != "Balance unavailable" {
		t.Errorf("balance = %q", got)
	}
	if got := b.answer(context.Background(), "/trades"); got != "Trade log unavailable" {
		t.Errorf("trades = %q", got)
	}
	if got := b.answer(context.Background(), "/positions"); got != "No open positions" {
		t.Errorf("positions = %q", got)
	}
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	disabled := &Bot{}
	if err := disabled.Notify(ctx, "x"); err != nil {
		t.Errorf("disabled Notify = %v", err)
	}

	s := &fakeSender{}
	b := &Bot{out: s, chatID: 42}
	if err := b.Notify(ctx, "LONG open BTCUSDT"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 1 || s.sent[0].ChatID != 42 || s.sent[0].Text != "LONG open BTCUSDT" {
		t.Errorf("sent = %+v", s.sent)
	}

	s.err = errors.New("429")
	if err := b.Notify(ctx, "x"); err == nil {
		t.Error("expected send error")
	}
}
