package backtest

import (
	"github.com/shopspring/decimal"

	"reentrybot/internal/broker"
)

type Summary struct {
	PnL          decimal.Decimal `json:"pnl"`
	Trades       int             `json:"trades"`
	WinRate      float64         `json:"winRate"`
	ProfitFactor float64         `json:"profitFactor"`
	MaxDD        float64         `json:"maxDD"` // percent, <= 0
	FinalEquity  decimal.Decimal `json:"finalEquity"`
}

// ComputeMetrics summarizes closed trades and the equity curve. ProfitFactor
// is 0 when there are no losing trades.
func ComputeMetrics(eq []Point, trades []broker.Trade) Summary {
	var s Summary
	gross, loss := decimal.Zero, decimal.Zero
	wins := 0
	for _, t := range trades {
		s.PnL = s.PnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			wins++
			gross = gross.Add(t.PnL)
		} else {
			loss = loss.Sub(t.PnL)
		}
	}
	s.Trades = len(trades)
	if s.Trades > 0 {
		s.WinRate = float64(wins) / float64(s.Trades)
	}
	if loss.IsPositive() {
		s.ProfitFactor = gross.Div(loss).InexactFloat64()
	}

	// max drawdown of the equity curve
	if len(eq) > 0 {
		peak := eq[0].Equity
		for _, p := range eq {
			if p.Equity.GreaterThan(peak) {
				peak = p.Equity
			}
			if !peak.IsPositive() {
				continue
			}
			if d := p.Equity.Sub(peak).Div(peak).Shift(2).InexactFloat64(); d < s.MaxDD {
				s.MaxDD = d
			}
		}
		s.FinalEquity = eq[len(eq)-1].Equity
	}
	return s
}
