package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reentrybot/internal/broker"
	"reentrybot/internal/core"
	"reentrybot/internal/data"
)

type Params struct {
	Symbol        string
	Interval      string
	Candles       []core.Candle // oldest first
	Source        core.SignalSource
	Sizing        core.Sizing
	InitialEquity decimal.Decimal
	History       int            // candles per step, default 50
	Risk          core.RiskModel // optional
}

type Point struct {
	TS     time.Time       `json:"ts"`
	Equity decimal.Decimal `json:"eq"`
}

type Result struct {
	Trades      []broker.Trade       `json:"trades"`
	Journal     []core.TradeLogEntry `json:"journal"`
	EquityCurve []Point              `json:"equity"`
	Final       core.SymbolState     `json:"final"`
	Summary     Summary              `json:"summary"`
}

// journal collects trade log rows in memory.
type journal struct {
	mu   sync.Mutex
	rows []core.TradeLogEntry
}

func (j *journal) Append(r core.TradeLogEntry) error {
	j.mu.Lock()
	j.rows = append(j.rows, r)
	j.mu.Unlock()
	return nil
}

func (j *journal) LastN(n int) ([]core.TradeLogEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > len(j.rows) {
		n = len(j.rows)
	}
	return append([]core.TradeLogEntry(nil), j.rows[len(j.rows)-n:]...), nil
}

// Run replays candles one by one through the live engine with a paper broker.
// Equity is marked to market at every close.
func Run(ctx context.Context, p Params) (Result, error) {
	if len(p.Candles) == 0 {
		return Result{}, errors.New("no history")
	}
	if p.Source == nil {
		return Result{}, errors.New("no signal source")
	}
	if p.History <= 0 {
		p.History = 50
	}
	if w := p.Source.Warmup(); p.History < w {
		p.History = w
	}

	var now time.Time
	clock := func() time.Time { return now }
	replay := data.NewReplay(p.Candles)
	paper := broker.NewPaper(p.InitialEquity).WithClock(clock)
	jr := &journal{}
	sc := core.SymbolConfig{Symbol: p.Symbol, Source: p.Source}
	eng := core.NewEngine(core.EngineOpts{
		Mode:     "backtest",
		Interval: p.Interval,
		History:  p.History,
		Sizing:   p.Sizing,
		Symbols:  []core.SymbolConfig{sc},
		Market:   replay,
		Exec:     paper,
		Risk:     p.Risk,
		Trades:   jr,
		Now:      clock,
	})

	equity := make([]Point, 0, len(p.Candles)+1)
	equity = append(equity, Point{TS: p.Candles[0].Start, Equity: p.InitialEquity})
	for i, c := range p.Candles {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		now = c.Start
		replay.Seek(i)
		if err := eng.Step(ctx, sc); err != nil && !skippable(err) {
			return Result{}, fmt.Errorf("step %s: %w", c.Start.Format(time.RFC3339), err)
		}
		bal, err := paper.Balance(ctx)
		if err != nil {
			return Result{}, err
		}
		eq := bal.Equity
		if st := eng.State(p.Symbol); st.Phase == core.Open {
			eq = eq.Add(core.PnL(st.Side, st.EntryPrice, c.Close, st.Quantity))
		}
		equity = append(equity, Point{TS: c.Start, Equity: eq})
	}

	trades := paper.Trades()
	rows, _ := jr.LastN(0)
	return Result{
		Trades:      trades,
		Journal:     rows,
		EquityCurve: equity,
		Final:       eng.State(p.Symbol),
		Summary:     ComputeMetrics(equity, trades),
	}, nil
}

// Warmup gaps and risk rejections skip the candle; anything else aborts.
func skippable(err error) bool {
	return errors.Is(err, core.ErrDataUnavailable) || errors.Is(err, core.ErrRejected)
}
