// Package broker provides the simulated execution provider used in paper
// mode and backtests.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

type lot struct {
	side  core.Side
	qty   decimal.Decimal
	entry decimal.Decimal
}

// Trade is a closed round trip booked by the paper broker.
type Trade struct {
	Symbol string
	Side   core.Side
	Qty    decimal.Decimal
	Entry  decimal.Decimal
	Exit   decimal.Decimal
	PnL    decimal.Decimal
	Opened time.Time
	Closed time.Time
}

// Paper fills every order at the intent's reference price.
type Paper struct {
	mu       sync.Mutex
	start    decimal.Decimal
	realized decimal.Decimal
	lots     map[string]lot
	opened   map[string]time.Time
	trades   []Trade
	failNext error
	now      func() time.Time
}

func NewPaper(equity decimal.Decimal) *Paper {
	return &Paper{start: equity, lots: map[string]lot{}, opened: map[string]time.Time{}, now: time.Now}
}

// WithClock replaces the fill timestamp source; backtests use candle time.
func (p *Paper) WithClock(now func() time.Time) *Paper {
	p.now = now
	return p
}

// Adopt books an Open state restored from the state store as a paper lot,
// so the position can be closed after a restart.
func (p *Paper) Adopt(st core.SymbolState) error {
	if st.Phase != core.Open {
		return fmt.Errorf("paper: %s is %s, not open", st.Symbol, st.Phase)
	}
	if !st.Quantity.IsPositive() || !st.EntryPrice.IsPositive() {
		return errors.New("paper: quantity and price must be > 0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lots[st.Symbol] = lot{side: st.Side, qty: st.Quantity, entry: st.EntryPrice}
	p.opened[st.Symbol] = st.UpdatedAt
	return nil
}

// FailNext makes the next order fail with err.
func (p *Paper) FailNext(err error) {
	p.mu.Lock()
	p.failNext = err
	p.mu.Unlock()
}

func (p *Paper) OpenPosition(ctx context.Context, in core.OrderIntent) (core.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return core.Fill{}, err
	}
	if _, ok := p.lots[in.Symbol]; ok {
		return core.Fill{}, fmt.Errorf("paper: %s already has an open position", in.Symbol)
	}
	if !in.Quantity.IsPositive() || !in.Price.IsPositive() {
		return core.Fill{}, errors.New("paper: quantity and price must be > 0")
	}
	now := p.now()
	p.lots[in.Symbol] = lot{side: in.Side, qty: in.Quantity, entry: in.Price}
	p.opened[in.Symbol] = now
	return p.fill(in, now), nil
}

func (p *Paper) ClosePosition(ctx context.Context, in core.OrderIntent) (core.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return core.Fill{}, err
	}
	l, ok := p.lots[in.Symbol]
	if !ok {
		return core.Fill{}, fmt.Errorf("paper: %s has no open position", in.Symbol)
	}
	now := p.now()
	pnl := core.PnL(l.side, l.entry, in.Price, l.qty)
	p.realized = p.realized.Add(pnl)
	p.trades = append(p.trades, Trade{
		Symbol: in.Symbol,
		Side:   l.side,
		Qty:    l.qty,
		Entry:  l.entry,
		Exit:   in.Price,
		PnL:    pnl,
		Opened: p.opened[in.Symbol],
		Closed: now,
	})
	delete(p.lots, in.Symbol)
	delete(p.opened, in.Symbol)
	f := p.fill(in, now)
	f.Quantity = l.qty
	return f, nil
}

func (p *Paper) Balance(ctx context.Context) (core.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	eq := p.start.Add(p.realized)
	return core.Balance{Asset: "USDT", Equity: eq, Available: eq}, nil
}

// Trades returns a copy of the closed round trips.
func (p *Paper) Trades() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Trade(nil), p.trades...)
}

func (p *Paper) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}

func (p *Paper) fill(in core.OrderIntent, at time.Time) core.Fill {
	return core.Fill{
		OrderID:  "paper-" + uuid.NewString(),
		Symbol:   in.Symbol,
		Side:     in.Side,
		Quantity: in.Quantity,
		Price:    in.Price,
		Time:     at,
	}
}
