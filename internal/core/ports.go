package core

import (
	"context"
	"errors"
)

var (
	// ErrDataUnavailable marks a tick skipped because candles could not be
	// fetched or the history was too short for the signal source.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrOrderFailed marks an intent the execution provider did not fill.
	ErrOrderFailed = errors.New("order failed")
	// ErrRejected marks an intent refused by the risk model before execution.
	ErrRejected = errors.New("order rejected")
)

// MarketData returns closed candles only, oldest first.
type MarketData interface {
	ClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

type Executor interface {
	OpenPosition(ctx context.Context, in OrderIntent) (Fill, error)
	ClosePosition(ctx context.Context, in OrderIntent) (Fill, error)
}

type BalanceProvider interface {
	Balance(ctx context.Context) (Balance, error)
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type SignalSource interface {
	Signal(candles []Candle) Signal
	Warmup() int
	Name() string
}

type StateStore interface {
	Load(ctx context.Context) (map[string]SymbolState, error)
	Save(ctx context.Context, st SymbolState) error
}

type RiskModel interface {
	Validate(in OrderIntent) error
}

type EventSink interface {
	Publish(ev Event)
}

// NotifyFunc adapts a plain function to Notifier.
type NotifyFunc func(ctx context.Context, text string) error

func (f NotifyFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }
