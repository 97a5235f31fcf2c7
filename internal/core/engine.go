package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"reentrybot/internal/metrics"
)

// SymbolConfig binds a traded symbol to the signal source that drives it.
type SymbolConfig struct {
	Symbol string
	Source SignalSource
}

type EngineOpts struct {
	Mode     string
	Interval string
	History  int
	Sizing   Sizing
	Symbols  []SymbolConfig

	Market   MarketData
	Exec     Executor
	Risk     RiskModel
	Notifier Notifier
	Store    StateStore
	Trades   TradeLogger
	Events   EventSink

	// AlertAfter sends one notification when a symbol reaches this many
	// consecutive failed ticks. Zero disables the alert.
	AlertAfter int
	Now        func() time.Time
}

// Engine owns every SymbolState and is the only writer. Steps run
// sequentially from one goroutine; readers use Snapshot.
type Engine struct {
	mode       string
	interval   string
	history    int
	sizing     Sizing
	symbols    []SymbolConfig
	market     MarketData
	exec       Executor
	risk       RiskModel
	notifier   Notifier
	store      StateStore
	trades     TradeLogger
	events     EventSink
	alertAfter int
	now        func() time.Time

	mu       sync.RWMutex
	states   map[string]SymbolState
	failures map[string]int
	// start of the last candle each symbol has acted on
	seen map[string]time.Time
}

func NewEngine(opts EngineOpts) *Engine {
	if opts.Notifier == nil {
		opts.Notifier = NotifyFunc(func(context.Context, string) error { return nil })
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.History <= 0 {
		opts.History = 50
	}
	e := &Engine{
		mode:       opts.Mode,
		interval:   opts.Interval,
		history:    opts.History,
		sizing:     opts.Sizing,
		symbols:    opts.Symbols,
		market:     opts.Market,
		exec:       opts.Exec,
		risk:       opts.Risk,
		notifier:   opts.Notifier,
		store:      opts.Store,
		trades:     opts.Trades,
		events:     opts.Events,
		alertAfter: opts.AlertAfter,
		now:        opts.Now,
		states:     make(map[string]SymbolState, len(opts.Symbols)),
		failures:   make(map[string]int, len(opts.Symbols)),
		seen:       make(map[string]time.Time, len(opts.Symbols)),
	}
	for _, sc := range opts.Symbols {
		e.states[sc.Symbol] = SymbolState{Symbol: sc.Symbol, Phase: Flat}
	}
	return e
}

func (e *Engine) Mode() string     { return e.mode }
func (e *Engine) Interval() string { return e.interval }

// Restore loads persisted states for the configured symbols. Unknown symbols
// in the store are ignored and inconsistent states restart Flat.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	saved, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for sym := range e.states {
		st, ok := saved[sym]
		if !ok {
			continue
		}
		st.Symbol = sym
		if err := st.Validate(); err != nil {
			log.Error().Err(err).Str("symbol", sym).Str("phase", st.Phase.String()).Msg("discarding saved state, starting flat")
			continue
		}
		e.states[sym] = st
		if !st.UpdatedAt.IsZero() {
			e.seen[sym] = st.UpdatedAt
		}
		metrics.SetPhase(sym, int(st.Phase))
		log.Info().Str("symbol", sym).Str("phase", st.Phase.String()).Str("side", st.Side.String()).Msg("state restored")
	}
	return nil
}

// Run steps every symbol immediately and then once per interval until ctx ends.
func (e *Engine) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		e.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Tick steps all symbols once. A failing symbol never blocks the others.
func (e *Engine) Tick(ctx context.Context) {
	for _, sc := range e.symbols {
		if ctx.Err() != nil {
			return
		}
		if err := e.Step(ctx, sc); err != nil {
			log.Warn().Err(err).Str("symbol", sc.Symbol).Msg("tick failed")
		}
	}
}

// Step runs one tick for one symbol. The new state is applied only after
// every intent it produced was executed. A candle already acted on is not
// evaluated again, so polling faster than the interval is a no-op.
func (e *Engine) Step(ctx context.Context, sc SymbolConfig) error {
	sym := sc.Symbol
	candles, err := e.market.ClosedCandles(ctx, sym, e.interval, e.history)
	if err != nil {
		if !errors.Is(err, ErrDataUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
		metrics.IncDataUnavailable(sym)
		return e.fail(ctx, sym, err)
	}
	if need := sc.Source.Warmup(); len(candles) < need {
		metrics.IncDataUnavailable(sym)
		return e.fail(ctx, sym, fmt.Errorf("%w: %d candles, need %d", ErrDataUnavailable, len(candles), need))
	}

	last := candles[len(candles)-1]
	if e.acted(sym, last.Start) {
		e.succeed(sym)
		return nil
	}
	sig := sc.Source.Signal(candles)
	cur := e.State(sym)
	next, intents := Transition(cur, sig, last, e.sizing)
	log.Debug().Str("symbol", sym).Str("signal", sig.String()).Str("phase", cur.Phase.String()).
		Str("close", last.Close.String()).Msg("tick")
	if len(intents) == 0 {
		e.markSeen(sym, last.Start)
		e.succeed(sym)
		return nil
	}

	fills := make([]Fill, 0, len(intents))
	for _, in := range intents {
		f, err := e.execute(ctx, in)
		if err != nil {
			metrics.IncOrderFailure(in.Kind.String())
			e.notify(ctx, fmt.Sprintf("%s %s %s failed: %v", strings.ToUpper(in.Side.String()), in.Kind, sym, err))
			return e.fail(ctx, sym, err)
		}
		metrics.IncOrder(in.Side.String(), in.Kind.String())
		fills = append(fills, f)
	}

	e.apply(ctx, cur, next)
	e.markSeen(sym, last.Start)
	for i, in := range intents {
		e.record(ctx, cur, in, fills[i])
	}
	e.succeed(sym)
	return nil
}

func (e *Engine) execute(ctx context.Context, in OrderIntent) (Fill, error) {
	var (
		f   Fill
		err error
	)
	switch in.Kind {
	case IntentOpen:
		if e.risk != nil {
			if err := e.risk.Validate(in); err != nil {
				return Fill{}, fmt.Errorf("%w: %v", ErrRejected, err)
			}
		}
		f, err = e.exec.OpenPosition(ctx, in)
	case IntentClose:
		f, err = e.exec.ClosePosition(ctx, in)
	default:
		return Fill{}, fmt.Errorf("%w: unknown intent %d", ErrOrderFailed, in.Kind)
	}
	if err != nil {
		if !errors.Is(err, ErrOrderFailed) {
			err = fmt.Errorf("%w: %v", ErrOrderFailed, err)
		}
		return Fill{}, err
	}
	if f.Price.IsZero() {
		f.Price = in.Price
	}
	if f.Quantity.IsZero() {
		f.Quantity = in.Quantity
	}
	if f.Time.IsZero() {
		f.Time = e.now()
	}
	return f, nil
}

func (e *Engine) apply(ctx context.Context, cur, next SymbolState) {
	e.mu.Lock()
	e.states[next.Symbol] = next
	e.mu.Unlock()

	metrics.IncTransition(cur.Phase.String(), next.Phase.String())
	metrics.SetPhase(next.Symbol, int(next.Phase))
	if e.store != nil {
		if err := e.store.Save(ctx, next); err != nil {
			log.Error().Err(err).Str("symbol", next.Symbol).Msg("persist state")
		}
	}
	log.Info().Str("symbol", next.Symbol).Str("from", cur.Phase.String()).Str("to", next.Phase.String()).
		Str("side", next.Side.String()).Msg("transition")
}

func (e *Engine) record(ctx context.Context, prev SymbolState, in OrderIntent, f Fill) {
	side := strings.ToUpper(in.Side.String())
	entry := TradeLogEntry{
		TS:       f.Time,
		Symbol:   in.Symbol,
		Interval: e.interval,
		Event:    in.Kind.String(),
		Side:     in.Side.String(),
		Qty:      f.Quantity,
		Price:    f.Price,
		OrderID:  f.OrderID,
		Comment:  in.Reason,
	}
	var msg string
	switch in.Kind {
	case IntentOpen:
		msg = fmt.Sprintf("%s open %s %s @ %s | SL %s (%s)", side, in.Symbol, f.Quantity.StringFixed(6),
			f.Price.StringFixed(4), in.StopPrice.StringFixed(4), in.Reason)
	case IntentClose:
		entry.PnL = PnL(prev.Side, prev.EntryPrice, f.Price, f.Quantity)
		msg = fmt.Sprintf("%s stop %s %s @ %s | PnL %s | waiting re-entry", side, in.Symbol,
			f.Quantity.StringFixed(6), f.Price.StringFixed(4), entry.PnL.StringFixed(4))
	}
	if e.trades != nil {
		if err := e.trades.Append(entry); err != nil {
			log.Error().Err(err).Str("symbol", in.Symbol).Msg("trade log append")
		}
	}
	if e.events != nil {
		e.events.Publish(Event{Type: in.Kind.String(), Symbol: in.Symbol, State: e.State(in.Symbol), Reason: in.Reason, TS: f.Time})
	}
	e.notify(ctx, msg)
}

// notify never fails the caller; delivery problems are logged and counted.
func (e *Engine) notify(ctx context.Context, text string) {
	if err := e.notifier.Notify(ctx, text); err != nil {
		metrics.IncNotifyFailure()
		log.Warn().Err(err).Msg("notify")
	}
}

func (e *Engine) fail(ctx context.Context, sym string, err error) error {
	e.mu.Lock()
	e.failures[sym]++
	n := e.failures[sym]
	e.mu.Unlock()
	metrics.SetFailures(sym, n)
	if e.alertAfter > 0 && n == e.alertAfter {
		e.notify(ctx, fmt.Sprintf("%s: %d consecutive failed ticks, last error: %v", sym, n, err))
	}
	return err
}

func (e *Engine) succeed(sym string) {
	e.mu.Lock()
	e.failures[sym] = 0
	e.mu.Unlock()
	metrics.SetFailures(sym, 0)
}

// acted reports whether a candle starting at or before start was already
// evaluated for sym.
func (e *Engine) acted(sym string, start time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.seen[sym]
	return ok && !start.After(t)
}

func (e *Engine) markSeen(sym string, start time.Time) {
	e.mu.Lock()
	e.seen[sym] = start
	e.mu.Unlock()
}

func (e *Engine) State(sym string) SymbolState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[sym]
}

func (e *Engine) Failures(sym string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failures[sym]
}

// Snapshot returns a copy of every state ordered by symbol.
func (e *Engine) Snapshot() []SymbolState {
	e.mu.RLock()
	out := make([]SymbolState, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, st)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// PnL of closing qty at exit for a position opened at entry.
func PnL(side Side, entry, exit, qty decimal.Decimal) decimal.Decimal {
	switch side {
	case Long:
		return exit.Sub(entry).Mul(qty)
	case Short:
		return entry.Sub(exit).Mul(qty)
	}
	return decimal.Zero
}
