package data

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

// RandomWalk is a synthetic market for paper mode without network access.
// Every ClosedCandles call closes one more candle for that symbol.
type RandomWalk struct {
	mu     sync.Mutex
	start  time.Time
	price  float64
	vol    float64
	rnd    *rand.Rand
	series map[string][]core.Candle
}

func NewRandomWalk(start time.Time, startPrice, vol float64, seed int64) *RandomWalk {
	return &RandomWalk{
		start:  start,
		price:  startPrice,
		vol:    vol,
		rnd:    rand.New(rand.NewSource(seed)),
		series: map[string][]core.Candle{},
	}
}

func (f *RandomWalk) ClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.series[symbol]
	if len(s) == 0 {
		// seed enough history for the slowest moving average
		for i := 0; i < limit; i++ {
			s = f.next(s, symbol, interval)
		}
	}
	s = f.next(s, symbol, interval)
	f.series[symbol] = s
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	return append([]core.Candle(nil), s...), nil
}

// Generate returns n consecutive synthetic candles, used by backtests.
func (f *RandomWalk) Generate(symbol, interval string, n int) []core.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s []core.Candle
	for i := 0; i < n; i++ {
		s = f.next(s, symbol, interval)
	}
	return s
}

func (f *RandomWalk) next(s []core.Candle, symbol, interval string) []core.Candle {
	step := tfDur(interval)
	ts := f.start
	open := f.price
	if n := len(s); n > 0 {
		ts = s[n-1].Start.Add(step)
		open = s[n-1].Close.InexactFloat64()
	}
	ret := (f.rnd.Float64() - 0.5) * 2.0 * f.vol // +/- vol
	close := open * (1.0 + ret)
	high := maxf(open, close) * (1.0 + f.rnd.Float64()*f.vol*0.5)
	low := minf(open, close) * (1.0 - f.rnd.Float64()*f.vol*0.5)
	vol := 10_000 + f.rnd.Float64()*5_000
	return append(s, core.Candle{
		Symbol:   symbol,
		Interval: interval,
		Start:    ts,
		Open:     decimal.NewFromFloat(open).Round(8),
		High:     decimal.NewFromFloat(high).Round(8),
		Low:      decimal.NewFromFloat(low).Round(8),
		Close:    decimal.NewFromFloat(close).Round(8),
		Volume:   decimal.NewFromFloat(vol).Round(4),
	})
}

func tfDur(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	}
	return time.Minute
}

func maxf(a, b float64) float64 {
	if a < b {
		return b
	}
	return a
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
