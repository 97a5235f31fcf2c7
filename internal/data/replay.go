package data

import (
	"context"
	"fmt"
	"sync"

	"reentrybot/internal/core"
)

// Replay serves a fixed candle history up to a movable cursor.
type Replay struct {
	mu      sync.Mutex
	candles []core.Candle
	cursor  int
}

func NewReplay(candles []core.Candle) *Replay {
	return &Replay{candles: candles}
}

func (r *Replay) Len() int { return len(r.candles) }

// Seek makes candles[0..i] the closed history.
func (r *Replay) Seek(i int) {
	r.mu.Lock()
	r.cursor = i
	r.mu.Unlock()
}

func (r *Replay) ClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor < 0 || r.cursor >= len(r.candles) {
		return nil, fmt.Errorf("%w: replay cursor %d out of range", core.ErrDataUnavailable, r.cursor)
	}
	end := r.cursor + 1
	start := 0
	if limit > 0 && end > limit {
		start = end - limit
	}
	return r.candles[start:end], nil
}
