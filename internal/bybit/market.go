package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

var intervals = map[string]struct {
	code string
	dur  time.Duration
}{
	"1m":  {"1", time.Minute},
	"3m":  {"3", 3 * time.Minute},
	"5m":  {"5", 5 * time.Minute},
	"15m": {"15", 15 * time.Minute},
	"30m": {"30", 30 * time.Minute},
	"1h":  {"60", time.Hour},
	"2h":  {"120", 2 * time.Hour},
	"4h":  {"240", 4 * time.Hour},
	"6h":  {"360", 6 * time.Hour},
	"12h": {"720", 12 * time.Hour},
	"1d":  {"D", 24 * time.Hour},
	"1w":  {"W", 7 * 24 * time.Hour},
}

// IntervalCode maps a timeframe such as "15m" to the Bybit interval code and its duration.
func IntervalCode(tf string) (string, time.Duration, error) {
	iv, ok := intervals[tf]
	if !ok {
		return "", 0, fmt.Errorf("unsupported interval %q", tf)
	}
	return iv.code, iv.dur, nil
}

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

// ClosedCandles returns up to limit fully closed candles, oldest first. Bybit
// lists newest first and includes the candle still in progress; it is dropped.
func (c *Client) ClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	code, dur, err := IntervalCode(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDataUnavailable, err)
	}
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	q.Set("interval", code)
	q.Set("limit", strconv.Itoa(min(limit+1, 1000)))

	var res klineResult
	if err := c.get(ctx, "/v5/market/kline", q, false, &res); err != nil {
		return nil, fmt.Errorf("%w: kline %s: %v", core.ErrDataUnavailable, symbol, err)
	}

	now := c.now()
	out := make([]core.Candle, 0, len(res.List))
	for i := len(res.List) - 1; i >= 0; i-- {
		k, err := parseKline(symbol, interval, res.List[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrDataUnavailable, err)
		}
		if k.Start.Add(dur).After(now) {
			continue
		}
		out = append(out, k)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// row: [startTime, open, high, low, close, volume, turnover]
func parseKline(symbol, interval string, row []string) (core.Candle, error) {
	if len(row) < 6 {
		return core.Candle{}, errors.New("short kline row")
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return core.Candle{}, fmt.Errorf("kline start %q: %w", row[0], err)
	}
	var px [5]decimal.Decimal
	for i := range px {
		if px[i], err = decimal.NewFromString(row[i+1]); err != nil {
			return core.Candle{}, fmt.Errorf("kline field %d %q: %w", i+1, row[i+1], err)
		}
	}
	return core.Candle{
		Symbol:   symbol,
		Interval: interval,
		Start:    time.UnixMilli(ms).UTC(),
		Open:     px[0],
		High:     px[1],
		Low:      px[2],
		Close:    px[3],
		Volume:   px[4],
	}, nil
}

type Instrument struct {
	Symbol  string
	QtyStep decimal.Decimal
	MinQty  decimal.Decimal
}

type instrumentsResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		LotSizeFilter struct {
			QtyStep     string `json:"qtyStep"`
			MinOrderQty string `json:"minOrderQty"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

// Instrument returns the lot size filter for a symbol, cached after the first call.
func (c *Client) Instrument(ctx context.Context, symbol string) (Instrument, error) {
	c.mu.Lock()
	ins, ok := c.instruments[symbol]
	c.mu.Unlock()
	if ok {
		return ins, nil
	}

	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	var res instrumentsResult
	if err := c.get(ctx, "/v5/market/instruments-info", q, false, &res); err != nil {
		return Instrument{}, fmt.Errorf("instruments-info %s: %w", symbol, err)
	}
	if len(res.List) == 0 {
		return Instrument{}, fmt.Errorf("instrument %s not found", symbol)
	}
	lot := res.List[0].LotSizeFilter
	step, err := decimal.NewFromString(lot.QtyStep)
	if err != nil {
		return Instrument{}, fmt.Errorf("qtyStep %q: %w", lot.QtyStep, err)
	}
	minQty, err := decimal.NewFromString(lot.MinOrderQty)
	if err != nil {
		return Instrument{}, fmt.Errorf("minOrderQty %q: %w", lot.MinOrderQty, err)
	}
	ins = Instrument{Symbol: symbol, QtyStep: step, MinQty: minQty}

	c.mu.Lock()
	c.instruments[symbol] = ins
	c.mu.Unlock()
	return ins, nil
}

// RoundQty floors qty to a multiple of step.
func RoundQty(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
