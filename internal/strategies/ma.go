package strategies

import (
	"fmt"
	"strings"

	"reentrybot/internal/core"
)

type MAKind string

const (
	KindEMA MAKind = "ema"
	KindSMA MAKind = "sma"
)

func ParseKind(s string) (MAKind, error) {
	switch MAKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindEMA, "":
		return KindEMA, nil
	case KindSMA:
		return KindSMA, nil
	}
	return "", fmt.Errorf("unknown moving average %q", s)
}

// Crossover emits Long/Short when the fast line crosses the slow moving
// average on the last closed candle. With Fast == 0 the fast line is the
// close price itself.
type Crossover struct {
	Kind       MAKind
	Fast, Slow int
}

func NewCrossover(kind MAKind, fast, slow int) *Crossover {
	if slow < 1 {
		slow = 1
	}
	if fast < 0 || fast >= slow {
		fast = 0
	}
	return &Crossover{Kind: kind, Fast: fast, Slow: slow}
}

func (s *Crossover) Warmup() int { return s.Slow + 1 }

func (s *Crossover) Name() string {
	if s.Fast == 0 {
		return fmt.Sprintf("%s(%d)", strings.ToUpper(string(s.Kind)), s.Slow)
	}
	return fmt.Sprintf("%s(%d/%d)", strings.ToUpper(string(s.Kind)), s.Fast, s.Slow)
}

func (s *Crossover) Signal(candles []core.Candle) core.Signal {
	if len(candles) < 2 {
		return core.SignalNone
	}
	cl := closes(candles)
	slow := s.ma(cl, s.Slow)
	fast := cl
	if s.Fast > 0 {
		fast = s.ma(cl, s.Fast)
	}
	switch {
	case crossUp(fast, slow):
		return core.SignalLong
	case crossDown(fast, slow):
		return core.SignalShort
	}
	return core.SignalNone
}

func (s *Crossover) ma(x []float64, n int) []float64 {
	if s.Kind == KindSMA {
		return SMA(x, n)
	}
	return EMA(x, n)
}

// === utils ===

// EMA is seeded with the first value (no bias adjustment).
func EMA(x []float64, n int) []float64 {
	res := make([]float64, len(x))
	if len(x) == 0 {
		return res
	}
	k := 2.0 / (float64(n) + 1)
	res[0] = x[0]
	for i := 1; i < len(x); i++ {
		res[i] = x[i]*k + res[i-1]*(1-k)
	}
	return res
}

// SMA averages the trailing n values; the first n-1 entries average what is available.
func SMA(x []float64, n int) []float64 {
	res := make([]float64, len(x))
	if n < 1 {
		n = 1
	}
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= n {
			sum -= x[i-n]
		}
		w := i + 1
		if w > n {
			w = n
		}
		res[i] = sum / float64(w)
	}
	return res
}

func crossUp(a, b []float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return a[len(a)-2] <= b[len(b)-2] && a[len(a)-1] > b[len(b)-1]
}

func crossDown(a, b []float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return a[len(a)-2] >= b[len(b)-2] && a[len(a)-1] < b[len(b)-1]
}

func closes(k []core.Candle) []float64 {
	r := make([]float64, len(k))
	for i := range k {
		r[i] = k[i].Close.InexactFloat64()
	}
	return r
}
