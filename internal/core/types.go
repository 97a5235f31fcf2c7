package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side int

const (
	SideNone Side = iota
	Long
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "none"
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "long":
		*s = Long
	case "short":
		*s = Short
	case "none", "":
		*s = SideNone
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

// Signal is the directional output of a SignalSource.
type Signal int

const (
	SignalNone Signal = iota
	SignalLong
	SignalShort
)

// Side maps the signal onto a position side; SignalNone maps to SideNone.
func (s Signal) Side() Side {
	switch s {
	case SignalLong:
		return Long
	case SignalShort:
		return Short
	default:
		return SideNone
	}
}

func (s Signal) String() string { return s.Side().String() }

type Phase int

const (
	Flat Phase = iota
	Open
	WaitingReentry
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case WaitingReentry:
		return "waiting_reentry"
	default:
		return "flat"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "flat", "":
		*p = Flat
	case "open":
		*p = Open
	case "waiting_reentry":
		*p = WaitingReentry
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

type Candle struct {
	Symbol   string
	Interval string
	Start    time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// SymbolState is the position bookkeeping for one traded symbol.
// Side is kept while WaitingReentry so the confirming signal can be matched.
type SymbolState struct {
	Symbol     string          `json:"symbol"`
	Phase      Phase           `json:"phase"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	StopPrice  decimal.Decimal `json:"stop_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Validate reports whether the state is internally consistent. An Open state
// needs a side, positive entry and quantity, and a stop on the losing side of
// the entry.
func (s SymbolState) Validate() error {
	switch s.Phase {
	case Flat:
		return nil
	case Open:
		if s.Side != Long && s.Side != Short {
			return fmt.Errorf("open position without side")
		}
		if !s.EntryPrice.IsPositive() || !s.Quantity.IsPositive() {
			return fmt.Errorf("open position entry %s qty %s", s.EntryPrice, s.Quantity)
		}
		if !s.StopPrice.IsPositive() {
			return fmt.Errorf("open position stop %s", s.StopPrice)
		}
		if s.Side == Long && !s.StopPrice.LessThan(s.EntryPrice) {
			return fmt.Errorf("long stop %s not below entry %s", s.StopPrice, s.EntryPrice)
		}
		if s.Side == Short && !s.StopPrice.GreaterThan(s.EntryPrice) {
			return fmt.Errorf("short stop %s not above entry %s", s.StopPrice, s.EntryPrice)
		}
		return nil
	case WaitingReentry:
		if s.Side != Long && s.Side != Short {
			return fmt.Errorf("waiting re-entry without side")
		}
		return nil
	default:
		return fmt.Errorf("unknown phase %d", int(s.Phase))
	}
}

// Sizing holds the per-trade parameters used when a position opens.
// StopPct is a fraction: 0.02 means 2%.
type Sizing struct {
	Notional decimal.Decimal
	StopPct  decimal.Decimal
}

type IntentKind int

const (
	IntentOpen IntentKind = iota
	IntentClose
)

func (k IntentKind) String() string {
	if k == IntentClose {
		return "close"
	}
	return "open"
}

const (
	ReasonSignal   = "signal"
	ReasonReentry  = "reentry"
	ReasonStopLoss = "stop_loss"
)

// OrderIntent is what the state machine wants the execution provider to do.
// Price is the close of the candle that produced the intent.
type OrderIntent struct {
	Kind      IntentKind
	Symbol    string
	Side      Side
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	Reason    string
}

type Fill struct {
	OrderID  string
	Symbol   string
	Side     Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Time     time.Time
}

type Balance struct {
	Asset     string
	Equity    decimal.Decimal
	Available decimal.Decimal
}

// Event is published after every applied transition.
type Event struct {
	Type   string      `json:"type"`
	Symbol string      `json:"symbol"`
	State  SymbolState `json:"state"`
	Reason string      `json:"reason,omitempty"`
	TS     time.Time   `json:"ts"`
}
