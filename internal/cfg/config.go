package cfg

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// SymbolSpec is one traded symbol with its moving average periods.
// Fast == 0 compares price against the slow average.
type SymbolSpec struct {
	Symbol string
	Fast   int
	Slow   int
}

type Config struct {
	Mode         string // paper | live
	Symbols      []SymbolSpec
	MAKind       string
	Interval     string
	PollInterval time.Duration
	HistoryLimit int

	TradeNotional     decimal.Decimal
	StopLossPercent   decimal.Decimal
	Leverage          int
	FailureAlertAfter int
	PaperEquity       decimal.Decimal

	LogLevel  string
	LogPretty bool

	TgToken  string
	TgChatID int64

	StateBackend  string // file | redis | memory
	StatePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TradesPath  string
	DatabaseURL string

	WebAddr string
	DevMode bool

	BybitAPIKey     string
	BybitAPISecret  string
	BybitBaseURL    string
	BybitRecvWindow int
}

// StopFraction is the stop distance as a fraction of the entry price.
func (c Config) StopFraction() decimal.Decimal {
	return c.StopLossPercent.Div(decimal.NewFromInt(100))
}

func defaults(v *viper.Viper) {
	v.SetDefault("mode", "paper")
	v.SetDefault("symbols", "BTCUSDT:21,ETHUSDT:50,DOGEUSDT:14")
	v.SetDefault("ma_kind", "ema")
	v.SetDefault("interval", "15m")
	v.SetDefault("poll_interval", "60s")
	v.SetDefault("history_limit", 50)
	v.SetDefault("trade_notional", "6")
	v.SetDefault("stop_loss_percent", "2")
	v.SetDefault("leverage", 1)
	v.SetDefault("failure_alert_after", 3)
	v.SetDefault("paper_equity", "10000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("state_backend", "file")
	v.SetDefault("state_path", "data/state.json")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("trades_path", "logs/trades.csv")
	v.SetDefault("web_addr", ":8080")
	v.SetDefault("bybit_base_url", "https://api.bybit.com")
	v.SetDefault("bybit_recv_window", 5000)
}

// Load reads path (yaml, json or .env; empty means ./.env when present) and
// overlays environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".env") {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil && explicit {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	c := Config{
		Mode:              strings.ToLower(v.GetString("mode")),
		MAKind:            v.GetString("ma_kind"),
		Interval:          v.GetString("interval"),
		PollInterval:      v.GetDuration("poll_interval"),
		HistoryLimit:      v.GetInt("history_limit"),
		Leverage:          v.GetInt("leverage"),
		FailureAlertAfter: v.GetInt("failure_alert_after"),
		LogLevel:          v.GetString("log_level"),
		LogPretty:         v.GetBool("log_pretty"),
		TgToken:           v.GetString("tg_token"),
		TgChatID:          v.GetInt64("tg_chat_id"),
		StateBackend:      strings.ToLower(v.GetString("state_backend")),
		StatePath:         v.GetString("state_path"),
		RedisAddr:         v.GetString("redis_addr"),
		RedisPassword:     v.GetString("redis_password"),
		RedisDB:           v.GetInt("redis_db"),
		TradesPath:        v.GetString("trades_path"),
		DatabaseURL:       v.GetString("database_url"),
		WebAddr:           v.GetString("web_addr"),
		DevMode:           v.GetBool("dev_mode"),
		BybitAPIKey:       v.GetString("bybit_api_key"),
		BybitAPISecret:    v.GetString("bybit_api_secret"),
		BybitBaseURL:      v.GetString("bybit_base_url"),
		BybitRecvWindow:   v.GetInt("bybit_recv_window"),
	}

	var err error
	if c.Symbols, err = symbolsFrom(v.Get("symbols")); err != nil {
		return Config{}, err
	}
	if c.TradeNotional, err = decimalKey(v, "trade_notional"); err != nil {
		return Config{}, err
	}
	if c.StopLossPercent, err = decimalKey(v, "stop_loss_percent"); err != nil {
		return Config{}, err
	}
	if c.PaperEquity, err = decimalKey(v, "paper_equity"); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "paper":
	case "live":
		if c.BybitAPIKey == "" || c.BybitAPISecret == "" {
			errs = append(errs, errors.New("live mode needs bybit_api_key and bybit_api_secret"))
		}
	default:
		errs = append(errs, fmt.Errorf("mode %q: want paper or live", c.Mode))
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("no symbols configured"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be > 0"))
	}
	if c.HistoryLimit < 2 {
		errs = append(errs, errors.New("history_limit must be >= 2"))
	}
	for _, s := range c.Symbols {
		if s.Slow+1 > c.HistoryLimit {
			errs = append(errs, fmt.Errorf("%s: period %d needs history_limit >= %d", s.Symbol, s.Slow, s.Slow+1))
		}
	}
	switch c.StateBackend {
	case "file", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("state_backend %q: want file, redis or memory", c.StateBackend))
	}
	if c.TgToken != "" && c.TgChatID == 0 {
		errs = append(errs, errors.New("tg_token set without tg_chat_id"))
	}
	return errors.Join(errs...)
}

func decimalKey(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// symbolsFrom accepts either a map (SYMBOL: "21" or "9/21") from a config
// file or the env form "BTCUSDT:21,ETHUSDT:9/21".
func symbolsFrom(raw any) ([]SymbolSpec, error) {
	var out []SymbolSpec
	switch x := raw.(type) {
	case string:
		return ParseSymbols(x)
	case map[string]any:
		for sym, p := range x {
			s, err := parsePeriods(sym, fmt.Sprint(p))
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	case map[string]string:
		for sym, p := range x {
			s, err := parsePeriods(sym, p)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("symbols: unsupported value %T", raw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// ParseSymbols parses "BTCUSDT:21,ETHUSDT:9/21". Order is kept.
func ParseSymbols(s string) ([]SymbolSpec, error) {
	var out []SymbolSpec
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, periods, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("symbols: %q missing period", part)
		}
		spec, err := parsePeriods(sym, periods)
		if err != nil {
			return nil, err
		}
		if seen[spec.Symbol] {
			return nil, fmt.Errorf("symbols: %s listed twice", spec.Symbol)
		}
		seen[spec.Symbol] = true
		out = append(out, spec)
	}
	return out, nil
}

func parsePeriods(sym, p string) (SymbolSpec, error) {
	spec := SymbolSpec{Symbol: strings.ToUpper(strings.TrimSpace(sym))}
	if spec.Symbol == "" {
		return spec, errors.New("symbols: empty symbol")
	}
	fast, slow, two := strings.Cut(strings.TrimSpace(p), "/")
	if !two {
		slow, fast = fast, ""
	}
	n, err := strconv.Atoi(strings.TrimSpace(slow))
	if err != nil || n < 1 {
		return spec, fmt.Errorf("symbols: %s: bad period %q", spec.Symbol, p)
	}
	spec.Slow = n
	if fast != "" {
		f, err := strconv.Atoi(strings.TrimSpace(fast))
		if err != nil || f < 1 || f >= n {
			return spec, fmt.Errorf("symbols: %s: fast period must be in [1, %d)", spec.Symbol, n)
		}
		spec.Fast = f
	}
	return spec, nil
}
