package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"reentrybot/internal/core"
)

const (
	// Format: reentrybot:state:{symbol}
	stateKeyPrefix = "reentrybot:state"
	// Set of symbols with a saved state.
	symbolsKey = "reentrybot:symbols"

	// Minimum gap between reconnect attempts while Redis is down.
	recheckEvery = 30 * time.Second
)

// RedisStore persists symbol states in Redis and falls back to memory while
// Redis is unreachable so trading continues.
type RedisStore struct {
	client    *redis.Client
	fallback  *Memory
	available atomic.Bool
	lastCheck atomic.Int64

	ping  func(ctx context.Context) error
	write func(ctx context.Context, st core.SymbolState) error
	now   func() time.Time
}

// NewRedisStore pings the client once; a nil client runs memory-only.
func NewRedisStore(ctx context.Context, client *redis.Client) *RedisStore {
	s := &RedisStore{client: client, fallback: NewMemory(), now: time.Now}
	s.write = s.put
	if client == nil {
		log.Warn().Msg("redis state: no client, using in-memory store")
		return s
	}
	s.ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	s.lastCheck.Store(s.now().UnixNano())
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.ping(pctx); err != nil {
		log.Warn().Err(err).Msg("redis state: unavailable at startup, using in-memory store")
		return s
	}
	s.available.Store(true)
	return s
}

// CheckConnection pings Redis and updates availability. On recovery every
// state held in memory is written back so Redis catches up.
func (s *RedisStore) CheckConnection(ctx context.Context) error {
	if s.ping == nil {
		return errors.New("redis state: no client configured")
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.ping(pctx); err != nil {
		s.available.Store(false)
		return fmt.Errorf("redis state: ping: %w", err)
	}
	if s.available.Load() {
		return nil
	}
	if err := s.syncFallback(ctx); err != nil {
		return err
	}
	s.available.Store(true)
	log.Info().Msg("redis state: connection recovered")
	return nil
}

func (s *RedisStore) syncFallback(ctx context.Context) error {
	states, _ := s.fallback.Load(ctx)
	for _, st := range states {
		if err := s.write(ctx, st); err != nil {
			return fmt.Errorf("redis state: resync %s: %w", st.Symbol, err)
		}
	}
	return nil
}

// recheck retries the connection at most once per recheckEvery while
// Redis is marked unavailable.
func (s *RedisStore) recheck(ctx context.Context) {
	if s.ping == nil || s.available.Load() {
		return
	}
	now := s.now().UnixNano()
	last := s.lastCheck.Load()
	if time.Duration(now-last) < recheckEvery || !s.lastCheck.CompareAndSwap(last, now) {
		return
	}
	if err := s.CheckConnection(ctx); err != nil {
		log.Debug().Err(err).Msg("redis state: still unavailable")
	}
}

func stateKey(symbol string) string { return fmt.Sprintf("%s:%s", stateKeyPrefix, symbol) }

func (s *RedisStore) Save(ctx context.Context, st core.SymbolState) error {
	_ = s.fallback.Save(ctx, st)
	s.recheck(ctx)
	if !s.available.Load() {
		return nil
	}
	if err := s.write(ctx, st); err != nil {
		s.available.Store(false)
		s.lastCheck.Store(s.now().UnixNano())
		log.Warn().Err(err).Str("symbol", st.Symbol).Msg("redis state: save failed, switching to in-memory store")
	}
	return nil
}

func (s *RedisStore) put(ctx context.Context, st core.SymbolState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, stateKey(st.Symbol), data, 0)
	pipe.SAdd(ctx, symbolsKey, st.Symbol)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context) (map[string]core.SymbolState, error) {
	s.recheck(ctx)
	if !s.available.Load() {
		return s.fallback.Load(ctx)
	}
	symbols, err := s.client.SMembers(ctx, symbolsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis state: list symbols: %w", err)
	}
	out := make(map[string]core.SymbolState, len(symbols))
	for _, sym := range symbols {
		data, err := s.client.Get(ctx, stateKey(sym)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis state: get %s: %w", sym, err)
		}
		var st core.SymbolState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("redis state: decode %s: %w", sym, err)
		}
		out[sym] = st
		_ = s.fallback.Save(ctx, st)
	}
	return out, nil
}

// Available reports whether writes currently reach Redis.
func (s *RedisStore) Available() bool { return s.available.Load() }
