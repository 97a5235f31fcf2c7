package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"reentrybot/internal/core"
)

// Positions is the read-only engine surface served over HTTP.
type Positions interface {
	Mode() string
	Snapshot() []core.SymbolState
}

type History interface {
	LastN(n int) ([]core.TradeLogEntry, error)
}

type Server struct {
	BotToken string
	Addr     string
	DevMode  bool // skips initData checks for local use

	positions Positions
	history   History
	hub       *sseHub
	srv       *http.Server
}

func NewServer(botToken, addr string, dev bool, positions Positions, history History) *Server {
	if addr == "" {
		addr = ":8080"
	}
	s := &Server{BotToken: botToken, Addr: addr, DevMode: dev, positions: positions, history: history, hub: newHub()}
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "mode": s.positions.Mode()})
	})
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /sse", s.hub.Subscribe)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.authMiddleware(mux)
}

// Serve blocks until Stop.
func (s *Server) Serve() error {
	log.Info().Str("addr", s.Addr).Bool("dev", s.DevMode).Msg("web: listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

// Publish pushes an engine event to every SSE subscriber.
func (s *Server) Publish(ev core.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("web: encode event")
		return
	}
	s.hub.Broadcast(ev.Type, string(b))
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.positions.Snapshot())
}

// GET /api/trades?limit=20
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "trade log not configured", http.StatusNotImplemented)
		return
	}
	n := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil || x <= 0 || x > 500 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		n = x
	}
	rows, err := s.history.LastN(n)
	if err != nil {
		log.Error().Err(err).Msg("web: read trade log")
		http.Error(w, "trade log unavailable", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []core.TradeLogEntry{}
	}
	writeJSON(w, rows)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guarded := strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/sse"
		if !guarded || s.DevMode {
			next.ServeHTTP(w, r)
			return
		}
		// initData from X-TG-Init-Data header or ?initData=
		initData := r.Header.Get("X-TG-Init-Data")
		if initData == "" {
			initData = r.URL.Query().Get("initData")
		}
		if !ValidateInitData(initData, s.BotToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("web: write json")
	}
}
