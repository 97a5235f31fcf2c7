package web

import (
	"fmt"
	"net/http"
	"sync"
)

type sseMsg struct {
	event string
	data  string
}

type sseHub struct {
	mu      sync.Mutex
	clients map[chan sseMsg]struct{}
	done    chan struct{}
	once    sync.Once
}

func newHub() *sseHub {
	return &sseHub{clients: map[chan sseMsg]struct{}{}, done: make(chan struct{})}
}

func (h *sseHub) Subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan sseMsg, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	fmt.Fprintf(w, "event: status\ndata: {\"msg\":\"connected\"}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case m := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.event, m.data)
			flusher.Flush()
		}
	}
}

// Broadcast drops the message for clients whose buffer is full.
func (h *sseHub) Broadcast(event, data string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- sseMsg{event: event, data: data}:
		default:
		}
	}
}

func (h *sseHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *sseHub) Close() { h.once.Do(func() { close(h.done) }) }
