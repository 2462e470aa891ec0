package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	sseChannelBuffer = 64
	sseHeartbeat     = 30 * time.Second
)

// sseMessage is one encoded event ready to be written.
type sseMessage struct {
	seq  int
	name string
	data []byte
	last bool // stream ends after this message
}

// client represents a single SSE connection.
type client struct {
	ch        chan sseMessage
	sessionID string
}

// Broadcaster fans solver events out to SSE clients grouped by session.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
	}
}

// Register adds a client for a session and returns it.
func (b *Broadcaster) Register(sessionID string) *client {
	c := &client{
		ch:        make(chan sseMessage, sseChannelBuffer),
		sessionID: sessionID,
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes a client and closes its channel.
func (b *Broadcaster) Unregister(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
	}
	b.mu.Unlock()
}

func encodeEvent(e Event) (sseMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return sseMessage{}, fmt.Errorf("encode event: %w", err)
	}
	return sseMessage{seq: e.Seq, name: string(e.Type), data: data, last: e.Type == EventDone}, nil
}

// Publish sends an event to all clients of a session. Slow clients whose
// buffer is full miss the event.
func (b *Broadcaster) Publish(sessionID string, e Event) {
	msg, err := encodeEvent(e)
	if err != nil {
		slog.Error("drop sse event", "session", sessionID, "err", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		if c.sessionID != sessionID {
			continue
		}
		select {
		case c.ch <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected clients for a session.
func (b *Broadcaster) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for c := range b.clients {
		if c.sessionID == sessionID {
			n++
		}
	}
	return n
}

// ServeSSE streams a session's events until the client leaves or a done
// event has been written. The events returned by backlog are written first;
// it is called after registration so nothing published in between is lost,
// and live events already covered by the backlog are skipped by sequence.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID string, backlog func() []Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.Register(sessionID)
	defer b.Unregister(c)

	write := func(msg sseMessage) {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.name, msg.data)
		flusher.Flush()
	}

	var (
		past    []Event
		lastSeq int
	)
	if backlog != nil {
		past = backlog()
	}
	for _, e := range past {
		lastSeq = max(lastSeq, e.Seq)
		msg, err := encodeEvent(e)
		if err != nil {
			continue
		}
		write(msg)
		if msg.last {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			if msg.seq > 0 && msg.seq <= lastSeq {
				continue
			}
			write(msg)
			if msg.last {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
