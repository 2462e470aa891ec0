package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterClientsPerSession(t *testing.T) {
	b := NewBroadcaster()
	a1 := b.Register("solve-a")
	a2 := b.Register("solve-a")
	other := b.Register("solve-b")

	assert.Equal(t, 2, b.ClientCount("solve-a"))
	assert.Equal(t, 1, b.ClientCount("solve-b"))
	assert.Zero(t, b.ClientCount("solve-c"))

	b.Unregister(a1)
	b.Unregister(a1)
	assert.Equal(t, 1, b.ClientCount("solve-a"), "a second unregister is a no-op")

	_, open := <-a1.ch
	assert.False(t, open, "unregister closes the client channel")

	b.Unregister(a2)
	b.Unregister(other)
	assert.Zero(t, b.ClientCount("solve-a"))
	assert.Zero(t, b.ClientCount("solve-b"))
}

func TestPublishRoutesBySession(t *testing.T) {
	b := NewBroadcaster()
	c1 := b.Register("solve1")
	c2 := b.Register("solve2")
	defer b.Unregister(c1)
	defer b.Unregister(c2)

	b.Publish("solve1", Event{Seq: 4, Type: EventAttempt, Guess: "apple"})

	select {
	case msg := <-c1.ch:
		assert.Equal(t, "attempt", msg.name)
		assert.Equal(t, 4, msg.seq)
		assert.Contains(t, string(msg.data), `"guess":"apple"`)
		assert.False(t, msg.last, "attempt must not end the stream")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("solve1 client did not receive the event")
	}

	select {
	case <-c2.ch:
		t.Fatal("solve2 client received a solve1 event")
	case <-time.After(50 * time.Millisecond):
	}

	b.Publish("solve2", Event{Type: EventDone, State: StateExhausted})
	msg := <-c2.ch
	assert.True(t, msg.last, "done event ends the stream")
}

func TestPublishSkipsFullChannel(t *testing.T) {
	b := NewBroadcaster()
	c := b.Register("solve1")
	defer b.Unregister(c)

	for range sseChannelBuffer {
		b.Publish("solve1", Event{Type: EventProbe})
	}
	// Must not block.
	b.Publish("solve1", Event{Type: EventProbe})
	assert.Len(t, c.ch, sseChannelBuffer)
}

func serveInBackground(t *testing.T, b *Broadcaster, sessionID string, backlog func() []Event) (*httptest.ResponseRecorder, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.ServeSSE(w, req, sessionID, backlog)
	}()
	return w, done
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the done event")
	}
}

func TestServeSSELiveEvents(t *testing.T) {
	b := NewBroadcaster()
	w, done := serveInBackground(t, b, "solve1", func() []Event {
		return []Event{{Seq: 1, Type: EventState, State: StateProbing}}
	})

	require.Eventually(t, func() bool { return b.ClientCount("solve1") == 1 }, time.Second, 5*time.Millisecond)
	b.Publish("solve1", Event{Seq: 2, Type: EventDone, State: StateMatched, Matched: true})
	waitClosed(t, done)

	body := w.Body.String()
	assert.Contains(t, body, "event: state")
	assert.Contains(t, body, "event: done")
	assert.Zero(t, b.ClientCount("solve1"), "client is unregistered when the stream ends")
}

func TestServeSSESkipsEventsAlreadyInBacklog(t *testing.T) {
	b := NewBroadcaster()
	sess := NewSessionStore().Create(5, 1)
	sess.Record(Event{Type: EventState, State: StateVerifying})
	attempt := sess.Record(Event{Type: EventAttempt, Attempt: 1, Guess: "apple"})

	// The attempt was recorded before the client connected but is published
	// only after registration, so it arrives through both the backlog and
	// the live channel.
	w, done := serveInBackground(t, b, sess.ID, func() []Event {
		past := sess.Events()
		b.Publish(sess.ID, attempt)
		b.Publish(sess.ID, sess.Finish(Result{State: StateMatched, Word: "apple", MatchMap: "apple", Matched: true}))
		return past
	})
	waitClosed(t, done)

	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: attempt"), body)
	assert.Equal(t, 1, strings.Count(body, "event: done"), body)
	assert.Less(t, strings.Index(body, "event: attempt"), strings.Index(body, "event: done"))
}

func TestServeSSEBacklogEndsWithDone(t *testing.T) {
	b := NewBroadcaster()
	sess := NewSessionStore().Create(5, 1)
	sess.Record(Event{Type: EventState, State: StateProbing})
	sess.Finish(Result{State: StateExhausted, MatchMap: "?????"})

	w, done := serveInBackground(t, b, sess.ID, sess.Events)
	waitClosed(t, done)

	assert.True(t, strings.HasSuffix(strings.TrimSpace(w.Body.String()), `"match_map":"?????"}`), w.Body.String())
}

func TestBroadcasterConcurrent(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "solve1"
			if i%2 == 0 {
				id = "solve2"
			}
			c := b.Register(id)
			b.Publish(id, Event{Type: EventAttempt, Attempt: i})
			b.ClientCount(id)
			b.Unregister(c)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, b.ClientCount("solve1"))
	assert.Zero(t, b.ClientCount("solve2"))
}
