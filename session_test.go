package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreateAndGet(t *testing.T) {
	st := NewSessionStore()
	s := st.Create(5, 42)

	require.NotEmpty(t, s.ID)
	assert.Same(t, s, st.Get(s.ID))
	assert.Nil(t, st.Get("nonexistent"))
	assert.Equal(t, StateProbing, s.View().State)
}

func TestSessionStoreListMostRecentFirst(t *testing.T) {
	st := NewSessionStore()
	first := st.Create(5, 1)
	time.Sleep(time.Millisecond)
	second := st.Create(6, 2)

	list := st.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestSessionRecordAndFinish(t *testing.T) {
	s := NewSessionStore().Create(5, 1)

	e1 := s.Record(Event{Type: EventState, State: StateFiltering})
	e2 := s.Record(Event{Type: EventAttempt, Guess: "apple"})
	assert.Equal(t, 1, e1.Seq)
	assert.Equal(t, 2, e2.Seq)
	assert.Equal(t, StateFiltering, s.View().State, "events without a state keep the last one")
	assert.False(t, s.Done())

	done := s.Finish(Result{State: StateMatched, Word: "apple", MatchMap: "apple", Matched: true})
	assert.Equal(t, EventDone, done.Type)
	assert.Equal(t, 3, done.Seq)
	assert.True(t, done.Matched)

	v := s.View()
	assert.True(t, s.Done())
	assert.Equal(t, StateMatched, v.State)
	assert.Equal(t, 3, v.Events)
	require.NotNil(t, v.Result)
	assert.Equal(t, "apple", v.Result.Word)
	assert.Equal(t, done, s.Events()[2])
}

func TestSessionTerminalStateNeedsResult(t *testing.T) {
	s := NewSessionStore().Create(5, 1)

	s.Record(Event{Type: EventState, State: StateVerifying})
	s.Record(Event{Type: EventDone, State: StateMatched, Matched: true})

	v := s.View()
	assert.Equal(t, StateVerifying, v.State)
	assert.Nil(t, v.Result)
	assert.False(t, s.Done())

	s.Finish(Result{State: StateExhausted, MatchMap: "?????"})
	s.Record(Event{Type: EventState, State: StateProbing})
	assert.Equal(t, StateExhausted, s.View().State, "a finished session keeps its terminal state")
	assert.True(t, s.Done())
}

func TestSessionEventsCopy(t *testing.T) {
	s := NewSessionStore().Create(5, 1)
	s.Record(Event{Type: EventProbe, Guess: "abcde"})

	evs := s.Events()
	evs[0].Guess = "zzzzz"
	assert.Equal(t, "abcde", s.Events()[0].Guess)
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := NewSessionStore().Create(5, 1)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Record(Event{Type: EventAttempt, Attempt: i})
			s.View()
			s.Events()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, s.View().Events)

	seen := make(map[int]bool)
	for _, e := range s.Events() {
		assert.False(t, seen[e.Seq], "sequence %d assigned twice", e.Seq)
		seen[e.Seq] = true
	}
	assert.Len(t, seen, 100)
}
