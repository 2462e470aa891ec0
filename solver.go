package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidLength is returned for word lengths below 1.
var ErrInvalidLength = errors.New("invalid word length")

// State is a solve phase.
type State string

const (
	StateProbing   State = "probing"
	StateFiltering State = "filtering"
	StateVerifying State = "verifying"
	StateMatched   State = "matched"
	StateExhausted State = "exhausted"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateExhausted
}

// EventType classifies solver progress events.
type EventType string

const (
	EventState   EventType = "state"
	EventProbe   EventType = "probe"
	EventAttempt EventType = "attempt"
	EventDone    EventType = "done"
)

// Event reports solver progress to an Observer.
type Event struct {
	Seq        int       `json:"seq,omitempty"` // set by SolveSession.Record
	Type       EventType `json:"type"`
	State      State     `json:"state,omitempty"`
	Guess      string    `json:"guess,omitempty"`
	MatchMap   string    `json:"match_map,omitempty"`
	Matched    bool      `json:"matched,omitempty"`
	Discovered string    `json:"discovered,omitempty"`
	Candidates int       `json:"candidates,omitempty"`
	Attempt    int       `json:"attempt,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func doneEvent(r Result) Event {
	return Event{Type: EventDone, State: r.State, Guess: r.Word, MatchMap: r.MatchMap, Matched: r.Matched}
}

// Observer receives events. Calls are serialized by the solver.
type Observer func(Event)

// SolverConfig configures a Solver.
type SolverConfig struct {
	Alphabet  string
	Filler    rune
	MaxLength int
	Workers   int
	Observer  Observer
}

// Result is the outcome of a solve.
type Result struct {
	State      State          `json:"state"`
	Word       string         `json:"word,omitempty"`
	MatchMap   string         `json:"match_map"`
	Matched    bool           `json:"matched"`
	Discovered string         `json:"discovered"`
	Candidates []string       `json:"candidates"`
	Diagnostic Diagnostic     `json:"diagnostic,omitempty"`
	Attempts   int            `json:"attempts"`
	Response   *GuessResponse `json:"response,omitempty"`
	Elapsed    time.Duration  `json:"elapsed"`
}

// Solver runs probing, filtering and verification for one secret.
type Solver struct {
	oracle   Oracle
	prober   *Prober
	filter   *Filter
	workers  int
	observer Observer
	mu       sync.Mutex // serializes observer calls
}

// NewSolver wires a solver over oracle and store.
func NewSolver(cfg SolverConfig, oracle Oracle, store CorpusStore) *Solver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Solver{
		oracle: oracle,
		prober: NewProber(oracle, ProberConfig{
			Alphabet: cfg.Alphabet,
			Filler:   cfg.Filler,
			Workers:  cfg.Workers,
		}),
		filter:   NewFilter(store, cfg.MaxLength),
		workers:  cfg.Workers,
		observer: cfg.Observer,
	}
}

func (s *Solver) emit(e Event) {
	if s.observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer(e)
}

func (s *Solver) enter(st State) {
	slog.Debug("solver state", "state", st)
	s.emit(Event{Type: EventState, State: st})
}

// Solve tries to find the secret of the given size pinned by seed.
// It never fails: every transport, rejection and corpus condition is
// folded into the returned Result.
func (s *Solver) Solve(ctx context.Context, size int, seed int64) (res Result) {
	start := time.Now()
	res = Result{
		State:      StateExhausted,
		MatchMap:   blankMatchMap(size),
		Candidates: []string{},
	}
	defer func() {
		res.Elapsed = time.Since(start)
		solveOutcomes.WithLabelValues(string(res.State)).Inc()
		s.emit(doneEvent(res))
	}()

	if size < 1 {
		slog.Warn("refusing to solve", "size", size, "err", ErrInvalidLength)
		return res
	}

	s.enter(StateProbing)
	chars := s.prober.probe(ctx, size, seed, s.emit)
	res.Discovered = chars.String()
	slog.Info("characters discovered", "size", size, "chars", res.Discovered)

	s.enter(StateFiltering)
	fr, err := s.filter.Filter(ctx, size, chars)
	if err != nil {
		slog.Error("filter failed", "size", size, "err", err)
	}
	res.Candidates = fr.Candidates
	if res.Candidates == nil {
		res.Candidates = []string{}
	}
	res.Diagnostic = fr.Diagnostic
	candidateCount.Observe(float64(len(res.Candidates)))
	switch fr.Diagnostic {
	case DiagnosticLengthExceedsMax:
		slog.Warn("no corpus for length", "size", size, "reason", "length exceeds configured maximum")
	case DiagnosticLengthUnobserved:
		slog.Warn("no corpus for length", "size", size, "reason", "no words of this length were indexed")
	}
	s.emit(Event{Type: EventState, State: StateFiltering, Candidates: len(res.Candidates), Discovered: res.Discovered})

	s.enter(StateVerifying)
	s.verify(ctx, size, seed, &res)
	if res.Matched {
		res.State = StateMatched
	}
	return res
}

// verify submits candidates until one fully matches. With more than one
// worker, verification stops issuing guesses once a match is recorded and
// the reported match map is the one from the matching response.
func (s *Solver) verify(ctx context.Context, size int, seed int64, res *Result) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		attempts int
	)
	matched := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return res.Matched
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, word := range res.Candidates {
		if gctx.Err() != nil || matched() {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil || matched() {
				return nil
			}
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()

			slog.Debug("verifying candidate", "attempt", n, "guess", word)
			resp, err := s.oracle.Guess(gctx, word, size, seed)
			if err != nil {
				s.emit(Event{Type: EventAttempt, Attempt: n, Guess: word, Error: err.Error()})
				return nil
			}

			mm := resp.MatchMap()
			ok := resp.IsMatched()
			mu.Lock()
			if res.Matched {
				mu.Unlock()
				return nil
			}
			res.MatchMap = mm
			if ok {
				res.Matched = true
				res.Word = word
				res.Response = resp
			}
			mu.Unlock()

			s.emit(Event{Type: EventAttempt, Attempt: n, Guess: word, MatchMap: mm, Matched: ok})
			if ok {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Attempts = attempts
}
