package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOracleServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	fake := &fakeOracle{secret: secret}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/random" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		var size int
		if err := json.Unmarshal([]byte(q.Get("size")), &size); err != nil || q.Get("seed") == "" {
			http.Error(w, "bad params", http.StatusUnprocessableEntity)
			return
		}
		resp, err := fake.Guess(r.Context(), q.Get("guess"), size, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(resp.Results)
	}))
}

func TestHTTPOracleGuess(t *testing.T) {
	srv := newOracleServer(t, "apple")
	defer srv.Close()

	o := NewHTTPOracle(OracleConfig{BaseURL: srv.URL + "/"})
	resp, err := o.Guess(context.Background(), "apply", 5, 1234)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	require.Len(t, resp.Results, 5)
	assert.Equal(t, GuessResult{Slot: 0, Guess: "a", Result: VerdictCorrect}, resp.Results[0])
	assert.Equal(t, VerdictAbsent, resp.Results[4].Result)
	assert.False(t, resp.IsMatched())
	assert.Equal(t, "appl?", resp.MatchMap())

	resp, err = o.Guess(context.Background(), "apple", 5, 1234)
	require.NoError(t, err)
	assert.True(t, resp.IsMatched())
	assert.Equal(t, "apple", resp.MatchMap())
}

func TestHTTPOracleRejected(t *testing.T) {
	srv := newOracleServer(t, "apple")
	defer srv.Close()

	_, err := NewHTTPOracle(OracleConfig{BaseURL: srv.URL}).Guess(context.Background(), "toolong", 7, 1)
	assert.ErrorIs(t, err, ErrOracleRejected)
}

func TestHTTPOracleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	o := NewHTTPOracle(OracleConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := o.Guess(context.Background(), "apple", 5, 1)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPOracleUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPOracle(OracleConfig{BaseURL: url}).Guess(context.Background(), "apple", 5, 1)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHTTPOracleMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"slot":0,"guess":"a","result":"correct"}]`))
	}))
	defer srv.Close()

	_, err := NewHTTPOracle(OracleConfig{BaseURL: srv.URL}).Guess(context.Background(), "apple", 5, 1)
	assert.ErrorIs(t, err, ErrTransport, "result count must match size")
}

func TestGuessResponseHelpers(t *testing.T) {
	var nilResp *GuessResponse
	assert.False(t, nilResp.IsMatched())
	assert.Equal(t, "", nilResp.MatchMap())
	assert.False(t, (&GuessResponse{Status: 200}).IsMatched(), "empty body never matches")
	assert.Equal(t, "???", blankMatchMap(3))
	assert.True(t, VerdictPresent.Confirms())
	assert.True(t, VerdictCorrect.Confirms())
	assert.False(t, VerdictAbsent.Confirms())
}

func TestSolveOverHTTPOracle(t *testing.T) {
	srv := newOracleServer(t, "grape")
	defer srv.Close()

	store := indexedStore(t, "apple", "grape", "pager")
	oracle := NewHTTPOracle(OracleConfig{BaseURL: srv.URL, RatePerSecond: 1000, Burst: 10})
	res := NewSolver(SolverConfig{Workers: 2}, oracle, store).Solve(context.Background(), 5, 5)

	require.True(t, res.Matched)
	assert.Equal(t, "grape", res.Word)
}
