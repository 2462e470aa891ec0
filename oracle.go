package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultOracleURL     = "https://wordle.votee.dev:8000"
	defaultOracleTimeout = 10 * time.Second
	maxErrorBody         = 512
	placeholder          = '?'
)

var (
	// ErrTransport covers unreachable oracles, timeouts and unreadable bodies.
	ErrTransport = errors.New("oracle transport error")
	// ErrOracleRejected is returned for any non-200 status.
	ErrOracleRejected = errors.New("oracle rejected guess")
)

// Verdict is the relationship of one guessed character to the secret.
type Verdict string

const (
	VerdictAbsent  Verdict = "absent"
	VerdictPresent Verdict = "present"
	VerdictCorrect Verdict = "correct"
)

// Confirms reports whether the character is known to be in the secret.
func (v Verdict) Confirms() bool {
	return v == VerdictPresent || v == VerdictCorrect
}

// GuessResult is the oracle's feedback for a single slot.
type GuessResult struct {
	Slot   int     `json:"slot"`
	Guess  string  `json:"guess"`
	Result Verdict `json:"result"`
}

// GuessResponse is one oracle reply.
type GuessResponse struct {
	Status  int           `json:"status"`
	Results []GuessResult `json:"results"`
}

// IsMatched reports whether every slot is correct.
func (r *GuessResponse) IsMatched() bool {
	if r == nil || len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Result != VerdictCorrect {
			return false
		}
	}
	return true
}

// MatchMap renders correct characters at their slots and '?' elsewhere.
func (r *GuessResponse) MatchMap() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, res := range r.Results {
		if res.Result == VerdictCorrect && res.Guess != "" {
			b.WriteString(res.Guess)
		} else {
			b.WriteRune(placeholder)
		}
	}
	return b.String()
}

func blankMatchMap(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat(string(placeholder), n)
}

// Oracle answers guesses for the secret pinned by (size, seed).
type Oracle interface {
	Guess(ctx context.Context, word string, size int, seed int64) (*GuessResponse, error)
}

// OracleConfig configures the HTTP oracle client.
type OracleConfig struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond throttles outgoing guesses. Zero means unlimited.
	RatePerSecond float64
	Burst         int
}

// HTTPOracle talks to the remote guessing service.
type HTTPOracle struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPOracle creates a client for cfg.
func NewHTTPOracle(cfg OracleConfig) *HTTPOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOracleURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOracleTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &HTTPOracle{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

// Guess submits word and decodes the per-slot feedback.
func (o *HTTPOracle) Guess(ctx context.Context, word string, size int, seed int64) (*GuessResponse, error) {
	start := time.Now()
	resp, err := o.guess(ctx, word, size, seed)
	oracleLatency.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		oracleCalls.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrOracleRejected):
		oracleCalls.WithLabelValues("rejected").Inc()
	default:
		oracleCalls.WithLabelValues("transport").Inc()
	}
	return resp, err
}

func (o *HTTPOracle) guess(ctx context.Context, word string, size int, seed int64) (*GuessResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttle: %v", ErrTransport, err)
	}

	q := url.Values{}
	q.Set("guess", word)
	q.Set("size", strconv.Itoa(size))
	q.Set("seed", strconv.FormatInt(seed, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/random?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}

	res, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		slog.Debug("oracle rejected guess", "guess", word, "status", res.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: status %d", ErrOracleRejected, res.StatusCode)
	}

	var results []GuessResult
	if err := json.NewDecoder(res.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrTransport, err)
	}
	if len(results) != size {
		return nil, fmt.Errorf("%w: got %d results for size %d", ErrTransport, len(results), size)
	}
	return &GuessResponse{Status: res.StatusCode, Results: results}, nil
}
