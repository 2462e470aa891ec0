package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const maxRequestBody = 1 << 10

// rateLimiter is a per-IP token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows n requests per interval per IP, with bursts of n.
func newRateLimiter(n int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(interval / time.Duration(n)),
		burst:    n,
	}
	// Cleanup stale entries every minute.
	go func() {
		for {
			time.Sleep(time.Minute)
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 5*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}()
	return rl
}

func (rl *rateLimiter) allow(addr string) bool {
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		ip = addr
	}

	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Server exposes solving over HTTP.
type Server struct {
	mux      *http.ServeMux
	cfg      Config
	corpus   CorpusStore
	oracle   Oracle
	sessions *SessionStore
	sse      *Broadcaster
	solveRL  *rateLimiter
	ctx      context.Context // parent of background solves
	wg       sync.WaitGroup
}

// NewServer creates a configured HTTP server. Solves started through it
// are cancelled when ctx is done.
func NewServer(ctx context.Context, cfg Config, corpus CorpusStore, oracle Oracle) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		corpus:   corpus,
		oracle:   oracle,
		sessions: NewSessionStore(),
		sse:      NewBroadcaster(),
		solveRL:  newRateLimiter(10, time.Minute), // 10 solves/min per IP
		ctx:      ctx,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/solves", s.handleCreateSolve)
	s.mux.HandleFunc("GET /api/solves", s.handleListSolves)
	s.mux.HandleFunc("GET /api/solves/{id}", s.handleGetSolve)
	s.mux.HandleFunc("GET /api/solves/{id}/events", s.handleSolveEvents)

	s.mux.HandleFunc("GET /api/corpus", s.handleCorpus)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	s.mux.ServeHTTP(w, r)
}

// Wait blocks until every background solve has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// --- Solve handlers ---

// POST /api/solves — start a solve in the background.
func (s *Server) handleCreateSolve(w http.ResponseWriter, r *http.Request) {
	if !s.solveRL.allow(r.RemoteAddr) {
		jsonError(w, "too many requests, retry later", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Size int   `json:"size"`
		Seed int64 `json:"seed"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Size < 1 {
		jsonError(w, "field 'size' must be at least 1", http.StatusBadRequest)
		return
	}

	sess := s.sessions.Create(req.Size, req.Seed)
	s.wg.Add(1)
	go s.runSolve(sess)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/solves/"+sess.ID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(sess.View())
}

func (s *Server) runSolve(sess *SolveSession) {
	defer s.wg.Done()

	logger := slog.With("session", sess.ID, "size", sess.Size, "seed", sess.Seed)
	solver := NewSolver(s.cfg.SolverConfig(func(e Event) {
		// The done event is recorded by Finish, together with the result.
		if e.Type == EventDone {
			return
		}
		s.sse.Publish(sess.ID, sess.Record(e))
	}), s.oracle, s.corpus)

	logger.Info("solve started")
	res := solver.Solve(s.ctx, sess.Size, sess.Seed)
	s.sse.Publish(sess.ID, sess.Finish(res))
	logger.Info("solve finished", "state", res.State, "attempts", res.Attempts, "match_map", res.MatchMap)
}

// GET /api/solves — list sessions.
func (s *Server) handleListSolves(w http.ResponseWriter, _ *http.Request) {
	list := s.sessions.List()
	views := make([]SessionView, 0, len(list))
	for _, sess := range list {
		views = append(views, sess.View())
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GET /api/solves/{id} — current state and, once finished, the result.
func (s *Server) handleGetSolve(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "solve not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.View())
}

// GET /api/solves/{id}/events — SSE stream of solver events.
func (s *Server) handleSolveEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "solve not found", http.StatusNotFound)
		return
	}
	s.sse.ServeSSE(w, r, sess.ID, sess.Events)
}

// --- Corpus handlers ---

// GET /api/corpus — word count per stored length.
func (s *Server) handleCorpus(w http.ResponseWriter, r *http.Request) {
	stats, err := CorpusStats(r.Context(), s.corpus)
	if err != nil {
		slog.Error("corpus stats", "err", err)
		jsonError(w, "corpus unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// --- Helpers ---

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
