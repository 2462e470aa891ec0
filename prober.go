package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultFiller = 'z'

// ProberConfig configures character discovery.
type ProberConfig struct {
	Alphabet string
	Filler   rune // pads the last chunk
	Workers  int  // concurrent probes; 1 is sequential
}

// Prober discovers the secret's character set by guessing contiguous chunks
// of the alphabet. It issues at most ceil(len(alphabet)/L) guesses.
type Prober struct {
	oracle   Oracle
	alphabet []rune
	filler   rune
	workers  int
}

// NewProber creates a prober backed by oracle.
func NewProber(oracle Oracle, cfg ProberConfig) *Prober {
	if cfg.Alphabet == "" {
		cfg.Alphabet = defaultAlphabet
	}
	if cfg.Filler == 0 {
		cfg.Filler = defaultFiller
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Prober{
		oracle:   oracle,
		alphabet: []rune(cfg.Alphabet),
		filler:   cfg.Filler,
		workers:  cfg.Workers,
	}
}

// Chunks splits the alphabet into guesses of exactly size characters.
func (p *Prober) Chunks(size int) []string {
	if size < 1 {
		return nil
	}
	var out []string
	for i := 0; i < len(p.alphabet); i += size {
		end := min(i+size, len(p.alphabet))
		chunk := string(p.alphabet[i:end])
		if pad := size - (end - i); pad > 0 {
			chunk += strings.Repeat(string(p.filler), pad)
		}
		out = append(out, chunk)
	}
	return out
}

// Probe returns up to size characters the oracle confirmed as present or
// correct. Failed guesses are skipped, never retried.
func (p *Prober) Probe(ctx context.Context, size int, seed int64) CharSet {
	return p.probe(ctx, size, seed, nil)
}

func (p *Prober) probe(ctx context.Context, size int, seed int64, emit func(Event)) CharSet {
	if size < 1 {
		return NewCharSet()
	}
	if emit == nil {
		emit = func(Event) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu         sync.Mutex
		discovered = NewCharSet()
	)
	full := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return discovered.Len() >= size
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, chunk := range p.Chunks(size) {
		if gctx.Err() != nil || full() {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil || full() {
				return nil
			}
			resp, err := p.oracle.Guess(gctx, chunk, size, seed)
			if err != nil {
				slog.Debug("probe failed", "chunk", chunk, "err", err)
				emit(Event{Type: EventProbe, Guess: chunk, Error: err.Error()})
				return nil
			}

			submitted := []rune(chunk)
			mu.Lock()
			for _, res := range resp.Results {
				if discovered.Len() >= size {
					break
				}
				if !res.Result.Confirms() || res.Slot < 0 || res.Slot >= len(submitted) {
					continue
				}
				discovered.Add(submitted[res.Slot])
			}
			reached := discovered.Len() >= size
			found := discovered.String()
			mu.Unlock()

			emit(Event{Type: EventProbe, Guess: chunk, MatchMap: resp.MatchMap(), Discovered: found})
			if reached {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return discovered
}
