package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"unicode/utf8"
)

const (
	defaultAlphabet  = "abcdefghijklmnopqrstuvwxyz"
	defaultMaxLength = 80
)

// IndexerConfig bounds which words are accepted into the corpus.
type IndexerConfig struct {
	Alphabet  string // allowed characters
	MaxLength int    // exclusive upper bound on word length
}

// IndexStats summarizes an indexing run.
type IndexStats struct {
	Seen     int `json:"seen"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Lengths  int `json:"lengths"`
}

// Indexer builds one LengthDictionary per observed word length.
// It is not safe for concurrent use.
type Indexer struct {
	alphabet  CharSet
	maxLength int
	dicts     map[int]*LengthDictionary
	seen      map[string]struct{}
	stats     IndexStats
}

// NewIndexer creates an indexer. Empty config fields fall back to the
// lowercase latin alphabet and a maximum length of 80.
func NewIndexer(cfg IndexerConfig) *Indexer {
	if cfg.Alphabet == "" {
		cfg.Alphabet = defaultAlphabet
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	return &Indexer{
		alphabet:  CharSetOf(cfg.Alphabet),
		maxLength: cfg.MaxLength,
		dicts:     make(map[int]*LengthDictionary),
		seen:      make(map[string]struct{}),
	}
}

// Add indexes a single word. It returns false when the word is rejected
// (disallowed character, length outside [1, MaxLength)) or was already
// indexed.
func (ix *Indexer) Add(word string) bool {
	ix.stats.Seen++

	n := utf8.RuneCountInString(word)
	if n < 1 || n >= ix.maxLength {
		ix.stats.Rejected++
		return false
	}
	contain := CharSetOf(word)
	if !contain.SubsetOf(ix.alphabet) {
		ix.stats.Rejected++
		return false
	}
	if _, dup := ix.seen[word]; dup {
		return false
	}
	ix.seen[word] = struct{}{}

	d, ok := ix.dicts[n]
	if !ok {
		d = NewLengthDictionary(n)
		ix.dicts[n] = d
	}
	d.add(WordEntry{Word: word, Contain: contain})
	ix.stats.Accepted++
	indexedWords.Inc()
	return true
}

// IndexAll drains words into the index. It stops early only when ctx is
// cancelled.
func (ix *Indexer) IndexAll(ctx context.Context, words iter.Seq[string]) (IndexStats, error) {
	for w := range words {
		if err := ctx.Err(); err != nil {
			return ix.Stats(), err
		}
		ix.Add(w)
	}
	return ix.Stats(), nil
}

// Stats returns counters for the words processed so far.
func (ix *Indexer) Stats() IndexStats {
	s := ix.stats
	s.Lengths = len(ix.dicts)
	return s
}

// Dictionaries returns every non-empty dictionary ordered by length.
func (ix *Indexer) Dictionaries() []*LengthDictionary {
	out := make([]*LengthDictionary, 0, len(ix.dicts))
	for _, d := range ix.dicts {
		if d.Count > 0 {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b *LengthDictionary) int { return a.Length - b.Length })
	return out
}

// SaveAll persists each dictionary to the store.
func (ix *Indexer) SaveAll(ctx context.Context, store CorpusStore) error {
	for _, d := range ix.Dictionaries() {
		if err := store.Save(ctx, d); err != nil {
			return fmt.Errorf("save length %d: %w", d.Length, err)
		}
		slog.Info("dictionary saved", "length", d.Length, "count", d.Count)
	}
	return nil
}
