package main

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// CorpusStore persists one LengthDictionary per word length.
// A missing length is reported by ok == false, not by an error.
type CorpusStore interface {
	Save(ctx context.Context, d *LengthDictionary) error
	Load(ctx context.Context, length int) (d *LengthDictionary, ok bool, err error)
	Lengths(ctx context.Context) ([]int, error)
	Close() error
}

// MemoryStore holds dictionaries in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	dicts map[int]*LengthDictionary
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dicts: make(map[int]*LengthDictionary),
	}
}

// Save replaces the dictionary for d.Length.
func (s *MemoryStore) Save(_ context.Context, d *LengthDictionary) error {
	if d == nil || d.Length < 1 {
		return fmt.Errorf("save dictionary: %w", ErrInvalidLength)
	}
	s.mu.Lock()
	s.dicts[d.Length] = d
	s.mu.Unlock()
	return nil
}

// Load returns the dictionary for length, if any.
func (s *MemoryStore) Load(_ context.Context, length int) (*LengthDictionary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dicts[length]
	return d, ok, nil
}

// Lengths returns the stored lengths in ascending order.
func (s *MemoryStore) Lengths(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]int, 0, len(s.dicts))
	for n := range s.dicts {
		list = append(list, n)
	}
	slices.Sort(list)
	return list, nil
}

func (s *MemoryStore) Close() error { return nil }

// LengthStat is the word count of one stored length.
type LengthStat struct {
	Length int `json:"length"`
	Count  int `json:"count"`
}

// CorpusStats lists the word count of every stored length.
func CorpusStats(ctx context.Context, store CorpusStore) ([]LengthStat, error) {
	lengths, err := store.Lengths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lengths: %w", err)
	}
	out := make([]LengthStat, 0, len(lengths))
	for _, n := range lengths {
		d, ok, err := store.Load(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("load length %d: %w", n, err)
		}
		if !ok {
			continue
		}
		out = append(out, LengthStat{Length: n, Count: d.Count})
	}
	return out, nil
}
