package main

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Diagnostic explains why filtering produced no dictionary to scan.
type Diagnostic string

const (
	DiagnosticNone             Diagnostic = ""
	DiagnosticLengthExceedsMax Diagnostic = "length_exceeds_max"
	DiagnosticLengthUnobserved Diagnostic = "length_unobserved"
)

// FilterResult holds the exact-match candidates for a length.
type FilterResult struct {
	Candidates []string   `json:"candidates"`
	Diagnostic Diagnostic `json:"diagnostic,omitempty"`
}

// Filter narrows a stored dictionary to words whose contain set equals the
// discovered set exactly.
type Filter struct {
	store     CorpusStore
	maxLength int
}

// NewFilter creates a filter over store. maxLength is the indexer's
// exclusive length bound, used only to word the missing-corpus diagnostic.
func NewFilter(store CorpusStore, maxLength int) *Filter {
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}
	return &Filter{store: store, maxLength: maxLength}
}

// Filter returns the sorted candidates of the given length whose contain set
// equals chars. A missing dictionary yields no candidates and a diagnostic;
// only store failures are returned as errors.
func (f *Filter) Filter(ctx context.Context, length int, chars CharSet) (FilterResult, error) {
	d, ok, err := f.store.Load(ctx, length)
	if err != nil {
		return FilterResult{}, fmt.Errorf("filter length %d: %w", length, err)
	}
	if !ok {
		diag := DiagnosticLengthUnobserved
		if length > f.maxLength-1 {
			diag = DiagnosticLengthExceedsMax
		}
		return FilterResult{Candidates: []string{}, Diagnostic: diag}, nil
	}

	words := mapset.NewThreadUnsafeSet[string]()
	for _, r := range chars.Runes() {
		for _, e := range d.Entries(r) {
			if e.Contain.Equal(chars) {
				words.Add(e.Word)
			}
		}
	}

	out := words.ToSlice()
	slices.Sort(out)
	return FilterResult{Candidates: out}, nil
}
