package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
)

// CharSet is the set of distinct characters of a word, ignoring order and
// repetition.
type CharSet struct {
	s mapset.Set[rune]
}

// NewCharSet builds a set from the given runes.
func NewCharSet(chars ...rune) CharSet {
	return CharSet{s: mapset.NewThreadUnsafeSet(chars...)}
}

// CharSetOf returns the contain set of a word.
func CharSetOf(word string) CharSet {
	return NewCharSet([]rune(word)...)
}

// Len returns the number of distinct characters.
func (c CharSet) Len() int {
	if c.s == nil {
		return 0
	}
	return c.s.Cardinality()
}

// Contains reports whether r is in the set.
func (c CharSet) Contains(r rune) bool {
	return c.s != nil && c.s.Contains(r)
}

// Add inserts r and reports whether it was new.
func (c *CharSet) Add(r rune) bool {
	if c.s == nil {
		c.s = mapset.NewThreadUnsafeSet[rune]()
	}
	return c.s.Add(r)
}

// Equal reports exact set equality. Two empty sets are equal.
func (c CharSet) Equal(o CharSet) bool {
	if c.Len() == 0 || o.Len() == 0 {
		return c.Len() == o.Len()
	}
	return c.s.Equal(o.s)
}

// SubsetOf reports whether every character of c is in o.
func (c CharSet) SubsetOf(o CharSet) bool {
	if c.Len() == 0 {
		return true
	}
	if o.Len() == 0 {
		return false
	}
	return c.s.IsSubset(o.s)
}

// Runes returns the characters in ascending order.
func (c CharSet) Runes() []rune {
	if c.s == nil {
		return nil
	}
	rs := c.s.ToSlice()
	slices.Sort(rs)
	return rs
}

// String returns the sorted characters as a string, e.g. "aelnp".
func (c CharSet) String() string {
	return string(c.Runes())
}

func (c CharSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *CharSet) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode char set: %w", err)
	}
	*c = CharSetOf(s)
	return nil
}

// WordEntry is an indexed corpus word together with its contain set.
type WordEntry struct {
	Word    string  `json:"word"`
	Contain CharSet `json:"contain"`
}

// LengthDictionary indexes every accepted word of a single length.
//
// Words is the ID table: a word's ID is its position in Words. ContainMap
// posts each ID under every character the word contains, so postings for
// different characters overlap.
type LengthDictionary struct {
	Length     int
	Count      int
	Words      []WordEntry
	ContainMap map[rune]*bitset.BitSet
}

// NewLengthDictionary creates an empty dictionary for words of length n.
func NewLengthDictionary(n int) *LengthDictionary {
	return &LengthDictionary{
		Length:     n,
		ContainMap: make(map[rune]*bitset.BitSet),
	}
}

// add appends the entry and posts it under each of its characters.
// Count is incremented once per word.
func (d *LengthDictionary) add(e WordEntry) {
	id := uint(len(d.Words))
	d.Words = append(d.Words, e)
	for _, r := range e.Contain.Runes() {
		b, ok := d.ContainMap[r]
		if !ok {
			b = bitset.New(0)
			d.ContainMap[r] = b
		}
		b.Set(id)
	}
	d.Count++
}

// Entries returns the words posted under r, in ID order.
func (d *LengthDictionary) Entries(r rune) []WordEntry {
	b, ok := d.ContainMap[r]
	if !ok {
		return nil
	}
	out := make([]WordEntry, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		if int(i) < len(d.Words) {
			out = append(out, d.Words[i])
		}
	}
	return out
}

// dictionarySnapshot is the persisted form of a LengthDictionary.
type dictionarySnapshot struct {
	Length   int                       `json:"length"`
	Count    int                       `json:"count"`
	Words    []WordEntry               `json:"words"`
	Postings map[string]*bitset.BitSet `json:"postings"`
}

func (d *LengthDictionary) MarshalJSON() ([]byte, error) {
	snap := dictionarySnapshot{
		Length:   d.Length,
		Count:    d.Count,
		Words:    d.Words,
		Postings: make(map[string]*bitset.BitSet, len(d.ContainMap)),
	}
	for r, b := range d.ContainMap {
		snap.Postings[string(r)] = b
	}
	return json.Marshal(snap)
}

func (d *LengthDictionary) UnmarshalJSON(data []byte) error {
	var snap dictionarySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode dictionary: %w", err)
	}
	if snap.Count != len(snap.Words) {
		return fmt.Errorf("corrupt dictionary for length %d: count %d, %d words", snap.Length, snap.Count, len(snap.Words))
	}
	d.Length = snap.Length
	d.Count = snap.Count
	d.Words = snap.Words
	d.ContainMap = make(map[rune]*bitset.BitSet, len(snap.Postings))
	for k, b := range snap.Postings {
		rs := []rune(k)
		if len(rs) != 1 {
			return fmt.Errorf("corrupt posting key %q", k)
		}
		d.ContainMap[rs[0]] = b
	}
	return nil
}
