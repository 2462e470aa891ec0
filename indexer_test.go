package main

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexerContainSets(t *testing.T) {
	ix := NewIndexer(IndexerConfig{})
	words := []string{"apple", "grape", "banana", "kiwi", "a"}
	_, err := ix.IndexAll(context.Background(), SliceWords(words))
	require.NoError(t, err)

	alpha := CharSetOf(defaultAlphabet)
	for _, d := range ix.Dictionaries() {
		for _, e := range d.Words {
			assert.True(t, e.Contain.Equal(CharSetOf(e.Word)), "contain of %s", e.Word)
			assert.True(t, e.Contain.SubsetOf(alpha), "alphabet of %s", e.Word)
			assert.Equal(t, d.Length, utf8.RuneCountInString(e.Word))
		}
	}
}

func TestIndexerCountsWordsOnce(t *testing.T) {
	ix := NewIndexer(IndexerConfig{})
	for _, w := range []string{"apple", "grape", "apple", "lemon"} {
		ix.Add(w)
	}

	dicts := ix.Dictionaries()
	require.Len(t, dicts, 1)
	d := dicts[0]
	// apple is posted under four characters but counted once; the repeat
	// is not re-indexed.
	assert.Equal(t, 3, d.Count)
	assert.Len(t, d.Words, 3)
	assert.Len(t, d.Entries('a'), 2)
	assert.Len(t, d.Entries('e'), 3)
}

func TestIndexerRejectsInvalidWords(t *testing.T) {
	ix := NewIndexer(IndexerConfig{MaxLength: 6})

	assert.False(t, ix.Add(""), "empty")
	assert.False(t, ix.Add("café"), "accent")
	assert.False(t, ix.Add("it's"), "apostrophe")
	assert.False(t, ix.Add("Apple"), "uppercase")
	assert.False(t, ix.Add("banana"), "length == max")
	assert.True(t, ix.Add("plane"))
	assert.True(t, ix.Add("a"))

	st := ix.Stats()
	assert.Equal(t, 7, st.Seen)
	assert.Equal(t, 2, st.Accepted)
	assert.Equal(t, 5, st.Rejected)
	assert.Equal(t, 2, st.Lengths)
}

func TestIndexerCustomAlphabet(t *testing.T) {
	ix := NewIndexer(IndexerConfig{Alphabet: "abc"})
	assert.True(t, ix.Add("cab"))
	assert.False(t, ix.Add("cad"))
}

func TestIndexerDictionariesSorted(t *testing.T) {
	ix := NewIndexer(IndexerConfig{})
	for _, w := range []string{"seven", "one", "three", "four", "to"} {
		ix.Add(w)
	}
	var lengths []int
	for _, d := range ix.Dictionaries() {
		lengths = append(lengths, d.Length)
	}
	assert.Equal(t, []int{2, 3, 4, 5}, lengths)
}

func TestIndexAllFromReader(t *testing.T) {
	text := "The quick brown fox\njumps over the LAZY dog, twice."
	ix := NewIndexer(IndexerConfig{})
	stats, err := ix.IndexAll(context.Background(), ReaderWords(strings.NewReader(text)))
	require.NoError(t, err)

	// "dog," and "twice." carry punctuation and are rejected; "the" repeats.
	assert.Equal(t, 10, stats.Seen)
	assert.Equal(t, 7, stats.Accepted)
	assert.Equal(t, 2, stats.Rejected)
}

func TestIndexAllHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := NewIndexer(IndexerConfig{})
	_, err := ix.IndexAll(ctx, SliceWords([]string{"apple"}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ix.Dictionaries())
}

func TestIndexAndFilterRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	ix := NewIndexer(IndexerConfig{})
	_, err = ix.IndexAll(ctx, SliceWords([]string{"plane", "panel", "plank", "apple"}))
	require.NoError(t, err)
	require.NoError(t, ix.SaveAll(ctx, store))

	res, err := NewFilter(store, defaultMaxLength).Filter(ctx, 5, NewCharSet('p', 'l', 'a', 'n', 'e'))
	require.NoError(t, err)
	assert.Contains(t, res.Candidates, "plane")
	assert.Equal(t, []string{"panel", "plane"}, res.Candidates)
}
