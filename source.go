package main

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"
)

// ReaderWords yields lowercased whitespace-separated tokens from r.
// Read errors end the sequence and are logged.
func ReaderWords(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		sc.Split(bufio.ScanWords)
		for sc.Scan() {
			if !yield(strings.ToLower(strings.TrimSpace(sc.Text()))) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("word source read failed", "err", err)
		}
	}
}

// FileWords yields the words of each file in order. "-" reads stdin.
// A file that cannot be opened is logged and skipped.
func FileWords(paths ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, p := range paths {
			if !yieldFile(p, yield) {
				return
			}
		}
	}
}

func yieldFile(path string, yield func(string) bool) bool {
	if path == "-" {
		for w := range ReaderWords(os.Stdin) {
			if !yield(w) {
				return false
			}
		}
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("skipping word source", "path", path, "err", err)
		return true
	}
	defer f.Close()
	for w := range ReaderWords(f) {
		if !yield(w) {
			return false
		}
	}
	return true
}

// SliceWords yields words as given, lowercased.
func SliceWords(words []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, w := range words {
			if !yield(strings.ToLower(strings.TrimSpace(w))) {
				return
			}
		}
	}
}

// Concat chains sequences.
func Concat(seqs ...iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, seq := range seqs {
			for w := range seq {
				if !yield(w) {
					return
				}
			}
		}
	}
}

// Counted calls onWord after each word is yielded.
func Counted(seq iter.Seq[string], onWord func()) iter.Seq[string] {
	return func(yield func(string) bool) {
		for w := range seq {
			if !yield(w) {
				return
			}
			onWord()
		}
	}
}

func describeSources(paths []string) string {
	if len(paths) == 0 {
		return "<none>"
	}
	return fmt.Sprintf("%d file(s): %s", len(paths), strings.Join(paths, ", "))
}
