package main

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"google.golang.org/genai"
)

const wordListPrompt = `List %d distinct common English words that are exactly %d letters long.

Rules:
- Lowercase letters a-z only, no hyphens, apostrophes, accents or proper nouns.
- Every word must have exactly %d letters.
- Answer ONLY with a JSON array of strings, no comment and no markdown.`

// WordList asks Gemini for up to n words of the given length. The indexer
// still validates every word, so a sloppy answer only costs rejected words.
func (g *GeminiClient) WordList(ctx context.Context, length, n int) ([]string, error) {
	if length < 1 || n < 1 {
		return nil, fmt.Errorf("word list %d words of length %d: %w", n, length, ErrInvalidLength)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: fmt.Sprintf(wordListPrompt, n, length, length)},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.2)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}

	var words []string
	if err := json.Unmarshal([]byte(text), &words); err != nil {
		return nil, fmt.Errorf("parse word list JSON: %w\nraw response: %s", err, text)
	}
	return words, nil
}

// GeminiWords is a word source backed by WordList. A failed request is
// logged and yields nothing.
func GeminiWords(ctx context.Context, g *GeminiClient, length, n int) iter.Seq[string] {
	return func(yield func(string) bool) {
		words, err := g.WordList(ctx, length, n)
		if err != nil {
			slog.Warn("gemini word source failed", "length", length, "err", err)
			return
		}
		slog.Info("gemini word source", "length", length, "words", len(words))
		for w := range SliceWords(words) {
			if !yield(w) {
				return
			}
		}
	}
}
