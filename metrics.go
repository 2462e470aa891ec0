package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// oracleCalls counts oracle guesses by outcome (ok, rejected, transport).
	oracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordsolver_oracle_calls_total",
		Help: "Oracle guesses by outcome",
	}, []string{"outcome"})

	oracleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wordsolver_oracle_call_duration_seconds",
		Help:    "Oracle guess latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
	})

	indexedWords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordsolver_indexed_words_total",
		Help: "Distinct words accepted into the corpus",
	})

	// solveOutcomes counts finished solves by terminal state.
	solveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordsolver_solves_total",
		Help: "Finished solves by terminal state",
	}, []string{"state"})

	candidateCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wordsolver_candidates",
		Help:    "Candidates produced by filtering per solve",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
	})
)
