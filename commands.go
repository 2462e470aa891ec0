package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// errNotSolved makes the process exit non-zero without an extra message.
var errNotSolved = errors.New("secret not found")

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "wordsolver",
		Short:         "Index a word corpus and solve a guessing oracle with it",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			opts.cfg = cfg
			slog.SetDefault(newLogger(cfg.LogLevel))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default wordsolver.yaml if present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newIndexCmd(opts),
		newSolveCmd(opts),
		newStatsCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func openCorpus(cfg Config) (*BadgerStore, error) {
	return OpenBadgerStore(BadgerConfig{
		Path:   filepath.Join(cfg.DataDir, "corpus"),
		Logger: slog.Default().With("component", "badger"),
	})
}

// --- index ---

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		sources       []string
		geminiLengths []int
		geminiCount   int
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the per-length character index from word sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if len(sources) == 0 && len(geminiLengths) == 0 {
				return errors.New("at least one --source or --gemini-length is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			seqs := []iter.Seq[string]{FileWords(sources...)}
			if len(geminiLengths) > 0 {
				if !cfg.Gemini.Enabled() {
					return errors.New("--gemini-length needs GCP_PROJECT_ID or gemini.project_id")
				}
				gemini, err := NewGeminiClient(ctx, cfg.Gemini)
				if err != nil {
					return err
				}
				defer gemini.Close()
				for _, n := range geminiLengths {
					seqs = append(seqs, GeminiWords(ctx, gemini, n, geminiCount))
				}
			}

			store, err := openCorpus(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			slog.Info("indexing", "sources", describeSources(sources), "alphabet", cfg.Corpus.Alphabet, "max_length", cfg.Corpus.MaxLength)
			bar := progressbar.Default(-1, "indexing words")
			ix := NewIndexer(cfg.IndexerConfig())
			stats, err := ix.IndexAll(ctx, Counted(Concat(seqs...), func() { _ = bar.Add(1) }))
			_ = bar.Finish()
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			if err := ix.SaveAll(ctx, store); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seen %d, accepted %d, rejected %d, %d lengths\n",
				stats.Seen, stats.Accepted, stats.Rejected, stats.Lengths)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "word file(s); '-' reads stdin")
	cmd.Flags().IntSliceVar(&geminiLengths, "gemini-length", nil, "also ask Gemini for words of these lengths")
	cmd.Flags().IntVar(&geminiCount, "gemini-count", 200, "words requested per Gemini length")
	return cmd
}

// --- solve ---

func newSolveCmd(opts *rootOptions) *cobra.Command {
	var (
		size    int
		seed    int64
		workers int
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Find the secret word of a given size and seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if workers > 0 {
				cfg.Solver.Workers = workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openCorpus(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting the guessing game with word size = %d and seed = %d\n", size, seed)
			solver := NewSolver(cfg.SolverConfig(printObserver(out)), NewHTTPOracle(cfg.OracleConfig()), store)
			res := solver.Solve(ctx, size, seed)
			return reportResult(out, res)
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "length of the secret word")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed pinning the secret")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent oracle calls (overrides config)")
	_ = cmd.MarkFlagRequired("size")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

func printObserver(out io.Writer) Observer {
	return func(e Event) {
		switch e.Type {
		case EventState:
			if e.State == StateFiltering && e.Candidates > 0 {
				fmt.Fprintf(out, "Total possible words to check: %d\n", e.Candidates)
			}
		case EventProbe:
			if e.Error == "" {
				fmt.Fprintf(out, "Probe %s -> %s (chars: %s)\n", e.Guess, e.MatchMap, e.Discovered)
			}
		case EventAttempt:
			if e.Error != "" {
				fmt.Fprintf(out, "Guess no. %d: \t%s -> failed\n", e.Attempt, e.Guess)
				return
			}
			fmt.Fprintf(out, "Guess no. %d: \t%s\n", e.Attempt, e.MatchMap)
		}
	}
}

func reportResult(out io.Writer, res Result) error {
	sep := strings.Repeat("-", 64)
	fmt.Fprintln(out, sep)
	if res.Matched {
		fmt.Fprintf(out, "%s -> MATCHED after %d guess(es)\n", res.MatchMap, res.Attempts)
		fmt.Fprintln(out, sep)
		return nil
	}
	switch res.Diagnostic {
	case DiagnosticLengthExceedsMax:
		fmt.Fprintf(out, "No corpus: length %d is beyond the configured maximum\n", len(res.MatchMap))
	case DiagnosticLengthUnobserved:
		fmt.Fprintf(out, "No corpus: no words of length %d were indexed\n", len(res.MatchMap))
	}
	fmt.Fprintf(out, "Can't guess the keyword from the corpus (last: %s, %d candidate(s))\n", res.MatchMap, len(res.Candidates))
	fmt.Fprintln(out, sep)
	return errNotSolved
}

// --- stats ---

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number of indexed words per length",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCorpus(opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := CorpusStats(cmd.Context(), store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(out, "corpus is empty, run 'wordsolver index' first")
				return nil
			}
			for _, st := range stats {
				fmt.Fprintf(out, "%3d  %d\n", st.Length, st.Count)
			}
			return nil
		},
	}
}

// --- serve ---

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve solves over HTTP with SSE progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openCorpus(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := NewServer(ctx, cfg, store, NewHTTPOracle(cfg.OracleConfig()))
			httpSrv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				slog.Info("server started", "addr", "http://localhost:"+cfg.Port)
				errc <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("shutdown", "err", err)
			}
			srv.Wait()
			return nil
		},
	}
}
