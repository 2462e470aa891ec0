package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "wordsolver.yaml"

// Config is the full runtime configuration.
type Config struct {
	Port     string         `yaml:"port" validate:"required,numeric"`
	DataDir  string         `yaml:"data_dir" validate:"required"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Oracle   OracleSettings `yaml:"oracle"`
	Solver   SolverSettings `yaml:"solver"`
	Gemini   GeminiConfig   `yaml:"gemini"`
}

// CorpusConfig holds the alphabet and length bound shared by indexing and
// solving.
type CorpusConfig struct {
	Alphabet  string `yaml:"alphabet" validate:"required"`
	MaxLength int    `yaml:"max_length" validate:"min=2"`
	Filler    string `yaml:"filler" validate:"len=1"`
}

type OracleSettings struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int           `yaml:"burst" validate:"gte=0"`
}

type SolverSettings struct {
	Workers int `yaml:"workers" validate:"min=1,max=64"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Port:     "8080",
		DataDir:  "data",
		LogLevel: "info",
		Corpus: CorpusConfig{
			Alphabet:  defaultAlphabet,
			MaxLength: defaultMaxLength,
			Filler:    string(defaultFiller),
		},
		Oracle: OracleSettings{
			BaseURL: defaultOracleURL,
			Timeout: defaultOracleTimeout,
		},
		Solver: SolverSettings{Workers: 1},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides
// and validates the result. An empty path tries wordsolver.yaml and
// tolerates its absence.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("WORDSOLVER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("WORDSOLVER_ORACLE_URL"); v != "" {
		c.Oracle.BaseURL = v
	}
	if v := os.Getenv("WORDSOLVER_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("GCP_PROJECT_ID"); v != "" {
		c.Gemini.ProjectID = v
	}
	if v := os.Getenv("GCP_REGION"); v != "" {
		c.Gemini.Region = v
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FillerRune returns the padding character for probe chunks.
func (c Config) FillerRune() rune {
	for _, r := range c.Corpus.Filler {
		return r
	}
	return defaultFiller
}

func (c Config) IndexerConfig() IndexerConfig {
	return IndexerConfig{Alphabet: c.Corpus.Alphabet, MaxLength: c.Corpus.MaxLength}
}

func (c Config) OracleConfig() OracleConfig {
	return OracleConfig{
		BaseURL:       c.Oracle.BaseURL,
		Timeout:       c.Oracle.Timeout,
		RatePerSecond: c.Oracle.RatePerSecond,
		Burst:         c.Oracle.Burst,
	}
}

func (c Config) SolverConfig(obs Observer) SolverConfig {
	return SolverConfig{
		Alphabet:  c.Corpus.Alphabet,
		Filler:    c.FillerRune(),
		MaxLength: c.Corpus.MaxLength,
		Workers:   c.Solver.Workers,
		Observer:  obs,
	}
}

// newLogger builds the process logger for level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
