package main

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultRegion      = "europe-west1"
	defaultGeminiModel = "gemini-2.5-flash"
)

// GeminiConfig selects the VertexAI project used to generate word lists.
type GeminiConfig struct {
	ProjectID string `yaml:"project_id"`
	Region    string `yaml:"region"`
	Model     string `yaml:"model"`
}

// Enabled reports whether a project is configured.
func (c GeminiConfig) Enabled() bool {
	return c.ProjectID != ""
}

// GeminiClient wraps the Google GenAI client for VertexAI.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a client using Application Default Credentials.
// Set GOOGLE_APPLICATION_CREDENTIALS to the service account key file path.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Region,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: cfg.Model,
	}, nil
}

// Close releases resources held by the client.
func (g *GeminiClient) Close() error {
	return nil
}
