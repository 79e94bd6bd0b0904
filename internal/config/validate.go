package config

import (
	"errors"
	"fmt"

	"lexpipe/internal/tasks"
)

func (c *Config) Validate() error {
	if c.Database.Primary.DSN == "" {
		return errors.New("database.primary.dsn is required")
	}
	if c.Database.Vector.DSN == "" {
		return errors.New("database.vector.dsn is required")
	}
	if c.Blob.Directory == "" {
		return errors.New("blob.directory is required")
	}
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}

	if c.Embedding.OpenaiApiKey == "" {
		return errors.New("embedding.openai_api_key is required (set OPENAI_API_KEY)")
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be a positive integer")
	}

	switch c.Generation.Provider {
	case "openai":
		// Shares the embedding key.
	case "gemini":
		if c.Generation.GoogleApiKey == "" {
			return errors.New("generation.google_api_key is required when generation.provider is gemini (set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("generation.provider must be openai or gemini, got %q", c.Generation.Provider)
	}

	if c.Chunking.MaxTokens <= 0 {
		return errors.New("chunking.max_tokens must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap (%d) must be non-negative and less than max_tokens (%d)", c.Chunking.Overlap, c.Chunking.MaxTokens)
	}

	known := make(map[string]bool)
	for _, stage := range tasks.PipelineStages() {
		known[stage] = true
	}
	for name, sp := range c.Stages {
		if !known[name] {
			return fmt.Errorf("stages contains unknown stage %q", name)
		}
		if sp.MaxAttempts < 0 {
			return fmt.Errorf("stages.%s.max_attempts must not be negative", name)
		}
		if sp.Timeout < 0 || sp.BaseBackoff < 0 || sp.MaxBackoff < 0 {
			return fmt.Errorf("stages.%s durations must not be negative", name)
		}
	}

	if c.Query.TopK <= 0 {
		return errors.New("query.top_k must be a positive integer")
	}
	return nil
}
