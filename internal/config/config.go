package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

// StagePolicy is the config-file shape of a task failure policy. Durations
// are parsed by viper ("30s", "2m").
type StagePolicy struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	RetryableKinds []string      `mapstructure:"retryable_kinds"`
}

// Policy converts the config shape into the runtime's policy type.
func (p StagePolicy) Policy() task.Policy {
	kinds := make([]task.ErrorKind, 0, len(p.RetryableKinds))
	for _, k := range p.RetryableKinds {
		kinds = append(kinds, task.ErrorKind(k))
	}
	return task.Policy{
		MaxAttempts:    p.MaxAttempts,
		Timeout:        p.Timeout,
		BaseBackoff:    p.BaseBackoff,
		MaxBackoff:     p.MaxBackoff,
		RetryableKinds: kinds,
	}
}

type Config struct {
	Database struct {
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
		Vector struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"vector"`
	} `mapstructure:"database"`

	Blob struct {
		Directory string `mapstructure:"directory"`
	} `mapstructure:"blob"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int `mapstructure:"concurrency"`
	} `mapstructure:"worker"`

	Server struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`

	Embedding struct {
		Model        string `mapstructure:"model"`
		Dimension    int    `mapstructure:"dimension"`
		OpenaiApiKey string `mapstructure:"openai_api_key"`
	} `mapstructure:"embedding"`

	Generation struct {
		Provider     string `mapstructure:"provider"` // "openai" or "gemini"
		Model        string `mapstructure:"model"`
		GoogleApiKey string `mapstructure:"google_api_key"`
	} `mapstructure:"generation"`

	Chunking struct {
		MaxTokens int `mapstructure:"max_tokens"`
		Overlap   int `mapstructure:"overlap"`
	} `mapstructure:"chunking"`

	// Stages maps a pipeline stage name to its failure policy. Stages
	// without an entry run under the runtime defaults.
	Stages map[string]StagePolicy `mapstructure:"stages"`

	Query struct {
		TopK   int         `mapstructure:"top_k"`
		Policy StagePolicy `mapstructure:"policy"`
	} `mapstructure:"query"`
}

// StagePolicies returns the per-stage runtime policies for every known
// pipeline stage.
func (c *Config) StagePolicies() map[string]task.Policy {
	policies := make(map[string]task.Policy)
	for _, stage := range tasks.PipelineStages() {
		if sp, ok := c.Stages[stage]; ok {
			policies[stage] = sp.Policy()
		} else {
			policies[stage] = task.DefaultPolicy()
		}
	}
	return policies
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.lexpipe")

	viper.AutomaticEnv()
	// API keys come from the environment by convention, never the file.
	viper.BindEnv("embedding.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("generation.google_api_key", "GEMINI_API_KEY")
	viper.BindEnv("database.primary.dsn", "LEXPIPE_PRIMARY_DSN")
	viper.BindEnv("database.vector.dsn", "LEXPIPE_VECTOR_DSN")
	viper.BindEnv("redis.address", "LEXPIPE_REDIS_ADDR")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults plus env vars carry a dev setup.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("blob.directory", "data/blobs")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 1536)
	viper.SetDefault("generation.provider", "openai")
	viper.SetDefault("generation.model", "gpt-4o-mini")
	viper.SetDefault("chunking.max_tokens", 400)
	viper.SetDefault("chunking.overlap", 40)
	viper.SetDefault("query.top_k", 5)
}
