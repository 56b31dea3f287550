// Package config loads agent configuration from a YAML file with
// environment variable overrides, and validates it before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the agent service.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AgentConfig controls the turn pipeline.
type AgentConfig struct {
	Name          string        `yaml:"name"`
	MaxIterations int           `yaml:"max_iterations"`
	TurnTimeout   time.Duration `yaml:"turn_timeout"`
	MaxPassages   int           `yaml:"max_passages"`
	TokenBudget   int           `yaml:"token_budget"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, claude, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RetrievalConfig controls the hybrid retriever.
type RetrievalConfig struct {
	TopK           int            `yaml:"top_k"`
	GradeThreshold float64        `yaml:"grade_threshold"`
	CorrectRatio   float64        `yaml:"correct_ratio"`
	Backend        string         `yaml:"backend"` // memory, pgvector
	Postgres       PostgresConfig `yaml:"postgres"`
}

// PostgresConfig configures the pgvector-backed index.
type PostgresConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"db_name"`
	SSLMode   string `yaml:"ssl_mode"`
	Dimension int    `yaml:"dimension"`
	TableName string `yaml:"table_name"`
}

// SessionConfig selects the turn-log backend.
type SessionConfig struct {
	Backend string      `yaml:"backend"` // memory, redis, postgres, mongo
	Redis   RedisConfig `yaml:"redis"`
	Mongo   MongoConfig `yaml:"mongo"`
}

// RedisConfig configures the Redis turn log.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// MongoConfig configures the MongoDB turn log.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Exporter string `yaml:"exporter"` // otlp, stdout
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:          "regrag",
			MaxIterations: 3,
			TurnTimeout:   240 * time.Second,
			MaxPassages:   6,
			TokenBudget:   6000,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   2048,
		},
		Retrieval: RetrievalConfig{
			TopK:           6,
			GradeThreshold: 0.55,
			CorrectRatio:   0.7,
			Backend:        "memory",
			Postgres: PostgresConfig{
				Host:      "localhost",
				Port:      5432,
				SSLMode:   "disable",
				Dimension: 1536,
				TableName: "regrag_passages",
			},
		},
		Session: SessionConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "regrag:session:",
			},
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "regrag",
				Collection: "session_turns",
			},
		},
		Telemetry: TelemetryConfig{
			Exporter: "stdout",
		},
	}
}

// Load reads configuration from the given YAML file, then applies
// environment overrides. Path may be empty to use defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables. Only secrets
// and deployment endpoints are overridable; tuning stays in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("REGRAG_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("REGRAG_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("REGRAG_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("REGRAG_REDIS_ADDR"); v != "" {
		c.Session.Redis.Addr = v
	}
	if v := os.Getenv("REGRAG_MONGO_URI"); v != "" {
		c.Session.Mongo.URI = v
	}
	if v := os.Getenv("REGRAG_PG_HOST"); v != "" {
		c.Retrieval.Postgres.Host = v
	}
	if v := os.Getenv("REGRAG_PG_PASSWORD"); v != "" {
		c.Retrieval.Postgres.Password = v
	}
	if v := os.Getenv("REGRAG_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = "otlp"
	}
	if v := os.Getenv("REGRAG_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Agent.MaxIterations = n
		}
	}
}

// Validate checks the loaded configuration for consistency.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("agent.name", c.Agent.Name)
	v.RequirePositive("agent.max_iterations", c.Agent.MaxIterations)
	v.RequirePositive("agent.max_passages", c.Agent.MaxPassages)
	v.RequirePositive("agent.token_budget", c.Agent.TokenBudget)

	v.ValidateOneOf("llm.provider", c.LLM.Provider, "openai", "claude", "gemini")
	v.RequireNonEmpty("llm.model", c.LLM.Model)
	v.ValidateFloatRange("llm.temperature", c.LLM.Temperature, 0.0, 2.0)
	v.RequirePositive("llm.max_tokens", c.LLM.MaxTokens)

	v.RequirePositive("retrieval.top_k", c.Retrieval.TopK)
	v.ValidateFloatRange("retrieval.grade_threshold", c.Retrieval.GradeThreshold, 0.0, 1.0)
	v.ValidateFloatRange("retrieval.correct_ratio", c.Retrieval.CorrectRatio, 0.0, 1.0)
	v.ValidateOneOf("retrieval.backend", c.Retrieval.Backend, "memory", "pgvector")
	if c.Retrieval.Backend == "pgvector" {
		v.RequireNonEmpty("retrieval.postgres.host", c.Retrieval.Postgres.Host)
		v.ValidatePort("retrieval.postgres.port", c.Retrieval.Postgres.Port)
		v.RequireNonEmpty("retrieval.postgres.user", c.Retrieval.Postgres.User)
		v.RequireNonEmpty("retrieval.postgres.db_name", c.Retrieval.Postgres.DBName)
		v.ValidateOneOf("retrieval.postgres.ssl_mode", c.Retrieval.Postgres.SSLMode,
			"disable", "require", "verify-ca", "verify-full")
		v.ValidateRange("retrieval.postgres.dimension", c.Retrieval.Postgres.Dimension, 1, 65535)
		v.RequireNonEmpty("retrieval.postgres.table_name", c.Retrieval.Postgres.TableName)
	}

	v.ValidateOneOf("session.backend", c.Session.Backend, "memory", "redis", "postgres", "mongo")
	switch c.Session.Backend {
	case "redis":
		v.RequireNonEmpty("session.redis.addr", c.Session.Redis.Addr)
		v.ValidateDBNumber("session.redis.db", c.Session.Redis.DB)
		v.RequireNonEmpty("session.redis.prefix", c.Session.Redis.Prefix)
	case "mongo":
		v.RequireNonEmpty("session.mongo.uri", c.Session.Mongo.URI)
		v.RequireNonEmpty("session.mongo.database", c.Session.Mongo.Database)
		v.RequireNonEmpty("session.mongo.collection", c.Session.Mongo.Collection)
	}

	if c.Telemetry.Enabled {
		v.ValidateOneOf("telemetry.exporter", c.Telemetry.Exporter, "otlp", "stdout")
		if c.Telemetry.Exporter == "otlp" {
			v.RequireNonEmpty("telemetry.endpoint", c.Telemetry.Endpoint)
		}
	}

	return v.Error()
}
