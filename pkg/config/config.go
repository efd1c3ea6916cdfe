// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Source, Postgres, Kafka, Redis, Search, Situation, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source drivers understood by the loader.
const (
	SourceJSON     = "json"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Search    SearchConfig    `yaml:"search"`
	Situation SituationConfig `yaml:"situation"`
	Similar   SimilarConfig   `yaml:"similar"`
	Reload    ReloadConfig    `yaml:"reload"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	PublicURL       string        `yaml:"publicUrl"`
}

// SourceConfig selects where moments are loaded from.
type SourceConfig struct {
	Driver string `yaml:"driver"`
	// Path is the JSON file or SQLite database path.
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	CorpusReload    string `yaml:"corpusReload"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// FieldWeights mirrors ranker.Weights so the scoring package stays free of
// YAML concerns.
type FieldWeights struct {
	Tags        float64 `yaml:"tags"`
	Summary     float64 `yaml:"summary"`
	Situation   float64 `yaml:"situation"`
	Lesson      float64 `yaml:"lesson"`
	Decision    float64 `yaml:"decision"`
	Outcome     float64 `yaml:"outcome"`
	Quote       float64 `yaml:"quote"`
	PhraseBonus float64 `yaml:"phraseBonus"`
}

// SearchConfig controls keyword search limits and field weights.
type SearchConfig struct {
	DefaultLimit int          `yaml:"defaultLimit"`
	MaxLimit     int          `yaml:"maxLimit"`
	MaxOffset    int          `yaml:"maxOffset"`
	Weights      FieldWeights `yaml:"weights"`
}

// SituationConfig controls the hybrid situation matcher. Synonyms are
// merged over the built-in table; an entry with an empty list removes a
// built-in keyword.
type SituationConfig struct {
	DefaultLimit  int                 `yaml:"defaultLimit"`
	MaxLimit      int                 `yaml:"maxLimit"`
	LexicalWeight float64             `yaml:"lexicalWeight"`
	TagWeight     float64             `yaml:"tagWeight"`
	MinScore      float64             `yaml:"minScore"`
	Synonyms      map[string][]string `yaml:"synonyms"`
}

// SimilarConfig controls tag-similarity lookups.
type SimilarConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// ReloadConfig bounds a corpus reload.
type ReloadConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// AnalyticsConfig controls query event collection.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	Persist          bool          `yaml:"persist"`
}

// MCPConfig controls the agent tool server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development
// against the sample corpus.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PublicURL:       "http://localhost:8000",
		},
		Source: SourceConfig{
			Driver: SourceSQLite,
			Path:   "echomindr.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "echomindr",
			User:            "echomindr",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "echomindr",
			Topics: KafkaTopics{
				AnalyticsEvents: "echomindr.analytics",
				CorpusReload:    "echomindr.corpus-reload",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Search: SearchConfig{
			DefaultLimit: 5,
			MaxLimit:     100,
			MaxOffset:    10000,
			Weights: FieldWeights{
				Tags:        3.0,
				Summary:     2.0,
				Situation:   1.5,
				Lesson:      1.0,
				Decision:    1.0,
				Outcome:     1.0,
				Quote:       0.5,
				PhraseBonus: 1.0,
			},
		},
		Situation: SituationConfig{
			DefaultLimit:  5,
			MaxLimit:      20,
			LexicalWeight: 0.4,
			TagWeight:     0.6,
			MinScore:      0.1,
		},
		Similar: SimilarConfig{
			DefaultLimit: 5,
			MaxLimit:     20,
		},
		Reload: ReloadConfig{
			Timeout:     2 * time.Minute,
			MaxAttempts: 3,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: 5 * time.Minute,
		},
		MCP: MCPConfig{
			Transport: TransportStdio,
			Port:      3001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Driver {
	case SourceJSON, SourceSQLite:
		if c.Source.Path == "" {
			errs = append(errs, fmt.Errorf("source.path is required for driver %q", c.Source.Driver))
		}
	case SourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("source.driver %q must be one of json, sqlite, postgres", c.Source.Driver))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, fmt.Errorf("search limits invalid: default=%d max=%d", c.Search.DefaultLimit, c.Search.MaxLimit))
	}
	if c.Search.MaxOffset < 0 {
		errs = append(errs, fmt.Errorf("search.maxOffset must not be negative"))
	}
	if c.Situation.DefaultLimit <= 0 || c.Situation.MaxLimit <= 0 || c.Situation.DefaultLimit > c.Situation.MaxLimit {
		errs = append(errs, fmt.Errorf("situation limits invalid: default=%d max=%d", c.Situation.DefaultLimit, c.Situation.MaxLimit))
	}
	if c.Similar.DefaultLimit <= 0 || c.Similar.MaxLimit <= 0 || c.Similar.DefaultLimit > c.Similar.MaxLimit {
		errs = append(errs, fmt.Errorf("similar limits invalid: default=%d max=%d", c.Similar.DefaultLimit, c.Similar.MaxLimit))
	}
	if c.Situation.LexicalWeight < 0 || c.Situation.TagWeight < 0 || c.Situation.LexicalWeight+c.Situation.TagWeight == 0 {
		errs = append(errs, fmt.Errorf("situation weights must be non-negative and not both zero"))
	}
	if c.Situation.MinScore < 0 {
		errs = append(errs, fmt.Errorf("situation.minScore must not be negative"))
	}
	switch c.MCP.Transport {
	case TransportStdio, TransportSSE:
	default:
		errs = append(errs, fmt.Errorf("mcp.transport %q must be stdio or sse", c.MCP.Transport))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads ECHOMINDR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ECHOMINDR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ECHOMINDR_PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("ECHOMINDR_SOURCE_DRIVER"); v != "" {
		cfg.Source.Driver = v
	}
	if v := os.Getenv("ECHOMINDR_DB"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("ECHOMINDR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("ECHOMINDR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("ECHOMINDR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("ECHOMINDR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("ECHOMINDR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("ECHOMINDR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("ECHOMINDR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("ECHOMINDR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("ECHOMINDR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ECHOMINDR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ECHOMINDR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ECHOMINDR_MCP_TRANSPORT"); v != "" {
		cfg.MCP.Transport = v
	}
	if v := os.Getenv("ECHOMINDR_MCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MCP.Port = port
		}
	}
}
