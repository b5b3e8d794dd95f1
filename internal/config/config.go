// Package config loads application settings and the model provider registry.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RAGCHAT_SERVER_ADDR.
const EnvPrefix = "RAGCHAT"

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	History   HistoryConfig   `mapstructure:"history"`
	Store     StoreConfig     `mapstructure:"store"`
	Models    ModelsConfig    `mapstructure:"models"`
	Log       LogConfig       `mapstructure:"log"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
}

// ServerConfig stores HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"` // 0 disables, streams may run long
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	UploadDir       string        `mapstructure:"upload_dir"` // Empty means the OS temp dir
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
}

// IngestConfig stores chunking and embedding settings.
type IngestConfig struct {
	ChunkSize        int `mapstructure:"chunk_size"`
	ChunkOverlap     int `mapstructure:"chunk_overlap"`
	EmbedBatchSize   int `mapstructure:"embed_batch_size"`
	EmbedConcurrency int `mapstructure:"embed_concurrency"`
	EmbedRetries     int `mapstructure:"embed_retries"`
}

// RetrievalConfig stores retriever settings.
type RetrievalConfig struct {
	TopK             int    `mapstructure:"top_k"`
	ContextSeparator string `mapstructure:"context_separator"`
}

// RedisConfig stores the redis connection for the redis history backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// HistoryConfig stores conversation history settings.
type HistoryConfig struct {
	Backend  string      `mapstructure:"backend"`   // "memory" or "redis"
	MaxTurns int         `mapstructure:"max_turns"` // Trailing turns sent to the model, 0 for all
	Redis    RedisConfig `mapstructure:"redis"`
}

// StoreConfig stores vector index settings.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "sqlite"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ModelsConfig points at the provider registry file.
type ModelsConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
	File  bool   `mapstructure:"file"`
}

// InboxConfig stores drop-folder settings. An empty Dir disables the inbox.
type InboxConfig struct {
	Dir    string        `mapstructure:"dir"`
	Settle time.Duration `mapstructure:"settle"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.upload_dir", "")
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.embed_batch_size", 16)
	v.SetDefault("ingest.embed_concurrency", 4)
	v.SetDefault("ingest.embed_retries", 3)

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.context_separator", " ")

	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.max_turns", 0)
	v.SetDefault("history.redis.addr", "localhost:6379")
	v.SetDefault("history.redis.password", "")
	v.SetDefault("history.redis.db", 0)
	v.SetDefault("history.redis.prefix", "ragchat:")
	v.SetDefault("history.redis.ttl", 24*time.Hour)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.sqlite_path", "data/vectors.db")

	v.SetDefault("models.path", DefaultModelsPath)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.file", false)

	v.SetDefault("inbox.dir", "")
	v.SetDefault("inbox.settle", 500*time.Millisecond)
}

// Load reads configuration from configPath, or from config.yaml in the
// working directory or ./config when configPath is empty. A missing implicit
// file is not an error; environment variables override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server.addr must be set")
	case c.Server.MaxUploadMB <= 0:
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	case c.Ingest.ChunkSize <= 0:
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	case c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize:
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	case c.Ingest.EmbedBatchSize <= 0:
		return fmt.Errorf("ingest.embed_batch_size must be positive, got %d", c.Ingest.EmbedBatchSize)
	case c.Ingest.EmbedConcurrency <= 0:
		return fmt.Errorf("ingest.embed_concurrency must be positive, got %d", c.Ingest.EmbedConcurrency)
	case c.Ingest.EmbedRetries <= 0:
		return fmt.Errorf("ingest.embed_retries must be positive, got %d", c.Ingest.EmbedRetries)
	case c.Retrieval.TopK <= 0:
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	case c.History.MaxTurns < 0:
		return fmt.Errorf("history.max_turns must not be negative, got %d", c.History.MaxTurns)
	case c.Inbox.Settle < 0:
		return fmt.Errorf("inbox.settle must not be negative, got %s", c.Inbox.Settle)
	}

	switch c.History.Backend {
	case "memory":
	case "redis":
		if c.History.Redis.Addr == "" {
			return errors.New("history.redis.addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("unknown history.backend %q (want memory or redis)", c.History.Backend)
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (want memory or sqlite)", c.Store.Backend)
	}
	return nil
}
