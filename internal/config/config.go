// Package config provides configuration management for the ingestion and
// retrieval core. It follows Uber Go Style Guide conventions for struct
// organization and error handling.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Common configuration errors.
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// EmbeddingConfig configures the embedder client (C4, §6).
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider" validate:"required,oneof=openai dashscope custom"`
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	APIKey   string `mapstructure:"api_key" validate:"required"`
	Model    string `mapstructure:"model" validate:"required"`
	Dim      int    `mapstructure:"dim" validate:"required,min=1"`
	BatchMax int    `mapstructure:"batch_max" validate:"required,min=1"`
}

// VectorStoreConfig configures the vector index adapter (C5, §6).
type VectorStoreConfig struct {
	Type             string `mapstructure:"type" validate:"required,oneof=milvus elasticsearch faiss qdrant postgres"`
	Endpoint         string `mapstructure:"endpoint" validate:"required"`
	Collection       string `mapstructure:"collection" validate:"required"`
	IndexManagement  string `mapstructure:"index_management" validate:"oneof=CREATE_IF_NOT_EXISTS NO_VALIDATION"`
	Overwrite        bool   `mapstructure:"overwrite"`
}

// ChunkingConfig defines text chunking parameters (C3, §6).
type ChunkingConfig struct {
	ChunkSize       int    `mapstructure:"chunk_size" validate:"required,min=1"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap" validate:"min=0"`
	ChunkingType    string `mapstructure:"chunking_type" validate:"required"`
	RespectMarkdown bool   `mapstructure:"respect_markdown"`
}

// Validate checks the chunking configuration and sets defaults.
func (c *ChunkingConfig) Validate() error {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 100
	}
	if c.ChunkingType == "" {
		c.ChunkingType = "semantic"
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be less than chunk size", ErrInvalidConfig)
	}
	return nil
}

// ParallelConfig configures the segmented executor (C7, §6).
type ParallelConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	MaxWorkers       int    `mapstructure:"max_workers" validate:"min=1"`
	ChunkSize        int    `mapstructure:"chunk_size" validate:"min=1"`
	ChunkStrategy    string `mapstructure:"chunk_strategy" validate:"oneof=fixed_size sentence paragraph semantic"`
	UseDistributed   bool   `mapstructure:"use_distributed"`
	MemoryEfficient  bool   `mapstructure:"memory_efficient"`
	BatchSize        int    `mapstructure:"batch_size" validate:"min=1"`
	SizeThresholdB   int64  `mapstructure:"size_threshold_bytes" validate:"min=1"`
	TokenThreshold   int    `mapstructure:"token_threshold" validate:"min=1"`
}

// IncrementalConfig configures the incremental-update manager (C8, §6).
type IncrementalConfig struct {
	Enabled                 bool    `mapstructure:"enabled"`
	ForceReprocessThreshold float64 `mapstructure:"force_reprocess_threshold" validate:"min=0,max=1"`
}

// Validate sets defaults and enforces bounds.
func (c *IncrementalConfig) Validate() error {
	if c.ForceReprocessThreshold == 0 {
		c.ForceReprocessThreshold = 0.5
	}
	if c.ForceReprocessThreshold < 0 || c.ForceReprocessThreshold > 1 {
		return fmt.Errorf("%w: force_reprocess_threshold must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}

// RetrievalConfig configures the hybrid retriever (C10, §6).
type RetrievalConfig struct {
	RerankModel  string  `mapstructure:"rerank_model"`
	RerankTopN   int     `mapstructure:"rerank_top_n" validate:"min=0"`
	WeightVector float64 `mapstructure:"w_vector" validate:"min=0,max=1"`
	WeightLexical float64 `mapstructure:"w_lexical" validate:"min=0,max=1"`
}

// Validate sets score-weight and rerank defaults.
func (c *RetrievalConfig) Validate() error {
	if c.WeightVector == 0 && c.WeightLexical == 0 {
		c.WeightVector = 0.7
		c.WeightLexical = 0.3
	}
	if c.RerankTopN == 0 {
		c.RerankTopN = 20
	}
	return nil
}

// BrokerConfig configures the task broker interface (C9, §6).
type BrokerConfig struct {
	BrokerURL               string `mapstructure:"broker_url" validate:"required"`
	ResultBackendURL         string `mapstructure:"result_backend_url" validate:"required"`
	TaskTimeLimitSeconds     int    `mapstructure:"task_time_limit_seconds" validate:"min=1"`
	TaskSoftTimeLimitSeconds int    `mapstructure:"task_soft_time_limit_seconds" validate:"min=1"`
	WorkerPrefetchMultiplier int    `mapstructure:"worker_prefetch_multiplier" validate:"min=1"`
	WorkerMaxTasksPerChild   int    `mapstructure:"worker_max_tasks_per_child" validate:"min=0"`
	TaskAcksLate             bool   `mapstructure:"task_acks_late"`
}

// Config represents the complete application configuration. Structs are
// organized by functional domain with clear separation, mirroring each
// component named in the system overview.
type Config struct {
	Server struct {
		Host string `mapstructure:"host" validate:"required"`
		Port string `mapstructure:"port" validate:"required,numeric"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host" validate:"required,hostname"`
		Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
		User     string `mapstructure:"user" validate:"required"`
		Password string `mapstructure:"password" validate:"required"`
		DBName   string `mapstructure:"dbname" validate:"required"`
	} `mapstructure:"database"`

	Redis struct {
		Host     string `mapstructure:"host" validate:"required,hostname"`
		Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db" validate:"min=0,max=15"`
	} `mapstructure:"redis"`

	MinIO struct {
		Endpoint        string `mapstructure:"endpoint" validate:"required,url"`
		AccessKeyID     string `mapstructure:"access_key_id" validate:"required"`
		SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
		BucketName      string `mapstructure:"bucket_name" validate:"required"`
		UseSSL          bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`

	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Parallel    ParallelConfig    `mapstructure:"parallel"`
	Incremental IncrementalConfig `mapstructure:"incremental"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Broker      BrokerConfig      `mapstructure:"broker"`

	Services struct {
		MarkdownConverter struct {
			BaseURL string `mapstructure:"base_url" validate:"required,url"`
			APIKey  string `mapstructure:"api_key" validate:"required"`
		} `mapstructure:"markdown_converter"`
		Reranker struct {
			BaseURL string `mapstructure:"base_url" validate:"required,url"`
			APIKey  string `mapstructure:"api_key" validate:"required"`
			Model   string `mapstructure:"model" validate:"required"`
		} `mapstructure:"reranker"`
	} `mapstructure:"services"`
}

// Validate performs configuration validation and sets defaults.
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}
	if err := c.Incremental.Validate(); err != nil {
		return fmt.Errorf("incremental config: %w", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval config: %w", err)
	}
	if c.Embedding.Dim != 0 && c.VectorStore.Type != "" {
		// EMBED_DIM is not compared with the vector index's dimension
		// here: Config carries no index dimension to compare it with.
	}
	return nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures sensible default values.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")

	viper.SetDefault("chunking.chunk_size", 1000)
	viper.SetDefault("chunking.chunk_overlap", 100)
	viper.SetDefault("chunking.chunking_type", "semantic")
	viper.SetDefault("chunking.respect_markdown", true)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("minio.use_ssl", false)

	viper.SetDefault("vector_store.index_management", "CREATE_IF_NOT_EXISTS")

	viper.SetDefault("parallel.enabled", true)
	viper.SetDefault("parallel.max_workers", 8)
	viper.SetDefault("parallel.chunk_size", 1<<20)
	viper.SetDefault("parallel.chunk_strategy", "sentence")
	viper.SetDefault("parallel.batch_size", 16)
	viper.SetDefault("parallel.size_threshold_bytes", 5<<20)
	viper.SetDefault("parallel.token_threshold", 200_000)

	viper.SetDefault("incremental.enabled", true)
	viper.SetDefault("incremental.force_reprocess_threshold", 0.5)

	viper.SetDefault("retrieval.rerank_top_n", 20)
	viper.SetDefault("retrieval.w_vector", 0.7)
	viper.SetDefault("retrieval.w_lexical", 0.3)

	viper.SetDefault("broker.task_time_limit_seconds", 300)
	viper.SetDefault("broker.task_soft_time_limit_seconds", 240)
	viper.SetDefault("broker.worker_prefetch_multiplier", 1)
	viper.SetDefault("broker.task_acks_late", true)
}

// MustLoadConfig loads configuration and panics on failure. Use this only
// in main() or init() functions where failure should be fatal.
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
