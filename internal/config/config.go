package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo holds basic application information.
type AppInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"` // e.g. "development", "production"
	Port        int    `yaml:"port"`
}

// LoggerConfig configures the structured logger.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// AuthConfig configures JWT validation for the HTTP API.
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"`
	TokenTTL  int    `yaml:"tokenTTL"` // seconds
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider      string  `yaml:"provider"` // "openai" or "ollama"
	Model         string  `yaml:"model"`
	APIKey        string  `yaml:"apiKey"`
	BaseURL       string  `yaml:"baseURL"`
	Dimension     int     `yaml:"dimension"`
	BatchSize     int     `yaml:"batchSize"`     // per-batch ceiling for bulk embedding
	BatchDelayMs  int     `yaml:"batchDelayMs"`  // inter-batch delay to respect rate limits
	RequestsPerMn float64 `yaml:"requestsPerMn"` // informational, used for alerting only
}

// ChunkerConfig configures the structure-aware splitter.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunkSize"`    // target chunk size in characters
	ChunkOverlap int `yaml:"chunkOverlap"` // must be strictly less than chunkSize
	TableCeiling int `yaml:"tableCeiling"` // max characters for an atomic table chunk
}

// RetrievalConfig configures search thresholds and the adaptive hybrid weighting.
type RetrievalConfig struct {
	SemanticThreshold  float64 `yaml:"semanticThreshold"`
	HybridThreshold    float64 `yaml:"hybridThreshold"`
	QualityThreshold   float64 `yaml:"qualityThreshold"` // semantic score that marks the sub-result set as "good"
	GoodSemanticWeight float64 `yaml:"goodSemanticWeight"`
	PoorSemanticWeight float64 `yaml:"poorSemanticWeight"`
	MaxResults         int     `yaml:"maxResults"`
	MaxQueryTokens     int     `yaml:"maxQueryTokens"`
}

// IngestionConfig configures the ingestion worker pool.
type IngestionConfig struct {
	Workers int `yaml:"workers"` // concurrent documents; per-document work stays sequential
}

// MilvusConfig configures the vector store connection and collections.
type MilvusConfig struct {
	Address         string `yaml:"address"`
	ChunkCollection string `yaml:"chunkCollection"`
	TableCollection string `yaml:"tableCollection"`
	Dimension       int    `yaml:"dimension"`
}

// MySQLConfig configures the relational store connection pool.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// MongoConfig configures the processing-job history store.
type MongoConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// RedisConfig configures the duplicate-upload guard and progress cache.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig configures the progress notification sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MinIOConfig configures raw file storage.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// DatabaseConfigs groups all backing-store configuration.
type DatabaseConfigs struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	Milvus MilvusConfig `yaml:"milvus"`
	Mongo  MongoConfig  `yaml:"mongodb"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	MinIO  MinIOConfig  `yaml:"minio"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App       AppInfo         `yaml:"app"`
	Logger    LoggerConfig    `yaml:"logger"`
	Auth      AuthConfig      `yaml:"auth"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Databases DatabaseConfigs `yaml:"databases"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}
