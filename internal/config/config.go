// Package config provides configuration loading for vectord.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. This package covers the server, device selection, encoder
// backend, vector store, and observability settings.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete vectord configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Devices       DevicesConfig       `koanf:"devices"`
	Encoder       EncoderConfig       `koanf:"encoder"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// DevicesConfig controls which compute targets encoding runs on.
type DevicesConfig struct {
	// Targets is a comma-separated list of device identifiers
	// (e.g. "cuda:0,cuda:1"). Empty means probe the host and use every
	// unit of the first available accelerator kind, falling back to cpu.
	Targets string `koanf:"targets"`
}

// EncoderConfig holds encoder backend configuration.
type EncoderConfig struct {
	// Provider is the encoder backend: "fastembed" (local ONNX, default)
	// or "tei" (remote text-embeddings-inference replicas).
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	// Default: BAAI/bge-small-en-v1.5
	Model string `koanf:"model"`

	// CacheDir is the model cache directory (fastembed only).
	CacheDir string `koanf:"cache_dir"`

	// BatchSize is the default encode batch size forwarded to the backend.
	BatchSize int `koanf:"batch_size"`

	// MaxLength is the default maximum input sequence length.
	MaxLength int `koanf:"max_length"`

	// QueryInstruction is prepended to queries before encoding.
	// Empty disables query instructions.
	QueryInstruction string `koanf:"query_instruction"`

	// QueryInstructionFormat combines instruction and query.
	// Default: "%s%s" (instruction directly prepended).
	QueryInstructionFormat string `koanf:"query_instruction_format"`

	// PassageInstruction is prepended to corpus passages before encoding.
	PassageInstruction string `koanf:"passage_instruction"`

	// PassageInstructionFormat combines instruction and passage.
	PassageInstructionFormat string `koanf:"passage_instruction_format"`

	// TEI configures the remote provider. Ignored for fastembed.
	TEI TEIConfig `koanf:"tei"`
}

// TEIConfig holds remote text-embeddings-inference settings.
//
// Each device identifier maps to one TEI replica endpoint, typically one
// replica per accelerator. The resolver's device list selects among them.
type TEIConfig struct {
	// Endpoints maps device identifiers to replica base URLs
	// (e.g. {"cuda:0": "http://tei-0:8080", "cuda:1": "http://tei-1:8080"}).
	Endpoints map[string]string `koanf:"endpoints"`

	// APIKey is the optional bearer token sent to the replicas.
	APIKey Secret `koanf:"api_key"`

	// RequestsPerSecond is the sustained outbound rate limit per replica.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Burst is the rate limiter burst size.
	Burst int `koanf:"burst"`
}

// VectorStoreConfig holds vector store provider configuration.
type VectorStoreConfig struct {
	// Provider is the store backend: "chromem" (embedded, default)
	// or "qdrant" (external server).
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds embedded chromem-go store settings.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// QdrantConfig holds external Qdrant settings.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	ServiceName     string   `koanf:"service_name"`
	LogLevel        string   `koanf:"log_level"`
	LogFormat       string   `koanf:"log_format"`
	EnableTelemetry bool     `koanf:"enable_telemetry"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"`
	Insecure        bool     `koanf:"insecure"`
	MetricsInterval Duration `koanf:"metrics_interval"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9611
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Encoder.Provider == "" {
		cfg.Encoder.Provider = "fastembed"
	}
	if cfg.Encoder.Model == "" {
		cfg.Encoder.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Encoder.BatchSize == 0 {
		cfg.Encoder.BatchSize = 256
	}
	if cfg.Encoder.MaxLength == 0 {
		cfg.Encoder.MaxLength = 512
	}
	if cfg.Encoder.QueryInstructionFormat == "" {
		cfg.Encoder.QueryInstructionFormat = "%s%s"
	}
	if cfg.Encoder.PassageInstructionFormat == "" {
		cfg.Encoder.PassageInstructionFormat = "%s%s"
	}
	if cfg.Encoder.TEI.RequestsPerSecond == 0 {
		cfg.Encoder.TEI.RequestsPerSecond = 16
	}
	if cfg.Encoder.TEI.Burst == 0 {
		cfg.Encoder.TEI.Burst = 4
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/vectord/store"
	}
	if cfg.VectorStore.Chromem.Collection == "" {
		cfg.VectorStore.Chromem.Collection = "vectord_default"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "vectord_default"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "vectord"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.MetricsInterval == 0 {
		cfg.Observability.MetricsInterval = Duration(15 * time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	switch c.Encoder.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("encoder.provider must be 'fastembed' or 'tei', got %q", c.Encoder.Provider)
	}
	if c.Encoder.BatchSize <= 0 {
		return fmt.Errorf("encoder.batch_size must be positive, got %d", c.Encoder.BatchSize)
	}
	if c.Encoder.MaxLength <= 0 {
		return fmt.Errorf("encoder.max_length must be positive, got %d", c.Encoder.MaxLength)
	}
	if c.Encoder.Provider == "tei" && len(c.Encoder.TEI.Endpoints) == 0 {
		return fmt.Errorf("encoder.tei.endpoints required for tei provider")
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("vectorstore.provider must be 'chromem' or 'qdrant', got %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		if p := c.VectorStore.Qdrant.Port; p <= 0 || p > 65535 {
			return fmt.Errorf("vectorstore.qdrant.port must be 1-65535, got %d", p)
		}
	}

	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("observability.log_format must be 'json' or 'console', got %q", c.Observability.LogFormat)
	}

	return nil
}
