// Package config loads docluster settings from YAML files and DOCLUSTER_*
// environment variables and turns them into engine options.
//
// Precedence, lowest first: Default, the YAML file, the environment.
//
//	cfg, err := config.Load("docluster.yaml")
//	rt, err := cfg.Build(ctx)
//	defer rt.Close(ctx)
//	eng, err := docluster.New(rt.Options...)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/docluster"
	"github.com/hupe1980/docluster/codec"
	"github.com/hupe1980/docluster/embedding"
	"github.com/hupe1980/docluster/fusion"
)

// Cache backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendMinIO  = "minio"
)

// Config is the file and environment representation of an engine setup.
type Config struct {
	// Dimension of the private embedding table.
	Dimension int   `yaml:"dimension"`
	Seed      int64 `yaml:"seed"`
	// HybridVectors concatenates the bag-of-words part to the semantic part.
	HybridVectors bool `yaml:"hybrid_vectors"`
	// FusionMethod is the default fusion method of hybrid runs.
	FusionMethod string `yaml:"fusion_method"`

	Log       LogConfig       `yaml:"log"`
	Resources ResourceConfig  `yaml:"resources"`
	Batch     BatchConfig     `yaml:"batch"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// LogConfig selects the logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Empty disables logging.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// ResourceConfig mirrors resource.Config.
type ResourceConfig struct {
	MaxWorkers         int   `yaml:"max_workers"`
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

// BatchConfig configures RunBatched.
type BatchConfig struct {
	Size           int     `yaml:"size"`
	MergeThreshold float64 `yaml:"merge_threshold"`
}

// CacheConfig selects and configures the result cache.
type CacheConfig struct {
	Backend     string `yaml:"backend"`
	Codec       string `yaml:"codec"`
	Compression string `yaml:"compression"`
	// MemoryBytes fronts a blob backend with an LRU of this size. For the
	// memory backend it is the LRU capacity.
	MemoryBytes int64 `yaml:"memory_bytes"`

	// Dir is the root of the local backend.
	Dir string `yaml:"dir"`

	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Insecure disables TLS for the minio backend.
	Insecure bool `yaml:"insecure"`
}

// EmbeddingConfig persists the embedding table across processes.
type EmbeddingConfig struct {
	// Dir of the badger database. Empty keeps the table in process memory.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dimension: embedding.DefaultDimension,
		Seed:      1,
		Log:       LogConfig{Format: "text"},
		Batch: BatchConfig{
			Size:           docluster.DefaultBatchSize,
			MergeThreshold: docluster.DefaultBatchMergeThreshold,
		},
		Cache: CacheConfig{
			Backend:     BackendNone,
			Codec:       codec.Default.Name(),
			Compression: codec.CompressionZstd.String(),
			MemoryBytes: 64 << 20,
		},
	}
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Load reads path (if non-empty), applies the process environment and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(field string, value any, reason string) error {
	return &docluster.ConfigurationError{Field: field, Value: fmt.Sprint(value), Reason: reason}
}

// Validate reports every invalid setting as a joined ConfigurationError.
func (c *Config) Validate() error {
	var errs []error
	if c.Dimension < 1 {
		errs = append(errs, invalid("dimension", c.Dimension, "must be at least 1"))
	}
	if c.FusionMethod != "" {
		if _, err := fusion.ParseMethod(c.FusionMethod); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Log.Level != "" {
		if _, err := c.Log.level(); err != nil {
			errs = append(errs, invalid("log.level", c.Log.Level, "must be debug, info, warn or error"))
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, invalid("log.format", c.Log.Format, "must be text or json"))
	}
	if c.Resources.MaxWorkers < 0 {
		errs = append(errs, invalid("resources.max_workers", c.Resources.MaxWorkers, "must not be negative"))
	}
	if c.Resources.MemoryLimitBytes < 0 {
		errs = append(errs, invalid("resources.memory_limit_bytes", c.Resources.MemoryLimitBytes, "must not be negative"))
	}
	if c.Resources.IOLimitBytesPerSec < 0 {
		errs = append(errs, invalid("resources.io_limit_bytes_per_sec", c.Resources.IOLimitBytesPerSec, "must not be negative"))
	}
	if c.Batch.Size < 1 {
		errs = append(errs, invalid("batch.size", c.Batch.Size, "must be at least 1"))
	}
	if c.Batch.MergeThreshold < 0 || c.Batch.MergeThreshold > 1 {
		errs = append(errs, invalid("batch.merge_threshold", c.Batch.MergeThreshold, "must be in [0,1]"))
	}
	errs = append(errs, c.Cache.validate()...)
	return errors.Join(errs...)
}

func (c CacheConfig) validate() []error {
	var errs []error
	if _, ok := codec.ByName(c.Codec); !ok {
		errs = append(errs, invalid("cache.codec", c.Codec, "unknown codec"))
	}
	if _, err := codec.ParseCompression(c.Compression); err != nil {
		errs = append(errs, invalid("cache.compression", c.Compression, "must be none, lz4 or zstd"))
	}
	if c.MemoryBytes < 0 {
		errs = append(errs, invalid("cache.memory_bytes", c.MemoryBytes, "must not be negative"))
	}
	switch c.Backend {
	case "", BackendNone:
	case BackendMemory:
		if c.MemoryBytes == 0 {
			errs = append(errs, invalid("cache.memory_bytes", c.MemoryBytes, "required by the memory backend"))
		}
	case BackendLocal:
		if c.Dir == "" {
			errs = append(errs, invalid("cache.dir", c.Dir, "required by the local backend"))
		}
	case BackendS3:
		if c.Bucket == "" {
			errs = append(errs, invalid("cache.bucket", c.Bucket, "required by the s3 backend"))
		}
	case BackendMinIO:
		if c.Bucket == "" {
			errs = append(errs, invalid("cache.bucket", c.Bucket, "required by the minio backend"))
		}
		if c.Endpoint == "" {
			errs = append(errs, invalid("cache.endpoint", c.Endpoint, "required by the minio backend"))
		}
	default:
		errs = append(errs, invalid("cache.backend", c.Backend, "must be none, memory, local, s3 or minio"))
	}
	return errs
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(l.Level))
	return lvl, err
}

// Marshal renders the configuration as YAML. Secrets are redacted.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.Cache.SecretKey != "" {
		out.Cache.SecretKey = "REDACTED"
	}
	return yaml.Marshal(&out)
}
