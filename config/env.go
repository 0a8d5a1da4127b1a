package config

import (
	"errors"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "DOCLUSTER_"

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func int64Var(dst func(*Config) *int64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func float(dst func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst(c) = true
		case "0", "false", "no", "off":
			*dst(c) = false
		default:
			return errors.New("not a boolean")
		}
		return nil
	}
}

var envVars = []envVar{
	{"DIMENSION", integer(func(c *Config) *int { return &c.Dimension })},
	{"SEED", int64Var(func(c *Config) *int64 { return &c.Seed })},
	{"HYBRID_VECTORS", boolean(func(c *Config) *bool { return &c.HybridVectors })},
	{"FUSION_METHOD", str(func(c *Config) *string { return &c.FusionMethod })},

	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},

	{"MAX_WORKERS", integer(func(c *Config) *int { return &c.Resources.MaxWorkers })},
	{"MEMORY_LIMIT_BYTES", int64Var(func(c *Config) *int64 { return &c.Resources.MemoryLimitBytes })},
	{"IO_LIMIT_BYTES_PER_SEC", int64Var(func(c *Config) *int64 { return &c.Resources.IOLimitBytesPerSec })},

	{"BATCH_SIZE", integer(func(c *Config) *int { return &c.Batch.Size })},
	{"BATCH_MERGE_THRESHOLD", float(func(c *Config) *float64 { return &c.Batch.MergeThreshold })},

	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"CACHE_CODEC", str(func(c *Config) *string { return &c.Cache.Codec })},
	{"CACHE_COMPRESSION", str(func(c *Config) *string { return &c.Cache.Compression })},
	{"CACHE_MEMORY_BYTES", int64Var(func(c *Config) *int64 { return &c.Cache.MemoryBytes })},
	{"CACHE_DIR", str(func(c *Config) *string { return &c.Cache.Dir })},
	{"CACHE_BUCKET", str(func(c *Config) *string { return &c.Cache.Bucket })},
	{"CACHE_PREFIX", str(func(c *Config) *string { return &c.Cache.Prefix })},
	{"CACHE_REGION", str(func(c *Config) *string { return &c.Cache.Region })},
	{"CACHE_ENDPOINT", str(func(c *Config) *string { return &c.Cache.Endpoint })},
	{"CACHE_ACCESS_KEY", str(func(c *Config) *string { return &c.Cache.AccessKey })},
	{"CACHE_SECRET_KEY", str(func(c *Config) *string { return &c.Cache.SecretKey })},
	{"CACHE_INSECURE", boolean(func(c *Config) *bool { return &c.Cache.Insecure })},

	{"EMBEDDING_DIR", str(func(c *Config) *string { return &c.Embedding.Dir })},
}

// EnvNames returns the environment variables ApplyEnv reads.
func EnvNames() []string {
	names := make([]string, len(envVars))
	for i, ev := range envVars {
		names[i] = EnvPrefix + ev.name
	}
	return names
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv. Malformed values are ConfigurationErrors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, ev := range envVars {
		name := EnvPrefix + ev.name
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := ev.set(c, strings.TrimSpace(v)); err != nil {
			errs = append(errs, invalid(name, v, err.Error()))
		}
	}
	return errors.Join(errs...)
}
