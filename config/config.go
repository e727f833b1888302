package config

import (
	"errors"
	"fmt"
	"time"
)

// Policy selects how a destination kind reacts to a partially failed request.
type Policy string

const (
	PolicyCompensate Policy = "compensate"
	PolicyRetry      Policy = "retry"
)

// Config is the top-level configuration struct. Default() fills every field
// so callers only override what they need.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Result   ResultConfig   `yaml:"result"`
	S3       S3Config       `yaml:"s3"`
	FTP      FTPConfig      `yaml:"ftp"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	DirCache DirCacheConfig `yaml:"dircache"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Codec    CodecConfig    `yaml:"codec"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// SourceConfig says where source images are read from.
type SourceConfig struct {
	LocalDir   string        `yaml:"local_dir"`
	MountDir   string        `yaml:"mount_dir"`
	URLTimeout time.Duration `yaml:"url_timeout"`
	MaxBytes   int64         `yaml:"max_bytes"` // 0 = no limit
}

// ResultConfig holds the roots of the filesystem destinations.
type ResultConfig struct {
	LocalDir string `yaml:"local_dir"`
	MountDir string `yaml:"mount_dir"`
}

// S3Config configures the object-storage destination.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional: R2, MinIO, etc.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// FTPConfig configures the FTP destination.
type FTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	TLS      bool          `yaml:"tls"`
	BaseDir  string        `yaml:"base_dir"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PipelineConfig controls fan-out, retry and the compensation policy.
type PipelineConfig struct {
	MaxInFlight      int               `yaml:"max_in_flight"` // process-wide task bound
	RetryMaxAttempts int               `yaml:"retry_max_attempts"`
	RetryBaseDelay   time.Duration     `yaml:"retry_base_delay"`
	Policies         map[string]Policy `yaml:"policies"` // keyed by destination kind
	MultiSave        bool              `yaml:"multi_save"`
	MetaTags         bool              `yaml:"metatags"`
}

// DirCacheConfig selects the directory-exists cache.
type DirCacheConfig struct {
	Driver      string `yaml:"driver"` // memory | redis
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// LedgerConfig configures the SQLite request ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// CodecConfig selects the image codec.
type CodecConfig struct {
	Driver       string `yaml:"driver"` // vips | imaging
	MaxCacheSize int    `yaml:"max_cache_size"`
	Concurrency  int    `yaml:"concurrency"`
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Source: SourceConfig{
			LocalDir:   "./images",
			MountDir:   "/mnt/images",
			URLTimeout: 30 * time.Second,
			MaxBytes:   50 << 20,
		},
		Result: ResultConfig{
			LocalDir: "./results",
			MountDir: "/mnt/results",
		},
		S3:  S3Config{Region: "auto"},
		FTP: FTPConfig{Port: 21, BaseDir: "/", Timeout: 15 * time.Second},
		Pipeline: PipelineConfig{
			MaxInFlight:      64,
			RetryMaxAttempts: 3,
			RetryBaseDelay:   5 * time.Second,
			Policies: map[string]Policy{
				"local": PolicyCompensate,
				"mount": PolicyCompensate,
				"s3":    PolicyCompensate,
				"ftp":   PolicyCompensate,
			},
		},
		DirCache: DirCacheConfig{Driver: "memory", RedisPrefix: "sharp:dirs"},
		Ledger:   LedgerConfig{DSN: "file:ledger.db?cache=shared"},
		Codec:    CodecConfig{Driver: "vips"},
	}
}

// PolicyFor returns the configured policy for a destination kind,
// defaulting to compensation.
func (c Config) PolicyFor(kind string) Policy { return c.Pipeline.PolicyFor(kind) }

// PolicyFor returns the policy for kind, defaulting to compensation.
func (p PipelineConfig) PolicyFor(kind string) Policy {
	if pol, ok := p.Policies[kind]; ok {
		return pol
	}
	return PolicyCompensate
}

// Addr is the listen address.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port) }

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("config: server.port must be between 1 and 65535")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	if c.Pipeline.MaxInFlight <= 0 {
		return errors.New("config: pipeline.max_in_flight must be positive")
	}
	if c.Pipeline.RetryMaxAttempts < 1 {
		return errors.New("config: pipeline.retry_max_attempts must be at least 1")
	}
	if c.Pipeline.RetryBaseDelay < 0 {
		return errors.New("config: pipeline.retry_base_delay must not be negative")
	}
	for kind, p := range c.Pipeline.Policies {
		if p != PolicyCompensate && p != PolicyRetry {
			return fmt.Errorf("config: pipeline.policies.%s: unknown policy %q", kind, p)
		}
	}
	switch c.DirCache.Driver {
	case "memory":
	case "redis":
		if c.DirCache.RedisAddr == "" {
			return errors.New("config: dircache.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown dircache.driver %q", c.DirCache.Driver)
	}
	switch c.Codec.Driver {
	case "vips", "imaging":
	default:
		return fmt.Errorf("config: unknown codec.driver %q", c.Codec.Driver)
	}
	if c.Ledger.Enabled && c.Ledger.DSN == "" {
		return errors.New("config: ledger.dsn is required when the ledger is enabled")
	}
	return nil
}
