package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHARP_"

// Loader reads configuration from an optional YAML file, an optional .env
// file and the process environment, in that order of precedence (last wins).
type Loader struct {
	useDotEnv bool
	dotEnv    []string
	lookup    func(string) (string, bool)
}

// NewLoader creates a loader that reads .env from the working directory.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true, lookup: os.LookupEnv}
}

// WithDotEnv toggles loading variables from .env files before reading config.
func (l *Loader) WithDotEnv(enabled bool, files ...string) *Loader {
	l.useDotEnv = enabled
	l.dotEnv = files
	return l
}

// WithLookup overrides the environment lookup (useful for tests).
func (l *Loader) WithLookup(fn func(string) (string, bool)) *Loader {
	if fn != nil {
		l.lookup = fn
	}
	return l
}

// Load builds a validated Config. An empty path skips the YAML file.
func (l *Loader) Load(path string) (Config, error) {
	if l.useDotEnv {
		// A missing .env is normal outside development.
		_ = godotenv.Load(l.dotEnv...)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is shorthand for NewLoader().Load(path).
func Load(path string) (Config, error) { return NewLoader().Load(path) }

type envBinding struct {
	key   string
	apply func(string) error
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	num := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := cast.ToIntE(v)
			*dst = n
			return err
		}
	}
	flag := func(dst *bool) func(string) error {
		return func(v string) error {
			b, err := cast.ToBoolE(v)
			*dst = b
			return err
		}
	}

	bindings := []envBinding{
		{"SERVER_HOST", str(&cfg.Server.Host)},
		{"SERVER_PORT", num(&cfg.Server.Port)},
		{"LOG_LEVEL", str(&cfg.Log.Level)},
		{"SOURCE_LOCAL_DIR", str(&cfg.Source.LocalDir)},
		{"SOURCE_MOUNT_DIR", str(&cfg.Source.MountDir)},
		{"SOURCE_URL_TIMEOUT", func(v string) (err error) {
			cfg.Source.URLTimeout, err = cast.ToDurationE(v)
			return err
		}},
		{"SOURCE_MAX_BYTES", func(v string) (err error) {
			cfg.Source.MaxBytes, err = cast.ToInt64E(v)
			return err
		}},
		{"RESULT_LOCAL_DIR", str(&cfg.Result.LocalDir)},
		{"RESULT_MOUNT_DIR", str(&cfg.Result.MountDir)},
		{"S3_BUCKET", str(&cfg.S3.Bucket)},
		{"S3_REGION", str(&cfg.S3.Region)},
		{"S3_ENDPOINT", str(&cfg.S3.Endpoint)},
		{"S3_ACCESS_KEY_ID", str(&cfg.S3.AccessKeyID)},
		{"S3_SECRET_ACCESS_KEY", str(&cfg.S3.SecretAccessKey)},
		{"S3_USE_PATH_STYLE", flag(&cfg.S3.UsePathStyle)},
		{"FTP_HOST", str(&cfg.FTP.Host)},
		{"FTP_PORT", num(&cfg.FTP.Port)},
		{"FTP_USER", str(&cfg.FTP.User)},
		{"FTP_PASSWORD", str(&cfg.FTP.Password)},
		{"FTP_TLS", flag(&cfg.FTP.TLS)},
		{"FTP_BASE_DIR", str(&cfg.FTP.BaseDir)},
		{"PIPELINE_MAX_IN_FLIGHT", num(&cfg.Pipeline.MaxInFlight)},
		{"PIPELINE_RETRY_MAX_ATTEMPTS", num(&cfg.Pipeline.RetryMaxAttempts)},
		{"PIPELINE_RETRY_BASE_DELAY", func(v string) (err error) {
			cfg.Pipeline.RetryBaseDelay, err = cast.ToDurationE(v)
			return err
		}},
		{"RESULT_MULTI_SAVE", flag(&cfg.Pipeline.MultiSave)},
		{"RESULT_METATAGS", flag(&cfg.Pipeline.MetaTags)},
		{"DIRCACHE_DRIVER", str(&cfg.DirCache.Driver)},
		{"DIRCACHE_REDIS_ADDR", str(&cfg.DirCache.RedisAddr)},
		{"LEDGER_ENABLED", flag(&cfg.Ledger.Enabled)},
		{"LEDGER_DSN", str(&cfg.Ledger.DSN)},
		{"CODEC_DRIVER", str(&cfg.Codec.Driver)},
	}
	for _, b := range bindings {
		v, ok := l.lookup(EnvPrefix + b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.apply(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, b.key, err)
		}
	}

	// SHARP_POLICY_<KIND>=compensate|retry
	for _, kind := range []string{"local", "mount", "s3", "ftp"} {
		if v, ok := l.lookup(EnvPrefix + "POLICY_" + strings.ToUpper(kind)); ok && v != "" {
			if cfg.Pipeline.Policies == nil {
				cfg.Pipeline.Policies = make(map[string]Policy)
			}
			cfg.Pipeline.Policies[kind] = Policy(strings.ToLower(strings.TrimSpace(v)))
		}
	}
	return nil
}
