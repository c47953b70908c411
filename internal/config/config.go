// Package config loads daemon settings for "stewardgate serve". It merges
// an optional YAML file with STEWARDGATE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ppiankov/stewardgate/internal/archive"
)

// Config holds daemon settings. Gate thresholds live in the policy file.
type Config struct {
	GRPCPort int `koanf:"grpc_port"`
	HTTPPort int `koanf:"http_port"`

	PolicyPath   string `koanf:"policy_path"`
	AuditLogPath string `koanf:"audit_log_path"`
	SQLitePath   string `koanf:"sqlite_path"`
	CouncilDir   string `koanf:"council_dir"`
	PIDFile      string `koanf:"pid_file"`

	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisChannel  string `koanf:"redis_channel"`

	Archive archive.Config `koanf:"archive"`

	LogFormat string `koanf:"log_format"`
	LogLevel  string `koanf:"log_level"`
}

// Configuration validation errors.
var (
	ErrInvalidPort             = errors.New("port must be between 1 and 65535")
	ErrInvalidInteger          = errors.New("must be a valid integer")
	ErrInvalidDuration         = errors.New("must be a valid duration")
	ErrInvalidSnapshotInterval = errors.New("snapshot_interval must be positive")
	ErrInvalidLogFormat        = errors.New("log_format must be text or json")
	ErrMissingArchiveBucket    = errors.New("archive.bucket is required when archive credentials are set")
)

// Defaults.
const (
	DefaultGRPCPort         = 50051
	DefaultHTTPPort         = 9090
	DefaultSnapshotInterval = 30 * time.Second
	DefaultLogFormat        = "text"
	DefaultLogLevel         = "info"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STEWARDGATE_"

// Load reads the optional YAML file at path, then applies environment
// overrides. It returns the config and every validation error found.
// A file that cannot be read or parsed is returned as the only error.
func Load(path string) (*Config, []error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", path, err)}
		}
	}

	var errs []error
	intVal := func(env, key string, def int) int {
		v, err := envInt(env, k.Int(key), def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	snapshot, err := envDuration("SNAPSHOT_INTERVAL", k.Duration("snapshot_interval"), DefaultSnapshotInterval)
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		GRPCPort:         intVal("GRPC_PORT", "grpc_port", DefaultGRPCPort),
		HTTPPort:         intVal("HTTP_PORT", "http_port", DefaultHTTPPort),
		PolicyPath:       envString("POLICY_PATH", k.String("policy_path"), ""),
		AuditLogPath:     envString("AUDIT_LOG_PATH", k.String("audit_log_path"), ""),
		SQLitePath:       envString("SQLITE_PATH", k.String("sqlite_path"), ""),
		CouncilDir:       envString("COUNCIL_DIR", k.String("council_dir"), ""),
		PIDFile:          envString("PID_FILE", k.String("pid_file"), ""),
		SnapshotInterval: snapshot,
		RedisAddr:        envString("REDIS_ADDR", k.String("redis_addr"), ""),
		RedisPassword:    envString("REDIS_PASSWORD", k.String("redis_password"), ""),
		RedisChannel:     envString("REDIS_CHANNEL", k.String("redis_channel"), ""),
		Archive: archive.Config{
			Bucket:          envString("ARCHIVE_BUCKET", k.String("archive.bucket"), ""),
			Prefix:          envString("ARCHIVE_PREFIX", k.String("archive.prefix"), ""),
			Endpoint:        envString("ARCHIVE_ENDPOINT", k.String("archive.endpoint"), ""),
			Region:          envString("ARCHIVE_REGION", k.String("archive.region"), ""),
			AccessKeyID:     envString("ARCHIVE_ACCESS_KEY_ID", k.String("archive.access_key_id"), ""),
			SecretAccessKey: envString("ARCHIVE_SECRET_ACCESS_KEY", k.String("archive.secret_access_key"), ""),
		},
		LogFormat: envString("LOG_FORMAT", k.String("log_format"), DefaultLogFormat),
		LogLevel:  envString("LOG_LEVEL", k.String("log_level"), DefaultLogLevel),
	}

	return cfg, append(errs, cfg.Validate()...)
}

// Validate checks value ranges. Returns every problem found.
func (c *Config) Validate() []error {
	var errs []error
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("grpc_port %d: %w", c.GRPCPort, ErrInvalidPort))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d: %w", c.HTTPPort, ErrInvalidPort))
	}
	if c.SnapshotInterval <= 0 {
		errs = append(errs, ErrInvalidSnapshotInterval)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, ErrInvalidLogFormat)
	}
	a := c.Archive
	if a.Bucket == "" && (a.AccessKeyID != "" || a.SecretAccessKey != "" || a.Endpoint != "") {
		errs = append(errs, ErrMissingArchiveBucket)
	}
	return errs
}

// LogSummary returns the config with secrets masked, for startup logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"grpc_port":          strconv.Itoa(c.GRPCPort),
		"http_port":          strconv.Itoa(c.HTTPPort),
		"policy_path":        c.PolicyPath,
		"audit_log_path":     c.AuditLogPath,
		"sqlite_path":        c.SQLitePath,
		"snapshot_interval":  c.SnapshotInterval.String(),
		"redis_addr":         c.RedisAddr,
		"redis_password":     maskSecret(c.RedisPassword),
		"archive_bucket":     c.Archive.Bucket,
		"archive_access_key": maskSecret(c.Archive.AccessKeyID),
		"archive_secret":     maskSecret(c.Archive.SecretAccessKey),
	}
}

// maskSecret keeps the first four characters of secrets longer than eight.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

func envString(name, koanfVal, def string) string {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		return v
	}
	if koanfVal != "" {
		return koanfVal
	}
	return def
}

func envInt(name string, koanfVal, def int) (int, error) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s%s %w", EnvPrefix, name, ErrInvalidInteger)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return def, nil
}

func envDuration(name string, koanfVal, def time.Duration) (time.Duration, error) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s%s %w", EnvPrefix, name, ErrInvalidDuration)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return def, nil
}
