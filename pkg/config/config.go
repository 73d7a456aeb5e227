// Package config loads the verification settings from a TOML file and
// wires the verifier from them.
//
// Example:
//
//	trust_db = "/var/lib/sigtrust/trust.db"
//	policy = "HighSecurity"
//	digest = "sha256"
//	cache_ttl = "5m"
//	lock_timeout = "1s"
//	log_level = "info"
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/pelletier/go-toml/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fancl20/sigtrust/pkg/security"
	"github.com/fancl20/sigtrust/pkg/trust"
	"github.com/fancl20/sigtrust/pkg/trust/impl/bbolt"
	"github.com/fancl20/sigtrust/pkg/trust/impl/mem"
)

var (
	// DefaultPolicy is the policy used if none is configured.
	DefaultPolicy = security.HighSecurity.Name()
	// DefaultLockTimeout bounds the wait for the trust DB file lock.
	DefaultLockTimeout = time.Second
	// DefaultLogLevel is the log level used if none is configured.
	DefaultLogLevel = "info"
)

// Config holds the verification settings.
type Config struct {
	// TrustDB is the path of the trust database. An empty path keeps the
	// trusted roots in memory.
	TrustDB string `toml:"trust_db"`
	// Policy names one of the canonical security policies.
	Policy string `toml:"policy"`
	// Digest is the digest algorithm of signed data.
	Digest string `toml:"digest"`
	// CacheTTL is the lifetime of cached trust DB lookups, e.g. "5m".
	CacheTTL string `toml:"cache_ttl"`
	// LockTimeout bounds the wait for the trust DB file lock, e.g. "1s".
	LockTimeout string `toml:"lock_timeout"`
	LogLevel    string `toml:"log_level"`
}

// InitDefaults initializes the default values for the config.
func (cfg *Config) InitDefaults() {
	if cfg.Policy == "" {
		cfg.Policy = DefaultPolicy
	}
	if cfg.Digest == "" {
		cfg.Digest = string(security.DefaultAlgorithm)
	}
	if cfg.CacheTTL == "" {
		cfg.CacheTTL = trust.DefaultCacheTTL.String()
	}
	if cfg.LockTimeout == "" {
		cfg.LockTimeout = DefaultLockTimeout.String()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// Load reads the config file at path. Unknown keys are rejected.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw)
}

// Parse decodes a TOML config and initializes its defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that all values can be used.
func (cfg *Config) Validate() error {
	if _, err := security.PolicyByName(cfg.Policy); err != nil {
		return err
	}
	if !digest.Algorithm(cfg.Digest).Available() {
		return fmt.Errorf("%w: %q", security.ErrUnsupportedDigest, cfg.Digest)
	}
	if _, err := time.ParseDuration(cfg.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache_ttl: %w", err)
	}
	if _, err := time.ParseDuration(cfg.LockTimeout); err != nil {
		return fmt.Errorf("invalid lock_timeout: %w", err)
	}
	if _, err := zap.ParseAtomicLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Logger builds a production logger at the configured level.
func (cfg *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}

// OpenTrustDB opens the configured trust DB behind a lookup cache.
func (cfg *Config) OpenTrustDB(logger *zap.Logger) (trust.DB, error) {
	ttl, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache_ttl: %w", err)
	}
	if cfg.TrustDB == "" {
		return trust.NewCached(mem.New(), ttl), nil
	}
	timeout, err := time.ParseDuration(cfg.LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid lock_timeout: %w", err)
	}
	db, err := bbolt.New(cfg.TrustDB, &bolt.Options{Timeout: timeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening trust db %s: %w", cfg.TrustDB, err)
	}
	return trust.NewCached(db, ttl), nil
}

// Verifier wires a verifier from the config. The caller owns the trust DB
// of the returned verifier and must close it.
func (cfg *Config) Verifier(logger *zap.Logger) (*security.Verifier, error) {
	policy, err := security.PolicyByName(cfg.Policy)
	if err != nil {
		return nil, err
	}
	db, err := cfg.OpenTrustDB(logger)
	if err != nil {
		return nil, err
	}
	return &security.Verifier{
		Policy:    policy,
		Algorithm: digest.Algorithm(cfg.Digest),
		Trust:     db,
		Logger:    logger,
	}, nil
}
