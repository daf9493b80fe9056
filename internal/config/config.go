package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	atomicfile "github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for frkbsyncd. Sections follow
// SPEC_FULL.md's "Config file" note: server/storage/sync/bloom/cache/auth.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  toml:"server"`
	Storage StorageConfig `mapstructure:"storage" toml:"storage"`
	Sync    SyncConfig    `mapstructure:"sync"    toml:"sync"`
	Bloom   BloomConfig   `mapstructure:"bloom"   toml:"bloom"`
	Cache   CacheConfig   `mapstructure:"cache"   toml:"cache"`
	Auth    AuthConfig    `mapstructure:"auth"    toml:"auth"`
}

// ServerConfig holds the HTTP server bind/TLS/timeout settings.
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address" toml:"bind_address"`
	Port        int    `mapstructure:"port"         toml:"port"`
	LogLevel    string `mapstructure:"log_level"    toml:"log_level"`
	TLSEnabled  bool   `mapstructure:"tls_enabled"  toml:"tls_enabled"`
	CertFile    string `mapstructure:"cert_file"    toml:"cert_file"`
	KeyFile     string `mapstructure:"key_file"     toml:"key_file"`
	ReadTimeout int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int   `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
}

// StorageConfig holds the SQLite-backed store's location.
type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir" toml:"data_dir"`
	Filename string `mapstructure:"filename" toml:"filename"`
}

// DBPath returns the resolved path to the SQLite database file.
func (s StorageConfig) DBPath() string {
	return filepath.Join(s.DataDir, s.Filename)
}

// SyncConfig mirrors syncengine.Config's tunables, named identically to
// spec.md §6's "Configuration options" table (BATCH_SIZE,
// DIFF_SESSION_TTL, DEFAULT_PAGE_SIZE, DEFAULT_MAX_FINGERPRINTS_PER_USER).
type SyncConfig struct {
	BatchSize              int `mapstructure:"batch_size"                         toml:"batch_size"`
	DiffSessionTTLSeconds  int `mapstructure:"diff_session_ttl_seconds"           toml:"diff_session_ttl_seconds"`
	DefaultPageSize        int `mapstructure:"default_page_size"                  toml:"default_page_size"`
	DefaultFingerprintLimit int `mapstructure:"default_max_fingerprints_per_user" toml:"default_max_fingerprints_per_user"`
	MaxAnalyzeDiffPayload  int `mapstructure:"max_analyze_diff_payload"           toml:"max_analyze_diff_payload"`
}

// BloomConfig controls the Bloom filter cache (§4.4).
type BloomConfig struct {
	Enabled            bool    `mapstructure:"enabled"               toml:"enabled"`
	FalsePositiveRate  float64 `mapstructure:"false_positive_rate"   toml:"false_positive_rate"`
	MinCapacity        int     `mapstructure:"min_capacity"          toml:"min_capacity"`
	RebuildsPerSecond  float64 `mapstructure:"rebuilds_per_second"   toml:"rebuilds_per_second"`
}

// CacheConfig controls the ephemeral cache (§4.5).
type CacheConfig struct {
	Enabled  bool `mapstructure:"enabled"  toml:"enabled"`
	Capacity int  `mapstructure:"capacity" toml:"capacity"`
}

// AuthConfig controls the admin bearer token and the stand-in
// X-User-Key header authenticator's header name.
type AuthConfig struct {
	AdminToken       string `mapstructure:"admin_token"        toml:"admin_token"`
	UserKeyHeaderName string `mapstructure:"user_key_header"   toml:"user_key_header"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (FRKBSYNC_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.frkbsync/frkbsync.toml
//  4. ./frkbsync.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	v.SetEnvPrefix("FRKBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".frkbsync"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("frkbsync")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.frkbsync/frkbsync.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".frkbsync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := atomicfile.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := atomicfile.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file over the built-in defaults and makes
// the result the current config, replacing it (settings absent from the
// file revert to their defaults).
// The imported config is also persisted to the active config file so changes
// survive restarts.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := atomicfile.WriteFile(dest, bytes.NewReader(out)); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}

	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.tls_enabled", d.Server.TLSEnabled)
	v.SetDefault("server.cert_file", d.Server.CertFile)
	v.SetDefault("server.key_file", d.Server.KeyFile)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.filename", d.Storage.Filename)

	v.SetDefault("sync.batch_size", d.Sync.BatchSize)
	v.SetDefault("sync.diff_session_ttl_seconds", d.Sync.DiffSessionTTLSeconds)
	v.SetDefault("sync.default_page_size", d.Sync.DefaultPageSize)
	v.SetDefault("sync.default_max_fingerprints_per_user", d.Sync.DefaultFingerprintLimit)
	v.SetDefault("sync.max_analyze_diff_payload", d.Sync.MaxAnalyzeDiffPayload)

	v.SetDefault("bloom.enabled", d.Bloom.Enabled)
	v.SetDefault("bloom.false_positive_rate", d.Bloom.FalsePositiveRate)
	v.SetDefault("bloom.min_capacity", d.Bloom.MinCapacity)
	v.SetDefault("bloom.rebuilds_per_second", d.Bloom.RebuildsPerSecond)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.capacity", d.Cache.Capacity)

	v.SetDefault("auth.admin_token", d.Auth.AdminToken)
	v.SetDefault("auth.user_key_header", d.Auth.UserKeyHeaderName)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
