package config

import (
	"fmt"
	"strings"
)

// ValidLogLevels are the log levels accepted by server.log_level.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.TLSEnabled {
		if cfg.Server.CertFile == "" {
			errs = append(errs, "server.cert_file must be set when tls_enabled is true")
		}
		if cfg.Server.KeyFile == "" {
			errs = append(errs, "server.key_file must be set when tls_enabled is true")
		}
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}

	// Storage validation
	if cfg.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir must not be empty")
	}
	if cfg.Storage.Filename == "" {
		errs = append(errs, "storage.filename must not be empty")
	}

	// Sync validation
	if cfg.Sync.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("sync.batch_size must be at least 1, got %d", cfg.Sync.BatchSize))
	}
	if cfg.Sync.DiffSessionTTLSeconds < 1 {
		errs = append(errs, fmt.Sprintf("sync.diff_session_ttl_seconds must be at least 1, got %d", cfg.Sync.DiffSessionTTLSeconds))
	}
	if cfg.Sync.DefaultPageSize < 1 {
		errs = append(errs, fmt.Sprintf("sync.default_page_size must be at least 1, got %d", cfg.Sync.DefaultPageSize))
	}
	if cfg.Sync.DefaultFingerprintLimit < 1 {
		errs = append(errs, fmt.Sprintf("sync.default_max_fingerprints_per_user must be at least 1, got %d", cfg.Sync.DefaultFingerprintLimit))
	}
	if cfg.Sync.MaxAnalyzeDiffPayload < 1 {
		errs = append(errs, fmt.Sprintf("sync.max_analyze_diff_payload must be at least 1, got %d", cfg.Sync.MaxAnalyzeDiffPayload))
	}

	// Bloom validation
	if cfg.Bloom.Enabled {
		if cfg.Bloom.FalsePositiveRate <= 0 || cfg.Bloom.FalsePositiveRate >= 1 {
			errs = append(errs, fmt.Sprintf("bloom.false_positive_rate must be between 0 and 1 exclusive, got %f", cfg.Bloom.FalsePositiveRate))
		}
		if cfg.Bloom.MinCapacity < 1 {
			errs = append(errs, fmt.Sprintf("bloom.min_capacity must be at least 1, got %d", cfg.Bloom.MinCapacity))
		}
		if cfg.Bloom.RebuildsPerSecond <= 0 {
			errs = append(errs, fmt.Sprintf("bloom.rebuilds_per_second must be positive, got %f", cfg.Bloom.RebuildsPerSecond))
		}
	}

	// Cache validation
	if cfg.Cache.Enabled && cfg.Cache.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("cache.capacity must be at least 1 when cache.enabled is true, got %d", cfg.Cache.Capacity))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
