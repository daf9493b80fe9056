package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Storage.DataDir = "/tmp/test"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := validate(cfg); err != nil {
		t.Fatalf("validate valid config: %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 70000

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for port 70000")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error should mention server.port: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level: %v", err)
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataDir = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty data_dir")
	}
}

func TestValidate_EmptyFilename(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Filename = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty storage.filename")
	}
}

func TestValidate_TLS_MissingCert(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TLSEnabled = true
	cfg.Server.CertFile = ""
	cfg.Server.KeyFile = "/path/to/key.pem"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing cert_file")
	}
	if !strings.Contains(err.Error(), "cert_file") {
		t.Errorf("error should mention cert_file: %v", err)
	}
}

func TestValidate_TLS_MissingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TLSEnabled = true
	cfg.Server.CertFile = "/path/to/cert.pem"
	cfg.Server.KeyFile = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing key_file")
	}
}

func TestValidate_NegativeReadTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ReadTimeout = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative read_timeout")
	}
}

func TestValidate_NegativeIdleTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Server.IdleTimeout = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative idle_timeout")
	}
}

func TestValidate_BadBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.BatchSize = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for batch_size 0")
	}
	if !strings.Contains(err.Error(), "batch_size") {
		t.Errorf("error should mention batch_size: %v", err)
	}
}

func TestValidate_BadDiffSessionTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.DiffSessionTTLSeconds = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for diff_session_ttl_seconds 0")
	}
}

func TestValidate_BadPageSize(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.DefaultPageSize = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for default_page_size 0")
	}
}

func TestValidate_BadFingerprintLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.DefaultFingerprintLimit = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for default_max_fingerprints_per_user 0")
	}
}

func TestValidate_BadMaxAnalyzeDiffPayload(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.MaxAnalyzeDiffPayload = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for max_analyze_diff_payload 0")
	}
}

func TestValidate_BloomBadFalsePositiveRate(t *testing.T) {
	cfg := validConfig()
	cfg.Bloom.Enabled = true
	cfg.Bloom.FalsePositiveRate = 1.5

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for false_positive_rate > 1")
	}
}

func TestValidate_BloomZeroMinCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.Bloom.Enabled = true
	cfg.Bloom.MinCapacity = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for min_capacity 0")
	}
}

func TestValidate_BloomDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Bloom.Enabled = false
	cfg.Bloom.FalsePositiveRate = -5
	cfg.Bloom.MinCapacity = -5

	if err := validate(cfg); err != nil {
		t.Fatalf("expected no error when bloom is disabled, got %v", err)
	}
}

func TestValidate_CacheEnabledZeroCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Capacity = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for cache.capacity 0 when enabled")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.LogLevel = "bad"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "server.port") || !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention multiple fields: %v", err)
	}
}

func TestIsValidEnum(t *testing.T) {
	if !isValidEnum("INFO", ValidLogLevels) {
		t.Error("INFO should be valid (case-insensitive)")
	}
	if isValidEnum("verbose", ValidLogLevels) {
		t.Error("verbose should not be valid")
	}
}
