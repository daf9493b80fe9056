package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_WithExplicitFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.toml")

	content := `
[server]
port = 9090
log_level = "debug"

[storage]
data_dir = "` + dir + `"
filename = "sync.db"

[sync]
batch_size = 2000
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.Server.LogLevel, "debug")
	}
	if cfg.Storage.Filename != "sync.db" {
		t.Errorf("Filename: got %q, want sync.db", cfg.Storage.Filename)
	}
	if cfg.Sync.BatchSize != 2000 {
		t.Errorf("BatchSize: got %d, want 2000", cfg.Sync.BatchSize)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.toml")

	content := `
[server]
port = 7690
log_level = "info"

[storage]
data_dir = "` + dir + `"
filename = "sync.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("FRKBSYNC_SERVER_PORT", "8888")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Port with env override: got %d, want 8888", cfg.Server.Port)
	}
}

func TestLoad_ValidationFailure_BadPort(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")

	content := `
[server]
port = 0
log_level = "info"

[storage]
data_dir = "` + dir + `"
filename = "sync.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for port 0")
	}
}

func TestLoad_ValidationFailure_BadLogLevel(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad-level.toml")

	content := `
[server]
port = 7690
log_level = "verbose"

[storage]
data_dir = "` + dir + `"
filename = "sync.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port: got %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Sync.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize: got %d, want %d", cfg.Sync.BatchSize, DefaultBatchSize)
	}
	if cfg.Bloom.Enabled != true {
		t.Error("Bloom.Enabled: got false, want true")
	}
	if cfg.Cache.Capacity != DefaultCacheCapacity {
		t.Errorf("Cache.Capacity: got %d, want %d", cfg.Cache.Capacity, DefaultCacheCapacity)
	}
}

func TestSyncEngineConfigTranslation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.BatchSize = 42

	engineCfg := cfg.SyncEngineConfig()
	if engineCfg.BatchSize != 42 {
		t.Errorf("translated BatchSize: got %d, want 42", engineCfg.BatchSize)
	}
	if engineCfg.DiffSessionTTL.Seconds() != float64(cfg.Sync.DiffSessionTTLSeconds) {
		t.Errorf("translated DiffSessionTTL: got %v, want %ds", engineCfg.DiffSessionTTL, cfg.Sync.DiffSessionTTLSeconds)
	}
}

func TestConfigFilePath_BeforeLoad(t *testing.T) {
	loadedConfigFile.Store("")
	path := ConfigFilePath()
	if path != "" {
		t.Errorf("ConfigFilePath before load: got %q, want empty", path)
	}
}

func TestExportConfig(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "exported.toml")

	cfg := DefaultConfig()
	set(cfg)

	if err := ExportConfig(exportPath); err != nil {
		t.Fatalf("ExportConfig: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("exported config is empty")
	}
}

func TestImportConfig(t *testing.T) {
	dir := t.TempDir()
	importPath := filepath.Join(dir, "import.toml")

	content := `
[server]
port = 9999
log_level = "warn"

[storage]
data_dir = "` + dir + `"
filename = "sync.db"
`
	if err := os.WriteFile(importPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ImportConfig(importPath); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}

	cfg := Get()
	if cfg.Server.Port != 9999 {
		t.Errorf("Port after import: got %d, want 9999", cfg.Server.Port)
	}

	set(DefaultConfig())
}
