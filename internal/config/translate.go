package config

import (
	"time"

	"github.com/allaspectsdev/frkbsync/internal/syncengine"
)

// SyncEngineConfig translates the on-disk Sync/Bloom/Cache sections into
// the syncengine.Config shape the engine constructor expects.
func (c *Config) SyncEngineConfig() syncengine.Config {
	return syncengine.Config{
		BatchSize:               c.Sync.BatchSize,
		DiffSessionTTL:          time.Duration(c.Sync.DiffSessionTTLSeconds) * time.Second,
		DefaultPageSize:         c.Sync.DefaultPageSize,
		DefaultFingerprintLimit: c.Sync.DefaultFingerprintLimit,
		BloomFilterEnabled:      c.Bloom.Enabled,
		BloomRebuildsPerSecond:  c.Bloom.RebuildsPerSecond,
		EphemeralCacheCapacity:  c.Cache.Capacity,
		MaxAnalyzeDiffPayload:   c.Sync.MaxAnalyzeDiffPayload,
	}
}
