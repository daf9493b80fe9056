package config

// DefaultBindAddress is the default bind address (localhost only for security).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default port for the sync server.
const DefaultPort = 7690

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.frkbsync"

// DefaultDBFilename is the default SQLite database filename under DataDir.
const DefaultDBFilename = "frkbsync.db"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "frkbsync.toml"

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds.
const DefaultWriteTimeout = 30

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultBatchSize is the default fingerprint batch size for diff/add
// operations (§4.2's 500-10000 recommended client batch window).
const DefaultBatchSize = 1000

// DefaultDiffSessionTTLSeconds is the default diff session lifetime (§4.3).
const DefaultDiffSessionTTLSeconds = 300

// DefaultPageSize is the default page size for paginated diff delivery (§4.3).
const DefaultPageSize = 1000

// DefaultMaxFingerprintsPerUser bounds a single user's fingerprint set
// (§2's 50k-200k working range; this is a hard ceiling, not a target).
const DefaultMaxFingerprintsPerUser = 200000

// DefaultMaxAnalyzeDiffPayload bounds how many client fingerprints a
// single analyze-diff call accepts in one request body.
const DefaultMaxAnalyzeDiffPayload = 100000

// DefaultBloomEnabled controls whether the Bloom filter cache is built at all.
const DefaultBloomEnabled = true

// DefaultBloomFalsePositiveRate is the default for bloom.false_positive_rate.
// The value is validated but not passed to the Bloom filter cache, which
// sizes every filter for its own bloomcache.TargetFalsePositiveRate.
const DefaultBloomFalsePositiveRate = 0.01

// DefaultBloomMinCapacity is the default for bloom.min_capacity. The value
// is validated but not passed to the Bloom filter cache, which applies its
// own bloomcache.MinCapacity floor (50000) regardless of this setting.
const DefaultBloomMinCapacity = 10000

// DefaultBloomRebuildsPerSecond throttles how often a Bloom filter may be
// rebuilt from scratch, process-wide across all users (advisory cache, not
// authoritative - §4.4).
const DefaultBloomRebuildsPerSecond = 1.0

// DefaultCacheEnabled controls whether the ephemeral process-local cache is used.
const DefaultCacheEnabled = true

// DefaultCacheCapacity is the default entry capacity of the ephemeral cache (§4.5).
const DefaultCacheCapacity = 10000

// DefaultUserKeyHeaderName is the default header the stand-in Authenticator
// reads the caller's userKey from.
const DefaultUserKeyHeaderName = "X-User-Key"

// DefaultConfig returns a Config populated with the defaults above.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			TLSEnabled:   false,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Storage: StorageConfig{
			DataDir:  DefaultDataDir,
			Filename: DefaultDBFilename,
		},
		Sync: SyncConfig{
			BatchSize:               DefaultBatchSize,
			DiffSessionTTLSeconds:   DefaultDiffSessionTTLSeconds,
			DefaultPageSize:         DefaultPageSize,
			DefaultFingerprintLimit: DefaultMaxFingerprintsPerUser,
			MaxAnalyzeDiffPayload:   DefaultMaxAnalyzeDiffPayload,
		},
		Bloom: BloomConfig{
			Enabled:           DefaultBloomEnabled,
			FalsePositiveRate: DefaultBloomFalsePositiveRate,
			MinCapacity:       DefaultBloomMinCapacity,
			RebuildsPerSecond: DefaultBloomRebuildsPerSecond,
		},
		Cache: CacheConfig{
			Enabled:  DefaultCacheEnabled,
			Capacity: DefaultCacheCapacity,
		},
		Auth: AuthConfig{
			AdminToken:        "",
			UserKeyHeaderName: DefaultUserKeyHeaderName,
		},
	}
}
