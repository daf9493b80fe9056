package syncengine

import "time"

// Config holds every tunable named in the external-interfaces
// configuration table. DefaultConfig returns one populated with the
// defaults; zero-value fields of a Config built by hand are used as-is.
type Config struct {
	BatchSize               int
	DiffSessionTTL           time.Duration
	DefaultPageSize          int
	DefaultFingerprintLimit  int
	BloomFilterEnabled       bool
	BloomRebuildsPerSecond   float64
	EphemeralCacheCapacity   int
	MaxAnalyzeDiffPayload    int
}

// DefaultConfig returns the engine defaults named throughout the spec.
func DefaultConfig() Config {
	return Config{
		BatchSize:              1000,
		DiffSessionTTL:         300 * time.Second,
		DefaultPageSize:        1000,
		DefaultFingerprintLimit: 200000,
		BloomFilterEnabled:     true,
		BloomRebuildsPerSecond: 5,
		EphemeralCacheCapacity: 10000,
		MaxAnalyzeDiffPayload:  100000,
	}
}

// CheckResult is the response shape for check (§4.6.1, §6 /check).
type CheckResult struct {
	NeedSync    bool
	Reason      string
	ServerCount int
	ServerHash  string
	LastSyncAt  *time.Time
	Limit       int
}

// BatchDiffResult is the response shape for bidirectionalDiff (§4.6.2).
type BatchDiffResult struct {
	BatchIndex                 int
	BatchSize                  int
	ServerMissingFingerprints  []string
	ServerExistingFingerprints []string
	TotalServerCount           int
	TotalClientBatchCount      int
	SessionInfo                *SessionInfo
	BloomFilterStats           *BloomFilterStats
}

// BloomFilterStats reports how much the advisory bloom consult agreed
// with the authoritative membership query that follows it (§4.4).
type BloomFilterStats struct {
	Consulted    int
	MaybePresent int
}

// SessionInfo is the advisory session-worthiness report bidirectionalDiff
// emits without itself creating a session (Q1: the dead batch-0 session
// branch is removed — see SPEC_FULL.md's Open Question resolutions).
type SessionInfo struct {
	Recommended       bool
	EstimatedRemaining int
}

// DiffStats summarizes an analyzeDifference result (§4.6.3).
type DiffStats struct {
	ClientMissingCount int
	ServerMissingCount int
	TotalPages         int
	PageSize           int
}

// AnalyzeDiffResult is the response shape for analyzeDifference.
type AnalyzeDiffResult struct {
	DiffSessionID    string
	Stats            DiffStats
	Recommendation   string
	Priority         string
	TotalServerCount int
}

// PageInfo describes one page of a paginated pull (§4.6.4).
type PageInfo struct {
	CurrentPage int
	PageSize    int
	TotalPages  int
	HasMore     bool
	TotalCount  int
}

// PullPageResult is the response shape for pullDiffPage.
type PullPageResult struct {
	SessionID          string
	MissingFingerprints []string
	PageInfo           PageInfo
}

// AddResult is the response shape for batchAddFingerprints (§4.6.5).
type AddResult struct {
	AddedCount     int
	DuplicateCount int
	TotalRequested int
}

// ResetResult is the response shape for resetUserData (§4.6.6).
type ResetResult struct {
	BeforeFingerprintCount int
	BeforeMetaCount        int
	UsageRequests          int64
	UsageSyncs             int64
	ClearedFingerprints    int64
	ClearedMetas           bool
	DeletedSessions        bool
	ClearedCache           bool
}

// SyncStatus is the response shape for getSyncStatus (§4.6.7).
type SyncStatus struct {
	UserKey       string
	LockHeld      bool
	LockOperation string
	TotalCount    int
	CollectionHash string
	LastSyncAt    *time.Time
	TotalSyncs    int64
}

// ServiceStats is the response shape for getServiceStats (§4.6.7,
// §4.6.9).
type ServiceStats struct {
	ActiveSessions                  int
	ActiveSyncLocks                 int
	CacheHits                       int64
	CacheMisses                     int64
	CacheEvictions                  int64
	BloomFilterUsers                int
	BloomElementCount               int64
	BloomEstimatedFalsePositiveRate float64
}
