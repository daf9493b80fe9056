package syncengine

import "github.com/allaspectsdev/frkbsync/internal/syncerr"

// GetSyncStatus implements §4.6.7's per-user status query. Side-effect
// free: it never touches the sync lock or ephemeral cache beyond a
// possible read-through.
func (e *Engine) GetSyncStatus(userKey string) (*SyncStatus, error) {
	_, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	meta, err := e.getCachedMeta(canon)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to load sync status")
	}

	status := &SyncStatus{
		UserKey:        canon,
		TotalCount:     meta.TotalCount,
		CollectionHash: meta.CollectionHash,
		LastSyncAt:     meta.LastSyncAt,
		TotalSyncs:     meta.TotalSyncs,
	}

	for _, held := range e.locks.Snapshot() {
		if held.UserKey == canon {
			status.LockHeld = true
			status.LockOperation = held.Operation
			break
		}
	}

	return status, nil
}

// GetServiceStats implements §4.6.7/§4.6.9's process-wide stats, feeding
// both the JSON status surface and (via internal/metrics) the Prometheus
// gauges. Side-effect free.
func (e *Engine) GetServiceStats() (*ServiceStats, error) {
	cacheStats := e.cache.Stats()

	activeSessions, err := e.store.Sessions().CountActive(e.now())
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to count active diff sessions")
	}

	bloomFilterUsers := 0
	var bloomElementCount int64
	var bloomFalsePositiveRate float64
	if e.bloom != nil {
		keys := e.bloom.ResidentUserKeys()
		bloomFilterUsers = len(keys)

		var rateSum float64
		var rateSamples int
		for _, key := range keys {
			bs, err := e.bloom.Stats(key)
			if err != nil {
				continue
			}
			bloomElementCount += int64(bs.ElementCount)
			rateSum += bs.EstimatedFalsePositiveRate
			rateSamples++
		}
		if rateSamples > 0 {
			bloomFalsePositiveRate = rateSum / float64(rateSamples)
		}
	}

	return &ServiceStats{
		ActiveSessions:                  activeSessions,
		ActiveSyncLocks:                 e.locks.Len(),
		CacheHits:                       cacheStats.Hits,
		CacheMisses:                     cacheStats.Misses,
		CacheEvictions:                  cacheStats.Evictions,
		BloomFilterUsers:                bloomFilterUsers,
		BloomElementCount:               bloomElementCount,
		BloomEstimatedFalsePositiveRate: bloomFalsePositiveRate,
	}, nil
}
