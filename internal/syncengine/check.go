package syncengine

import "github.com/allaspectsdev/frkbsync/internal/store"

// Check implements the fast-path decision table (§4.6.1). It is a
// read-path operation and never takes the sync lock.
func (e *Engine) Check(userKey string, clientCount int, clientHash string) (*CheckResult, error) {
	user, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	if e.lockHeldFor(canon) {
		return &CheckResult{NeedSync: false, Reason: "sync_in_progress"}, nil
	}

	meta, err := e.getCachedMeta(canon)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		ServerCount: meta.TotalCount,
		ServerHash:  meta.CollectionHash,
		LastSyncAt:  meta.LastSyncAt,
		Limit:       e.fingerprintLimit(user),
	}

	switch {
	case meta.TotalCount == 0 && clientCount == 0:
		result.Reason = "both_empty"
		result.NeedSync = false
	case meta.TotalCount == 0:
		result.Reason = "server_empty"
		result.NeedSync = true
	case clientCount == 0:
		result.Reason = "client_empty"
		result.NeedSync = true
	case meta.TotalCount != clientCount:
		result.Reason = "count_mismatch"
		result.NeedSync = true
	case meta.CollectionHash == clientHash:
		result.Reason = "already_synced"
		result.NeedSync = false
	default:
		// Counts equal, hashes differ: tie-break via refresh against
		// live storage before declaring a real mismatch.
		refreshed, err := e.refreshMeta(canon)
		if err != nil {
			return nil, err
		}
		result.ServerCount = refreshed.TotalCount
		result.ServerHash = refreshed.CollectionHash
		result.LastSyncAt = refreshed.LastSyncAt
		if refreshed.CollectionHash == clientHash {
			result.Reason = "already_synced"
			result.NeedSync = false
		} else {
			result.Reason = "hash_mismatch"
			result.NeedSync = true
		}
	}

	return result, nil
}

// lockHeldFor reports whether a sync lock is currently held for userKey,
// without acquiring or releasing anything.
func (e *Engine) lockHeldFor(userKey string) bool {
	for _, held := range e.locks.Snapshot() {
		if held.UserKey == userKey {
			return true
		}
	}
	return false
}

// fingerprintLimit returns user's configured limit, falling back to the
// engine default when the whitelist entry doesn't carry one.
func (e *Engine) fingerprintLimit(user *store.User) int {
	if user.FingerprintLimit > 0 {
		return user.FingerprintLimit
	}
	return e.cfg.DefaultFingerprintLimit
}
