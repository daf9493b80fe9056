package syncengine

import (
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

const resetOperationName = "resetUserData"

// ResetUserData implements the wipe-but-preserve-usage-counters reset
// (§4.6.6). Every clearing step is independent and best-effort: a failure
// in one does not abort the rest, matching the teacher's posture for
// destructive admin operations that must make forward progress even under
// partial failure.
func (e *Engine) ResetUserData(userKey, notes string) (*ResetResult, error) {
	user, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	lockID, ok, heldOp := e.locks.TryAcquire(canon, resetOperationName)
	if !ok {
		return nil, syncerr.Newf(syncerr.KindSyncInProgress, "a sync operation (%s) is already in progress for this user", heldOp)
	}
	defer e.locks.Release(canon, lockID)

	before, err := e.store.Fingerprints().Count(canon)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to snapshot pre-reset fingerprint count")
	}

	beforeMetaCount := 0
	if _, metaErr := e.store.Meta().Get(canon); metaErr == nil {
		beforeMetaCount = 1
	}

	result := &ResetResult{
		BeforeFingerprintCount: before,
		BeforeMetaCount:        beforeMetaCount,
		UsageRequests:          user.TotalRequests,
		UsageSyncs:             user.TotalSyncs,
	}

	cleared, purgeErr := e.store.Fingerprints().PurgeUser(canon)
	if purgeErr != nil {
		log.Warn().Err(purgeErr).Str("user_key", canon).Msg("syncengine: failed to purge fingerprints during reset")
	} else {
		result.ClearedFingerprints = cleared
	}

	if metaErr := e.store.Meta().Delete(canon); metaErr != nil {
		log.Warn().Err(metaErr).Str("user_key", canon).Msg("syncengine: failed to delete meta during reset")
	} else {
		result.ClearedMetas = true
	}

	if sessionErr := e.store.Sessions().DeleteByUser(canon); sessionErr != nil {
		log.Warn().Err(sessionErr).Str("user_key", canon).Msg("syncengine: failed to delete diff sessions during reset")
	} else {
		result.DeletedSessions = true
	}

	if e.bloom != nil {
		if bloomErr := e.bloom.Invalidate(canon); bloomErr != nil {
			log.Warn().Err(bloomErr).Str("user_key", canon).Msg("syncengine: failed to invalidate bloom filter during reset")
		}
	}

	e.clearUserCache(canon)
	result.ClearedCache = true

	if auditErr := e.store.Audit().RecordReset(canon, notes, before, e.now()); auditErr != nil {
		log.Warn().Err(auditErr).Str("user_key", canon).Msg("syncengine: failed to record reset audit entry")
	}

	return result, nil
}
