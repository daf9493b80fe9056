package syncengine

import (
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/frkbsync/internal/fingerprint"
	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

const addOperationName = "batchAddFingerprints"

// BatchAddFingerprints implements the idempotent union append (§4.6.5). It
// acquires the per-user sync lock for the duration of the call and
// releases it unconditionally on every exit path.
func (e *Engine) BatchAddFingerprints(userKey string, fingerprints []string) (*AddResult, error) {
	user, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	if len(fingerprints) > e.cfg.BatchSize {
		return nil, syncerr.Newf(syncerr.KindRequestTooLarge, "batch of %d exceeds the %d-element limit", len(fingerprints), e.cfg.BatchSize)
	}

	normalized, badIndex := fingerprint.ValidateBatch(fingerprints)
	if badIndex >= 0 {
		return nil, syncerr.Newf(syncerr.KindInvalidFingerprint, "invalid fingerprint at index %d", badIndex).
			WithDetails(map[string]interface{}{"index": badIndex})
	}
	if dupIndex := fingerprint.DuplicateIndex(normalized); dupIndex >= 0 {
		return nil, syncerr.Newf(syncerr.KindValidation, "duplicate fingerprint within batch at index %d", dupIndex).
			WithDetails(map[string]interface{}{"index": dupIndex})
	}

	lockID, ok, heldOp := e.locks.TryAcquire(canon, addOperationName)
	if !ok {
		return nil, syncerr.Newf(syncerr.KindSyncInProgress, "a sync operation (%s) is already in progress for this user", heldOp)
	}
	defer e.locks.Release(canon, lockID)

	if limit := e.fingerprintLimit(user); limit > 0 {
		existingCount, countErr := e.store.Fingerprints().Count(canon)
		if countErr != nil {
			return nil, syncerr.Wrap(countErr, "failed to count existing fingerprints")
		}
		present, existErr := e.store.Fingerprints().Existing(canon, normalized)
		if existErr != nil {
			return nil, syncerr.Wrap(existErr, "failed to query existing fingerprints")
		}
		if existingCount+len(normalized)-len(present) > limit {
			return nil, syncerr.Newf(syncerr.KindFingerprintLimit, "adding this batch would exceed the configured limit of %d fingerprints", limit).
				WithDetails(map[string]interface{}{"limit": limit, "currentCount": existingCount})
		}
	}

	startedAt := e.now()
	inserted, err := e.store.Fingerprints().InsertBatch(canon, normalized)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to insert fingerprint batch")
	}
	duration := e.now().Sub(startedAt)

	totalCount, err := e.store.Fingerprints().Count(canon)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to count fingerprints after insert")
	}
	allFPs, err := e.store.Fingerprints().All(canon)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to enumerate fingerprints after insert")
	}
	hash := fingerprint.CollectionHash(allFPs)

	if err := e.store.Meta().ApplyDelta(canon, totalCount, hash, inserted, duration.Milliseconds(), startedAt); err != nil {
		return nil, syncerr.Wrap(err, "failed to apply meta delta")
	}

	if e.cfg.BloomFilterEnabled && inserted > 0 && e.bloom != nil {
		if bloomErr := e.bloom.Add(canon, normalized); bloomErr != nil {
			log.Warn().Err(bloomErr).Str("user_key", canon).Msg("syncengine: best-effort bloom filter update failed")
		}
	}

	e.clearUserCache(canon)

	return &AddResult{
		AddedCount:     inserted,
		DuplicateCount: len(normalized) - inserted,
		TotalRequested: len(normalized),
	}, nil
}
