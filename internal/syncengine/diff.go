package syncengine

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uplo-tech/fastrand"

	"github.com/allaspectsdev/frkbsync/internal/fingerprint"
	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

// BidirectionalDiff implements the incremental round-trip diff (§4.6.2).
// It is read-only and never takes the sync lock.
func (e *Engine) BidirectionalDiff(userKey string, clientBatch []string, batchIndex, batchSize int) (*BatchDiffResult, error) {
	_, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	normalized, badIndex := fingerprint.ValidateBatch(clientBatch)
	if badIndex >= 0 {
		return nil, syncerr.Newf(syncerr.KindInvalidFingerprint, "invalid fingerprint at index %d", badIndex).
			WithDetails(map[string]interface{}{"index": badIndex})
	}
	if dupIndex := fingerprint.DuplicateIndex(normalized); dupIndex >= 0 {
		return nil, syncerr.Newf(syncerr.KindValidation, "duplicate fingerprint within batch at index %d", dupIndex).
			WithDetails(map[string]interface{}{"index": dupIndex})
	}

	// Bloom consult is metrics-only here: the authoritative membership
	// query below is what serverMissing/serverExisting are built from.
	maybePresent := 0
	for _, fp := range normalized {
		if e.bloom != nil {
			if possible, bloomErr := e.bloom.MayContain(canon, fp); bloomErr == nil && possible {
				maybePresent++
			}
		}
	}

	present, err := e.store.Fingerprints().Existing(canon, normalized)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to query existing fingerprints")
	}

	result := &BatchDiffResult{
		BatchIndex:            batchIndex,
		BatchSize:             batchSize,
		TotalClientBatchCount: len(normalized),
	}
	for _, fp := range normalized {
		if _, ok := present[fp]; ok {
			result.ServerExistingFingerprints = append(result.ServerExistingFingerprints, fp)
		} else {
			result.ServerMissingFingerprints = append(result.ServerMissingFingerprints, fp)
		}
	}

	serverCount, err := e.store.Fingerprints().Count(canon)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to count server fingerprints")
	}
	result.TotalServerCount = serverCount

	if batchIndex == 0 && batchSize > 0 {
		estimatedBatchCount := (serverCount / batchSize) + 1
		remaining := serverCount - (batchSize * estimatedBatchCount)
		result.SessionInfo = &SessionInfo{
			Recommended:        remaining > 0,
			EstimatedRemaining: remaining,
		}
	}

	if e.bloom != nil {
		result.BloomFilterStats = &BloomFilterStats{
			Consulted:    len(normalized),
			MaybePresent: maybePresent,
		}
	}
	return result, nil
}

// AnalyzeDifference implements the whole-set diff session (§4.6.3). It is
// read-mostly: the only write is the new DiffSession row (and, in the
// no-diff case, a meta refresh).
func (e *Engine) AnalyzeDifference(userKey string, clientFingerprints []string) (*AnalyzeDiffResult, error) {
	_, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	if len(clientFingerprints) > e.cfg.MaxAnalyzeDiffPayload {
		return nil, syncerr.Newf(syncerr.KindRequestTooLarge, "client fingerprint payload exceeds the %d-element cap", e.cfg.MaxAnalyzeDiffPayload)
	}

	normalized, badIndex := fingerprint.ValidateBatch(clientFingerprints)
	if badIndex >= 0 {
		return nil, syncerr.Newf(syncerr.KindInvalidFingerprint, "invalid fingerprint at index %d", badIndex).
			WithDetails(map[string]interface{}{"index": badIndex})
	}

	serverFPs, err := e.store.Fingerprints().All(canon)
	if err != nil {
		return nil, syncerr.Wrap(err, "failed to enumerate server fingerprints")
	}

	serverSet := fingerprint.ToSet(serverFPs)
	clientSet := fingerprint.ToSet(normalized)
	missingInClient, missingInServer := fingerprint.Diff(serverSet, clientSet)

	now := e.now()
	sessionID := newDiffSessionID(now)
	if _, err := e.store.Sessions().Create(sessionID, canon, missingInClient, missingInServer, len(normalized), len(serverFPs), e.cfg.DiffSessionTTL, now); err != nil {
		return nil, syncerr.Wrap(err, "failed to persist diff session")
	}

	if len(missingInClient) == 0 && len(missingInServer) == 0 {
		if _, refreshErr := e.refreshMeta(canon); refreshErr != nil {
			log.Warn().Err(refreshErr).Str("user_key", canon).Str("session_id", sessionID).Msg("syncengine: meta refresh after no-op diff failed")
		}
	}

	pageSize := e.cfg.DefaultPageSize
	totalPages := ceilDiv(len(missingInClient), pageSize)

	recommendation := "bidirectional"
	switch {
	case len(missingInClient) == 0 && len(missingInServer) > 0:
		recommendation = "push_only"
	case len(missingInServer) == 0 && len(missingInClient) > 0:
		recommendation = "pull_only"
	}

	priority := "normal"
	if len(missingInClient) > 10000 || len(missingInServer) > 10000 {
		priority = "high"
	}

	return &AnalyzeDiffResult{
		DiffSessionID: sessionID,
		Stats: DiffStats{
			ClientMissingCount: len(missingInClient),
			ServerMissingCount: len(missingInServer),
			TotalPages:         totalPages,
			PageSize:           pageSize,
		},
		Recommendation:   recommendation,
		Priority:         priority,
		TotalServerCount: len(serverFPs),
	}, nil
}

func ceilDiv(n, size int) int {
	if size <= 0 {
		return 0
	}
	if n == 0 {
		return 0
	}
	return (n + size - 1) / size
}

func newDiffSessionID(now interface{ Unix() int64 }) string {
	return fmt.Sprintf("diff_%d_%s", now.Unix(), randomToken())
}

// randomToken returns a short random hex suffix for diff session ids,
// following the same hex.EncodeToString(fastrand.Bytes(n)) pattern the
// pack uses for its own random ids.
func randomToken() string {
	return hex.EncodeToString(fastrand.Bytes(6))
}
