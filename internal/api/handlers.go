package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

// decodeJSON parses the request body into dst, returning a
// *syncerr.Error with Kind VALIDATION_ERROR on malformed JSON.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return syncerr.Newf(syncerr.KindValidation, "malformed request body: %v", err)
	}
	return nil
}

type checkRequest struct {
	UserKey string `json:"userKey"`
	Count   int    `json:"count"`
	Hash    string `json:"hash"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.Check(req.UserKey, req.Count, req.Hash)
	s.record("check", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, started, envelope{
		"needSync":    result.NeedSync,
		"reason":      result.Reason,
		"serverCount": result.ServerCount,
		"serverHash":  result.ServerHash,
		"lastSyncAt":  result.LastSyncAt,
		"limit":       result.Limit,
	})
}

type bidirectionalDiffRequest struct {
	UserKey            string   `json:"userKey"`
	ClientFingerprints []string `json:"clientFingerprints"`
	BatchIndex         int      `json:"batchIndex"`
	BatchSize          int      `json:"batchSize"`
}

func (s *Server) handleBidirectionalDiff(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req bidirectionalDiffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.BidirectionalDiff(req.UserKey, req.ClientFingerprints, req.BatchIndex, req.BatchSize)
	s.record("bidirectionalDiff", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, started, envelope{
		"batchIndex":                 result.BatchIndex,
		"batchSize":                  result.BatchSize,
		"serverMissingFingerprints":  result.ServerMissingFingerprints,
		"serverExistingFingerprints": result.ServerExistingFingerprints,
		"counts": envelope{
			"totalServerCount":      result.TotalServerCount,
			"totalClientBatchCount": result.TotalClientBatchCount,
		},
		"sessionInfo":      result.SessionInfo,
		"bloomFilterStats": result.BloomFilterStats,
	})
}

type addRequest struct {
	UserKey        string   `json:"userKey"`
	AddFingerprints []string `json:"addFingerprints"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.BatchAddFingerprints(req.UserKey, req.AddFingerprints)
	s.record("batchAdd", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, started, envelope{
		"addedCount":     result.AddedCount,
		"duplicateCount": result.DuplicateCount,
		"totalRequested": result.TotalRequested,
		"batchResult": envelope{
			"inserted":   result.AddedCount,
			"duplicates": result.DuplicateCount,
		},
	})
}

type analyzeDiffRequest struct {
	UserKey            string   `json:"userKey"`
	ClientFingerprints []string `json:"clientFingerprints"`
}

func (s *Server) handleAnalyzeDiff(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req analyzeDiffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.AnalyzeDifference(req.UserKey, req.ClientFingerprints)
	s.record("analyzeDiff", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, started, envelope{
		"diffSessionId": result.DiffSessionID,
		"diffStats": envelope{
			"clientMissingCount": result.Stats.ClientMissingCount,
			"serverMissingCount": result.Stats.ServerMissingCount,
			"totalPages":         result.Stats.TotalPages,
			"pageSize":           result.Stats.PageSize,
		},
		"serverStats": envelope{
			"totalServerCount": result.TotalServerCount,
		},
		"recommendations": envelope{
			"strategy": result.Recommendation,
			"priority": result.Priority,
		},
	})
}

type pullDiffPageRequest struct {
	UserKey      string `json:"userKey"`
	DiffSessionID string `json:"diffSessionId"`
	PageIndex    int    `json:"pageIndex"`
}

func (s *Server) handlePullDiffPage(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req pullDiffPageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.PullDiffPage(req.UserKey, req.DiffSessionID, req.PageIndex)
	s.record("pullDiffPage", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, started, envelope{
		"sessionId":           result.SessionID,
		"missingFingerprints": result.MissingFingerprints,
		"pageInfo": envelope{
			"currentPage": result.PageInfo.CurrentPage,
			"pageSize":    result.PageInfo.PageSize,
			"totalPages":  result.PageInfo.TotalPages,
			"hasMore":     result.PageInfo.HasMore,
			"totalCount":  result.PageInfo.TotalCount,
		},
	})
}

type resetRequest struct {
	UserKey string `json:"userKey"`
	Notes   string `json:"notes"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.ResetUserData(req.UserKey, req.Notes)
	s.record("resetUserData", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	fields := envelope{
		"message": "user data reset",
		"before": envelope{
			"fingerprintCount": result.BeforeFingerprintCount,
			"metaCount":        result.BeforeMetaCount,
			"usageStats": envelope{
				"totalRequests": result.UsageRequests,
				"totalSyncs":    result.UsageSyncs,
			},
		},
		"result": envelope{
			"clearedFingerprints": result.ClearedFingerprints,
			"clearedMetas":        result.ClearedMetas,
			"deletedSessions":     result.DeletedSessions,
			"clearedCache":        result.ClearedCache,
		},
	}
	writeSuccess(w, started, fields)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	userKey := r.URL.Query().Get("userKey")
	if userKey == "" {
		writeError(w, syncerr.New(syncerr.KindInvalidUserKey, "userKey query parameter is required"))
		return
	}

	status, err := s.engine.GetSyncStatus(userKey)
	if err != nil {
		s.record("getSyncStatus", err, started)
		writeError(w, err)
		return
	}

	stats, err := s.engine.GetServiceStats()
	s.record("getSyncStatus", err, started)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, started, envelope{
		"userKey": status.UserKey,
		"syncStatus": envelope{
			"lockHeld":      status.LockHeld,
			"lockOperation": status.LockOperation,
		},
		"userMeta": envelope{
			"totalCount":     status.TotalCount,
			"collectionHash": status.CollectionHash,
			"lastSyncAt":     status.LastSyncAt,
			"totalSyncs":     status.TotalSyncs,
		},
		"bloomFilterStats": envelope{
			"residentUsers":              stats.BloomFilterUsers,
			"elementCount":               stats.BloomElementCount,
			"estimatedFalsePositiveRate": stats.BloomEstimatedFalsePositiveRate,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{"status": "not_ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": "ready"})
}

// record funnels an operation's outcome into the Recorder when one is
// wired (nil-safe so tests can omit it).
func (s *Server) record(operation string, err error, started time.Time) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if se, ok := syncerr.As(err); ok {
			outcome = string(se.Kind)
		}
	}
	s.recorder.RecordOperation(operation, outcome, time.Since(started))
}
