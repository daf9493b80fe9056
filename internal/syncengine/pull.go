package syncengine

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

// PullDiffPage implements the paginated pull (§4.6.4). Page contents for
// the same session are stable across calls: the sorted projection is
// computed once, on whichever call first needs it, and persisted back for
// subsequent pages.
func (e *Engine) PullDiffPage(userKey, sessionID string, pageIndex int) (*PullPageResult, error) {
	_, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return nil, err
	}

	session, err := e.store.Sessions().Find(sessionID, e.now())
	if err != nil {
		return nil, syncerr.Newf(syncerr.KindDiffSessionNotFound, "diff session not found or expired").
			WithDetails(map[string]interface{}{"retryAfter": int(e.cfg.DiffSessionTTL.Seconds())})
	}

	if session.UserKey != canon {
		return nil, syncerr.New(syncerr.KindDiffSessionUserMismatch, "diff session belongs to a different user")
	}

	sorted := session.SortedMissingInClient
	if len(sorted) == 0 || len(sorted) != len(session.MissingInClient) {
		sorted = make([]string, len(session.MissingInClient))
		copy(sorted, session.MissingInClient)
		sort.Strings(sorted)
		if recordErr := e.store.Sessions().RecordSortedView(sessionID, sorted); recordErr != nil {
			log.Warn().Err(recordErr).Str("session_id", sessionID).Msg("syncengine: failed to persist sorted diff view")
		}
	}

	pageSize := e.cfg.DefaultPageSize
	totalCount := len(sorted)
	totalPages := ceilDiv(totalCount, pageSize)
	if totalPages == 0 {
		totalPages = 1
	}

	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageIndex > totalPages-1 {
		pageIndex = totalPages - 1
	}

	start := pageIndex * pageSize
	end := start + pageSize
	if start > totalCount {
		start = totalCount
	}
	if end > totalCount {
		end = totalCount
	}

	return &PullPageResult{
		SessionID:           sessionID,
		MissingFingerprints: sorted[start:end],
		PageInfo: PageInfo{
			CurrentPage: pageIndex,
			PageSize:    pageSize,
			TotalPages:  totalPages,
			HasMore:     pageIndex < totalPages-1,
			TotalCount:  totalCount,
		},
	}, nil
}
