package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/allaspectsdev/frkbsync/internal/fingerprint"
)

const adminAuthHeader = "Authorization"

// adminAuth gates the force-unlock/cache-clear diagnostics endpoints
// behind a separate bearer token from the per-user Authenticator (§6:
// "a separate admin token gates force-unlock and diagnostics
// endpoints"). Comparison is constant-time so response timing can't leak
// the expected token.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeJSON(w, http.StatusForbidden, envelope{"error": "ADMIN_DISABLED", "message": "no admin token configured"})
			return
		}

		token := strings.TrimPrefix(r.Header.Get(adminAuthHeader), "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeAuthError(w, errInvalidAdminToken)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type adminErr string

func (e adminErr) Error() string { return string(e) }

const errInvalidAdminToken = adminErr("invalid admin token")

func (s *Server) handleForceUnlock(w http.ResponseWriter, r *http.Request) {
	userKey := fingerprint.Normalize(chi.URLParam(r, "userKey"))
	released := s.engine.Locks().ForceRelease(userKey)
	writeJSON(w, http.StatusOK, envelope{"success": true, "released": released, "userKey": userKey})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")
	if err := s.engine.ClearCache(userKey); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "userKey": userKey})
}
