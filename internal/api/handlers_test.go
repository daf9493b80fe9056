package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/allaspectsdev/frkbsync/internal/api"
	"github.com/allaspectsdev/frkbsync/internal/testutil"
)

func doJSON(t *testing.T, router http.Handler, method, path, userKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userKey != "" {
		req.Header.Set("X-User-Key", userKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckReportsServerEmptyForFreshUser(t *testing.T) {
	srv, st := newTestServer(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, api.BasePrefix+"/check", userKey, map[string]interface{}{
		"userKey": userKey,
		"count":   5,
		"hash":    "whatever",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["reason"] != "server_empty" {
		t.Fatalf("expected server_empty reason, got %+v", resp)
	}
	if resp["needSync"] != true {
		t.Fatalf("expected needSync=true, got %+v", resp)
	}
}

func TestAddThenStatusReportsTotalCount(t *testing.T) {
	srv, st := newTestServer(t)
	userKey := testutil.UserKey(2)
	mustRegisterUser(t, st, userKey)
	router := srv.Router()

	fps := testutil.FingerprintBatch(1, 3)
	w := doJSON(t, router, http.MethodPost, api.BasePrefix+"/add", userKey, map[string]interface{}{
		"userKey":         userKey,
		"addFingerprints": fps,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var addResp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &addResp); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	if addResp["addedCount"].(float64) != 3 {
		t.Fatalf("expected addedCount 3, got %+v", addResp["addedCount"])
	}

	statusReq := httptest.NewRequest(http.MethodGet, api.BasePrefix+"/status?userKey="+userKey, nil)
	statusReq.Header.Set("X-User-Key", userKey)
	statusW := httptest.NewRecorder()
	router.ServeHTTP(statusW, statusReq)
	if statusW.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d: %s", statusW.Code, statusW.Body.String())
	}

	var statusResp map[string]interface{}
	if err := json.Unmarshal(statusW.Body.Bytes(), &statusResp); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	userMeta := statusResp["userMeta"].(map[string]interface{})
	if userMeta["totalCount"].(float64) != 3 {
		t.Fatalf("expected totalCount 3 in userMeta, got %+v", userMeta)
	}
}

func TestResetReturnsBeforeAndResultSections(t *testing.T) {
	srv, st := newTestServer(t)
	userKey := testutil.UserKey(3)
	mustRegisterUser(t, st, userKey)
	router := srv.Router()

	fps := testutil.FingerprintBatch(1, 4)
	doJSON(t, router, http.MethodPost, api.BasePrefix+"/add", userKey, map[string]interface{}{
		"userKey":         userKey,
		"addFingerprints": fps,
	})

	w := doJSON(t, router, http.MethodPost, api.BasePrefix+"/reset", userKey, map[string]interface{}{
		"userKey": userKey,
		"notes":   "test reset",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode reset response: %v", err)
	}
	before := resp["before"].(map[string]interface{})
	if before["fingerprintCount"].(float64) != 4 {
		t.Fatalf("expected before.fingerprintCount 4, got %+v", before)
	}
	result := resp["result"].(map[string]interface{})
	if result["clearedFingerprints"].(float64) != 4 {
		t.Fatalf("expected result.clearedFingerprints 4, got %+v", result)
	}
}

func TestCheckRejectsUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, api.BasePrefix+"/check", "nonexistent-user", map[string]interface{}{
		"userKey": "nonexistent-user",
		"count":   0,
		"hash":    "",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered user, got %d: %s", w.Code, w.Body.String())
	}
}
