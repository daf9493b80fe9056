package syncerr_test

import (
	"errors"
	"testing"

	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[syncerr.Kind]int{
		syncerr.KindInvalidUserKey:          400,
		syncerr.KindUserKeyNotFound:         404,
		syncerr.KindUserKeyInactive:         403,
		syncerr.KindInvalidFingerprint:      400,
		syncerr.KindValidation:              400,
		syncerr.KindRequestTooLarge:         400,
		syncerr.KindDiffSessionNotFound:     404,
		syncerr.KindDiffSessionUserMismatch: 403,
		syncerr.KindSyncInProgress:          409,
		syncerr.KindFingerprintLimit:        403,
		syncerr.KindInternal:                500,
	}
	for kind, status := range cases {
		err := syncerr.New(kind, "boom")
		if got := err.HTTPStatus(); got != status {
			t.Errorf("%s: HTTPStatus() = %d, want %d", kind, got, status)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := syncerr.Wrap(cause, "failed to write")

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
	if err.Kind != syncerr.KindInternal {
		t.Fatalf("expected Wrap to produce KindInternal, got %s", err.Kind)
	}
}

func TestAsExtractsTypedError(t *testing.T) {
	original := syncerr.New(syncerr.KindFingerprintLimit, "over limit")
	wrapped := error(original)

	found, ok := syncerr.As(wrapped)
	if !ok {
		t.Fatalf("expected As to find *Error")
	}
	if found.Kind != syncerr.KindFingerprintLimit {
		t.Fatalf("expected KindFingerprintLimit, got %s", found.Kind)
	}

	if _, ok := syncerr.As(errors.New("plain error")); ok {
		t.Fatalf("expected As to return false for non-syncerr error")
	}
}

func TestWithDetailsChains(t *testing.T) {
	err := syncerr.New(syncerr.KindInvalidFingerprint, "bad format").
		WithDetails(map[string]interface{}{"index": 3})
	if err.Details["index"] != 3 {
		t.Fatalf("expected details to be attached, got %v", err.Details)
	}
}

func TestJSONRoundTripsKnownFields(t *testing.T) {
	err := syncerr.New(syncerr.KindValidation, "bad request")
	data := err.JSON()
	if len(data) == 0 {
		t.Fatalf("expected non-empty JSON output")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := syncerr.Newf(syncerr.KindInvalidFingerprint, "bad fingerprint at index %d", 7)
	want := "bad fingerprint at index 7"
	if err.Message != want {
		t.Fatalf("Message = %q, want %q", err.Message, want)
	}
}
