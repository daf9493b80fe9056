package store_test

import (
	"testing"

	"github.com/allaspectsdev/frkbsync/internal/testutil"
)

func TestFingerprintInsertBatchIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	fs := st.Fingerprints()
	userKey := testutil.UserKey(1)
	batch := testutil.FingerprintBatch(1, 10)

	inserted, err := fs.InsertBatch(userKey, batch)
	if err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if inserted != 10 {
		t.Fatalf("expected 10 inserted, got %d", inserted)
	}

	// Re-inserting the same batch should insert nothing new (I1 monotonic union).
	inserted, err = fs.InsertBatch(userKey, batch)
	if err != nil {
		t.Fatalf("re-insert batch: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected 0 newly inserted on duplicate batch, got %d", inserted)
	}

	count, err := fs.Count(userKey)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected count 10, got %d", count)
	}
}

func TestFingerprintExisting(t *testing.T) {
	st := openTestStore(t)
	fs := st.Fingerprints()
	userKey := testutil.UserKey(2)
	stored := testutil.FingerprintBatch(100, 5)

	if _, err := fs.InsertBatch(userKey, stored); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	probe := append([]string{}, stored[:2]...)
	probe = append(probe, testutil.FingerprintBatch(200, 3)...)

	existing, err := fs.Existing(userKey, probe)
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("expected 2 existing fingerprints, got %d", len(existing))
	}
	for _, fp := range stored[:2] {
		if _, ok := existing[fp]; !ok {
			t.Fatalf("expected %s to be reported existing", fp)
		}
	}
}

func TestFingerprintPurgeUser(t *testing.T) {
	st := openTestStore(t)
	fs := st.Fingerprints()
	userKey := testutil.UserKey(3)

	if _, err := fs.InsertBatch(userKey, testutil.FingerprintBatch(300, 4)); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	n, err := fs.PurgeUser(userKey)
	if err != nil {
		t.Fatalf("purge user: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 rows purged, got %d", n)
	}

	count, err := fs.Count(userKey)
	if err != nil {
		t.Fatalf("count after purge: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 remaining after purge, got %d", count)
	}
}

func TestFingerprintIsolationBetweenUsers(t *testing.T) {
	st := openTestStore(t)
	fs := st.Fingerprints()
	shared := testutil.Fingerprint(999)

	if _, err := fs.InsertBatch(testutil.UserKey(10), []string{shared}); err != nil {
		t.Fatalf("insert for user 10: %v", err)
	}
	if _, err := fs.InsertBatch(testutil.UserKey(11), []string{shared}); err != nil {
		t.Fatalf("insert for user 11: %v", err)
	}

	if _, err := fs.PurgeUser(testutil.UserKey(10)); err != nil {
		t.Fatalf("purge user 10: %v", err)
	}

	count, err := fs.Count(testutil.UserKey(11))
	if err != nil {
		t.Fatalf("count user 11: %v", err)
	}
	if count != 1 {
		t.Fatalf("purging user 10 must not affect user 11, got count %d", count)
	}
}
