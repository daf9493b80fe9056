package syncengine_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/allaspectsdev/frkbsync/internal/fingerprint"
	"github.com/allaspectsdev/frkbsync/internal/synclock"
	"github.com/allaspectsdev/frkbsync/internal/syncengine"
	"github.com/allaspectsdev/frkbsync/internal/testutil"
)

func TestBatchAddFingerprintsInsertsNewAndCountsDuplicates(t *testing.T) {
	eng, st := newTestEngine(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 0)

	fresh := testutil.FingerprintBatch(1, 5)
	result, err := eng.BatchAddFingerprints(userKey, fresh)
	if err != nil {
		t.Fatalf("batch add: %v", err)
	}
	if result.AddedCount != 5 || result.DuplicateCount != 0 {
		t.Fatalf("expected 5 added, 0 duplicates, got %+v", result)
	}

	mixed := append(append([]string{}, fresh[:2]...), testutil.FingerprintBatch(100, 2)...)
	result2, err := eng.BatchAddFingerprints(userKey, mixed)
	if err != nil {
		t.Fatalf("batch add: %v", err)
	}
	if result2.AddedCount != 2 || result2.DuplicateCount != 2 {
		t.Fatalf("expected 2 added, 2 duplicates, got %+v", result2)
	}

	meta, err := st.Meta().Get(userKey)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.TotalCount != 7 {
		t.Fatalf("expected total count 7 after both adds, got %d", meta.TotalCount)
	}
	allFPs, err := st.Fingerprints().All(userKey)
	if err != nil {
		t.Fatalf("all fingerprints: %v", err)
	}
	if meta.CollectionHash != fingerprint.CollectionHash(allFPs) {
		t.Fatalf("expected meta hash to reflect live storage")
	}
	if meta.TotalSyncs != 2 {
		t.Fatalf("expected 2 recorded syncs, got %d", meta.TotalSyncs)
	}
}

func TestBatchAddFingerprintsRejectsOversizedBatch(t *testing.T) {
	cfg := syncengine.DefaultConfig()
	cfg.BatchSize = 3
	eng, st := newTestEngineWithConfig(t, cfg)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 0)

	_, err := eng.BatchAddFingerprints(userKey, testutil.FingerprintBatch(1, 4))
	if err == nil {
		t.Fatalf("expected rejection of oversized batch")
	}
}

func TestBatchAddFingerprintsRejectsMalformedEntry(t *testing.T) {
	eng, st := newTestEngine(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 0)

	_, err := eng.BatchAddFingerprints(userKey, []string{"not-hex"})
	if err == nil {
		t.Fatalf("expected rejection of malformed fingerprint")
	}
}

func TestBatchAddFingerprintsRejectsInBatchDuplicate(t *testing.T) {
	eng, st := newTestEngine(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 0)

	fp := testutil.Fingerprint(1)
	_, err := eng.BatchAddFingerprints(userKey, []string{fp, fp})
	if err == nil {
		t.Fatalf("expected rejection of in-batch duplicate")
	}
}

func TestBatchAddFingerprintsEnforcesLimit(t *testing.T) {
	eng, st := newTestEngine(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 3)

	_, err := eng.BatchAddFingerprints(userKey, testutil.FingerprintBatch(1, 4))
	if err == nil {
		t.Fatalf("expected FINGERPRINT_LIMIT_EXCEEDED when batch would exceed the limit")
	}
}

func TestBatchAddFingerprintsFailsWhenSyncAlreadyInProgress(t *testing.T) {
	eng, st := newTestEngine(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 0)

	locks := synclock.NewRegistry()
	_, ok, _ := locks.TryAcquire(fingerprint.Normalize(userKey), "resetUserData")
	if !ok {
		t.Fatalf("expected lock acquisition to succeed")
	}
	engWithLock := syncengine.New(syncengine.DefaultConfig(), st, mustCache(t), mustBloom(st), locks, zerolog.Nop(), nil)

	_, err := engWithLock.BatchAddFingerprints(userKey, testutil.FingerprintBatch(1, 1))
	if err == nil {
		t.Fatalf("expected SYNC_IN_PROGRESS when another operation holds the lock")
	}
}

func TestBatchAddFingerprintsReleasesLockOnValidationFailure(t *testing.T) {
	eng, st := newTestEngine(t)
	userKey := testutil.UserKey(1)
	mustRegisterUser(t, st, userKey, 0)

	// A validation failure happens before the lock is acquired, so a
	// follow-up add must still succeed.
	if _, err := eng.BatchAddFingerprints(userKey, []string{"bad"}); err == nil {
		t.Fatalf("expected validation failure")
	}

	result, err := eng.BatchAddFingerprints(userKey, testutil.FingerprintBatch(1, 1))
	if err != nil {
		t.Fatalf("expected subsequent add to succeed: %v", err)
	}
	if result.AddedCount != 1 {
		t.Fatalf("expected 1 added, got %d", result.AddedCount)
	}
}
