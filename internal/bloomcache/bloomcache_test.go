package bloomcache_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/allaspectsdev/frkbsync/internal/bloomcache"
	"github.com/allaspectsdev/frkbsync/internal/testutil"
)

type fakeMeta struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{blobs: make(map[string][]byte)}
}

func (f *fakeMeta) GetBloomFilter(userKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.blobs[userKey]
	if !ok {
		return nil, errors.New("not found")
	}
	return blob, nil
}

func (f *fakeMeta) SetBloomFilter(userKey string, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[userKey] = blob
	return nil
}

type fakeFingerprints struct {
	mu   sync.Mutex
	sets map[string][]string
}

func newFakeFingerprints() *fakeFingerprints {
	return &fakeFingerprints{sets: make(map[string][]string)}
}

func (f *fakeFingerprints) All(userKey string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[userKey], nil
}

func TestMayContainRebuildsLazilyFromSource(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(1)
	stored := testutil.FingerprintBatch(1, 20)
	fps.sets[userKey] = stored

	cache := bloomcache.New(meta, fps, 1000)

	present, err := cache.MayContain(userKey, stored[0])
	if err != nil {
		t.Fatalf("may contain: %v", err)
	}
	if !present {
		t.Fatalf("expected stored fingerprint to test present")
	}

	absent, err := cache.MayContain(userKey, testutil.Fingerprint(9999))
	if err != nil {
		t.Fatalf("may contain: %v", err)
	}
	if absent {
		t.Fatalf("expected fingerprint never added to test absent (false positives are possible but vanishingly unlikely for this sizing)")
	}
}

func TestMayContainPersistsBuiltFilter(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(2)
	fps.sets[userKey] = testutil.FingerprintBatch(1, 5)

	cache := bloomcache.New(meta, fps, 1000)
	if _, err := cache.MayContain(userKey, testutil.Fingerprint(1)); err != nil {
		t.Fatalf("may contain: %v", err)
	}

	blob, err := meta.GetBloomFilter(userKey)
	if err != nil {
		t.Fatalf("expected a persisted blob after first build: %v", err)
	}
	if len(blob) == 0 {
		t.Fatalf("expected non-empty persisted filter blob")
	}
}

func TestAddIsNoOpWhenNotYetLoaded(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(3)

	cache := bloomcache.New(meta, fps, 1000)
	if err := cache.Add(userKey, testutil.FingerprintBatch(1, 3)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := meta.GetBloomFilter(userKey); err == nil {
		t.Fatalf("expected no persisted blob when filter was never loaded")
	}
}

func TestAddUpdatesLoadedFilter(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(4)
	fps.sets[userKey] = testutil.FingerprintBatch(1, 5)

	cache := bloomcache.New(meta, fps, 1000)
	if _, err := cache.MayContain(userKey, testutil.Fingerprint(1)); err != nil {
		t.Fatalf("may contain: %v", err)
	}

	newFP := testutil.Fingerprint(500)
	if err := cache.Add(userKey, []string{newFP}); err != nil {
		t.Fatalf("add: %v", err)
	}

	present, err := cache.MayContain(userKey, newFP)
	if err != nil {
		t.Fatalf("may contain: %v", err)
	}
	if !present {
		t.Fatalf("expected newly added fingerprint to test present")
	}
}

func TestInvalidateClearsFilterAndBlob(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(5)
	fps.sets[userKey] = testutil.FingerprintBatch(1, 5)

	cache := bloomcache.New(meta, fps, 1000)
	if _, err := cache.MayContain(userKey, testutil.Fingerprint(1)); err != nil {
		t.Fatalf("may contain: %v", err)
	}
	if err := cache.Invalidate(userKey); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	blob, _ := meta.GetBloomFilter(userKey)
	if len(blob) != 0 {
		t.Fatalf("expected cleared blob after invalidate, got %d bytes", len(blob))
	}
}

func TestStatsReportsSizeAndElementCount(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(7)
	stored := testutil.FingerprintBatch(1, 30)
	fps.sets[userKey] = stored

	cache := bloomcache.New(meta, fps, 1000)
	stats, err := cache.Stats(userKey)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ElementCount != len(stored) {
		t.Fatalf("expected element count %d, got %d", len(stored), stats.ElementCount)
	}
	if stats.Size < bloomcache.MinCapacity {
		t.Fatalf("expected size to respect the capacity floor, got %d", stats.Size)
	}
	if stats.NumHashFunctions == 0 {
		t.Fatalf("expected a non-zero hash function count")
	}
	if stats.MemoryBytes == 0 {
		t.Fatalf("expected a non-zero memory footprint")
	}
	if stats.EstimatedFalsePositiveRate <= 0 {
		t.Fatalf("expected a positive estimated false-positive rate")
	}
}

func TestResidentUserKeysTracksBuiltFiltersOnly(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(8)
	fps.sets[userKey] = testutil.FingerprintBatch(1, 5)

	cache := bloomcache.New(meta, fps, 1000)
	if keys := cache.ResidentUserKeys(); len(keys) != 0 {
		t.Fatalf("expected no resident keys before any filter is built, got %v", keys)
	}

	if _, err := cache.MayContain(userKey, testutil.Fingerprint(1)); err != nil {
		t.Fatalf("may contain: %v", err)
	}

	keys := cache.ResidentUserKeys()
	if len(keys) != 1 || keys[0] != userKey {
		t.Fatalf("expected resident keys to contain %q, got %v", userKey, keys)
	}
}

func TestMayContainFallsBackOnCorruptBlob(t *testing.T) {
	meta := newFakeMeta()
	fps := newFakeFingerprints()
	userKey := testutil.UserKey(6)
	stored := testutil.FingerprintBatch(1, 5)
	fps.sets[userKey] = stored
	meta.blobs[userKey] = []byte("not a valid bloom filter blob")

	cache := bloomcache.New(meta, fps, 1000)
	present, err := cache.MayContain(userKey, stored[0])
	if err != nil {
		t.Fatalf("expected corrupt blob to trigger a rebuild, not an error: %v", err)
	}
	if !present {
		t.Fatalf("expected rebuilt filter to contain stored fingerprint")
	}
}
