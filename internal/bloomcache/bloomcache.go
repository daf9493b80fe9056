// Package bloomcache implements the per-user Bloom filter cache (§4.4).
// A filter answers "definitely absent" with certainty and "possibly
// present" only as a hint — callers must re-verify a "possibly present"
// answer against the authoritative Fingerprint Store before acting on
// it.
package bloomcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// TargetFalsePositiveRate is the false-positive rate every newly built
// filter is sized for (§4.4).
const TargetFalsePositiveRate = 0.01

// MinCapacity is the floor applied to a filter's sizing regardless of
// how small the user's actual fingerprint count is (§4.4): small users
// still get a filter sized for future growth instead of constant
// rebuilds.
const MinCapacity = 50000

// CapacityGrowthFactor inflates the sizing estimate above the current
// count so normal growth doesn't immediately force a rebuild.
const CapacityGrowthFactor = 1.2

// FingerprintSource supplies the authoritative fingerprint set used to
// build or rebuild a filter from scratch.
type FingerprintSource interface {
	All(userKey string) ([]string, error)
}

// MetaPersistence reads and writes the opaque serialized filter blob
// (§4.4.1). The blob is never parsed outside this package.
type MetaPersistence interface {
	GetBloomFilter(userKey string) ([]byte, error)
	SetBloomFilter(userKey string, blob []byte) error
}

// entry is one user's in-memory filter plus the count it was built for.
type entry struct {
	mu         sync.Mutex
	filter     *bloom.BloomFilter
	builtCount int
}

// Cache is the process-local table of per-user Bloom filters. Filters
// are built lazily on the first MayContain/Stats call for a user (Add
// never builds one) and persisted
// through MetaPersistence so a process restart doesn't force an
// immediate rebuild storm.
type Cache struct {
	source MetaPersistence
	store  FingerprintSource

	mu      sync.Mutex
	entries map[string]*entry

	rebuildLimiter *rate.Limiter
}

// New creates a Cache. rebuildsPerSecond bounds how often a full
// from-scratch rebuild (as opposed to an incremental add) may happen
// process-wide, so a burst of cache misses across many users can't
// hammer the Fingerprint Store all at once.
func New(meta MetaPersistence, fingerprints FingerprintSource, rebuildsPerSecond float64) *Cache {
	if rebuildsPerSecond <= 0 {
		rebuildsPerSecond = 5
	}
	return &Cache{
		source:         meta,
		store:          fingerprints,
		entries:        make(map[string]*entry),
		rebuildLimiter: rate.NewLimiter(rate.Limit(rebuildsPerSecond), 1),
	}
}

func sizeFor(count int) uint {
	estimate := uint(float64(count) * CapacityGrowthFactor)
	if estimate < MinCapacity {
		return MinCapacity
	}
	return estimate
}

func (c *Cache) entryFor(userKey string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userKey]
	if !ok {
		e = &entry{}
		c.entries[userKey] = e
	}
	return e
}

// load populates e.filter, trying the persisted blob first and falling
// back to a full rebuild from the Fingerprint Store on a missing or
// corrupt blob (§4.4.1).
func (c *Cache) load(userKey string, e *entry) error {
	if e.filter != nil {
		return nil
	}

	blob, err := c.source.GetBloomFilter(userKey)
	if err == nil && len(blob) > 0 {
		f := &bloom.BloomFilter{}
		if unmarshalErr := f.UnmarshalBinary(blob); unmarshalErr == nil {
			e.filter = f
			return nil
		}
		log.Warn().Str("user_key", userKey).Msg("bloomcache: discarding corrupt persisted filter, rebuilding")
	}

	return c.rebuild(userKey, e)
}

// rebuild constructs a fresh filter from the authoritative fingerprint
// set and persists it. Throttled process-wide by rebuildLimiter.
func (c *Cache) rebuild(userKey string, e *entry) error {
	if !c.rebuildLimiter.Allow() {
		_ = c.rebuildLimiter.Wait(context.Background())
	}

	fps, err := c.store.All(userKey)
	if err != nil {
		return fmt.Errorf("bloomcache: load fingerprints for rebuild: %w", err)
	}

	f := bloom.NewWithEstimates(sizeFor(len(fps)), TargetFalsePositiveRate)
	for _, fp := range fps {
		f.AddString(fp)
	}

	e.filter = f
	e.builtCount = len(fps)
	return c.persist(userKey, e)
}

func (c *Cache) persist(userKey string, e *entry) error {
	blob, err := e.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("bloomcache: marshal filter: %w", err)
	}
	if err := c.source.SetBloomFilter(userKey, blob); err != nil {
		return fmt.Errorf("bloomcache: persist filter: %w", err)
	}
	return nil
}

// MayContain reports whether fingerprint is possibly present in
// userKey's collection. false is a guarantee of absence; true must be
// re-verified against the Fingerprint Store before the caller treats it
// as a real membership answer.
func (c *Cache) MayContain(userKey, fingerprint string) (bool, error) {
	e := c.entryFor(userKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.load(userKey, e); err != nil {
		return false, err
	}
	return e.filter.TestString(fingerprint), nil
}

// Add incrementally adds newFingerprints to userKey's filter and
// persists the result. If the filter was never loaded in this process,
// Add is a no-op: the next MayContain call will lazily rebuild from the
// now-current Fingerprint Store, which already reflects these writes.
func (c *Cache) Add(userKey string, newFingerprints []string) error {
	e := c.entryFor(userKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.filter == nil {
		return nil
	}
	for _, fp := range newFingerprints {
		e.filter.AddString(fp)
	}
	e.builtCount += len(newFingerprints)
	return c.persist(userKey, e)
}

// Len reports how many users currently have an entry in this process's
// table, including entries whose filter has not been built yet.
// ResidentUserKeys lists only the users with a built filter.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports diagnostic detail for userKey's filter — size, hash-
// function count, element count, estimated false-positive rate, and
// memory footprint (§4.4's fifth bloom-cache operation). Building the
// filter first if it isn't already resident, the same as MayContain.
type Stats struct {
	Size                       uint
	NumHashFunctions           uint
	ElementCount               int
	EstimatedFalsePositiveRate float64
	MemoryBytes                int
}

func (c *Cache) Stats(userKey string) (Stats, error) {
	e := c.entryFor(userKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.load(userKey, e); err != nil {
		return Stats{}, err
	}

	return Stats{
		Size:                       e.filter.Cap(),
		NumHashFunctions:           e.filter.K(),
		ElementCount:               e.builtCount,
		EstimatedFalsePositiveRate: bloom.EstimateFalsePositiveRate(e.filter.Cap(), e.filter.K(), uint(e.builtCount)),
		MemoryBytes:                int(e.filter.Cap() / 8),
	}, nil
}

// ResidentUserKeys returns every userKey with a filter currently built in
// this process, for callers (getServiceStats) that need to aggregate
// Stats() across the whole resident set without tracking keys themselves.
func (c *Cache) ResidentUserKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for userKey, e := range c.entries {
		e.mu.Lock()
		built := e.filter != nil
		e.mu.Unlock()
		if built {
			keys = append(keys, userKey)
		}
	}
	return keys
}

// Invalidate drops the in-memory filter and clears the persisted blob
// for userKey (§4.6.6 resetUserData: a wiped collection must not leave a
// stale filter claiming membership for fingerprints that no longer
// exist).
func (c *Cache) Invalidate(userKey string) error {
	c.mu.Lock()
	delete(c.entries, userKey)
	c.mu.Unlock()

	return c.source.SetBloomFilter(userKey, nil)
}
