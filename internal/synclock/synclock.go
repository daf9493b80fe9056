// Package synclock implements the per-user sync lock table (§3
// "syncLocks", §5 concurrency model). Exactly one sync-mutating
// operation may run per user at a time; a caller that can't acquire the
// lock is told so immediately rather than blocking.
package synclock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ForceReclaimAfter is how long a lock may be held before a new
// acquisition attempt is allowed to force-reclaim it (§5: guards
// against a crashed holder wedging a user's sync path forever).
const ForceReclaimAfter = 5 * time.Minute

// SweepStaleAfter is the staleness threshold the periodic maintenance
// sweep uses (§4.6.8), distinct from ForceReclaimAfter: a lock is given
// twice as long to sit idle before the background sweep removes it as it
// is before a new acquisition attempt is allowed to reclaim it.
const SweepStaleAfter = 10 * time.Minute

// lockEntry is the per-user metadata held while a lock is outstanding,
// mirroring the {operation, startTime, lockId} shape of a per-provider
// circuit breaker entry, re-keyed by user.
type lockEntry struct {
	lockID    string
	operation string
	startedAt time.Time
}

// Held describes an outstanding lock for Snapshot/inspection endpoints.
type Held struct {
	UserKey   string
	LockID    string
	Operation string
	StartedAt time.Time
}

// Registry is a thread-safe table of per-user sync locks, guarded by a
// single mutex with per-entry metadata — the same shape the provider
// circuit breaker registry uses, keyed by userKey instead of provider.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*lockEntry)}
}

// TryAcquire attempts to take the lock for userKey for the named
// operation. It returns the lockID and true on success. On failure it
// returns the current holder's operation and false: the caller maps
// that straight to SYNC_IN_PROGRESS (§7) without blocking.
//
// A lock older than ForceReclaimAfter is treated as abandoned and is
// silently reclaimed by the new caller, per §5's stated policy.
func (r *Registry) TryAcquire(userKey, operation string) (lockID string, ok bool, heldOperation string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, found := r.locks[userKey]; found {
		if time.Since(existing.startedAt) < ForceReclaimAfter {
			return "", false, existing.operation
		}
		// Abandoned lock: fall through and reclaim it below.
	}

	id := uuid.NewString()
	r.locks[userKey] = &lockEntry{
		lockID:    id,
		operation: operation,
		startedAt: time.Now(),
	}
	return id, true, ""
}

// Release frees the lock for userKey if lockID matches the current
// holder. A mismatched lockID (the caller's lock was force-reclaimed
// out from under it) is a no-op: releasing a lock you no longer hold
// must never free someone else's.
func (r *Registry) Release(userKey, lockID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, found := r.locks[userKey]; found && existing.lockID == lockID {
		delete(r.locks, userKey)
	}
}

// ForceRelease unconditionally frees the lock for userKey, regardless of
// holder. Used by the admin force-unlock endpoint (§6).
func (r *Registry) ForceRelease(userKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.locks[userKey]; found {
		delete(r.locks, userKey)
		return true
	}
	return false
}

// SweepAbandoned removes every lock older than SweepStaleAfter. The
// periodic maintenance task (§4.6.8) runs this every 5 minutes so
// abandoned locks don't linger in the table between acquisition
// attempts even when no one tries that user again.
func (r *Registry) SweepAbandoned() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userKey, entry := range r.locks {
		if time.Since(entry.startedAt) >= SweepStaleAfter {
			delete(r.locks, userKey)
			removed++
		}
	}
	return removed
}

// Snapshot returns every currently-held lock, for getServiceStats
// (§4.6.7) and the Prometheus sync-lock gauge.
func (r *Registry) Snapshot() []Held {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Held, 0, len(r.locks))
	for userKey, entry := range r.locks {
		out = append(out, Held{
			UserKey:   userKey,
			LockID:    entry.lockID,
			Operation: entry.operation,
			StartedAt: entry.startedAt,
		})
	}
	return out
}

// Len reports the number of currently-held locks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
