// Package syncengine implements the eight core synchronization
// operations (§4.6) and owns the per-user sync-lock table. It is the
// orchestrator: every other internal package (store, ephemeralcache,
// bloomcache, synclock, fingerprint) is a dependency wired in here,
// never a global.
package syncengine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/allaspectsdev/frkbsync/internal/bloomcache"
	"github.com/allaspectsdev/frkbsync/internal/ephemeralcache"
	"github.com/allaspectsdev/frkbsync/internal/fingerprint"
	"github.com/allaspectsdev/frkbsync/internal/store"
	"github.com/allaspectsdev/frkbsync/internal/synclock"
	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

// emptyCollectionHash is I2's empty-set case, computed the same way as
// the non-empty case rather than hard-coded as the SHA-256("") literal.
var emptyCollectionHash = fingerprint.CollectionHash(nil)

// Engine is the Sync Engine (§2, §4.6). It is safe for concurrent use:
// locking discipline for write-path operations is handled internally
// via the Locks registry.
type Engine struct {
	cfg    Config
	store  *store.Store
	cache  *ephemeralcache.Cache
	bloom  *bloomcache.Cache
	locks  *synclock.Registry
	logger zerolog.Logger
	now    func() time.Time
}

// New wires an Engine from its storage and cache dependencies. now lets
// tests supply a fixed clock; pass nil to use time.Now.
func New(cfg Config, st *store.Store, cache *ephemeralcache.Cache, bloom *bloomcache.Cache, locks *synclock.Registry, logger zerolog.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:    cfg,
		store:  st,
		cache:  cache,
		bloom:  bloom,
		locks:  locks,
		logger: logger,
		now:    now,
	}
}

// resolveActiveUser looks up userKey in the whitelist and fails fast if
// it is missing or deactivated. Canonicalizes to lowercase per §3.
func (e *Engine) resolveActiveUser(userKey string) (*store.User, string, error) {
	canon := fingerprint.Normalize(userKey)
	user, err := e.store.Users().Lookup(canon)
	if err != nil {
		if err == store.ErrUserNotFound {
			return nil, canon, syncerr.New(syncerr.KindUserKeyNotFound, "user key is not registered")
		}
		return nil, canon, syncerr.Wrap(err, "failed to look up user")
	}
	if !user.IsActive {
		return nil, canon, syncerr.New(syncerr.KindUserKeyInactive, "user key has been deactivated")
	}
	return user, canon, nil
}

// clearUserCache invalidates every ephemeral-cache entry for userKey,
// per §4.5's "all writers MUST call clearUserCache" rule.
func (e *Engine) clearUserCache(userKey string) {
	e.cache.Invalidate(ephemeralcache.UserMetaKey(userKey))
	e.cache.Invalidate(ephemeralcache.CollectionHashKey(userKey))
}

// refreshMeta recomputes totalCount and collectionHash against live
// storage (§4.2 refresh) and clears the cache so a subsequent check
// cannot observe a stale snapshot.
func (e *Engine) refreshMeta(userKey string) (*store.Meta, error) {
	fps, err := e.store.Fingerprints().All(userKey)
	if err != nil {
		return nil, fmt.Errorf("refresh meta: enumerate fingerprints: %w", err)
	}
	hash := fingerprint.CollectionHash(fps)

	if _, err := e.store.Meta().GetOrCreate(userKey, emptyCollectionHash); err != nil {
		return nil, fmt.Errorf("refresh meta: get or create: %w", err)
	}
	if err := e.store.Meta().Refresh(userKey, len(fps), hash); err != nil {
		return nil, fmt.Errorf("refresh meta: %w", err)
	}
	e.clearUserCache(userKey)

	return e.store.Meta().Get(userKey)
}

// getCachedMeta returns the meta row for userKey, serving from the
// ephemeral cache when warm.
func (e *Engine) getCachedMeta(userKey string) (*store.Meta, error) {
	key := ephemeralcache.UserMetaKey(userKey)
	if v, ok := e.cache.Get(key); ok {
		if meta, ok := v.(*store.Meta); ok {
			return meta, nil
		}
	}

	meta, err := e.store.Meta().GetOrCreate(userKey, emptyCollectionHash)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, meta, time.Hour)
	return meta, nil
}
