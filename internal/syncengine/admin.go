package syncengine

import "github.com/allaspectsdev/frkbsync/internal/synclock"

// Locks exposes the sync-lock registry for the admin force-unlock
// endpoint (§6 DELETE /lock/:userKey). The registry is already safe for
// concurrent use; this is a read/write accessor, not a copy.
func (e *Engine) Locks() *synclock.Registry {
	return e.locks
}

// ClearCache implements the admin cache-reset endpoint (§6 DELETE
// /cache/:userKey): an operational reset of the ephemeral cache and
// in-memory Bloom filter for one user, independent of resetUserData's
// destructive data wipe. The underlying fingerprints and meta row are
// untouched.
func (e *Engine) ClearCache(userKey string) error {
	_, canon, err := e.resolveActiveUser(userKey)
	if err != nil {
		return err
	}

	e.clearUserCache(canon)
	if e.bloom != nil {
		if bloomErr := e.bloom.Invalidate(canon); bloomErr != nil {
			return bloomErr
		}
	}
	return nil
}
