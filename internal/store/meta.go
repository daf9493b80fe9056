package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrMetaNotFound is returned by Get when no meta row exists yet for a
// user (the user has never synced).
var ErrMetaNotFound = errors.New("store: user meta not found")

// Meta mirrors one row of user_meta: the cached collection hash and
// sync bookkeeping the engine's `check` operation (§4.6.1) reads without
// touching the (much larger) fingerprints table.
type Meta struct {
	UserKey            string
	TotalCount         int
	CollectionHash     string
	LastSyncAt         *time.Time
	TotalSyncs         int64
	LastSyncAdded      int
	LastSyncDurationMs int64
	BloomFilter        []byte
}

// MetaStore manages the per-user UserMeta cache row (§3, §4.2.1).
type MetaStore struct {
	s *Store
}

// Meta returns a MetaStore bound to s.
func (s *Store) Meta() *MetaStore {
	return &MetaStore{s: s}
}

// Get fetches the meta row for userKey, or ErrMetaNotFound if the user
// has never synced.
func (m *MetaStore) Get(userKey string) (*Meta, error) {
	row := m.s.reader.QueryRow(`
		SELECT user_key, total_count, collection_hash, last_sync_at,
		       total_syncs, last_sync_added, last_sync_duration_ms, bloom_filter
		FROM user_meta WHERE user_key = ?
	`, userKey)
	return scanMeta(row)
}

// GetOrCreate fetches the meta row for userKey, inserting a zero-value
// row (empty-set collection hash) if one does not exist yet. This is
// the entry point `check` (§4.6.1) and `batchAddFingerprints` (§4.6.5)
// use so a first-ever sync doesn't need a special case.
func (m *MetaStore) GetOrCreate(userKey, emptyCollectionHash string) (*Meta, error) {
	meta, err := m.Get(userKey)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, ErrMetaNotFound) {
		return nil, err
	}

	_, err = m.s.writer.Exec(`
		INSERT INTO user_meta (user_key, total_count, collection_hash)
		VALUES (?, 0, ?)
		ON CONFLICT(user_key) DO NOTHING
	`, userKey, emptyCollectionHash)
	if err != nil {
		return nil, fmt.Errorf("store: create meta row: %w", err)
	}
	return m.Get(userKey)
}

// Refresh overwrites totalCount and collectionHash for userKey without
// touching sync-history counters. Used when the engine recomputes the
// hash from the authoritative fingerprint set (e.g. after a cache-miss
// rebuild) rather than after a sync.
func (m *MetaStore) Refresh(userKey string, totalCount int, collectionHash string) error {
	_, err := m.s.writer.Exec(`
		UPDATE user_meta SET total_count = ?, collection_hash = ? WHERE user_key = ?
	`, totalCount, collectionHash, userKey)
	if err != nil {
		return fmt.Errorf("store: refresh meta: %w", err)
	}
	return nil
}

// ApplyDelta records the outcome of a completed batchAddFingerprints
// call (§4.6.5): the new total count, the recomputed collection hash,
// and the sync bookkeeping fields, all in one statement so a reader
// never observes a partially-updated row.
func (m *MetaStore) ApplyDelta(userKey string, totalCount int, collectionHash string, added int, durationMs int64, syncedAt time.Time) error {
	_, err := m.s.writer.Exec(`
		UPDATE user_meta SET
			total_count = ?,
			collection_hash = ?,
			last_sync_at = ?,
			total_syncs = total_syncs + 1,
			last_sync_added = ?,
			last_sync_duration_ms = ?
		WHERE user_key = ?
	`, totalCount, collectionHash, syncedAt.UTC().Format(time.RFC3339), added, durationMs, userKey)
	if err != nil {
		return fmt.Errorf("store: apply meta delta: %w", err)
	}
	return nil
}

// GetBloomFilter returns the persisted serialized filter blob for
// userKey, or ErrMetaNotFound if the user has no meta row yet.
func (m *MetaStore) GetBloomFilter(userKey string) ([]byte, error) {
	meta, err := m.Get(userKey)
	if err != nil {
		return nil, err
	}
	return meta.BloomFilter, nil
}

// SetBloomFilter persists the serialized bloom filter blob for userKey
// (§4.4.1). A nil blob clears the cached filter, forcing a rebuild on
// next use.
func (m *MetaStore) SetBloomFilter(userKey string, blob []byte) error {
	_, err := m.s.writer.Exec(
		"UPDATE user_meta SET bloom_filter = ? WHERE user_key = ?", blob, userKey,
	)
	if err != nil {
		return fmt.Errorf("store: set bloom filter: %w", err)
	}
	return nil
}

// Delete removes the meta row for userKey (§4.6.6 resetUserData).
func (m *MetaStore) Delete(userKey string) error {
	_, err := m.s.writer.Exec("DELETE FROM user_meta WHERE user_key = ?", userKey)
	if err != nil {
		return fmt.Errorf("store: delete meta: %w", err)
	}
	return nil
}

func scanMeta(row *sql.Row) (*Meta, error) {
	var meta Meta
	var lastSyncAt sql.NullString
	var bloom []byte
	err := row.Scan(&meta.UserKey, &meta.TotalCount, &meta.CollectionHash, &lastSyncAt,
		&meta.TotalSyncs, &meta.LastSyncAdded, &meta.LastSyncDurationMs, &bloom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMetaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan meta: %w", err)
	}
	if lastSyncAt.Valid {
		t, parseErr := time.Parse(time.RFC3339, lastSyncAt.String)
		if parseErr == nil {
			meta.LastSyncAt = &t
		}
	}
	meta.BloomFilter = bloom
	return &meta, nil
}
