package store

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// FingerprintStore manages the per-user fingerprint set (§3 "fingerprint
// collection", I1/I3). Every write is an idempotent insert: a fingerprint
// already present for a user is never updated or removed through this
// store except via PurgeUser (§4.6.6 resetUserData).
type FingerprintStore struct {
	s *Store
}

// Fingerprints returns a FingerprintStore bound to s.
func (s *Store) Fingerprints() *FingerprintStore {
	return &FingerprintStore{s: s}
}

// Count returns the number of fingerprints currently stored for userKey.
func (f *FingerprintStore) Count(userKey string) (int, error) {
	var count int
	err := f.s.reader.QueryRow(
		"SELECT COUNT(*) FROM fingerprints WHERE user_key = ?", userKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count fingerprints: %w", err)
	}
	return count, nil
}

// Existing reports which of candidates are already stored for userKey.
// Used by batchAddFingerprints (§4.6.5) to compute the actually-new subset
// for its limit check, and by bidirectionalDiff (§4.6.2) to split a client
// batch into present and missing fingerprints.
func (f *FingerprintStore) Existing(userKey string, candidates []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(candidates) == 0 {
		return existing, nil
	}

	const batchSize = 500
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]

		query, args, err := sq.Select("fingerprint").From("fingerprints").
			Where(sq.Eq{"user_key": userKey, "fingerprint": chunk}).
			PlaceholderFormat(sq.Question).ToSql()
		if err != nil {
			return nil, fmt.Errorf("store: build existing query: %w", err)
		}

		rows, err := f.s.reader.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("store: query existing fingerprints: %w", err)
		}
		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				rows.Close()
				return nil, fmt.Errorf("store: scan existing fingerprint: %w", err)
			}
			existing[fp] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return existing, nil
}

// All returns every fingerprint stored for userKey, in no particular
// order. Used to rebuild the bloom filter cache, to recompute the
// collection hash, and to compute the server-side set for
// analyzeDifference (§4.6.3).
func (f *FingerprintStore) All(userKey string) ([]string, error) {
	rows, err := f.s.reader.Query(
		"SELECT fingerprint FROM fingerprints WHERE user_key = ?", userKey,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list fingerprints: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("store: scan fingerprint: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// InsertBatch idempotently inserts fingerprints for userKey, returning
// the count actually inserted (duplicates already present are silently
// skipped, per I1's monotonic-union semantics). Used by
// batchAddFingerprints (§4.6.5).
func (f *FingerprintStore) InsertBatch(userKey string, fingerprints []string) (inserted int, err error) {
	if len(fingerprints) == 0 {
		return 0, nil
	}

	tx, err := f.s.writer.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin insert batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.Prepare(`
		INSERT INTO fingerprints (user_key, fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_key, fingerprint) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare insert batch: %w", err)
	}
	defer stmt.Close()

	for _, fp := range fingerprints {
		result, err := stmt.Exec(userKey, fp, now, now)
		if err != nil {
			return inserted, fmt.Errorf("store: insert fingerprint: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("store: insert rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("store: commit insert batch: %w", err)
	}
	return inserted, nil
}

// PurgeUser deletes every fingerprint stored for userKey (§4.6.6
// resetUserData) and returns how many rows were removed.
func (f *FingerprintStore) PurgeUser(userKey string) (int64, error) {
	result, err := f.s.writer.Exec("DELETE FROM fingerprints WHERE user_key = ?", userKey)
	if err != nil {
		return 0, fmt.Errorf("store: purge user fingerprints: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: purge rows affected: %w", err)
	}
	return n, nil
}
