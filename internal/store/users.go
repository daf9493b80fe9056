package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrUserNotFound is returned by Lookup when the user key is not present
// in the whitelist table.
var ErrUserNotFound = errors.New("store: user not found")

// User is a row of the user-key whitelist. The core engine only ever
// reads this table. No frkbsyncd command writes it: `frkbsyncd keys`
// manages the keychain allowlist in internal/vault, which the engine does
// not consult.
type User struct {
	UserKey          string
	IsActive         bool
	FingerprintLimit int
	TotalRequests    int64
	TotalSyncs       int64
	CreatedAt        time.Time
}

// UserStore manages the external whitelist of user keys (§6 "persisted
// state layout"). It is read-mostly from the sync engine's perspective;
// admin operations go through Upsert/Deactivate.
type UserStore struct {
	s *Store
}

// Users returns a UserStore bound to s.
func (s *Store) Users() *UserStore {
	return &UserStore{s: s}
}

// Lookup fetches a user row by key. It returns ErrUserNotFound if no
// such key is whitelisted.
func (u *UserStore) Lookup(userKey string) (*User, error) {
	query, args, err := sq.Select(
		"user_key", "is_active", "fingerprint_limit",
		"total_requests", "total_syncs", "created_at",
	).From("users").Where(sq.Eq{"user_key": userKey}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build lookup query: %w", err)
	}

	var rec User
	var createdAt string
	row := u.s.reader.QueryRow(query, args...)
	err = row.Scan(&rec.UserKey, &rec.IsActive, &rec.FingerprintLimit,
		&rec.TotalRequests, &rec.TotalSyncs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup user: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

// Upsert creates or updates a whitelist entry, granting or adjusting a
// user's fingerprint limit. No frkbsyncd command calls it.
func (u *UserStore) Upsert(userKey string, isActive bool, fingerprintLimit int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := u.s.writer.Exec(`
		INSERT INTO users (user_key, is_active, fingerprint_limit, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_key) DO UPDATE SET
			is_active = excluded.is_active,
			fingerprint_limit = excluded.fingerprint_limit
	`, userKey, isActive, fingerprintLimit, now)
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	return nil
}

// Deactivate flips is_active to false without deleting the row, so
// historical counters survive a revoke.
func (u *UserStore) Deactivate(userKey string) error {
	result, err := u.s.writer.Exec(
		"UPDATE users SET is_active = 0 WHERE user_key = ?", userKey,
	)
	if err != nil {
		return fmt.Errorf("store: deactivate user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: deactivate rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementUsage bumps the request and sync counters for userKey by the
// given deltas. Either delta may be zero.
func (u *UserStore) IncrementUsage(userKey string, requests, syncs int64) error {
	_, err := u.s.writer.Exec(`
		UPDATE users SET total_requests = total_requests + ?, total_syncs = total_syncs + ?
		WHERE user_key = ?
	`, requests, syncs, userKey)
	if err != nil {
		return fmt.Errorf("store: increment usage: %w", err)
	}
	return nil
}

// List returns every whitelisted user, ordered by key, for the admin CLI.
func (u *UserStore) List() ([]User, error) {
	rows, err := u.s.reader.Query(`
		SELECT user_key, is_active, fingerprint_limit, total_requests, total_syncs, created_at
		FROM users ORDER BY user_key
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var rec User
		var createdAt string
		if err := rows.Scan(&rec.UserKey, &rec.IsActive, &rec.FingerprintLimit,
			&rec.TotalRequests, &rec.TotalSyncs, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
