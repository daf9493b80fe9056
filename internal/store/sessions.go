package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrSessionNotFound is returned by Find when no non-expired session
// matches the given id (I4: expired sessions are invisible to lookups
// even before they are swept).
var ErrSessionNotFound = errors.New("store: diff session not found")

const fingerprintSeparator = ","

// DiffSession mirrors one row of diff_sessions (§4.6.2 bidirectionalDiff,
// §4.6.4 pullDiffPage).
type DiffSession struct {
	SessionID             string
	UserKey               string
	MissingInClient       []string
	MissingInServer       []string
	SortedMissingInClient []string
	TotalClient           int
	TotalServer           int
	CreatedAt             time.Time
	ExpiresAt             time.Time
}

// SessionStore manages diff sessions (§3 "diff session", I4).
type SessionStore struct {
	s *Store
}

// Sessions returns a SessionStore bound to s.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{s: s}
}

// Create persists a new diff session with the given TTL, returning the
// stored record. sessionID is generated by the caller (syncengine uses
// the `diff_<timestamp>_<random>` token format).
func (sess *SessionStore) Create(sessionID, userKey string, missingInClient, missingInServer []string, totalClient, totalServer int, ttl time.Duration, now time.Time) (*DiffSession, error) {
	expiresAt := now.Add(ttl)
	_, err := sess.s.writer.Exec(`
		INSERT INTO diff_sessions
			(session_id, user_key, missing_in_client, missing_in_server,
			 sorted_missing_in_client, total_client, total_server, created_at, expires_at)
		VALUES (?, ?, ?, ?, '', ?, ?, ?, ?)
	`, sessionID, userKey, joinFingerprints(missingInClient), joinFingerprints(missingInServer),
		totalClient, totalServer, now.UTC().Format(time.RFC3339), expiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: create diff session: %w", err)
	}

	return &DiffSession{
		SessionID:       sessionID,
		UserKey:         userKey,
		MissingInClient: missingInClient,
		MissingInServer: missingInServer,
		TotalClient:     totalClient,
		TotalServer:     totalServer,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
	}, nil
}

// Find looks up a non-expired session by id (I4). An expired or
// nonexistent session both return ErrSessionNotFound: pullDiffPage
// (§4.6.4) does not distinguish the two cases to the caller.
func (sess *SessionStore) Find(sessionID string, now time.Time) (*DiffSession, error) {
	query, args, err := sq.Select(
		"session_id", "user_key", "missing_in_client", "missing_in_server",
		"sorted_missing_in_client", "total_client", "total_server", "created_at", "expires_at",
	).From("diff_sessions").
		Where(sq.Eq{"session_id": sessionID}).
		Where(sq.Gt{"expires_at": now.UTC().Format(time.RFC3339)}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build find session query: %w", err)
	}

	row := sess.s.reader.QueryRow(query, args...)
	return scanSession(row)
}

// RecordSortedView persists the stable-sorted ordering of
// MissingInClient the first time pullDiffPage computes it, so later
// pages reuse the same order (§4.6.4 pagination stability) instead of
// resorting per page. Best-effort: a failure here does not fail the
// page request, since the caller already has the sorted slice in hand.
func (sess *SessionStore) RecordSortedView(sessionID string, sorted []string) error {
	_, err := sess.s.writer.Exec(
		"UPDATE diff_sessions SET sorted_missing_in_client = ? WHERE session_id = ?",
		joinFingerprints(sorted), sessionID,
	)
	if err != nil {
		return fmt.Errorf("store: record sorted view: %w", err)
	}
	return nil
}

// CountActive returns the number of diff sessions that have not yet
// expired as of now, for getServiceStats (§4.6.7, §4.6.9).
func (sess *SessionStore) CountActive(now time.Time) (int, error) {
	var count int
	err := sess.s.reader.QueryRow(
		"SELECT COUNT(*) FROM diff_sessions WHERE expires_at > ?",
		now.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count active sessions: %w", err)
	}
	return count, nil
}

// DeleteByUser removes every diff session belonging to userKey
// (§4.6.6 resetUserData: stale sessions referencing a wiped collection
// must not survive the reset).
func (sess *SessionStore) DeleteByUser(userKey string) error {
	_, err := sess.s.writer.Exec("DELETE FROM diff_sessions WHERE user_key = ?", userKey)
	if err != nil {
		return fmt.Errorf("store: delete sessions by user: %w", err)
	}
	return nil
}

func scanSession(row *sql.Row) (*DiffSession, error) {
	var rec DiffSession
	var missingClient, missingServer, sortedClient, createdAt, expiresAt string
	err := row.Scan(&rec.SessionID, &rec.UserKey, &missingClient, &missingServer,
		&sortedClient, &rec.TotalClient, &rec.TotalServer, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan diff session: %w", err)
	}
	rec.MissingInClient = splitFingerprints(missingClient)
	rec.MissingInServer = splitFingerprints(missingServer)
	rec.SortedMissingInClient = splitFingerprints(sortedClient)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return &rec, nil
}

func joinFingerprints(fps []string) string {
	return strings.Join(fps, fingerprintSeparator)
}

func splitFingerprints(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, fingerprintSeparator)
}
