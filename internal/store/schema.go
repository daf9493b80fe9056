package store

// SQL schema constants for every table frkbsync persists.

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    user_key TEXT PRIMARY KEY,
    is_active INTEGER NOT NULL DEFAULT 1,
    fingerprint_limit INTEGER NOT NULL DEFAULT 200000,
    total_requests INTEGER NOT NULL DEFAULT 0,
    total_syncs INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
`

const schemaFingerprints = `
CREATE TABLE IF NOT EXISTS fingerprints (
    user_key TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_key, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_user ON fingerprints(user_key);
`

const schemaUserMeta = `
CREATE TABLE IF NOT EXISTS user_meta (
    user_key TEXT PRIMARY KEY,
    total_count INTEGER NOT NULL DEFAULT 0,
    collection_hash TEXT NOT NULL DEFAULT '',
    last_sync_at TEXT,
    total_syncs INTEGER NOT NULL DEFAULT 0,
    last_sync_added INTEGER NOT NULL DEFAULT 0,
    last_sync_duration_ms INTEGER NOT NULL DEFAULT 0,
    bloom_filter BLOB
);
`

const schemaDiffSessions = `
CREATE TABLE IF NOT EXISTS diff_sessions (
    session_id TEXT PRIMARY KEY,
    user_key TEXT NOT NULL,
    missing_in_client TEXT NOT NULL DEFAULT '',
    missing_in_server TEXT NOT NULL DEFAULT '',
    sorted_missing_in_client TEXT NOT NULL DEFAULT '',
    total_client INTEGER NOT NULL DEFAULT 0,
    total_server INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diff_sessions_user ON diff_sessions(user_key);
CREATE INDEX IF NOT EXISTS idx_diff_sessions_expires ON diff_sessions(expires_at);
`

const schemaResetAudit = `
CREATE TABLE IF NOT EXISTS reset_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_key TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    fingerprints_before INTEGER NOT NULL DEFAULT 0,
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reset_audit_user ON reset_audit(user_key);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form
// the initial (version-1) database layout.
var allSchemas = []string{
	schemaUsers,
	schemaFingerprints,
	schemaUserMeta,
	schemaDiffSessions,
	schemaResetAudit,
	schemaMigrations,
}
