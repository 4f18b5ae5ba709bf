package audit

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink is a reference Sink backed by SQLite, schema modeled on the
// teacher's hash-chained trace store. Each row records one committed
// patch or rollback; there is no separate hash-chain column here because
// profile hashes (before_hash/after_hash) already provide tamper evidence
// for the policy state itself.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if necessary) a SQLite-backed sink at
// path, in WAL mode with a busy timeout, matching the teacher's
// trace.SQLiteStore connection string.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS policy_audit_records (
		id           TEXT PRIMARY KEY,
		profile_name TEXT NOT NULL,
		patch_id     TEXT NOT NULL,
		rollback_of  TEXT,
		actor_id     TEXT NOT NULL,
		reason       TEXT,
		before_hash  TEXT NOT NULL,
		after_hash   TEXT NOT NULL,
		applied_at   DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policy_audit_profile ON policy_audit_records(profile_name);
	CREATE INDEX IF NOT EXISTS idx_policy_audit_applied_at ON policy_audit_records(applied_at);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("audit: initialize schema: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Record(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO policy_audit_records
			(id, profile_name, patch_id, rollback_of, actor_id, reason, before_hash, after_hash, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProfileName, r.PatchID, nullable(r.RollbackOf), r.ActorID, r.Reason, r.BeforeHash, r.AfterHash, r.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Query(profileName string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, profile_name, patch_id, rollback_of, actor_id, reason, before_hash, after_hash, applied_at
	          FROM policy_audit_records`
	args := []interface{}{}
	if profileName != "" {
		query += ` WHERE profile_name = ?`
		args = append(args, profileName)
	}
	query += ` ORDER BY applied_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var rollbackOf sql.NullString
		if err := rows.Scan(&r.ID, &r.ProfileName, &r.PatchID, &rollbackOf, &r.ActorID, &r.Reason, &r.BeforeHash, &r.AfterHash, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		r.RollbackOf = rollbackOf.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
