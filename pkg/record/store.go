package record

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/via/viaems-protocol/pkg/feed"
)

// Store provides SQLite persistence for telemetry recordings.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a store at the given database path.
// Use ":memory:" for an in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		note TEXT,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL,
		field TEXT NOT NULL,
		kind TEXT NOT NULL,
		value REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_session ON samples(session_id);
	CREATE INDEX IF NOT EXISTS idx_samples_field ON samples(session_id, field);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one recording session.
type Session struct {
	store *Store

	// ID is the session identifier (UUID).
	ID string

	seq int64
}

// BeginSession opens a new recording session.
func (s *Store) BeginSession(note string) (*Session, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, note, started_at) VALUES (?, ?, ?)`,
		id, note, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Session{store: s, ID: id}, nil
}

// Record stores one feed sample. keys and values must be parallel, as
// delivered by the feed callback.
func (sess *Session) Record(keys []feed.FieldKey, values []feed.FieldValue) error {
	if len(keys) != len(values) {
		return fmt.Errorf("keys and values differ in length: %d != %d", len(keys), len(values))
	}

	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()

	tx, err := sess.store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO samples (session_id, seq, recorded_at, field, kind, value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	sess.seq++
	now := time.Now().UTC()
	for i, key := range keys {
		_, err := stmt.Exec(sess.ID, sess.seq, now, key.Name, values[i].Kind.String(), values[i].Float64())
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID        string
	Note      string
	StartedAt time.Time
	Samples   int64
}

// Sessions lists all stored sessions, newest first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.note, s.started_at, COUNT(DISTINCT m.seq)
		FROM sessions s
		LEFT JOIN samples m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Note, &info.StartedAt, &info.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// FieldStats aggregates one field over a session.
type FieldStats struct {
	Field string
	Kind  string
	Count int64
	Min   float64
	Max   float64
	Avg   float64
}

// Stats aggregates per-field statistics for a session.
func (s *Store) Stats(sessionID string) ([]FieldStats, error) {
	rows, err := s.db.Query(`
		SELECT field, kind, COUNT(*), MIN(value), MAX(value), AVG(value)
		FROM samples
		WHERE session_id = ?
		GROUP BY field
		ORDER BY field
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var out []FieldStats
	for rows.Next() {
		var fs FieldStats
		if err := rows.Scan(&fs.Field, &fs.Kind, &fs.Count, &fs.Min, &fs.Max, &fs.Avg); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}
