package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store persists history records across sessions. The table is append-only;
// records are never updated or deleted by the CLI.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS history_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			command_id TEXT NOT NULL,
			protocol TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_history_session_time ON history_records(session_id, recorded_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Append(sessionID string, rec Record) error {
	if strings.TrimSpace(rec.CommandID) == "" {
		return fmt.Errorf("append history: missing command id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock history store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	recordedUnix := rec.Timestamp.UTC().Unix()
	if rec.Timestamp.IsZero() {
		recordedUnix = time.Now().UTC().Unix()
	}

	success := 0
	if rec.Success {
		success = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO history_records (session_id, command_id, protocol, success, recorded_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, rec.CommandID, rec.Protocol, success, recordedUnix, payload)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first. An empty sessionID
// spans all sessions; failedOnly keeps only unsuccessful invocations.
func (s *Store) List(sessionID string, limit int, failedOnly bool) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT payload FROM history_records"
	conds := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if strings.TrimSpace(sessionID) != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, sessionID)
	}
	if failedOnly {
		conds = append(conds, "success = 0")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}
