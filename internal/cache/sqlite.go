package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reelscope/reelscope/internal/domain"
)

// SQLite is a Store backed by a local SQLite database, so analysis results
// survive process restarts. Values are stored as JSON payloads with an
// expires_at of 0 for entries that never expire.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at path and prunes expired rows.
func NewSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_results_expires_at ON results(expires_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	s.prune(time.Now())
	return s, nil
}

func (s *SQLite) Get(key string) (domain.PipelineResult, bool) {
	var raw string
	var expiresAt int64
	err := s.db.QueryRow(`SELECT value, expires_at FROM results WHERE key = ?`, key).
		Scan(&raw, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return domain.PipelineResult{}, false
	}

	if expiresAt != 0 && time.Now().Unix() > expiresAt {
		s.Delete(key)
		return domain.PipelineResult{}, false
	}

	var value domain.PipelineResult
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		s.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		s.Delete(key)
		return domain.PipelineResult{}, false
	}
	return value, true
}

func (s *SQLite) Set(key string, value domain.PipelineResult, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	var expiresAt int64
	if ttl != 0 {
		expiresAt = time.Now().Add(ttl).Unix()
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO results (key, value, expires_at) VALUES (?, ?, ?)`,
		key, string(raw), expiresAt,
	)
	if err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *SQLite) Delete(key string) {
	if _, err := s.db.Exec(`DELETE FROM results WHERE key = ?`, key); err != nil {
		s.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}

func (s *SQLite) Len() int {
	s.prune(time.Now())
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) prune(now time.Time) {
	_, err := s.db.Exec(`DELETE FROM results WHERE expires_at != 0 AND expires_at < ?`, now.Unix())
	if err != nil {
		s.logger.Warn("cache prune failed", "error", err)
	}
}
