package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

// DBFile is the metrics database filename inside the storage directory.
const DBFile = "telemetry.db"

// Store persists drained metric snapshots to SQLite so query patterns
// survive restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the metrics database and its schema.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, vmcperrors.ConfigError("creating telemetry directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, vmcperrors.ConfigError("opening telemetry database", err)
	}
	// modernc.org/sqlite ignores DSN pragmas; set them explicitly.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, vmcperrors.ConfigError("configuring telemetry database", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_type_stats (
		date TEXT NOT NULL,
		query_type TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, query_type)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return vmcperrors.ConfigError("creating telemetry schema", err)
	}
	return nil
}

// Flush merges a drained snapshot into the database under the given date
// (YYYY-MM-DD).
func (s *Store) Flush(date string, snap *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return vmcperrors.IndexError("starting telemetry transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for qt, count := range snap.QueryTypeCounts {
		if _, err := tx.Exec(`
			INSERT INTO query_type_stats (date, query_type, count) VALUES (?, ?, ?)
			ON CONFLICT(date, query_type) DO UPDATE SET count = count + excluded.count`,
			date, string(qt), count); err != nil {
			return vmcperrors.IndexError("saving query type counts", err)
		}
	}
	for bucket, count := range snap.LatencyDistribution {
		if _, err := tx.Exec(`
			INSERT INTO query_latency_stats (date, bucket, count) VALUES (?, ?, ?)
			ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count`,
			date, string(bucket), count); err != nil {
			return vmcperrors.IndexError("saving latency stats", err)
		}
	}
	for _, tc := range snap.TopTerms {
		if _, err := tx.Exec(`
			INSERT INTO query_terms (term, count, last_seen) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(term) DO UPDATE SET
				count = count + excluded.count, last_seen = CURRENT_TIMESTAMP`,
			tc.Term, tc.Count); err != nil {
			return vmcperrors.IndexError("saving query terms", err)
		}
	}
	for _, q := range snap.ZeroResultQueries {
		if _, err := tx.Exec(
			`INSERT INTO zero_result_queries (query) VALUES (?)`, q); err != nil {
			return vmcperrors.IndexError("saving zero-result queries", err)
		}
	}
	// Keep the zero-result table bounded.
	if _, err := tx.Exec(`
		DELETE FROM zero_result_queries WHERE id NOT IN (
			SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT 100)`); err != nil {
		return vmcperrors.IndexError("trimming zero-result queries", err)
	}

	if err := tx.Commit(); err != nil {
		return vmcperrors.IndexError("committing telemetry", err)
	}
	return nil
}

// TypeCounts sums per-type query counts over a date range (inclusive).
func (s *Store) TypeCounts(from, to string) (map[QueryType]int64, error) {
	rows, err := s.db.Query(`
		SELECT query_type, SUM(count) FROM query_type_stats
		WHERE date >= ? AND date <= ? GROUP BY query_type`, from, to)
	if err != nil {
		return nil, vmcperrors.IndexError("reading query type counts", err)
	}
	defer rows.Close()

	out := make(map[QueryType]int64)
	for rows.Next() {
		var qt string
		var count int64
		if err := rows.Scan(&qt, &count); err != nil {
			return nil, vmcperrors.IndexError("scanning query type counts", err)
		}
		out[QueryType(qt)] = count
	}
	return out, rows.Err()
}

// TopTerms returns the most frequent query terms.
func (s *Store) TopTerms(limit int) ([]TermCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT term, count FROM query_terms ORDER BY count DESC, term ASC LIMIT ?`, limit)
	if err != nil {
		return nil, vmcperrors.IndexError("reading query terms", err)
	}
	defer rows.Close()

	var out []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, vmcperrors.IndexError("scanning query terms", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// ZeroResultQueries returns the recent queries that found nothing, newest
// first.
func (s *Store) ZeroResultQueries(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT query FROM zero_result_queries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, vmcperrors.IndexError("reading zero-result queries", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, vmcperrors.IndexError("scanning zero-result queries", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Today formats the current date as the flush key.
func Today() string {
	return time.Now().Format("2006-01-02")
}
