package cache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFiles embed.FS

// indexFileName is the metadata index inside the cache directory
const indexFileName = "metadata-index"

const entryColumns = `cache_key, file_path, provider, voice, rate, text, format,
	created_at, size, model, source, session_id, pid, hostname, user_name,
	working_dir, command_line, duration_ms, success, error_message`

// index is the SQLite-backed metadata index. One record per artifact.
type index struct {
	db   *sql.DB
	path string
}

// openIndex opens or creates the index database at path and applies the schema.
func openIndex(path string) (*index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	// A single connection serializes writers inside the process.
	db.SetMaxOpenConns(1)

	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}

	schemaSQL, err := schemaFiles.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &index{db: db, path: path}, nil
}

// configureSQLite sets the pragmas the index relies on. The rollback
// journal keeps the cache directory free of WAL side files.
func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}

	return nil
}

func (ix *index) close() error {
	return ix.db.Close()
}

// insert writes a record, replacing any previous record for the same key.
func (ix *index) insert(m *Metadata) error {
	_, err := ix.db.Exec(`INSERT OR REPLACE INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Key, m.FilePath, m.Provider, m.Voice, m.Rate, m.Text, m.Format,
		m.CreatedAt.UnixMilli(), m.Size, m.Model, m.Source, m.SessionID, m.PID,
		m.Hostname, m.User, m.WorkingDir, m.CommandLine,
		m.Duration.Milliseconds(), m.Success, m.ErrorMessage,
	)
	return err
}

// lookup returns the record for key or ErrNotFound.
func (ix *index) lookup(key string) (*Metadata, error) {
	row := ix.db.QueryRow(`SELECT `+entryColumns+` FROM entries WHERE cache_key = ?`, key)
	m, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (ix *index) delete(key string) error {
	_, err := ix.db.Exec(`DELETE FROM entries WHERE cache_key = ?`, key)
	return err
}

func (ix *index) reset() error {
	_, err := ix.db.Exec(`DELETE FROM entries`)
	return err
}

// totals returns the record count and the summed artifact size.
func (ix *index) totals() (int64, int64, error) {
	var count, size int64
	err := ix.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM entries`).Scan(&count, &size)
	return count, size, err
}

// oldest returns every record, oldest first. Ties keep insertion order.
func (ix *index) oldest() ([]*Metadata, error) {
	return ix.list(`SELECT `+entryColumns+` FROM entries ORDER BY created_at ASC, rowid ASC`)
}

// recent returns up to n records, newest first.
func (ix *index) recent(n int) ([]*Metadata, error) {
	return ix.list(`SELECT `+entryColumns+` FROM entries
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
}

// query runs a filtered scan. All filtering happens in SQL.
func (ix *index) query(f Filter) ([]*Metadata, error) {
	q, args := buildQuery(f)
	return ix.list(q, args...)
}

// buildQuery constructs the filtered SELECT for f.
func buildQuery(f Filter) (string, []any) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE 1=1`
	var args []any

	if f.Text != "" {
		query += " AND instr(lower(text), lower(?)) > 0"
		args = append(args, f.Text)
	}

	exact := []struct {
		column string
		value  string
	}{
		{"provider", f.Provider},
		{"model", f.Model},
		{"source", f.Source},
		{"session_id", f.SessionID},
		{"user_name", f.User},
		{"working_dir", f.WorkingDir},
	}
	for _, e := range exact {
		if e.value != "" {
			query += " AND " + e.column + " = ?"
			args = append(args, e.value)
		}
	}

	if f.MinSize > 0 {
		query += " AND size >= ?"
		args = append(args, f.MinSize)
	}

	if f.MaxSize > 0 {
		query += " AND size <= ?"
		args = append(args, f.MaxSize)
	}

	if !f.After.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.After.UnixMilli())
	}

	if !f.Before.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, f.Before.UnixMilli())
	}

	if f.Success != nil {
		query += " AND success = ?"
		args = append(args, *f.Success)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return query, args
}

// histogram counts records grouped by column. Empty values are keyed "unknown".
func (ix *index) histogram(column string) (map[string]int, error) {
	switch column {
	case "provider", "model", "source":
	default:
		return nil, fmt.Errorf("histogram over unsupported column %q", column)
	}

	rows, err := ix.db.Query(`SELECT ` + column + `, COUNT(*) FROM entries GROUP BY ` + column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		if value == "" {
			value = "unknown"
		}
		out[value] += count
	}
	return out, rows.Err()
}

// timeRange returns the earliest and latest creation times, zero when empty.
func (ix *index) timeRange() (time.Time, time.Time, error) {
	var earliest, latest sql.NullInt64
	err := ix.db.QueryRow(`SELECT MIN(created_at), MAX(created_at) FROM entries`).Scan(&earliest, &latest)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	var first, last time.Time
	if earliest.Valid {
		first = time.UnixMilli(earliest.Int64)
	}
	if latest.Valid {
		last = time.UnixMilli(latest.Int64)
	}
	return first, last, nil
}

func (ix *index) list(query string, args ...any) ([]*Metadata, error) {
	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Metadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(s scanner) (*Metadata, error) {
	var m Metadata
	var createdAt, durationMs int64
	err := s.Scan(
		&m.Key, &m.FilePath, &m.Provider, &m.Voice, &m.Rate, &m.Text, &m.Format,
		&createdAt, &m.Size, &m.Model, &m.Source, &m.SessionID, &m.PID,
		&m.Hostname, &m.User, &m.WorkingDir, &m.CommandLine,
		&durationMs, &m.Success, &m.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = time.UnixMilli(createdAt)
	m.Duration = time.Duration(durationMs) * time.Millisecond
	return &m, nil
}
