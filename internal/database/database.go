package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// QueryResult is the outcome of executing a SQL statement.
// Data rows are maps; Columns preserves the result's column order.
type QueryResult struct {
	Success  bool             `json:"success"`
	Data     []map[string]any `json:"data"`
	Error    string           `json:"error,omitempty"`
	RowCount int              `json:"row_count"`
	Columns  []string         `json:"columns"`
	Query    string           `json:"query"`
}

// DB wraps the analytics SQLite database. Queries run on a connection with
// query_only set; only Seed writes, during startup.
type DB struct {
	rw *sql.DB
	ro *sql.DB
}

// Open opens (or creates) the analytics database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	rw, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	ro, err := sql.Open("sqlite", dsn+"&_pragma=query_only(1)")
	if err != nil {
		rw.Close()
		return nil, err
	}
	return &DB{rw: rw, ro: ro}, nil
}

// Query executes a SQL statement and returns a structured result.
// Execution errors are returned as values inside QueryResult, not as errors.
func (d *DB) Query(ctx context.Context, query string) *QueryResult {
	result := &QueryResult{Query: query, Data: []map[string]any{}}

	rows, err := d.ro.QueryContext(ctx, query)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Columns = cols

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			result.Error = err.Error()
			return result
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.RowCount = len(result.Data)
	return result
}

// Close closes both database handles.
func (d *DB) Close() error {
	err := d.ro.Close()
	if e := d.rw.Close(); err == nil {
		err = e
	}
	return err
}

// normalizeValue converts driver values into plain Go types for formatting
// and JSON encoding.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}
