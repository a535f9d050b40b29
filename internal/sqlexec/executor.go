// Package sqlexec runs candidate SQL against the benchmark SQLite databases
// and reports structured outcomes the correction loop can judge.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dynsql/internal/logging"

	_ "modernc.org/sqlite"
)

// Outcome is the observable result of executing one candidate query.
// Err carries the classified failure text ("Error: ..." for driver errors,
// "TimeoutError: ..." for abandoned queries) so it can be fed back to the
// model verbatim.
type Outcome struct {
	SQL         string
	Valid       bool
	RowCount    int
	ColumnCount int
	Preview     string
	Err         string
	ExecTime    time.Duration
}

// Executor executes queries against databases laid out as
// <root>/<db>/<db>.sqlite, the BIRD benchmark convention.
type Executor struct {
	root        string
	timeout     time.Duration
	previewRows int
}

// New creates an executor. timeout bounds each query; previewRows caps how
// many rows are rendered into the preview string.
func New(root string, timeout time.Duration, previewRows int) *Executor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if previewRows <= 0 {
		previewRows = 5
	}
	return &Executor{root: root, timeout: timeout, previewRows: previewRows}
}

// DatabasePath returns the on-disk path for a database name.
func (e *Executor) DatabasePath(db string) string {
	return fmt.Sprintf("%s/%s/%s.sqlite", e.root, db, db)
}

// Execute runs one query against one database. It never returns a Go error
// for query failures; those are classified into Outcome.Err so the caller
// can distinguish broken SQL from a broken environment.
func (e *Executor) Execute(ctx context.Context, db, query string) Outcome {
	outcome := Outcome{SQL: query}

	conn, err := sql.Open("sqlite", e.DatabasePath(db))
	if err != nil {
		outcome.Err = "Error: " + err.Error()
		return outcome
	}
	defer conn.Close()

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	type result struct {
		rows [][]any
		cols int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rows, cols, err := runQuery(execCtx, conn, query)
		done <- result{rows: rows, cols: cols, err: err}
	}()

	select {
	case <-execCtx.Done():
		outcome.ExecTime = e.timeout
		outcome.Err = fmt.Sprintf("TimeoutError: SQL execution exceeded %d seconds", int(e.timeout.Seconds()))
		logging.Exec("query timed out: db=%s after=%v", db, e.timeout)
		return outcome
	case res := <-done:
		outcome.ExecTime = time.Since(start)
		if res.err != nil {
			outcome.Err = "Error: " + res.err.Error()
			logging.ExecDebug("query failed: db=%s err=%v", db, res.err)
			return outcome
		}
		outcome.Valid = true
		outcome.RowCount = len(res.rows)
		outcome.ColumnCount = res.cols
		outcome.Preview = FormatRows(res.rows, e.previewRows)
		logging.ExecDebug("query ok: db=%s rows=%d cols=%d in=%v", db, outcome.RowCount, outcome.ColumnCount, outcome.ExecTime)
		return outcome
	}
}

func runQuery(ctx context.Context, conn *sql.DB, query string) ([][]any, int, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}

	var collected [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, err
		}
		collected = append(collected, values)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return collected, len(cols), nil
}

// FormatRows renders at most limit rows as a tuple-list literal, the form
// the prompt templates embed as a result preview.
func FormatRows(rows [][]any, limit int) string {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	var b strings.Builder
	b.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(v))
		}
		b.WriteString(")")
	}
	b.WriteString("]")
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}
