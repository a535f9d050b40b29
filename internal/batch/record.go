// Package batch reads benchmark items from JSONL files, fans them out over
// a bounded worker pool, and streams results back out as each item
// completes.
package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"dynsql/internal/correction"
	"dynsql/internal/logging"
	"dynsql/internal/nlsql"
)

// Record is one benchmark item as it moves through the pipeline stages.
// Early stages populate the schema blocks and seed queries; the correction
// stage fills the final query and its terminal count.
type Record struct {
	QuestionID  int            `json:"question_id"`
	DB          string         `json:"db"`
	Question    string         `json:"question"`
	Evidence    string         `json:"evidence"`
	Columns     []string       `json:"columns,omitempty"`
	Example     *nlsql.Example `json:"example,omitempty"`
	SQL1        string         `json:"sql_1,omitempty"`
	SQL2        string         `json:"sql_2,omitempty"`
	SQL3        string         `json:"sql_3,omitempty"`
	SQL4        *string        `json:"sql_4,omitempty"`
	SQL5        *string        `json:"sql_5,omitempty"`
	SQL6        *string        `json:"sql_6,omitempty"`
	SQLFinal    string         `json:"sql_final"`
	Count       int            `json:"count,omitempty"`
	Schema      string         `json:"schema,omitempty"`
	ForeignKey  string         `json:"foreign_key,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Data        string         `json:"data,omitempty"`
	Difficulty  string         `json:"difficulty,omitempty"`
}

// ToQuestion converts the record's context blocks into the correction
// loop's question form.
func (r Record) ToQuestion() correction.Question {
	return correction.Question{
		ID:          r.QuestionID,
		DB:          r.DB,
		Question:    r.Question,
		Evidence:    r.Evidence,
		Schema:      r.Schema,
		ForeignKey:  r.ForeignKey,
		Explanation: r.Explanation,
		Data:        r.Data,
		Difficulty:  r.Difficulty,
		Columns:     r.Columns,
	}
}

// ReadRecords loads a JSONL file, skipping blank lines and lines that are
// malformed or missing question_id, with a log instead of failing the run.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logging.Get(logging.CategoryBatch).Warnf("skipping malformed line %d: %v", lineNum, err)
			continue
		}
		// question_id is required; a literal 0 id is fine, an absent key
		// is not.
		var probe struct {
			QuestionID *int `json:"question_id"`
		}
		if json.Unmarshal(line, &probe) == nil && probe.QuestionID == nil {
			logging.Get(logging.CategoryBatch).Warnf("skipping line %d: missing question_id", lineNum)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	logging.Batch("loaded %d records from %s", len(records), path)
	return records, nil
}

// Writer streams records to a JSONL file, one line per record, flushed as
// each result arrives so partial output survives a crash.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
}

// NewWriter creates the output file, truncating any previous content.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	return &Writer{f: f, buf: bufio.NewWriter(f)}, nil
}

// Write appends one record and flushes.
func (w *Writer) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %d: %w", rec.QuestionID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
