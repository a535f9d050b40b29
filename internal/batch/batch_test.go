package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynsql/internal/correction"
	"dynsql/internal/sqlexec"
)

func TestReadRecords_SkipsBlankAndMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	content := `{"question_id": 1, "db": "ca", "question": "q1"}

not json at all
{"question_id": 2, "db": "ca", "question": "q2"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].QuestionID)
	assert.Equal(t, 2, records[1].QuestionID)
}

func TestReadRecords_MissingQuestionID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	content := `{"db": "ca", "question": "no id at all"}
{"question_id": 0, "db": "ca", "question": "literal zero id"}
{"question_id": 3, "db": "ca", "question": "q3"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].QuestionID)
	assert.Equal(t, "literal zero id", records[0].Question)
	assert.Equal(t, 3, records[1].QuestionID)
}

func TestWriter_EmptyFinalSQLKeepsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	rec := Record{QuestionID: 1, DB: "ca", Question: "q", Count: 7}
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sql_final":""`)
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	sql4 := "SELECT 4"
	rec := Record{
		QuestionID: 9,
		DB:         "ca",
		Question:   "how many",
		SQL1:       "SELECT 1",
		SQL2:       "SELECT 2",
		SQL3:       "SELECT 3",
		SQL4:       &sql4,
		SQLFinal:   "SELECT 4",
		Count:      4,
		Difficulty: "simple",
	}
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	back, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, back, 1)
	if diff := cmp.Diff(rec, back[0]); diff != "" {
		t.Errorf("record round trip mismatch (-want +got):\n%s", diff)
	}
}

// countingStage records its peak concurrency.
type countingStage struct {
	mu      sync.Mutex
	active  int
	peak    int
	calls   atomic.Int32
	failIDs map[int]bool
}

func (s *countingStage) Process(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	s.calls.Add(1)
	if s.failIDs[rec.QuestionID] {
		return rec, fmt.Errorf("scripted failure")
	}
	rec.SQLFinal = fmt.Sprintf("SELECT %d", rec.QuestionID)
	return rec, nil
}

func TestRunner_WritesAllAndBoundsWorkers(t *testing.T) {
	records := make([]Record, 20)
	for i := range records {
		records[i] = Record{QuestionID: i + 1, DB: "ca", Question: "q"}
	}

	out, err := NewWriter(filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)
	defer out.Close()

	stage := &countingStage{}
	n, err := NewRunner(4, 0).Run(context.Background(), records, stage, out)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.LessOrEqual(t, stage.peak, 4)
}

func TestRunner_FailedRecordsPassThrough(t *testing.T) {
	records := []Record{
		{QuestionID: 1, DB: "ca", Question: "q"},
		{QuestionID: 2, DB: "ca", Question: "q"},
		{QuestionID: 3, DB: "ca", Question: "q"},
	}

	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := NewWriter(path)
	require.NoError(t, err)

	stage := &countingStage{failIDs: map[int]bool{2: true}}
	n, err := NewRunner(2, 0).Run(context.Background(), records, stage, out)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	assert.Equal(t, 3, n)

	// One output line per question, failed or not; the failed record is
	// written unchanged.
	back, err := ReadRecords(path)
	require.NoError(t, err)
	finals := map[int]string{}
	for _, rec := range back {
		finals[rec.QuestionID] = rec.SQLFinal
	}
	assert.Len(t, finals, 3)
	assert.Empty(t, finals[2])
	assert.Equal(t, "SELECT 1", finals[1])
	assert.Equal(t, "SELECT 3", finals[3])
}

func TestRunner_StartIndexSkipsRecords(t *testing.T) {
	records := []Record{
		{QuestionID: 1, DB: "ca", Question: "q"},
		{QuestionID: 2, DB: "ca", Question: "q"},
		{QuestionID: 3, DB: "ca", Question: "q"},
	}

	out, err := NewWriter(filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)
	defer out.Close()

	stage := &countingStage{}
	n, err := NewRunner(2, 2).Run(context.Background(), records, stage, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), stage.calls.Load())
}

type passExec struct{}

func (passExec) Execute(_ context.Context, _ string, query string) sqlexec.Outcome {
	return sqlexec.Outcome{SQL: query, Valid: true, RowCount: 1, ColumnCount: 1, Preview: "[(1)]"}
}

func TestCorrectStage_RecordsTerminalState(t *testing.T) {
	orch := correction.NewOrchestrator(passExec{},
		correction.NewJudge(nil, correction.SemanticRelaxed),
		correction.NewRepairer(nil), false)
	stage := &CorrectStage{Orchestrator: orch}

	rec := Record{
		QuestionID: 5, DB: "ca", Question: "q",
		SQL1: "SELECT 1", SQL2: "SELECT 2", SQL3: "SELECT 3",
	}
	got, err := stage.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", got.SQLFinal)
	assert.Equal(t, correction.CountFusedPassed, got.Count)
	// No repair cycles ran, so no repair candidates appear.
	assert.Nil(t, got.SQL4)
	assert.Nil(t, got.SQL5)
	assert.Nil(t, got.SQL6)
}
