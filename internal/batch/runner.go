package batch

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dynsql/internal/logging"
)

// Stage processes one record into its output form.
type Stage interface {
	Process(ctx context.Context, rec Record) (Record, error)
}

// Runner fans records out over a bounded worker pool and writes results as
// they complete. Output order therefore does not match input order; records
// are keyed by question_id.
type Runner struct {
	workers    int
	startIndex int
}

// NewRunner creates a runner. startIndex skips the first records of the
// input, the resume convention for long benchmark runs.
func NewRunner(workers, startIndex int) *Runner {
	if workers <= 0 {
		workers = 8
	}
	if startIndex < 0 {
		startIndex = 0
	}
	return &Runner{workers: workers, startIndex: startIndex}
}

// Run pushes every record through the stage. A record whose stage fails is
// logged and written through unchanged; it never aborts the batch. Returns
// the number of records written.
func (r *Runner) Run(ctx context.Context, records []Record, stage Stage, out *Writer) (int, error) {
	if r.startIndex < len(records) {
		records = records[r.startIndex:]
	} else {
		records = nil
	}
	runID := uuid.New().String()[:8]
	logging.Batch("run %s: processing %d records with %d workers", runID, len(records), r.workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	written := make(chan struct{}, len(records))
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			result, err := stage.Process(ctx, rec)
			if err != nil {
				// One output line per question regardless: the input
				// record passes through so downstream stages can retry it.
				logging.Get(logging.CategoryBatch).Errorf("record %d failed: %v", rec.QuestionID, err)
				result = rec
			}
			if err := out.Write(result); err != nil {
				// Losing the output file is fatal for the whole batch.
				return err
			}
			written <- struct{}{}
			return nil
		})
	}

	err := g.Wait()
	close(written)
	count := len(written)
	logging.Batch("run %s complete: %d/%d records written", runID, count, len(records))
	return count, err
}
