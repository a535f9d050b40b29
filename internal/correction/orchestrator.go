package correction

import (
	"context"
	"strings"

	"dynsql/internal/logging"
	"dynsql/internal/sqlexec"
)

// Terminal counts: which cycle produced the final query. CountFallback means
// every tier was exhausted and the final query came from the fallback scan.
const (
	CountFusedPassed       = 3
	CountPatchPassed       = 4
	CountReconstructPassed = 5
	CountCoTFusionPassed   = 6
	CountFallback          = 7
)

// Executor runs one query against one database. Satisfied by
// *sqlexec.Executor.
type Executor interface {
	Execute(ctx context.Context, db, query string) sqlexec.Outcome
}

// Result is the outcome of one correction run.
type Result struct {
	FinalSQL string
	Count    int
	Session  *Session
}

// Orchestrator drives the correction loop over one question.
type Orchestrator struct {
	exec     Executor
	judge    *Judge
	repairer *Repairer
	validate bool
}

// NewOrchestrator wires the loop. When validate is set, the final query gets
// a post-hoc identifier check against Question.Columns, logged as warnings.
func NewOrchestrator(exec Executor, judge *Judge, repairer *Repairer, validate bool) *Orchestrator {
	return &Orchestrator{exec: exec, judge: judge, repairer: repairer, validate: validate}
}

// Run executes the loop for one question given its two seed queries and
// their fusion. The fused candidate is judged first; each failed judgment
// escalates to the next repair strategy: a direct patch, a reconstruction
// from the seeds, then a chain-of-thought fusion over the whole history.
// When all tiers fail, the most recent executable candidate wins, falling
// back to the very last candidate if none executed.
func (o *Orchestrator) Run(ctx context.Context, q Question, seedFull, seedLinked, fused string) (Result, error) {
	s := NewSession(q)
	s.Add(seedFull, SourceSeedFull)
	s.Add(seedLinked, SourceSeedLinked)
	fusedIdx := s.Add(fused, SourceFused)

	// Cycle 3: judge the fused seed.
	o.execute(ctx, s, fusedIdx)
	if done, res := o.judgeCycle(ctx, s, fusedIdx, CountFusedPassed); done {
		return o.finish(res), nil
	}

	// Cycle 4: direct patch of the fused candidate.
	patchIdx := s.Add(o.repairer.Patch(ctx, s, fusedIdx), SourcePatched)
	o.execute(ctx, s, patchIdx)
	if done, res := o.judgeCycle(ctx, s, patchIdx, CountPatchPassed); done {
		return o.finish(res), nil
	}

	// Cycle 5: fall back to the seeds. Their outcomes join the context now.
	o.execute(ctx, s, 0)
	o.execute(ctx, s, 1)
	reconIdx := s.Add(o.repairer.Reconstruct(ctx, s), SourceReconstructed)
	o.execute(ctx, s, reconIdx)
	if done, res := o.judgeCycle(ctx, s, reconIdx, CountReconstructPassed); done {
		return o.finish(res), nil
	}

	// Cycle 6: chain-of-thought fusion over the full history.
	cotIdx := s.Add(o.repairer.CoTFusion(ctx, s), SourceCoTFused)
	o.execute(ctx, s, cotIdx)
	if done, res := o.judgeCycle(ctx, s, cotIdx, CountCoTFusionPassed); done {
		return o.finish(res), nil
	}

	// All tiers exhausted: most recent executable candidate, else the most
	// recent candidate.
	final := s.Candidates[s.Len()-1].SQL
	for i := s.Len() - 1; i >= fusedIdx; i-- {
		if out := s.Outcomes[i]; out != nil && out.Valid {
			final = s.Candidates[i].SQL
			break
		}
	}
	logging.Correction("all repair tiers exhausted for question %d, falling back", q.ID)
	return o.finish(Result{FinalSQL: final, Count: CountFallback, Session: s}), nil
}

func (o *Orchestrator) execute(ctx context.Context, s *Session, i int) {
	s.SetOutcome(i, o.exec.Execute(ctx, s.Question.DB, s.Candidates[i].SQL))
}

// judgeCycle judges candidate i. When the candidate passes, it returns the
// terminal result with the given count; otherwise it records the verdict
// and the loop escalates.
func (o *Orchestrator) judgeCycle(ctx context.Context, s *Session, i, count int) (bool, Result) {
	needsFix, reason := o.judge.NeedsCorrection(ctx, s, i)
	if !needsFix {
		return true, Result{FinalSQL: s.Candidates[i].SQL, Count: count, Session: s}
	}
	s.SetReason(i, reason)
	logging.CorrectionDebug("question %d candidate %d (%s) rejected: %s",
		s.Question.ID, i, s.Candidates[i].Source, firstLine(reason))
	return false, Result{}
}

func (o *Orchestrator) finish(res Result) Result {
	s := res.Session
	if err := s.Check(); err != nil {
		logging.Get(logging.CategoryCorrection).Errorf("question %d: %v", s.Question.ID, err)
	}
	if o.validate {
		if unknown := UnknownIdentifiers(res.FinalSQL, s.Question.Columns); len(unknown) > 0 {
			logging.Get(logging.CategoryCorrection).Warnf("question %d final SQL references unknown identifiers: %s",
				s.Question.ID, strings.Join(unknown, ", "))
		}
	}
	logging.Correction("question %d resolved: count=%d candidates=%d", s.Question.ID, res.Count, s.Len())
	return res
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
