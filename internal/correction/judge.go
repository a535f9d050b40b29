package correction

import (
	"context"
	"strings"

	"dynsql/internal/llm"
	"dynsql/internal/logging"
	"dynsql/internal/sqlexec"
)

// Verdict reasons that do not come from the semantic judge.
const (
	ReasonExecutionError = "SQL execution error"
	ReasonEmptyResult    = "Empty result"
	ReasonPass           = "SQL pass"
)

// SemanticCheckMode controls whether the LLM semantic judge runs for
// candidates that executed and returned rows.
type SemanticCheckMode string

const (
	// SemanticStrict asks the model whether the result matches the intent.
	SemanticStrict SemanticCheckMode = "strict"
	// SemanticRelaxed accepts any candidate that executes and returns rows.
	SemanticRelaxed SemanticCheckMode = "relaxed"
)

// Judge decides whether a candidate needs another correction cycle.
type Judge struct {
	oracle llm.Client
	mode   SemanticCheckMode
}

// NewJudge creates a judge. oracle may be nil when mode is relaxed.
func NewJudge(oracle llm.Client, mode SemanticCheckMode) *Judge {
	if mode == "" {
		mode = SemanticStrict
	}
	return &Judge{oracle: oracle, mode: mode}
}

// NeedsCorrection judges candidate i of the session, which must have an
// execution outcome. It returns whether another cycle is needed and the
// reason: ReasonExecutionError, ReasonEmptyResult, the judge's own words for
// a semantic miss, or ReasonPass.
func (j *Judge) NeedsCorrection(ctx context.Context, s *Session, i int) (bool, string) {
	out := s.Outcomes[i]
	if out == nil {
		out = &sqlexec.Outcome{Err: "Error: candidate was never executed"}
	}

	if !out.Valid {
		return true, ReasonExecutionError
	}
	if out.RowCount == 0 {
		return true, ReasonEmptyResult
	}
	if j.mode == SemanticRelaxed || j.oracle == nil {
		return false, ReasonPass
	}

	judgment, err := j.oracle.CompleteWithSystem(ctx, judgeInstruction, BuildContext(s, i, i+1))
	if err != nil {
		// A dead oracle should not sink an executable candidate.
		logging.Get(logging.CategoryCorrection).Warnf("semantic judge unavailable, accepting candidate: %v", err)
		return false, ReasonPass
	}
	if strings.Contains(judgment, "Verdict: REPAIR") {
		return true, judgment
	}
	return false, ReasonPass
}
