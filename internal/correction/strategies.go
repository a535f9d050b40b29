package correction

import (
	"context"

	"dynsql/internal/llm"
	"dynsql/internal/logging"
)

// Repairer produces replacement candidates through the three escalating
// strategies. Every strategy returns the extracted SQL, or "" when the
// oracle fails or its response carries no recoverable query; the loop treats
// "" as a candidate that will fail execution, not as a fatal error.
type Repairer struct {
	oracle llm.Client
}

// NewRepairer creates a repairer backed by oracle.
func NewRepairer(oracle llm.Client) *Repairer {
	return &Repairer{oracle: oracle}
}

// Patch directly repairs the candidate at index i, using only that
// candidate's execution outcome and verdict as context.
func (r *Repairer) Patch(ctx context.Context, s *Session, i int) string {
	return r.ask(ctx, "patch", patchInstruction, BuildContext(s, i, i+1))
}

// Reconstruct falls back to the two seed candidates and rebuilds a query
// from them, informed by the whole failed history.
func (r *Repairer) Reconstruct(ctx context.Context, s *Session) string {
	return r.ask(ctx, "reconstruct", reconstructInstruction, BuildContext(s, 0, s.Len()))
}

// CoTFusion merges the full candidate evolution into a final attempt.
func (r *Repairer) CoTFusion(ctx context.Context, s *Session) string {
	return r.ask(ctx, "cot-fusion", cotFusionInstruction, BuildContext(s, 0, s.Len()))
}

func (r *Repairer) ask(ctx context.Context, strategy, instruction, promptContext string) string {
	response, err := r.oracle.CompleteWithSystem(ctx, instruction, promptContext)
	if err != nil {
		logging.Get(logging.CategoryCorrection).Errorf("%s strategy failed: %v", strategy, err)
		return ""
	}
	sql := llm.ExtractSQL(response)
	if sql == "" {
		logging.Get(logging.CategoryCorrection).Warnf("%s strategy returned no recoverable SQL", strategy)
	}
	return sql
}
