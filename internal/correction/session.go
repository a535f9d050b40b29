// Package correction implements the execution-feedback self-correction loop:
// a fused candidate query is executed and judged, then repaired through
// escalating strategies until a candidate passes or the tiers are exhausted.
package correction

import (
	"fmt"

	"dynsql/internal/sqlexec"
)

// Source records how a candidate was produced.
type Source string

const (
	SourceSeedFull      Source = "seed-full"     // generated from the full schema
	SourceSeedLinked    Source = "seed-linked"   // generated from the linked schema
	SourceFused         Source = "fused"         // first fusion of the two seeds
	SourcePatched       Source = "patched"       // direct repair of the fused candidate
	SourceReconstructed Source = "reconstructed" // rebuilt from the seed pair
	SourceCoTFused      Source = "cot-fused"     // chain-of-thought fusion over the full history
)

// Candidate is one SQL query in the correction history.
type Candidate struct {
	SQL    string
	Source Source
}

// Question carries everything the loop knows about one benchmark item.
// Schema, ForeignKey, Explanation and Data are pre-rendered text blocks.
type Question struct {
	ID          int
	DB          string
	Question    string
	Evidence    string
	Schema      string
	ForeignKey  string
	Explanation string
	Data        string
	Difficulty  string
	Columns     []string // real "table.column" identifiers, for validation
}

// Session is the aligned history of one correction run. The three slices
// grow in lockstep: Outcomes[i] is nil until candidate i has been executed,
// and Reasons[i] is empty until candidate i has been judged deficient.
type Session struct {
	Question   Question
	Candidates []Candidate
	Outcomes   []*sqlexec.Outcome
	Reasons    []string
}

// NewSession starts a session for one question.
func NewSession(q Question) *Session {
	return &Session{Question: q}
}

// Add appends a candidate and returns its index.
func (s *Session) Add(sql string, source Source) int {
	s.Candidates = append(s.Candidates, Candidate{SQL: sql, Source: source})
	s.Outcomes = append(s.Outcomes, nil)
	s.Reasons = append(s.Reasons, "")
	return len(s.Candidates) - 1
}

// SetOutcome records the execution outcome of candidate i.
func (s *Session) SetOutcome(i int, out sqlexec.Outcome) {
	s.Outcomes[i] = &out
}

// SetReason records why candidate i was judged deficient.
func (s *Session) SetReason(i int, reason string) {
	s.Reasons[i] = reason
}

// Len returns the number of candidates.
func (s *Session) Len() int {
	return len(s.Candidates)
}

// Check verifies the alignment invariant. It only fails on a programming
// error, never on bad input.
func (s *Session) Check() error {
	if len(s.Outcomes) != len(s.Candidates) || len(s.Reasons) != len(s.Candidates) {
		return fmt.Errorf("session history misaligned: %d candidates, %d outcomes, %d reasons",
			len(s.Candidates), len(s.Outcomes), len(s.Reasons))
	}
	return nil
}

// Executed reports whether candidate i has an execution outcome.
func (s *Session) Executed(i int) bool {
	return i >= 0 && i < len(s.Outcomes) && s.Outcomes[i] != nil
}
