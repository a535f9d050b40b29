package nlsql

import (
	"context"
	"fmt"
	"strings"

	"dynsql/internal/correction"
	"dynsql/internal/llm"
	"dynsql/internal/logging"
	"dynsql/internal/sqlexec"
)

// Executor runs one query against one database. Satisfied by
// *sqlexec.Executor.
type Executor interface {
	Execute(ctx context.Context, db, query string) sqlexec.Outcome
}

// Fuser merges the two seed candidates into the fused candidate, using
// their execution results as evidence.
type Fuser struct {
	oracle llm.Client
	exec   Executor
}

// NewFuser creates a fuser.
func NewFuser(oracle llm.Client, exec Executor) *Fuser {
	return &Fuser{oracle: oracle, exec: exec}
}

// Fuse executes both seeds and asks the oracle for a merged query. The seed
// outcomes are returned alongside so callers can reuse them. An unusable
// oracle response yields "".
func (f *Fuser) Fuse(ctx context.Context, q correction.Question, seedFull, seedLinked string) (string, []sqlexec.Outcome) {
	outcomes := []sqlexec.Outcome{
		f.exec.Execute(ctx, q.DB, seedFull),
		f.exec.Execute(ctx, q.DB, seedLinked),
	}

	var history strings.Builder
	for i, out := range outcomes {
		evidence := out.Preview
		if !out.Valid {
			evidence = out.Err
		}
		fmt.Fprintf(&history, "SQL_%d: %s Execution result: %s\n", i+1, out.SQL, evidence)
	}

	prompt := "\n### Answer the question by sqlite SQL query only and with no explanation. " +
		"You must minimize SQL execution time while ensuring correctness.\n" +
		"### In the final SQL output, all table names and column names must be enclosed in backticks, like `table_name`.`column_name`.\n" +
		tableInfo(q) +
		"\n### definition:\n" + q.Evidence +
		"\n### Question:\n" + q.Question +
		"\n### List of current SQL queries and their execution results:\n" + history.String()

	response, err := f.oracle.CompleteWithSystem(ctx, fusionInstruction, prompt)
	if err != nil {
		logging.Get(logging.CategoryAPI).Errorf("fusion failed for question %d: %v", q.ID, err)
		return "", outcomes
	}
	return llm.ExtractSQL(response), outcomes
}
