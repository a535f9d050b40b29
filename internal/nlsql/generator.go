// Package nlsql turns natural-language questions into seed SQL candidates
// and fuses candidate pairs into a single query.
package nlsql

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"dynsql/internal/correction"
	"dynsql/internal/llm"
	"dynsql/internal/logging"
)

// Example is a reference question/SQL pair embedded in generation prompts.
type Example struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// LoadExample reads a question/SQL pair from a JSON file.
func LoadExample(path string) (*Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ex Example
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("failed to parse example %s: %w", path, err)
	}
	if ex.Question == "" || ex.SQL == "" {
		return nil, fmt.Errorf("example %s must set both question and sql", path)
	}
	return &ex, nil
}

// Generator produces seed SQL candidates from a rendered question context.
type Generator struct {
	oracle   llm.Client
	attempts int
}

// NewGenerator creates a generator. The oracle is retried up to three times
// per question when it yields no recoverable SQL.
func NewGenerator(oracle llm.Client) *Generator {
	return &Generator{oracle: oracle, attempts: 3}
}

// tableInfo renders the schema block shared by generation and fusion
// prompts.
func tableInfo(q correction.Question) string {
	return "### Sqlite SQL tables, with their properties:\n" + q.Schema +
		"\n### Here are some data information about database references.\n" + q.Data +
		"\n### Foreign key information of Sqlite SQL tables, used for table joins:\n" + q.ForeignKey +
		"\n### The meaning of every column:\n#\n" + q.Explanation +
		"\n#\n"
}

// Generate produces one SQL candidate for the question. The example, when
// present, is embedded as a reference Q&A pair. Returns "" when every
// attempt fails; callers treat that as a seed that will fail execution.
func (g *Generator) Generate(ctx context.Context, q correction.Question, example *Example) string {
	var b strings.Builder
	if example != nil {
		fmt.Fprintf(&b, "### example:\nQuestion:%ssql:%s\n", example.Question, example.SQL)
	}
	b.WriteString("### Answer the question by sqlite SQL query only and with no explanation. " +
		"You must minimize SQL execution time while ensuring correctness.\n")
	b.WriteString(tableInfo(q))
	b.WriteString("\n\n### definition: " + q.Evidence)
	b.WriteString("\n### Question: " + q.Question)
	prompt := b.String()

	for attempt := 1; attempt <= g.attempts; attempt++ {
		response, err := g.oracle.CompleteWithSystem(ctx, generationInstruction, prompt)
		if err != nil {
			logging.Get(logging.CategoryAPI).Warnf("generation attempt %d/%d for question %d failed: %v",
				attempt, g.attempts, q.ID, err)
			continue
		}
		if sql := llm.ExtractSQL(response); sql != "" {
			return sql
		}
		logging.Get(logging.CategoryAPI).Warnf("generation attempt %d/%d for question %d returned no SQL",
			attempt, g.attempts, q.ID)
	}
	return ""
}
