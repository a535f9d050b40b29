package batch

import (
	"context"
	"fmt"

	"dynsql/internal/correction"
	"dynsql/internal/nlsql"
	"dynsql/internal/retrieval"
	"dynsql/internal/schema"
)

// LinkStage resolves each record's relevant tables and columns and renders
// the schema blocks every later stage consumes.
type LinkStage struct {
	Linker   *retrieval.Linker
	Renderer *schema.Renderer
}

func (s *LinkStage) Process(ctx context.Context, rec Record) (Record, error) {
	tables, columns, err := s.Linker.Link(ctx, rec.DB, rec.Question, rec.Evidence)
	if err != nil {
		return rec, fmt.Errorf("schema linking failed: %w", err)
	}

	schemaText, fkText, columns, err := s.Renderer.LinkedSchema(ctx, rec.DB, tables, columns)
	if err != nil {
		return rec, fmt.Errorf("failed to render linked schema: %w", err)
	}
	data, err := s.Renderer.SampleData(ctx, rec.DB, columns)
	if err != nil {
		return rec, fmt.Errorf("failed to sample data: %w", err)
	}

	rec.Columns = columns
	rec.Schema = schemaText
	rec.ForeignKey = fkText
	rec.Explanation = s.Renderer.Explanation(rec.DB, columns)
	rec.Data = data
	return rec, nil
}

// GenerateStage produces the two seed queries: one from the complete
// schema, one from the linked schema with sample data.
type GenerateStage struct {
	Generator *nlsql.Generator
	Renderer  *schema.Renderer

	// Example is the one-shot example used for the linked-schema seed when
	// a record does not carry its own.
	Example *nlsql.Example
}

func (s *GenerateStage) Process(ctx context.Context, rec Record) (Record, error) {
	fullSchema, fullFK, err := s.Renderer.FullSchema(ctx, rec.DB)
	if err != nil {
		return rec, fmt.Errorf("failed to render full schema: %w", err)
	}

	fullQ := rec.ToQuestion()
	fullQ.Schema = fullSchema
	fullQ.ForeignKey = fullFK
	example := rec.Example
	if example == nil {
		example = s.Example
	}
	rec.SQL1 = s.Generator.Generate(ctx, fullQ, nil)
	rec.SQL2 = s.Generator.Generate(ctx, rec.ToQuestion(), example)
	return rec, nil
}

// FuseStage merges the two seeds into the fused candidate.
type FuseStage struct {
	Fuser *nlsql.Fuser
}

func (s *FuseStage) Process(ctx context.Context, rec Record) (Record, error) {
	rec.SQL3, _ = s.Fuser.Fuse(ctx, rec.ToQuestion(), rec.SQL1, rec.SQL2)
	return rec, nil
}

// CorrectStage runs the self-correction loop and records the repair history
// alongside the final query.
type CorrectStage struct {
	Orchestrator *correction.Orchestrator
}

func (s *CorrectStage) Process(ctx context.Context, rec Record) (Record, error) {
	res, err := s.Orchestrator.Run(ctx, rec.ToQuestion(), rec.SQL1, rec.SQL2, rec.SQL3)
	if err != nil {
		return rec, err
	}

	// Repair candidates appear in the output only for the cycles that ran.
	session := res.Session
	for i, field := range []**string{&rec.SQL4, &rec.SQL5, &rec.SQL6} {
		if idx := 3 + i; idx < session.Len() {
			sql := session.Candidates[idx].SQL
			*field = &sql
		}
	}
	rec.SQLFinal = res.FinalSQL
	rec.Count = res.Count
	return rec, nil
}
