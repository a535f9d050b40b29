package retrieval

import (
	"context"
	"fmt"
	"strings"

	"dynsql/internal/logging"
	"dynsql/internal/schema"
)

// Linker narrows a database schema to the tables and columns relevant to one
// question by similarity search over the schema index.
type Linker struct {
	store    *Store
	renderer *schema.Renderer
	topK     int
}

// NewLinker creates a linker. topK bounds how many columns each query
// contributes.
func NewLinker(store *Store, renderer *schema.Renderer, topK int) *Linker {
	if topK <= 0 {
		topK = 10
	}
	return &Linker{store: store, renderer: renderer, topK: topK}
}

// IndexDatabase introspects one database and (re)indexes a document per
// column. Column meanings, when loaded, become part of the embedded text.
func (l *Linker) IndexDatabase(ctx context.Context, db string) error {
	columns, err := l.renderer.Columns(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to introspect %s: %w", db, err)
	}

	docs := make([]Document, 0, len(columns))
	for _, col := range columns {
		text := col
		if explanation := l.renderer.Explanation(db, []string{col}); explanation != "" {
			text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(explanation), "#"))
		}
		docs = append(docs, Document{DB: db, Kind: "column", Name: col, Text: text})
	}
	return l.store.Index(ctx, docs)
}

// Link returns the tables and columns relevant to the question. Question and
// evidence are searched independently and their hits merged, then normalized
// against the live schema so only real identifiers survive.
func (l *Linker) Link(ctx context.Context, db, question, evidence string) ([]string, []string, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Link")
	defer timer.Stop()

	var candidates []string
	seen := map[string]bool{}
	for _, query := range []string{question, evidence} {
		if strings.TrimSpace(query) == "" {
			continue
		}
		matches, err := l.store.Search(ctx, db, query, l.topK)
		if err != nil {
			return nil, nil, fmt.Errorf("schema search failed: %w", err)
		}
		for _, m := range matches {
			if !seen[m.Name] {
				seen[m.Name] = true
				candidates = append(candidates, m.Name)
			}
		}
	}

	tables, columns, err := l.renderer.Normalize(ctx, db, candidates)
	if err != nil {
		return nil, nil, err
	}
	logging.Retrieval("linked db=%s tables=%d columns=%d", db, len(tables), len(columns))
	return tables, columns, nil
}
