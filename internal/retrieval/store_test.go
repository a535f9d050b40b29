package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynsql/internal/schema"
)

// fakeEngine embeds each text onto a fixed axis keyed by a leading marker
// word, so similarity ranking is deterministic.
type fakeEngine struct {
	axes map[string]int
	dim  int
}

func newFakeEngine(markers ...string) *fakeEngine {
	axes := make(map[string]int, len(markers))
	for i, m := range markers {
		axes[m] = i
	}
	return &fakeEngine{axes: axes, dim: len(markers)}
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dim)
	for marker, axis := range f.axes {
		if containsWord(text, marker) {
			vec[axis] = 1
		}
	}
	return vec, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dim }
func (f *fakeEngine) Name() string    { return "fake" }

func containsWord(text, word string) bool {
	for _, w := range splitWords(text) {
		if w == word {
			return true
		}
	}
	return false
}

func splitWords(text string) []string {
	var words []string
	var current []rune
	for _, r := range text {
		if r == ' ' || r == '.' || r == ':' || r == ',' {
			if len(current) > 0 {
				words = append(words, string(current))
				current = nil
			}
			continue
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		words = append(words, string(current))
	}
	return words
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	engine := newFakeEngine("charter", "rate", "county")
	store, err := Open(filepath.Join(t.TempDir(), "index.sqlite"), engine)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIndexAndSearch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	docs := []Document{
		{DB: "ca", Kind: "column", Name: "schools.Charter", Text: "schools Charter charter school flag"},
		{DB: "ca", Kind: "column", Name: "frpm.Rate", Text: "frpm Rate eligibility rate"},
		{DB: "ca", Kind: "column", Name: "schools.County", Text: "schools County county name"},
		{DB: "other", Kind: "column", Name: "t.charter", Text: "charter elsewhere"},
	}
	require.NoError(t, store.Index(ctx, docs))

	n, err := store.Count(ctx, "ca")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := store.Search(ctx, "ca", "how many charter schools", 2)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "schools.Charter", matches[0].Name)
	for _, m := range matches {
		assert.NotEqual(t, "other", m.DB)
	}
}

func TestIndex_Upsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := Document{DB: "ca", Kind: "column", Name: "frpm.Rate", Text: "rate"}
	require.NoError(t, store.Index(ctx, []Document{doc}))
	doc.Text = "rate updated"
	require.NoError(t, store.Index(ctx, []Document{doc}))

	n, err := store.Count(ctx, "ca")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLinker_Link(t *testing.T) {
	root := t.TempDir()
	seedLinkedDatabase(t, root, "ca")

	renderer := schema.NewRenderer(root)
	engine := newFakeEngine("charter", "rate", "county")
	store, err := Open(filepath.Join(root, "index.sqlite"), engine)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Index(context.Background(), []Document{
		{DB: "ca", Kind: "column", Name: "schools.Charter", Text: "charter flag"},
		{DB: "ca", Kind: "column", Name: "frpm.Rate", Text: "rate value"},
	}))

	linker := NewLinker(store, renderer, 5)
	tables, columns, err := linker.Link(context.Background(), "ca", "list charter schools", "rate above average")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"schools", "frpm"}, tables)
	assert.ElementsMatch(t, []string{"schools.Charter", "frpm.Rate"}, columns)
}

func TestLinker_IndexDatabase(t *testing.T) {
	root := t.TempDir()
	seedLinkedDatabase(t, root, "ca")

	renderer := schema.NewRenderer(root)
	engine := newFakeEngine("charter", "rate", "county")
	store, err := Open(filepath.Join(root, "index.sqlite"), engine)
	require.NoError(t, err)
	defer store.Close()

	linker := NewLinker(store, renderer, 5)
	require.NoError(t, linker.IndexDatabase(context.Background(), "ca"))

	n, err := store.Count(context.Background(), "ca")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func seedLinkedDatabase(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	conn, err := sql.Open(sqliteDriver, filepath.Join(dir, name+".sqlite"))
	require.NoError(t, err)
	defer conn.Close()

	for _, stmt := range []string{
		`CREATE TABLE schools (CDSCode TEXT PRIMARY KEY, Charter INTEGER)`,
		`CREATE TABLE frpm (CDSCode TEXT, Rate REAL)`,
	} {
		_, err := conn.Exec(stmt)
		require.NoError(t, err, fmt.Sprintf("statement: %s", stmt))
	}
}
