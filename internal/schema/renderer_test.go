package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDatabase(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	conn, err := sql.Open("sqlite", filepath.Join(dir, name+".sqlite"))
	require.NoError(t, err)
	defer conn.Close()

	stmts := []string{
		`CREATE TABLE schools (CDSCode TEXT PRIMARY KEY, County TEXT, Charter INTEGER)`,
		`CREATE TABLE frpm (CDSCode TEXT, Rate REAL, FOREIGN KEY (CDSCode) REFERENCES schools(CDSCode))`,
		`INSERT INTO schools VALUES ('01', 'Alameda', 1), ('02', 'Fresno', 0)`,
		`INSERT INTO frpm VALUES ('01', 0.52), ('02', 0.61)`,
	}
	for _, stmt := range stmts {
		_, err := conn.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestColumns(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	cols, err := r.Columns(context.Background(), "ca")
	require.NoError(t, err)
	assert.Equal(t, []string{"schools.CDSCode", "schools.County", "schools.Charter", "frpm.CDSCode", "frpm.Rate"}, cols)
}

func TestForeignKeyLines(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	lines, err := r.ForeignKeyLines(context.Background(), "ca")
	require.NoError(t, err)
	assert.Equal(t, []string{"frpm(CDSCode) references schools(CDSCode)"}, lines)
}

func TestFullSchema(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	schemaText, fkText, err := r.FullSchema(context.Background(), "ca")
	require.NoError(t, err)
	assert.Equal(t, "#\n# schools(CDSCode, County, Charter)\n# frpm(CDSCode, Rate)", schemaText)
	assert.Equal(t, "#\nfrpm(CDSCode) references schools(CDSCode)\n# ", fkText)
}

func TestLinkedSchema_FoldsForeignKeyColumns(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	// Linking picked Rate and County but neither join column.
	schemaText, fkText, cols, err := r.LinkedSchema(context.Background(), "ca",
		[]string{"schools", "frpm"}, []string{"schools.County", "frpm.Rate"})
	require.NoError(t, err)
	assert.Contains(t, cols, "frpm.CDSCode")
	assert.Contains(t, cols, "schools.CDSCode")
	assert.Contains(t, schemaText, "frpm(Rate, CDSCode)")
	assert.Contains(t, fkText, "frpm(CDSCode) references schools(CDSCode)")
}

func TestLinkedSchema_ColumnsGroupedByTable(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	_, _, cols, err := r.LinkedSchema(context.Background(), "ca",
		[]string{"schools", "frpm"}, []string{"schools.County", "frpm.Rate"})
	require.NoError(t, err)
	// Folded join columns sit with their table, not appended at the end.
	assert.Equal(t, []string{"schools.County", "schools.CDSCode", "frpm.Rate", "frpm.CDSCode"}, cols)
}

func TestLinkedSchema_DropsForeignKeysOutsideLinkedTables(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	_, fkText, cols, err := r.LinkedSchema(context.Background(), "ca",
		[]string{"frpm"}, []string{"frpm.Rate"})
	require.NoError(t, err)
	assert.Equal(t, "#\n# ", fkText)
	assert.Equal(t, []string{"frpm.Rate"}, cols)
}

func TestNormalize(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	tables, cols, err := r.Normalize(context.Background(), "ca",
		[]string{"SCHOOLS.county", "frpm.rate", "frpm.`rate`", "frpm.bogus"})
	require.NoError(t, err)
	assert.Equal(t, []string{"schools", "frpm"}, tables)
	assert.Equal(t, []string{"schools.County", "frpm.Rate"}, cols)
}

func TestExplanation(t *testing.T) {
	root := t.TempDir()
	r := NewRenderer(root)

	meanings := map[string]string{
		"ca|schools|Charter": "1 when the school is a charter school",
	}
	path := filepath.Join(root, "column_meaning.json")
	data, err := json.Marshal(meanings)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, r.LoadColumnMeanings(path))

	got := r.Explanation("ca", []string{"schools.Charter", "schools.County"})
	assert.Equal(t, "# schools.Charter: 1 when the school is a charter school\n", got)
}

func TestSampleData(t *testing.T) {
	root := t.TempDir()
	seedDatabase(t, root, "ca")
	r := NewRenderer(root)

	got, err := r.SampleData(context.Background(), "ca", []string{"schools.County", "frpm.Rate"})
	require.NoError(t, err)
	assert.Contains(t, got, "# schools(County(")
	assert.Contains(t, got, "# frpm(Rate(")
}
