// Package schema introspects SQLite databases and renders the compact
// hash-commented schema, foreign-key, explanation, and sample-data blocks
// that the prompt templates embed.
package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Renderer reads schemas from databases laid out as <root>/<db>/<db>.sqlite.
// Column meanings are optional; without them Explanation renders nothing.
type Renderer struct {
	root     string
	meanings map[string]string // "db|table|column" -> description
}

// NewRenderer creates a renderer over a database root directory.
func NewRenderer(root string) *Renderer {
	return &Renderer{root: root, meanings: map[string]string{}}
}

// LoadColumnMeanings loads a JSON map of "db|table|column" -> description.
func (r *Renderer) LoadColumnMeanings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read column meanings: %w", err)
	}
	if err := json.Unmarshal(data, &r.meanings); err != nil {
		return fmt.Errorf("failed to parse column meanings: %w", err)
	}
	return nil
}

func (r *Renderer) open(db string) (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("%s/%s/%s.sqlite", r.root, db, db))
}

// Columns returns every column of the database as "table.column", in
// sqlite_master order.
func (r *Renderer) Columns(ctx context.Context, db string) ([]string, error) {
	conn, err := r.open(db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tables, err := tableNames(ctx, conn)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, table := range tables {
		cols, err := columnNames(ctx, conn, table)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			out = append(out, table+"."+col)
		}
	}
	return out, nil
}

// Tables returns the table names of the database.
func (r *Renderer) Tables(ctx context.Context, db string) ([]string, error) {
	conn, err := r.open(db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return tableNames(ctx, conn)
}

func tableNames(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func columnNames(ctx context.Context, conn *sql.DB, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ForeignKeyLines returns one "t1(c1) references t2(c2)" line per foreign
// key in the database.
func (r *Renderer) ForeignKeyLines(ctx context.Context, db string) ([]string, error) {
	conn, err := r.open(db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tables, err := tableNames(ctx, conn)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, table := range tables {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				id, seq            int
				refTable           string
				from, to           sql.NullString
				onUpdate, onDelete string
				match              string
			)
			if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				rows.Close()
				return nil, err
			}
			// Composite keys yield one line per column pair.
			if from.Valid && to.Valid {
				lines = append(lines, fmt.Sprintf("%s(%s) references %s(%s)", table, from.String, refTable, to.String))
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return lines, nil
}

// FullSchema renders the complete schema and foreign-key blocks for a
// database, covering every table and column.
func (r *Renderer) FullSchema(ctx context.Context, db string) (string, string, error) {
	columns, err := r.Columns(ctx, db)
	if err != nil {
		return "", "", err
	}
	tables, err := r.Tables(ctx, db)
	if err != nil {
		return "", "", err
	}
	fkLines, err := r.ForeignKeyLines(ctx, db)
	if err != nil {
		return "", "", err
	}
	return RenderSchema(tables, columns), RenderForeignKeys(fkLines), nil
}

// LinkedSchema renders schema and foreign-key blocks restricted to the
// linked tables. Foreign keys whose endpoints both fall inside the linked
// tables are kept, and their columns are folded into the column set so join
// paths always survive linking.
func (r *Renderer) LinkedSchema(ctx context.Context, db string, tables, columns []string) (string, string, []string, error) {
	fkLines, err := r.ForeignKeyLines(ctx, db)
	if err != nil {
		return "", "", nil, err
	}

	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[strings.ToLower(t)] = true
	}

	var kept []string
	for _, line := range fkLines {
		t1, c1, t2, c2, ok := parseForeignKey(line)
		if !ok {
			continue
		}
		if tableSet[strings.ToLower(t1)] && tableSet[strings.ToLower(t2)] {
			columns = appendUnique(columns, t1+"."+c1)
			columns = appendUnique(columns, t2+"."+c2)
			kept = append(kept, line)
		}
	}

	// Folded join columns regroup with their table so the explanation and
	// sample-data blocks render in schema order.
	columns = SortColumnsByTable(tables, columns)
	return RenderSchema(tables, columns), RenderForeignKeys(kept), columns, nil
}

// Normalize maps loosely-cased "table.column" names onto the database's real
// identifiers, dropping names that do not exist. It returns the distinct
// tables of the surviving columns alongside the corrected columns.
func (r *Renderer) Normalize(ctx context.Context, db string, columns []string) ([]string, []string, error) {
	real, err := r.Columns(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	lookup := make(map[string]string, len(real))
	for _, col := range real {
		lookup[strings.ToLower(col)] = col
	}

	tableSet := map[string]bool{}
	var outTables, outColumns []string
	for _, col := range columns {
		canonical, ok := lookup[strings.ToLower(strings.ReplaceAll(col, "`", ""))]
		if !ok {
			continue
		}
		outColumns = appendUnique(outColumns, canonical)
		table := strings.SplitN(canonical, ".", 2)[0]
		if !tableSet[table] {
			tableSet[table] = true
			outTables = append(outTables, table)
		}
	}
	return outTables, outColumns, nil
}

// Explanation renders "# table.column: meaning" lines for every column that
// has a loaded meaning.
func (r *Renderer) Explanation(db string, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		parts := strings.SplitN(col, ".", 2)
		if len(parts) != 2 {
			continue
		}
		meaning, ok := r.meanings[db+"|"+parts[0]+"|"+parts[1]]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "# %s.%s: %s\n", parts[0], parts[1], meaning)
	}
	return b.String()
}

// SampleData renders up to five distinct values per linked column, grouped
// by table:
//
//	# frpm(County Name(Alameda,Fresno),Charter School (Y/N)(0,1));
func (r *Renderer) SampleData(ctx context.Context, db string, columns []string) (string, error) {
	conn, err := r.open(db)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	byTable := map[string][]string{}
	var tableOrder []string
	for _, col := range columns {
		parts := strings.SplitN(col, ".", 2)
		if len(parts) != 2 {
			continue
		}
		if _, seen := byTable[parts[0]]; !seen {
			tableOrder = append(tableOrder, parts[0])
		}
		byTable[parts[0]] = append(byTable[parts[0]], parts[1])
	}

	var b strings.Builder
	for _, table := range tableOrder {
		var rendered []string
		for _, col := range byTable[table] {
			values, err := sampleValues(ctx, conn, table, col)
			if err != nil {
				continue
			}
			rendered = append(rendered, fmt.Sprintf("%s(%s)", col, strings.Join(values, ",")))
		}
		if len(rendered) > 0 {
			fmt.Fprintf(&b, "# %s(%s);\n", table, strings.Join(rendered, ","))
		}
	}
	return b.String(), nil
}

func sampleValues(ctx context.Context, conn *sql.DB, table, column string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY RANDOM() LIMIT 5", quoteIdent(column), quoteIdent(table))
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		// Fall back to a plain scan when random sampling fails.
		rows, err = conn.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s LIMIT 5", quoteIdent(column), quoteIdent(table)))
		if err != nil {
			return nil, err
		}
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		switch val := v.(type) {
		case nil:
			values = append(values, "")
		case []byte:
			values = append(values, string(val))
		default:
			values = append(values, fmt.Sprintf("%v", val))
		}
	}
	return values, rows.Err()
}

// RenderSchema renders the hash-commented table(column, ...) block.
func RenderSchema(tables, columns []string) string {
	var b strings.Builder
	b.WriteString("#\n# ")
	for _, table := range tables {
		var cols []string
		for _, col := range columns {
			parts := strings.SplitN(col, ".", 2)
			if len(parts) == 2 && parts[0] == table {
				cols = append(cols, parts[1])
			}
		}
		b.WriteString(table + "(" + strings.Join(cols, ", ") + ")\n# ")
	}
	return strings.TrimSpace(b.String())
}

// RenderForeignKeys renders foreign-key lines as a hash-commented block.
func RenderForeignKeys(lines []string) string {
	var b strings.Builder
	b.WriteString("#\n")
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String()) + "\n# "
}

func parseForeignKey(line string) (t1, c1, t2, c2 string, ok bool) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "#"))
	left, right, found := strings.Cut(line, " references ")
	if !found {
		return "", "", "", "", false
	}
	t1, c1, ok = splitTableColumn(left)
	if !ok {
		return "", "", "", "", false
	}
	t2, c2, ok = splitTableColumn(right)
	if !ok {
		return "", "", "", "", false
	}
	return t1, c1, t2, c2, true
}

func splitTableColumn(s string) (string, string, bool) {
	open := strings.Index(s, "(")
	end := strings.Index(s, ")")
	if open < 0 || end < open {
		return "", "", false
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1:end]), true
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SortColumnsByTable orders "table.column" names grouped by table, keeping
// the given table order. Used when deterministic prompt layout matters.
func SortColumnsByTable(tables, columns []string) []string {
	rank := make(map[string]int, len(tables))
	for i, t := range tables {
		rank[t] = i
	}
	out := append([]string(nil), columns...)
	sort.SliceStable(out, func(i, j int) bool {
		ti := strings.SplitN(out[i], ".", 2)[0]
		tj := strings.SplitN(out[j], ".", 2)[0]
		return rank[ti] < rank[tj]
	})
	return out
}
