// Package retrieval maintains a SQLite-backed vector index over database
// schemas and answers similarity queries for schema linking.
package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dynsql/internal/embedding"
	"dynsql/internal/logging"
)

// Document is one indexable unit of schema knowledge, typically a single
// column with its description.
type Document struct {
	DB   string // database name
	Kind string // "table" or "column"
	Name string // "table" or "table.column"
	Text string // text that gets embedded
}

// Match is one search hit, best matches first.
type Match struct {
	Document
	Score float64
}

// Store persists schema documents and their embeddings in SQLite. When the
// binary is built with the sqlite_vec tag and the extension loads, KNN
// queries run inside SQLite through a vec0 virtual table; otherwise search
// degrades to a cosine scan over JSON-serialized embeddings.
type Store struct {
	db     *sql.DB
	engine embedding.Engine
	vec    bool
}

// Open creates or opens the index database at path.
func Open(path string, engine embedding.Engine) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryRetrieval).Debugf("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryRetrieval).Debugf("failed to set journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, engine: engine}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.vec = s.detectVec()
	logging.Retrieval("schema index opened: path=%s vec_extension=%v", path, s.vec)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_documents (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			db        TEXT NOT NULL,
			kind      TEXT NOT NULL,
			name      TEXT NOT NULL,
			text      TEXT NOT NULL,
			embedding TEXT NOT NULL,
			UNIQUE(db, name)
		);
		CREATE INDEX IF NOT EXISTS idx_schema_documents_db ON schema_documents(db);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_documents: %w", err)
	}
	return nil
}

// detectVec probes for the sqlite-vec extension and creates the vec0 table
// when present.
func (s *Store) detectVec() bool {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		return false
	}
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_schema USING vec0(embedding float[%d])", s.engine.Dimensions())
	if _, err := s.db.Exec(stmt); err != nil {
		logging.Get(logging.CategoryRetrieval).Warnf("vec extension present (%s) but vec0 table creation failed: %v", version, err)
		return false
	}
	logging.Retrieval("sqlite-vec %s active", version)
	return true
}

// Index embeds and stores documents, replacing any previous entries with
// the same db and name.
func (s *Store) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryRetrieval, "Index")
	defer timer.Stop()

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	vectors, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d documents: %w", len(docs), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, doc := range docs {
		blob, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO schema_documents (db, kind, name, text, embedding)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(db, name) DO UPDATE SET kind=excluded.kind, text=excluded.text, embedding=excluded.embedding
		`, doc.DB, doc.Kind, doc.Name, doc.Text, string(blob))
		if err != nil {
			return fmt.Errorf("failed to store document %s: %w", doc.Name, err)
		}
		if s.vec {
			id, err := res.LastInsertId()
			if err == nil {
				// vec0 accepts a JSON array as the vector literal.
				if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO vec_schema(rowid, embedding) VALUES (?, ?)", id, string(blob)); err != nil {
					logging.Get(logging.CategoryRetrieval).Warnf("vec0 insert failed for %s: %v", doc.Name, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Retrieval("indexed %d schema documents", len(docs))
	return nil
}

// Search returns the topK documents of one database most similar to query.
func (s *Store) Search(ctx context.Context, db, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if s.vec {
		if matches, err := s.searchVec(ctx, db, queryVec, topK); err == nil {
			return matches, nil
		} else {
			logging.Get(logging.CategoryRetrieval).Warnf("vec0 search failed, falling back to scan: %v", err)
		}
	}
	return s.searchScan(ctx, db, queryVec, topK)
}

// searchVec runs KNN inside SQLite through the vec0 virtual table, joining
// back to schema_documents and filtering to one database.
func (s *Store) searchVec(ctx context.Context, db string, queryVec []float32, topK int) ([]Match, error) {
	blob, err := json.Marshal(queryVec)
	if err != nil {
		return nil, err
	}
	// Over-fetch: the MATCH runs before the db filter.
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.db, d.kind, d.name, d.text, v.distance
		FROM vec_schema v
		JOIN schema_documents d ON d.id = v.rowid
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, string(blob), topK*8)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.DB, &m.Kind, &m.Name, &m.Text, &distance); err != nil {
			return nil, err
		}
		if m.DB != db {
			continue
		}
		m.Score = 1 - distance
		matches = append(matches, m)
		if len(matches) == topK {
			break
		}
	}
	return matches, rows.Err()
}

// searchScan loads every document of the database and ranks in process.
func (s *Store) searchScan(ctx context.Context, db string, queryVec []float32, topK int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT kind, name, text, embedding FROM schema_documents WHERE db = ?", db)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	var vectors [][]float32
	for rows.Next() {
		var doc Document
		var blob string
		if err := rows.Scan(&doc.Kind, &doc.Name, &doc.Text, &blob); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(blob), &vec); err != nil {
			logging.Get(logging.CategoryRetrieval).Warnf("corrupt embedding for %s, skipping: %v", doc.Name, err)
			continue
		}
		doc.DB = db
		docs = append(docs, doc)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := embedding.FindTopK(queryVec, vectors, topK)
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{Document: docs[r.Index], Score: r.Similarity})
	}
	return matches, nil
}

// Count returns how many documents are indexed for a database.
func (s *Store) Count(ctx context.Context, db string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_documents WHERE db = ?", db).Scan(&n)
	return n, err
}
