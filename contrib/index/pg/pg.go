// Package pg implements index.Store on PostgreSQL: pgvector for the
// similarity leg and full-text search for the lexical leg.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/vector"
)

// Config holds PostgreSQL index configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // embedding dimension (default 1536)
	TableName string // passage table name (default regrag_passages)
}

// DefaultConfig returns default PostgreSQL index configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "",
		DBName:    "regrag",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "regrag_passages",
	}
}

// Store is a Postgres-backed passage index.
type Store struct {
	db        *sql.DB
	embedder  vector.Embedder
	chunker   index.Chunker
	dimension int
	table     string
}

// Option customises the store.
type Option func(*Store)

// WithChunker overrides the default chunker.
func WithChunker(c index.Chunker) Option {
	return func(s *Store) {
		if c != nil {
			s.chunker = c
		}
	}
}

// New connects to PostgreSQL and prepares the schema.
func New(config *Config, embedder vector.Embedder, opts ...Option) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &Store{
		db:        db,
		embedder:  embedder,
		chunker:   index.NewSimpleChunker(),
		dimension: config.Dimension,
		table:     config.TableName,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}
	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		document_id VARCHAR(255) NOT NULL,
		doc_title TEXT NOT NULL DEFAULT '',
		doc_content TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		ordinal INT NOT NULL DEFAULT 0,
		regulator VARCHAR(64) NOT NULL DEFAULT '',
		category VARCHAR(64) NOT NULL DEFAULT '',
		doc_type VARCHAR(64) NOT NULL DEFAULT '',
		jurisdiction VARCHAR(64) NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		year INT NOT NULL DEFAULT 0,
		doc_date TIMESTAMP,
		tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
		embedding vector(%d)
	)`, s.table, s.dimension)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexSQL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_tsv_idx ON %s USING GIN (tsv)", s.table, s.table)
	if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("failed to create text index: %w", err)
	}
	return nil
}

// Add ingests documents: preprocess, chunk, embed, insert.
func (s *Store) Add(ctx context.Context, docs ...index.Document) error {
	for i := range docs {
		doc := docs[i]
		index.EnsureDocumentID(&doc)
		doc.Content = index.Preprocess(doc.Content)

		passages := s.chunker.Chunk(doc)
		if len(passages) == 0 {
			continue
		}

		var vectors [][]float32
		if s.embedder != nil {
			texts := make([]string, len(passages))
			for i, p := range passages {
				texts[i] = p.Content
			}
			var err error
			vectors, err = s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", doc.ID, err)
			}
		}

		for i, p := range passages {
			var emb any
			if i < len(vectors) {
				emb = vectorToString(vectors[i])
			}
			insertSQL := fmt.Sprintf(`
			INSERT INTO %s (id, document_id, doc_title, doc_content, content, ordinal,
				regulator, category, doc_type, jurisdiction, source, url, year, doc_date, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::vector)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding`, s.table)
			_, err := s.db.ExecContext(ctx, insertSQL,
				p.ID, p.DocumentID, doc.Title, doc.Content, p.Content, p.Ordinal,
				p.Meta.Regulator, p.Meta.Category, p.Meta.DocType, p.Meta.Jurisdiction,
				p.Meta.Source, p.Meta.URL, p.Meta.Year, nullTime(p.Meta), emb)
			if err != nil {
				return fmt.Errorf("insert passage %s: %w", p.ID, err)
			}
		}
	}
	return nil
}

// SearchLexical runs full-text search over the filtered corpus.
func (s *Store) SearchLexical(ctx context.Context, query string, f filter.Set, k int) ([]index.Passage, error) {
	if k <= 0 {
		k = 10
	}
	where, args := filterClauses(f)
	args = append(args, query)
	queryArg := len(args)
	where = append(where, fmt.Sprintf("tsv @@ plainto_tsquery('english', $%d)", queryArg))
	args = append(args, k)

	sqlText := fmt.Sprintf(`
	SELECT %s, ts_rank(tsv, plainto_tsquery('english', $%d)) AS score
	FROM %s
	WHERE %s
	ORDER BY score DESC, id ASC
	LIMIT $%d`, passageColumns, queryArg, s.table, strings.Join(where, " AND "), len(args))

	return s.queryPassages(ctx, sqlText, args, func(p *index.Passage, score float64) {
		p.LexScore = score
	})
}

// SearchVector runs pgvector cosine similarity over the filtered corpus.
func (s *Store) SearchVector(ctx context.Context, queryVec []float32, f filter.Set, k int) ([]index.Passage, error) {
	if len(queryVec) == 0 {
		return []index.Passage{}, nil
	}
	if k <= 0 {
		k = 10
	}
	where, args := filterClauses(f)
	args = append(args, vectorToString(queryVec))
	vecArg := len(args)
	where = append(where, "embedding IS NOT NULL")
	args = append(args, k)

	sqlText := fmt.Sprintf(`
	SELECT %s, 1 - (embedding <=> $%d::vector) AS score
	FROM %s
	WHERE %s
	ORDER BY score DESC, id ASC
	LIMIT $%d`, passageColumns, vecArg, s.table, strings.Join(where, " AND "), len(args))

	return s.queryPassages(ctx, sqlText, args, func(p *index.Passage, score float64) {
		p.VecScore = score
	})
}

// Document returns an ingested document by ID.
func (s *Store) Document(id string) (index.Document, bool) {
	sqlText := fmt.Sprintf(`
	SELECT document_id, doc_title, doc_content, regulator, category, doc_type, jurisdiction, source, url, year
	FROM %s WHERE document_id = $1 LIMIT 1`, s.table)

	var doc index.Document
	err := s.db.QueryRow(sqlText, id).Scan(
		&doc.ID, &doc.Title, &doc.Content,
		&doc.Meta.Regulator, &doc.Meta.Category, &doc.Meta.DocType,
		&doc.Meta.Jurisdiction, &doc.Meta.Source, &doc.Meta.URL, &doc.Meta.Year)
	if err != nil {
		return index.Document{}, false
	}
	return doc, true
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// Clear removes all indexed content.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.table)); err != nil {
		return fmt.Errorf("failed to clear passages: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const passageColumns = `id, document_id, content, ordinal,
	regulator, category, doc_type, jurisdiction, source, url, year, doc_date`

func (s *Store) queryPassages(ctx context.Context, sqlText string, args []any, setScore func(*index.Passage, float64)) ([]index.Passage, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	passages := []index.Passage{}
	for rows.Next() {
		var p index.Passage
		var date sql.NullTime
		var score float64
		err := rows.Scan(&p.ID, &p.DocumentID, &p.Content, &p.Ordinal,
			&p.Meta.Regulator, &p.Meta.Category, &p.Meta.DocType, &p.Meta.Jurisdiction,
			&p.Meta.Source, &p.Meta.URL, &p.Meta.Year, &date, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		if date.Valid {
			p.Meta.Date = date.Time
		}
		setScore(&p, score)
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passages: %w", err)
	}
	return passages, nil
}

// filterClauses renders hard metadata filters as SQL predicates.
func filterClauses(f filter.Set) ([]string, []any) {
	where := []string{"TRUE"}
	args := []any{}

	addIn := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
	}

	addIn("regulator", f.Regulators)
	addIn("category", f.Categories)
	addIn("doc_type", f.DocTypes)
	if f.Year != 0 {
		args = append(args, f.Year)
		where = append(where, fmt.Sprintf("year = $%d", len(args)))
	}
	if f.Jurisdiction != "" {
		args = append(args, f.Jurisdiction)
		where = append(where, fmt.Sprintf("jurisdiction = $%d", len(args)))
	}
	return where, args
}

func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func nullTime(m index.Metadata) any {
	if m.Date.IsZero() {
		return nil
	}
	return m.Date
}
