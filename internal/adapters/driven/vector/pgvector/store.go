// Package pgvector provides a VectorStore backed by PostgreSQL with the
// pgvector extension. Filter attributes (scale, language, collections) are
// mirrored onto each row so nearest-neighbour queries need no joins.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultTableName is the table used when none is configured.
const DefaultTableName = "claimminer_embeddings"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds configuration for the pgvector store.
type Config struct {
	// ConnectionString is a PostgreSQL DSN (required).
	ConnectionString string

	// TableName is the embeddings table (default: claimminer_embeddings).
	TableName string
}

// Store persists embeddings in PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// New connects, verifies the vector extension and ensures the table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("%w: postgres connection string is required", domain.ErrInvalidInput)
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if !validTableName.MatchString(cfg.TableName) {
		return nil, fmt.Errorf("%w: table name %q", domain.ErrInvalidInput, cfg.TableName)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	s := &Store{pool: pool, table: cfg.TableName}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var extExists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')",
	).Scan(&extExists); err != nil {
		return fmt.Errorf("checking pgvector extension: %w", err)
	}
	if !extExists {
		return errors.New("pgvector extension not installed - run: CREATE EXTENSION vector")
	}

	// Dimensions vary per model, so the column is unconstrained.
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			model TEXT NOT NULL,
			kind CHAR(1) NOT NULL,
			target_id BIGINT NOT NULL,
			doc_id BIGINT,
			scale TEXT NOT NULL,
			analyzer_id BIGINT,
			language TEXT,
			collections TEXT[] NOT NULL DEFAULT '{}',
			embedding vector NOT NULL,
			PRIMARY KEY (model, kind, target_id)
		);
		CREATE INDEX IF NOT EXISTS %[1]s_doc_idx ON %[1]s (doc_id);
		CREATE INDEX IF NOT EXISTS %[1]s_scale_idx ON %[1]s (model, scale);
	`, s.table))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

// Save upserts an embedding for (model, target).
func (s *Store) Save(ctx context.Context, e domain.Embedding) error {
	if e.Model == "" || len(e.Vector) == 0 {
		return domain.ErrInvalidInput
	}

	docID := e.DocID
	scale := e.Scale
	if e.Target.Kind == domain.TargetDocument {
		id := e.Target.ID
		docID = &id
		if scale == "" {
			scale = domain.FragmentTypeDocument
		}
	}

	collections := e.Collections
	if collections == nil {
		collections = []string{}
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (model, kind, target_id, doc_id, scale, analyzer_id, language, collections, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (model, kind, target_id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			scale = EXCLUDED.scale,
			analyzer_id = EXCLUDED.analyzer_id,
			language = EXCLUDED.language,
			collections = EXCLUDED.collections,
			embedding = EXCLUDED.embedding`, s.table),
		e.Model, string(e.Target.Kind), e.Target.ID, docID, string(scale),
		nullID(e.AnalyzerID), e.Language, collections, pgvector.NewVector(e.Vector))
	if err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}
	return nil
}

// Get retrieves the embedding of a target.
func (s *Store) Get(ctx context.Context, model string, target domain.EmbeddingTarget) (*domain.Embedding, error) {
	var docID, analyzerID *int64
	var scale string
	var language *string
	var collections []string
	var vec pgvector.Vector

	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT doc_id, scale, analyzer_id, language, collections, embedding
		FROM %s WHERE model = $1 AND kind = $2 AND target_id = $3`, s.table),
		model, string(target.Kind), target.ID,
	).Scan(&docID, &scale, &analyzerID, &language, &collections, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting embedding: %w", err)
	}

	e := &domain.Embedding{
		Model:       model,
		Target:      target,
		DocID:       docID,
		Scale:       domain.FragmentType(scale),
		Vector:      vec.Slice(),
		Collections: collections,
	}
	if analyzerID != nil {
		e.AnalyzerID = *analyzerID
	}
	if language != nil {
		e.Language = *language
	}
	return e, nil
}

// Exists reports whether an embedding exists for (model, target).
func (s *Store) Exists(ctx context.Context, model string, target domain.EmbeddingTarget) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT EXISTS(SELECT 1 FROM %s WHERE model = $1 AND kind = $2 AND target_id = $3)`, s.table),
		model, string(target.Kind), target.ID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking embedding: %w", err)
	}
	return exists, nil
}

// Nearest orders fragment embeddings with the <=> cosine distance operator.
func (s *Store) Nearest(
	ctx context.Context, model string, query []float32, filter domain.SearchFilter, k int,
) ([]domain.Candidate, error) {
	sql, args := nearestQuery(s.table, model, query, filter, k)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		var vec pgvector.Vector
		if err := rows.Scan(&c.FragmentID, &vec, &c.Distance); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Vector = vec.Slice()
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return candidates, nil
}

// DeleteDocument removes the embeddings of a document and its fragments.
func (s *Store) DeleteDocument(ctx context.Context, docID int64) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.table), docID)
	if err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// nearestQuery builds the candidate query and its arguments.
func nearestQuery(
	table, model string, query []float32, filter domain.SearchFilter, k int,
) (string, []any) {
	scales := filter.EffectiveScales()
	scaleNames := make([]string, len(scales))
	for i, sc := range scales {
		scaleNames[i] = string(sc)
	}

	args := []any{pgvector.NewVector(query), model, string(domain.TargetFragment), scaleNames}
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT target_id, embedding, embedding <=> $1 AS distance FROM %s
		WHERE model = $2 AND kind = $3 AND scale = ANY($4)`, table)

	if filter.Language != "" {
		args = append(args, filter.Language)
		fmt.Fprintf(&b, " AND language = $%d", len(args))
	}
	if filter.Collection != "" {
		args = append(args, filter.Collection)
		fmt.Fprintf(&b, " AND $%d = ANY(collections)", len(args))
	}
	if filter.ExcludeFragmentID != 0 {
		args = append(args, filter.ExcludeFragmentID)
		fmt.Fprintf(&b, " AND target_id <> $%d", len(args))
	}
	b.WriteString(" ORDER BY distance, target_id")
	if k > 0 {
		args = append(args, k)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
