package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// vectorStore implements driven.VectorStore over the embeddings table.
// Nearest is a brute-force scan; filters run in SQL, distances in Go.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Save upserts an embedding for (model, target).
func (s *vectorStore) Save(ctx context.Context, e domain.Embedding) error {
	if e.Model == "" || len(e.Vector) == 0 {
		return domain.ErrInvalidInput
	}

	var docID, fragmentID any
	switch e.Target.Kind {
	case domain.TargetDocument:
		docID = e.Target.ID
	case domain.TargetFragment:
		fragmentID = e.Target.ID
		docID = nullInt64(e.DocID)
	default:
		return fmt.Errorf("%w: embedding target %q", domain.ErrInvalidInput, e.Target)
	}

	scale := e.Scale
	if scale == "" && e.Target.Kind == domain.TargetDocument {
		scale = domain.FragmentTypeDocument
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		where, args := targetClause(e.Model, e.Target)
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE `+where, args...); err != nil {
			return fmt.Errorf("replacing embedding: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (model, doc_id, fragment_id, scale, analyzer_id, vector)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.Model, docID, fragmentID, string(scale), nullID(e.AnalyzerID), float32SliceToBytes(e.Vector))
		if err != nil {
			return fmt.Errorf("inserting embedding: %w", err)
		}
		return nil
	})
}

// Get retrieves the embedding of a target.
func (s *vectorStore) Get(ctx context.Context, model string, target domain.EmbeddingTarget) (*domain.Embedding, error) {
	where, args := targetClause(model, target)
	var docID, analyzerID sql.NullInt64
	var scale string
	var blob []byte
	err := s.store.db.QueryRowContext(ctx,
		`SELECT doc_id, scale, analyzer_id, vector FROM embeddings WHERE `+where, args...).
		Scan(&docID, &scale, &analyzerID, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting embedding: %w", err)
	}
	return &domain.Embedding{
		Model:      model,
		Target:     target,
		DocID:      int64Ptr(docID),
		Scale:      domain.FragmentType(scale),
		AnalyzerID: analyzerID.Int64,
		Vector:     bytesToFloat32Slice(blob),
	}, nil
}

// Exists reports whether an embedding exists for (model, target).
func (s *vectorStore) Exists(ctx context.Context, model string, target domain.EmbeddingTarget) (bool, error) {
	where, args := targetClause(model, target)
	var exists bool
	if err := s.store.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM embeddings WHERE `+where+`)`, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking embedding: %w", err)
	}
	return exists, nil
}

// Nearest ranks fragment embeddings by cosine distance to query.
func (s *vectorStore) Nearest(
	ctx context.Context, model string, query []float32, filter domain.SearchFilter, k int,
) ([]domain.Candidate, error) {
	scales := filter.EffectiveScales()
	q := `
		SELECT e.fragment_id, e.vector
		FROM embeddings e
		JOIN fragments f ON f.id = e.fragment_id
		LEFT JOIN documents d ON d.id = f.doc_id
		WHERE e.model = ? AND e.fragment_id IS NOT NULL
			AND f.scale IN (` + placeholders(len(scales)) + `)`
	args := []any{model}
	for _, sc := range scales {
		args = append(args, string(sc))
	}
	if filter.Language != "" {
		q += ` AND COALESCE(f.language, d.language) = ?`
		args = append(args, filter.Language)
	}
	if filter.Collection != "" {
		q += ` AND (
			EXISTS (SELECT 1 FROM document_collections c WHERE c.doc_id = f.doc_id AND c.collection = ?)
			OR EXISTS (SELECT 1 FROM fragment_collections c WHERE c.fragment_id = f.id AND c.collection = ?))`
		args = append(args, filter.Collection, filter.Collection)
	}
	if filter.ExcludeFragmentID != 0 {
		q += ` AND f.id != ?`
		args = append(args, filter.ExcludeFragmentID)
	}

	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec := bytesToFloat32Slice(blob)
		candidates = append(candidates, domain.Candidate{
			FragmentID: id,
			Vector:     vec,
			Distance:   domain.CosineDistance(query, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].FragmentID < candidates[j].FragmentID
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// DeleteDocument removes the embeddings of a document and its fragments.
func (s *vectorStore) DeleteDocument(ctx context.Context, docID int64) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE doc_id = ? OR fragment_id IN (SELECT id FROM fragments WHERE doc_id = ?)
	`, docID, docID)
	if err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database.
func (s *vectorStore) Close() error {
	return nil
}

func targetClause(model string, target domain.EmbeddingTarget) (string, []any) {
	if target.Kind == domain.TargetFragment {
		return `model = ? AND fragment_id = ?`, []any{model, target.ID}
	}
	return `model = ? AND doc_id = ? AND fragment_id IS NULL`, []any{model, target.ID}
}
