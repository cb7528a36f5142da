package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

const defaultPageSize = 100

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `
	d.id, d.uri_id, u.uri, d.is_archive, d.requested, d.attempted, d.return_code,
	d.retrieved, d.created, d.modified, d.mimetype, d.language, d.added_by,
	d.text_analyzer_id, d.etag, d.file_identity, d.file_size, d.text_identity,
	d.text_size, d.title, d.process_params, d.meta`

const documentFrom = ` FROM documents d JOIN uri_equiv u ON u.id = d.uri_id `

// CreateDocument inserts a document and its collections.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.URIID == 0 {
		return domain.ErrInvalidInput
	}
	if doc.Requested.IsZero() {
		doc.Requested = time.Now().UTC()
	}

	params, meta, err := documentJSON(doc)
	if err != nil {
		return err
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (
				uri_id, is_archive, requested, attempted, return_code, retrieved, created,
				modified, mimetype, language, added_by, text_analyzer_id, etag,
				file_identity, file_size, text_identity, text_size, title,
				process_params, meta
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, doc.URIID, boolToInt(doc.IsArchive), formatNullableTime(doc.Requested),
			boolToInt(doc.Attempted), doc.ReturnCode, formatNullableTime(doc.Retrieved),
			formatNullableTime(doc.Created), formatNullableTime(doc.Modified),
			nullString(doc.MIMEType), nullString(doc.Language), nullString(doc.AddedBy),
			nullInt64(doc.TextAnalyzerID), nullString(doc.ETag),
			nullString(doc.FileIdentity), doc.FileSize,
			nullString(doc.TextIdentity), doc.TextSize, nullString(doc.Title),
			params, meta)
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading document id: %w", err)
		}
		doc.ID = id
		return replaceDocCollections(ctx, tx, id, doc.Collections)
	})
}

// UpdateDocument writes every mutable field of a document.
func (s *documentStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == 0 {
		return domain.ErrInvalidInput
	}

	params, meta, err := documentJSON(doc)
	if err != nil {
		return err
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET
				uri_id = ?, is_archive = ?, attempted = ?, return_code = ?, retrieved = ?,
				created = ?, modified = ?, mimetype = ?, language = ?, added_by = ?,
				text_analyzer_id = ?, etag = ?, file_identity = ?, file_size = ?,
				text_identity = ?, text_size = ?, title = ?, process_params = ?, meta = ?
			WHERE id = ?
		`, doc.URIID, boolToInt(doc.IsArchive), boolToInt(doc.Attempted), doc.ReturnCode,
			formatNullableTime(doc.Retrieved), formatNullableTime(doc.Created),
			formatNullableTime(doc.Modified), nullString(doc.MIMEType),
			nullString(doc.Language), nullString(doc.AddedBy),
			nullInt64(doc.TextAnalyzerID), nullString(doc.ETag),
			nullString(doc.FileIdentity), doc.FileSize,
			nullString(doc.TextIdentity), doc.TextSize, nullString(doc.Title),
			params, meta, doc.ID)
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return replaceDocCollections(ctx, tx, doc.ID, doc.Collections)
	})
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	return getDocument(ctx, s.store.db, id)
}

// FindByURI returns the oldest document attached to the class of uriID.
func (s *documentStore) FindByURI(ctx context.Context, uriID int64) (*domain.Document, error) {
	u, err := getURI(ctx, s.store.db, uriID)
	if err != nil {
		return nil, err
	}
	root := u.RootID()
	row := s.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+documentFrom+`
		WHERE u.id = ? OR u.canonical_id = ?
		ORDER BY d.id LIMIT 1`, root, root)
	return s.loadOne(ctx, row)
}

// FindByFileIdentity returns the oldest other document with the same content key.
func (s *documentStore) FindByFileIdentity(ctx context.Context, key string, excludeID int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+documentFrom+`
		WHERE d.file_identity = ? AND d.id != ?
		ORDER BY d.id LIMIT 1`, key, excludeID)
	return s.loadOne(ctx, row)
}

// ListDocuments pages through documents in ID order.
func (s *documentStore) ListDocuments(ctx context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom + ` WHERE d.id > ?`
	args := []any{opts.AfterID}
	if opts.WithText {
		query += ` AND d.text_identity IS NOT NULL`
	}
	if opts.Collection != "" {
		query += ` AND EXISTS (SELECT 1 FROM document_collections c WHERE c.doc_id = d.id AND c.collection = ?)`
		args = append(args, opts.Collection)
	}
	query += ` ORDER BY d.id LIMIT ?`
	args = append(args, pageSize(opts.Limit))

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	for i := range docs {
		if docs[i].Collections, err = docCollections(ctx, s.store.db, docs[i].ID); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// ResetContent removes fragments and embeddings and clears the text identity.
func (s *documentStore) ResetContent(ctx context.Context, docID int64) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearContent(ctx, tx, docID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET text_identity = NULL, text_size = 0,
				text_analyzer_id = NULL, process_params = NULL
			WHERE id = ?`, docID)
		if err != nil {
			return fmt.Errorf("clearing text identity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// ReplaceFragments swaps the fragments of a document and records its new text.
func (s *documentStore) ReplaceFragments(ctx context.Context, update driven.ExtractionUpdate) ([]domain.Fragment, error) {
	params, err := marshalMap(update.ProcessParams)
	if err != nil {
		return nil, fmt.Errorf("marshalling process params: %w", err)
	}

	out := make([]domain.Fragment, 0, len(update.Fragments))
	err = s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearContent(ctx, tx, update.DocID); err != nil {
			return err
		}

		docID := update.DocID
		for _, f := range update.Fragments {
			f.DocID = &docID
			if f.Scale == "" {
				f.Scale = domain.FragmentTypeParagraph
			}
			if err := insertFragment(ctx, tx, &f); err != nil {
				return err
			}
			out = append(out, f)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET
				text_identity = ?, text_size = ?, text_analyzer_id = ?,
				language = COALESCE(?, language),
				title = CASE WHEN title IS NULL OR title = '' THEN ? ELSE title END,
				process_params = ?
			WHERE id = ?`,
			nullString(update.TextIdentity), update.TextSize, nullID(update.TextAnalyzerID),
			nullString(update.Language), nullString(update.Title), params, update.DocID)
		if err != nil {
			return fmt.Errorf("recording extraction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DiscardDuplicate merges the document's URI class and deletes the document.
func (s *documentStore) DiscardDuplicate(ctx context.Context, docID, intoURIID int64) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, docID)
		if err != nil {
			return err
		}
		if _, err := mergeTx(ctx, tx, intoURIID, doc.URIID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
			return fmt.Errorf("deleting duplicate: %w", err)
		}
		return nil
	})
}

// DeleteDocument removes a document; cascades take fragments, embeddings
// and collections. An orphaned class root is removed too.
func (s *documentStore) DeleteDocument(ctx context.Context, id int64) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM uri_equiv
			WHERE id = ? AND canonical_id IS NULL
				AND NOT EXISTS (SELECT 1 FROM uri_equiv m WHERE m.canonical_id = ?)
				AND NOT EXISTS (SELECT 1 FROM documents d WHERE d.uri_id = ?)
		`, doc.URIID, doc.URIID, doc.URIID)
		if err != nil {
			return fmt.Errorf("deleting orphaned uri: %w", err)
		}
		return nil
	})
}

// InUse reports whether fragments of the document are referenced by
// analyses or cited as sources by fragments outside the document.
func (s *documentStore) InUse(ctx context.Context, docID int64) (bool, error) {
	var inUse bool
	err := s.store.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM fragments WHERE doc_id = ? AND analysis_id IS NOT NULL)
			OR EXISTS (
				SELECT 1 FROM fragments g, json_each(g.generation_data, '$.sources') j
				WHERE g.generation_data IS NOT NULL
					AND (g.doc_id IS NULL OR g.doc_id != ?)
					AND j.value IN (SELECT id FROM fragments WHERE doc_id = ?)
			)
	`, docID, docID, docID).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("checking document use: %w", err)
	}
	return inUse, nil
}

// CountBlobReferences counts documents referencing a content key.
func (s *documentStore) CountBlobReferences(ctx context.Context, key string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE file_identity = ? OR text_identity = ?`,
		key, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting blob references: %w", err)
	}
	return n, nil
}

// CreateFragment inserts a standalone fragment.
func (s *documentStore) CreateFragment(ctx context.Context, f *domain.Fragment) error {
	if f == nil || f.Text == "" || !f.Scale.IsValid() {
		return domain.ErrInvalidInput
	}
	if f.Scale.IsStandalone() != (f.DocID == nil) {
		return fmt.Errorf("%w: scale %s with doc_id %v", domain.ErrInvalidInput, f.Scale, f.DocID)
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertFragment(ctx, tx, f); err != nil {
			return err
		}
		for _, c := range f.Collections {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO fragment_collections (fragment_id, collection) VALUES (?, ?)`,
				f.ID, c); err != nil {
				return fmt.Errorf("tagging fragment: %w", err)
			}
		}
		return nil
	})
}

// GetFragment retrieves a fragment by ID.
func (s *documentStore) GetFragment(ctx context.Context, id int64) (*domain.Fragment, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+fragmentColumns+` FROM fragments f WHERE f.id = ?`, id)
	f, err := scanFragment(row)
	if err != nil {
		return nil, err
	}
	if f.Collections, err = fragmentCollections(ctx, s.store.db, f.ID); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFragments returns the fragments of a document in position order.
func (s *documentStore) GetFragments(ctx context.Context, docID int64) ([]domain.Fragment, error) {
	return s.queryFragments(ctx,
		`SELECT `+fragmentColumns+` FROM fragments f WHERE f.doc_id = ? ORDER BY f.position, f.id`, docID)
}

// GetFragmentsByIDs returns the existing fragments among ids.
func (s *documentStore) GetFragmentsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Fragment, error) {
	out := make(map[int64]domain.Fragment, len(ids))
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		args := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			args = append(args, id)
		}
		frags, err := s.queryFragments(ctx,
			`SELECT `+fragmentColumns+` FROM fragments f WHERE f.id IN (`+placeholders(len(args))+`)`, args...)
		if err != nil {
			return nil, err
		}
		for _, f := range frags {
			out[f.ID] = f
		}
	}
	return out, nil
}

// CountFragments returns the number of fragments of a document.
func (s *documentStore) CountFragments(ctx context.Context, docID int64) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fragments WHERE doc_id = ?`, docID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting fragments: %w", err)
	}
	return n, nil
}

// ListFragments pages through fragments in ID order.
func (s *documentStore) ListFragments(ctx context.Context, opts driven.ListOptions) ([]domain.Fragment, error) {
	query := `SELECT ` + fragmentColumns + ` FROM fragments f WHERE f.id > ?`
	args := []any{opts.AfterID}
	if len(opts.Scales) > 0 {
		query += ` AND f.scale IN (` + placeholders(len(opts.Scales)) + `)`
		for _, sc := range opts.Scales {
			args = append(args, string(sc))
		}
	}
	if opts.Collection != "" {
		query += ` AND (
			EXISTS (SELECT 1 FROM document_collections c WHERE c.doc_id = f.doc_id AND c.collection = ?)
			OR EXISTS (SELECT 1 FROM fragment_collections c WHERE c.fragment_id = f.id AND c.collection = ?))`
		args = append(args, opts.Collection, opts.Collection)
	}
	query += ` ORDER BY f.id LIMIT ?`
	args = append(args, pageSize(opts.Limit))
	return s.queryFragments(ctx, query, args...)
}

func (s *documentStore) queryFragments(ctx context.Context, query string, args ...any) ([]domain.Fragment, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var frags []domain.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, err
		}
		frags = append(frags, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}
	return frags, nil
}

func (s *documentStore) loadOne(ctx context.Context, row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	if doc.Collections, err = docCollections(ctx, s.store.db, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// ==================== Analyzer Store ====================

// analyzerStore implements driven.AnalyzerStore.
type analyzerStore struct {
	store *Store
}

var _ driven.AnalyzerStore = (*analyzerStore)(nil)

// EnsureAnalyzer returns the ID of a matching analyzer, creating it if needed.
func (s *analyzerStore) EnsureAnalyzer(ctx context.Context, a domain.Analyzer) (int64, error) {
	params := ""
	if len(a.Params) > 0 {
		b, err := json.Marshal(a.Params)
		if err != nil {
			return 0, fmt.Errorf("marshalling analyzer params: %w", err)
		}
		params = string(b)
	}

	if _, err := s.store.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO analyzers (name, version, params) VALUES (?, ?, ?)`,
		a.Name, a.Version, params); err != nil {
		return 0, fmt.Errorf("inserting analyzer: %w", err)
	}

	var id int64
	if err := s.store.db.QueryRowContext(ctx,
		`SELECT id FROM analyzers WHERE name = ? AND version = ? AND params = ?`,
		a.Name, a.Version, params).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading analyzer: %w", err)
	}
	return id, nil
}

// ==================== Helper Functions ====================

const fragmentColumns = `
	f.id, f.doc_id, f.position, f.char_position, f.text, f.scale, f.language,
	f.created_by, f.part_of, f.analysis_id, f.generation_data, f.confirmed`

func getDocument(ctx context.Context, q querier, id int64) (*domain.Document, error) {
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+documentFrom+` WHERE d.id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	if doc.Collections, err = docCollections(ctx, q, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// clearContent deletes the fragments and embeddings of a document.
func clearContent(ctx context.Context, q querier, docID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM embeddings WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM fragments WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting fragments: %w", err)
	}
	return nil
}

func insertFragment(ctx context.Context, q querier, f *domain.Fragment) error {
	var gen any
	if f.GenerationData != nil {
		b, err := json.Marshal(f.GenerationData)
		if err != nil {
			return fmt.Errorf("marshalling generation data: %w", err)
		}
		gen = string(b)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO fragments (
			doc_id, position, char_position, text, scale, language, created_by,
			part_of, analysis_id, generation_data, confirmed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullInt64(f.DocID), f.Position, f.CharPosition, f.Text, string(f.Scale),
		nullString(f.Language), nullString(f.CreatedBy), nullInt64(f.PartOf),
		nullInt64(f.AnalysisID), gen, boolToInt(f.Confirmed))
	if err != nil {
		return fmt.Errorf("inserting fragment: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading fragment id: %w", err)
	}
	return nil
}

func replaceDocCollections(ctx context.Context, q querier, docID int64, collections []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM document_collections WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("clearing collections: %w", err)
	}
	for _, c := range collections {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO document_collections (doc_id, collection) VALUES (?, ?)`,
			docID, c); err != nil {
			return fmt.Errorf("tagging document: %w", err)
		}
	}
	return nil
}

func docCollections(ctx context.Context, q querier, docID int64) ([]string, error) {
	return queryStrings(ctx, q,
		`SELECT collection FROM document_collections WHERE doc_id = ? ORDER BY collection`, docID)
}

func fragmentCollections(ctx context.Context, q querier, fragmentID int64) ([]string, error) {
	return queryStrings(ctx, q,
		`SELECT collection FROM fragment_collections WHERE fragment_id = ? ORDER BY collection`, fragmentID)
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func documentJSON(doc *domain.Document) (params, meta any, err error) {
	if params, err = marshalMap(doc.ProcessParams); err != nil {
		return nil, nil, fmt.Errorf("marshalling process params: %w", err)
	}
	if meta, err = marshalMap(doc.Meta); err != nil {
		return nil, nil, fmt.Errorf("marshalling meta: %w", err)
	}
	return params, meta, nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var isArchive, attempted int
	var requested, retrieved, created, modified sql.NullString
	var mimeType, language, addedBy, etag, fileID, textID, title, params, meta sql.NullString
	var analyzerID sql.NullInt64

	err := row.Scan(&doc.ID, &doc.URIID, &doc.URI, &isArchive, &requested, &attempted,
		&doc.ReturnCode, &retrieved, &created, &modified, &mimeType, &language, &addedBy,
		&analyzerID, &etag, &fileID, &doc.FileSize, &textID, &doc.TextSize, &title,
		&params, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.IsArchive = isArchive == 1
	doc.Attempted = attempted == 1
	doc.Requested = parseNullableTime(requested)
	doc.Retrieved = parseNullableTime(retrieved)
	doc.Created = parseNullableTime(created)
	doc.Modified = parseNullableTime(modified)
	doc.MIMEType = mimeType.String
	doc.Language = language.String
	doc.AddedBy = addedBy.String
	doc.TextAnalyzerID = int64Ptr(analyzerID)
	doc.ETag = etag.String
	doc.FileIdentity = fileID.String
	doc.TextIdentity = textID.String
	doc.Title = title.String

	if doc.ProcessParams, err = unmarshalMap(params); err != nil {
		return nil, fmt.Errorf("unmarshalling process params: %w", err)
	}
	if doc.Meta, err = unmarshalMap(meta); err != nil {
		return nil, fmt.Errorf("unmarshalling meta: %w", err)
	}
	return &doc, nil
}

func scanFragment(row rowScanner) (*domain.Fragment, error) {
	var f domain.Fragment
	var docID, partOf, analysisID sql.NullInt64
	var scale string
	var language, createdBy, gen sql.NullString
	var confirmed int

	err := row.Scan(&f.ID, &docID, &f.Position, &f.CharPosition, &f.Text, &scale,
		&language, &createdBy, &partOf, &analysisID, &gen, &confirmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning fragment: %w", err)
	}

	f.DocID = int64Ptr(docID)
	f.Scale = domain.FragmentType(scale)
	f.Language = language.String
	f.CreatedBy = createdBy.String
	f.PartOf = int64Ptr(partOf)
	f.AnalysisID = int64Ptr(analysisID)
	f.Confirmed = confirmed == 1
	if gen.Valid && strings.TrimSpace(gen.String) != "" && gen.String != jsonNull {
		var g domain.GenerationData
		if err := json.Unmarshal([]byte(gen.String), &g); err != nil {
			return nil, fmt.Errorf("unmarshalling generation data: %w", err)
		}
		f.GenerationData = &g
	}
	return &f, nil
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return limit
}
