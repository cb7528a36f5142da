package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// uriStore implements driven.URIStore.
type uriStore struct {
	store *Store
}

var _ driven.URIStore = (*uriStore)(nil)

// GetURI retrieves a member by ID.
func (s *uriStore) GetURI(ctx context.Context, id int64) (*domain.URI, error) {
	return getURI(ctx, s.store.db, id)
}

// GetURIByString retrieves a member by its normalized string.
func (s *uriStore) GetURIByString(ctx context.Context, uri string) (*domain.URI, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT id, uri, status, canonical_id FROM uri_equiv WHERE uri = ?`, uri)
	return scanURI(row)
}

// AddURLs creates the URLs that are not stored yet in one transaction.
func (s *uriStore) AddURLs(
	ctx context.Context, urls []string, snapshotOf map[string]int64,
) (created, existing []domain.URI, err error) {
	err = s.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range urls {
			row := tx.QueryRowContext(ctx,
				`SELECT id, uri, status, canonical_id FROM uri_equiv WHERE uri = ?`, u)
			found, err := scanURI(row)
			if err == nil {
				existing = append(existing, *found)
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			status := domain.RootStatus(u)
			var canonical *int64
			if targetID, ok := snapshotOf[u]; ok {
				target, err := getURI(ctx, tx, targetID)
				if err != nil {
					return fmt.Errorf("resolving equivalence target %d: %w", targetID, err)
				}
				root := target.RootID()
				canonical = &root
				status = domain.URIStatusSnapshot
			}

			added, err := insertURI(ctx, tx, u, status, canonical)
			if err != nil {
				return err
			}
			created = append(created, *added)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, existing, nil
}

// AddVariant creates uri in the class of existingID.
func (s *uriStore) AddVariant(
	ctx context.Context, uri string, existingID int64, status domain.URIStatus,
) (*domain.URI, error) {
	var added *domain.URI
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getURI(ctx, tx, existingID)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM uri_equiv WHERE uri = ?`, uri).Scan(&count); err != nil {
			return fmt.Errorf("checking uri: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, uri)
		}

		if status == domain.URIStatusCanonical {
			added, err = insertURI(ctx, tx, uri, status, nil)
			if err != nil {
				return err
			}
			rootID, err := mergeTx(ctx, tx, added.ID, existing.ID)
			if err != nil {
				return err
			}
			if rootID != added.ID {
				added.CanonicalID = &rootID
			}
			return nil
		}

		root := existing.RootID()
		added, err = insertURI(ctx, tx, uri, status, &root)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// Merge joins the class of fromID into the class of intoID.
func (s *uriStore) Merge(ctx context.Context, intoID, fromID int64) (int64, error) {
	var rootID int64
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		rootID, err = mergeTx(ctx, tx, intoID, fromID)
		return err
	})
	return rootID, err
}

// Promote makes a member the canonical root of its class.
func (s *uriStore) Promote(ctx context.Context, id int64) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		u, err := getURI(ctx, tx, id)
		if err != nil {
			return err
		}

		if u.IsRoot() {
			if u.Status == domain.URIStatusCanonical {
				return nil
			}
			_, err := tx.ExecContext(ctx, `UPDATE uri_equiv SET status = ? WHERE id = ?`,
				domain.URIStatusCanonical, id)
			if err != nil {
				return fmt.Errorf("promoting uri: %w", err)
			}
			return nil
		}

		oldRoot, err := getURI(ctx, tx, u.RootID())
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE uri_equiv SET status = ?, canonical_id = NULL WHERE id = ?`,
			domain.URIStatusCanonical, id); err != nil {
			return fmt.Errorf("promoting uri: %w", err)
		}

		demoted := oldRoot.Status
		if demoted == domain.URIStatusCanonical {
			demoted = domain.URIStatusAlt
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE uri_equiv SET status = ?, canonical_id = ? WHERE id = ?`,
			demoted, id, oldRoot.ID); err != nil {
			return fmt.Errorf("demoting root: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE uri_equiv SET canonical_id = ? WHERE canonical_id = ? AND id != ?`,
			id, oldRoot.ID, id); err != nil {
			return fmt.Errorf("repointing members: %w", err)
		}
		return nil
	})
}

// Members returns the class of id, root first.
func (s *uriStore) Members(ctx context.Context, id int64) ([]domain.URI, error) {
	u, err := getURI(ctx, s.store.db, id)
	if err != nil {
		return nil, err
	}
	root := u.RootID()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, uri, status, canonical_id FROM uri_equiv
		WHERE id = ? OR canonical_id = ?
		ORDER BY canonical_id IS NOT NULL, id
	`, root, root)
	if err != nil {
		return nil, fmt.Errorf("querying class members: %w", err)
	}
	defer rows.Close()

	var members []domain.URI
	for rows.Next() {
		m, err := scanURI(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating class members: %w", err)
	}
	return members, nil
}

// mergeTx repoints the class of fromID at the root of intoID's class.
// Returns the surviving root.
func mergeTx(ctx context.Context, q querier, intoID, fromID int64) (int64, error) {
	into, err := getURI(ctx, q, intoID)
	if err != nil {
		return 0, fmt.Errorf("loading merge target: %w", err)
	}
	from, err := getURI(ctx, q, fromID)
	if err != nil {
		return 0, fmt.Errorf("loading merge source: %w", err)
	}

	intoRoot := into.RootID()
	fromRootID := from.RootID()
	if intoRoot == fromRootID {
		return intoRoot, nil
	}

	fromRoot, err := getURI(ctx, q, fromRootID)
	if err != nil {
		return 0, fmt.Errorf("loading merge source root: %w", err)
	}
	if fromRoot.Status == domain.URIStatusCanonical {
		if _, err := q.ExecContext(ctx, `UPDATE uri_equiv SET status = ? WHERE id = ?`,
			domain.URIStatusAlt, fromRootID); err != nil {
			return 0, fmt.Errorf("demoting merged root: %w", err)
		}
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE uri_equiv SET canonical_id = ? WHERE id = ? OR canonical_id = ?`,
		intoRoot, fromRootID, fromRootID); err != nil {
		return 0, fmt.Errorf("repointing merged class: %w", err)
	}
	return intoRoot, nil
}

func getURI(ctx context.Context, q querier, id int64) (*domain.URI, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, uri, status, canonical_id FROM uri_equiv WHERE id = ?`, id)
	return scanURI(row)
}

func insertURI(ctx context.Context, q querier, uri string, status domain.URIStatus, canonical *int64) (*domain.URI, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO uri_equiv (uri, status, canonical_id) VALUES (?, ?, ?)`,
		uri, status, nullInt64(canonical))
	if err != nil {
		return nil, fmt.Errorf("inserting uri: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading uri id: %w", err)
	}
	return &domain.URI{ID: id, URI: uri, Status: status, CanonicalID: canonical}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanURI(row rowScanner) (*domain.URI, error) {
	var u domain.URI
	var status string
	var canonical sql.NullInt64
	if err := row.Scan(&u.ID, &u.URI, &status, &canonical); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning uri: %w", err)
	}
	u.Status = domain.URIStatus(status)
	u.CanonicalID = int64Ptr(canonical)
	return &u, nil
}
