package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mnemex-labs/mnemex/internal/idgen"
	"github.com/mnemex-labs/mnemex/internal/model"
)

func createLink(ctx context.Context, exec pgxExecer, link model.DerivedObjectLink) (model.DerivedObjectLink, error) {
	if link.ID == "" {
		link.ID = idgen.Link()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	_, err := exec.Exec(ctx,
		`INSERT INTO memory_links_v2 (id, parent_id, child_id, relationship, rule,
		 strength_transfer, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.ID, link.ParentID, link.ChildID, link.Relationship, link.Rule,
		link.StrengthTransfer, link.CreatedAt,
	)
	if err != nil {
		return model.DerivedObjectLink{}, fmt.Errorf("storage: create link: %w", err)
	}
	return link, nil
}

// CreateLink inserts a new derived-object link, e.g. an impact extracted
// from an event, or a seed derived from a cluster of impacts, using the
// connection pool. Use CreateLinkTx to keep it atomic with the memory insert
// it derives from.
func (db *DB) CreateLink(ctx context.Context, link model.DerivedObjectLink) (model.DerivedObjectLink, error) {
	return createLink(ctx, db.pool, link)
}

// CreateLinkTx inserts a new derived-object link within an existing transaction.
func CreateLinkTx(ctx context.Context, tx pgx.Tx, link model.DerivedObjectLink) (model.DerivedObjectLink, error) {
	return createLink(ctx, tx, link)
}

// ListChildLinks returns every link whose parent is the given memory id,
// e.g. all impacts/seeds derived from one event. Used for the one-hop
// revocation cascade.
func (db *DB) ListChildLinks(ctx context.Context, parentID string) ([]model.DerivedObjectLink, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, parent_id, child_id, relationship, rule, strength_transfer, created_at
		 FROM memory_links_v2 WHERE parent_id = $1`, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list child links: %w", err)
	}
	defer rows.Close()

	var links []model.DerivedObjectLink
	for rows.Next() {
		var l model.DerivedObjectLink
		if err := rows.Scan(&l.ID, &l.ParentID, &l.ChildID, &l.Relationship, &l.Rule,
			&l.StrengthTransfer, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ListParentLinks returns every link whose child is the given memory id,
// that is, what a memory was derived from. /explain does not call it.
func (db *DB) ListParentLinks(ctx context.Context, childID string) ([]model.DerivedObjectLink, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, parent_id, child_id, relationship, rule, strength_transfer, created_at
		 FROM memory_links_v2 WHERE child_id = $1`, childID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list parent links: %w", err)
	}
	defer rows.Close()

	var links []model.DerivedObjectLink
	for rows.Next() {
		var l model.DerivedObjectLink
		if err := rows.Scan(&l.ID, &l.ParentID, &l.ChildID, &l.Relationship, &l.Rule,
			&l.StrengthTransfer, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
