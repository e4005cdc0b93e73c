package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// IngestWrite bundles everything one v2 ingest call must persist atomically:
// the memory itself, an optional derived impact with the link connecting it
// to its parent, and the access log row recording the call.
type IngestWrite struct {
	Memory    model.MemoryObject
	Impact    *model.MemoryObject
	Link      *model.DerivedObjectLink
	AccessLog model.AccessLog
}

// IngestMemoryObject persists an IngestWrite in a single transaction: no
// partial memory, derived impact, link, or audit row is ever left behind on
// error (spec §4.8).
func (db *DB) IngestMemoryObject(ctx context.Context, w IngestWrite) (model.MemoryObject, *model.MemoryObject, error) {
	var created model.MemoryObject
	var createdImpact *model.MemoryObject

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = CreateMemoryObjectTx(ctx, tx, w.Memory)
		if err != nil {
			return fmt.Errorf("storage: ingest memory: %w", err)
		}

		if w.Impact != nil {
			imp, err := CreateMemoryObjectTx(ctx, tx, *w.Impact)
			if err != nil {
				return fmt.Errorf("storage: ingest derived impact: %w", err)
			}
			createdImpact = &imp

			if w.Link != nil {
				link := *w.Link
				link.ParentID = created.ID
				link.ChildID = imp.ID
				if _, err := CreateLinkTx(ctx, tx, link); err != nil {
					return fmt.Errorf("storage: ingest link: %w", err)
				}
			}
		}

		if err := InsertAccessLogTx(ctx, tx, w.AccessLog); err != nil {
			return fmt.Errorf("storage: ingest access log: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.MemoryObject{}, nil, err
	}
	return created, createdImpact, nil
}
