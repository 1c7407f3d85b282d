package genericrepo

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// ChildWrite is a write that follows the root row inside the same transaction.
type ChildWrite interface {
	Write(ctx context.Context, db bun.IDB, ownerID string) error
}

// ChildMapper maps an entity to one ChildWrite. Mappers of one entity run
// concurrently and must not mutate it.
type ChildMapper[D any] func(ctx context.Context, entity D) (ChildWrite, error)

// ChildWriteFunc adapts a function to ChildWrite.
type ChildWriteFunc func(ctx context.Context, db bun.IDB, ownerID string) error

func (f ChildWriteFunc) Write(ctx context.Context, db bun.IDB, ownerID string) error {
	return f(ctx, db, ownerID)
}

// ReplaceRows deletes the child rows of the owner and inserts rows in their
// place. C is the bun model of the child table; ownerColumn its foreign key.
func ReplaceRows[C any](ownerColumn string, rows []*C) ChildWrite {
	return &rowsWrite[C]{ownerColumn: ownerColumn, rows: rows}
}

type rowsWrite[C any] struct {
	ownerColumn string
	rows        []*C
}

func (w *rowsWrite[C]) Write(ctx context.Context, db bun.IDB, ownerID string) error {
	if _, err := db.NewDelete().
		Model((*C)(nil)).
		Where("? = ?", bun.Ident(w.ownerColumn), ownerID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete children of %s: %w", ownerID, err)
	}
	if len(w.rows) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&w.rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert children of %s: %w", ownerID, err)
	}
	return nil
}
