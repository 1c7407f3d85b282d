package genericrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type pendingWrite[D Entity] struct {
	entity   D
	children []ChildWrite
}

// Add inserts a new entity and its children in one transaction and remembers
// it for later Persist calls. The entity is stored at its current version. A
// discarded entity is inserted as soft deleted.
func (r *Repository[D, R]) Add(ctx context.Context, entity D) error {
	defer r.opts.metrics.observe(r.table(), "add", time.Now())

	id := entity.EntityID()
	if id == "" {
		return &PreconditionError{Op: "add", Reason: "entity has no id"}
	}

	children, err := r.mapChildren(ctx, "add", entity)
	if err != nil {
		return err
	}

	row, discarded, err := r.toRow(entity)
	if err != nil {
		return fmt.Errorf("%s: map %q: %w", r.table(), id, err)
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewInsert().Model(row)
		if discarded {
			q = q.Value(r.cfg.SoftDeleteColumn, "?", true)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("%s: insert %q: %w", r.table(), id, err)
		}
		return writeChildren(ctx, tx, id, children)
	})
	if err != nil {
		return err
	}

	r.seen.add(entity)
	return nil
}

// Persist writes the changes of an entity previously returned by Query or Get,
// or passed to Add, then its children, in one transaction.
func (r *Repository[D, R]) Persist(ctx context.Context, entity D) error {
	defer r.opts.metrics.observe(r.table(), "persist", time.Now())
	return r.persist(ctx, "persist", []D{entity})
}

// PersistAll is Persist for several entities. Preconditions are checked for
// every entity before anything is written; writes run in input order inside a
// single transaction, so one conflict rolls back the whole batch.
func (r *Repository[D, R]) PersistAll(ctx context.Context, entities []D) error {
	defer r.opts.metrics.observe(r.table(), "persist_all", time.Now())
	if len(entities) == 0 {
		return nil
	}
	return r.persist(ctx, "persist_all", entities)
}

func (r *Repository[D, R]) persist(ctx context.Context, op string, entities []D) error {
	for _, e := range entities {
		if !r.seen.has(e) {
			return &PreconditionError{Op: op, ID: e.EntityID(), Reason: "entity was not loaded or added by this repository"}
		}
	}

	batch := make([]pendingWrite[D], len(entities))
	for i, e := range entities {
		children, err := r.mapChildren(ctx, op, e)
		if err != nil {
			return err
		}
		batch[i] = pendingWrite[D]{entity: e, children: children}
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, p := range batch {
			if err := r.update(ctx, tx, p.entity); err != nil {
				return err
			}
			if err := writeChildren(ctx, tx, p.entity.EntityID(), p.children); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range entities {
		r.seen.add(e)
	}
	return nil
}

// update writes the root row of entity. A versioned row is only written when
// the stored version still equals the one entity was last read or written at;
// the entity's own version, bumped by its mutators, is written in its place.
func (r *Repository[D, R]) update(ctx context.Context, db bun.IDB, entity D) error {
	id := entity.EntityID()
	_, versioned := any(entity).(Versioned)
	useVersion := versioned && r.cfg.VersionColumn != ""
	expected := r.seen.stored(entity)

	row, discarded, err := r.toRow(entity)
	if err != nil {
		return fmt.Errorf("%s: map %q: %w", r.table(), id, err)
	}

	q := db.NewUpdate().Model(row).WherePK()
	if discarded {
		q = q.Value(r.cfg.SoftDeleteColumn, "?", true)
	}
	if useVersion {
		q = q.Where("?TableAlias.? = ?", bun.Ident(r.cfg.VersionColumn), expected)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%s: update %q: %w", r.table(), id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: update %q: %w", r.table(), id, err)
	}
	if affected == 0 {
		if useVersion {
			r.opts.metrics.conflict(r.table())
			r.logger.Warn("concurrent modification", zap.String("id", id), zap.Int64("version", expected))
			return &ConcurrencyConflictError{Table: r.table(), ID: id, Version: expected}
		}
		return &NotFoundError{Table: r.table(), ID: id}
	}
	return nil
}

// toRow maps entity to its row. A discarded entity is mapped as live and its
// in-memory flag restored afterwards; the caller writes the persisted flag.
func (r *Repository[D, R]) toRow(entity D) (*R, bool, error) {
	d, ok := any(entity).(Discardable)
	if !ok || r.cfg.SoftDeleteColumn == "" || !d.Discarded() {
		row, err := r.cfg.ToRow(entity)
		return row, false, err
	}

	d.SetDiscarded(false)
	row, err := r.cfg.ToRow(entity)
	d.SetDiscarded(true)
	return row, true, err
}

// mapChildren runs every ChildMapper of the entity concurrently under the
// child timeout. The first error wins; a missed deadline is a TimeoutError.
func (r *Repository[D, R]) mapChildren(ctx context.Context, op string, entity D) ([]ChildWrite, error) {
	if len(r.cfg.Children) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.childTimeout)
	defer cancel()

	writes := make([]ChildWrite, len(r.cfg.Children))
	g, gctx := errgroup.WithContext(ctx)
	for i, mapper := range r.cfg.Children {
		g.Go(func() error {
			w, err := mapper(gctx, entity)
			if err != nil {
				return err
			}
			writes[i] = w
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	switch {
	case err == nil:
		return writes, nil
	case errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.opts.metrics.timeout(r.table())
		r.logger.Warn("child mapping timed out",
			zap.String("op", op),
			zap.String("id", entity.EntityID()),
			zap.Duration("timeout", r.opts.childTimeout),
		)
		return nil, &TimeoutError{Op: op, ID: entity.EntityID(), Timeout: r.opts.childTimeout}
	default:
		return nil, fmt.Errorf("%s: map children of %q: %w", r.table(), entity.EntityID(), err)
	}
}

func writeChildren(ctx context.Context, db bun.IDB, ownerID string, children []ChildWrite) error {
	for _, w := range children {
		if w == nil {
			continue
		}
		if err := w.Write(ctx, db, ownerID); err != nil {
			return err
		}
	}
	return nil
}
