package fragments

import (
	"context"
	stderrors "errors"
)

// Batch stages writes to a store so a caller can apply them next to another
// write and undo them if that write fails.
type Batch struct {
	store   Store
	pending []Record
	undo    []prior
}

type prior struct {
	kind    Kind
	id      string
	body    string
	existed bool
}

// NewBatch starts an empty batch over store.
func NewBatch(store Store) *Batch {
	return &Batch{store: store}
}

// Put stages a write. A later Put of the same record replaces the earlier.
func (b *Batch) Put(kind Kind, id, body string) {
	for i, rec := range b.pending {
		if rec.Kind == kind && rec.ID == id {
			b.pending[i].Body = body
			return
		}
	}
	b.pending = append(b.pending, Record{Kind: kind, ID: id, Body: body})
}

// Len returns the number of staged writes.
func (b *Batch) Len() int { return len(b.pending) }

// Commit applies the staged writes in order. When one fails, the writes
// already applied are undone and the error is returned.
func (b *Batch) Commit(ctx context.Context) error {
	for _, rec := range b.pending {
		body, ok, err := b.store.Get(ctx, rec.Kind, rec.ID)
		if err != nil {
			return b.abort(ctx, err)
		}
		if err := b.store.Put(ctx, rec.Kind, rec.ID, rec.Body); err != nil {
			return b.abort(ctx, err)
		}
		b.undo = append(b.undo, prior{kind: rec.Kind, id: rec.ID, body: body, existed: ok})
	}
	b.pending = nil
	return nil
}

func (b *Batch) abort(ctx context.Context, err error) error {
	b.pending = nil
	if rbErr := b.Rollback(ctx); rbErr != nil {
		return stderrors.Join(err, rbErr)
	}
	return err
}

// Rollback restores every record a Commit wrote to its previous body, or
// deletes it when it did not exist before.
func (b *Batch) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(b.undo) - 1; i >= 0; i-- {
		p := b.undo[i]
		var err error
		if p.existed {
			err = b.store.Put(ctx, p.kind, p.id, p.body)
		} else {
			err = b.store.Delete(ctx, p.kind, p.id)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	b.undo = nil
	return stderrors.Join(errs...)
}
