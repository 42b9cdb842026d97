package realm

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/store"
	"github.com/roach88/emberdb/internal/value"
)

// txn is the state of the active write transaction.
//
// Every in-memory mutation pushes its inverse onto undo. Rolling back runs
// the log in reverse, which restores rows, positions and indices exactly.
// touched records which objects the commit has to write or delete; whether
// a key is written or deleted is decided at commit time from the final
// state.
type txn struct {
	owner     *Realm
	undo      []func()
	touched   map[store.Key]struct{}
	dropTypes []string
	metaDirty bool
}

func (c *core) begin(r *Realm) *txn {
	tx := &txn{owner: r, touched: make(map[store.Key]struct{})}
	c.tx = tx
	return tx
}

func (tx *txn) touch(typeName string, id uint64) {
	tx.touched[store.Key{Type: typeName, ID: id}] = struct{}{}
}

func (c *core) requireWrite(op string) error {
	if c.tx == nil {
		return dberr.New(dberr.KindTransactionRequired, "cannot %s outside a write transaction", op)
	}
	return nil
}

// atomically runs fn as a savepoint: if fn fails, its mutations are undone
// and the rest of the transaction is kept.
func (c *core) atomically(fn func() error) error {
	mark := len(c.tx.undo)
	if err := fn(); err != nil {
		c.rollbackTo(mark)
		return err
	}
	return nil
}

func (c *core) rollbackTo(mark int) {
	tx := c.tx
	for i := len(tx.undo) - 1; i >= mark; i-- {
		tx.undo[i]()
	}
	clear(tx.undo[mark:])
	tx.undo = tx.undo[:mark]
	c.gen++
}

func (c *core) rollback() {
	if c.tx == nil {
		return
	}
	n := len(c.tx.undo)
	c.rollbackTo(0)
	c.tx = nil
	c.logger.Debug("write rolled back", zap.Int("undone", n))
}

// commit persists the transaction. On failure the caller rolls back.
func (c *core) commit(ctx context.Context) error {
	tx := c.tx
	b := store.Batch{DropTypes: tx.dropTypes}

	keys := make([]store.Key, 0, len(tx.touched))
	for k := range tx.touched {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y store.Key) int {
		if n := cmp.Compare(x.Type, y.Type); n != 0 {
			return n
		}
		return cmp.Compare(x.ID, y.ID)
	})
	for _, k := range keys {
		t, ok := c.tables[k.Type]
		if !ok {
			continue
		}
		if i, ok := t.index(k.ID); ok {
			b.Puts = append(b.Puts, store.Record{Key: k, Ord: i, Values: t.rows[i].values})
		} else {
			b.Deletes = append(b.Deletes, k)
		}
	}

	meta := c.meta
	meta.NextID = c.nextID
	if tx.metaDirty || meta.NextID != c.meta.NextID || len(b.DropTypes) > 0 || len(keys) > 0 {
		b.Meta = &meta
	}

	if err := c.store.Commit(ctx, c.schema, b); err != nil {
		c.logger.Error("commit failed", zap.Error(err))
		return err
	}
	c.meta = meta
	c.tx = nil
	c.logger.Debug("write committed",
		zap.Int("puts", len(b.Puts)),
		zap.Int("deletes", len(b.Deletes)),
		zap.Int("dropped_types", len(b.DropTypes)))
	return nil
}

// The primitives below are the only code that mutates tables. Each one
// records its inverse.

func (c *core) allocID() uint64 {
	id := c.nextID
	c.nextID++
	c.tx.undo = append(c.tx.undo, func() { c.nextID-- })
	return id
}

func (c *core) insertRow(t *table, r *row) {
	t.insert(r)
	c.tx.touch(t.os.Name, r.id)
	c.gen++
	c.tx.undo = append(c.tx.undo, func() {
		t.remove(r.id)
		c.gen++
	})
}

func (c *core) removeRow(t *table, r *row) {
	i, moved := t.remove(r.id)
	if i < 0 {
		return
	}
	c.tx.touch(t.os.Name, r.id)
	if moved != nil {
		c.tx.touch(t.os.Name, moved.id)
	}
	c.gen++
	c.tx.undo = append(c.tx.undo, func() {
		t.reinsert(r, i)
		c.gen++
	})
}

func (c *core) setValue(t *table, r *row, i int, v value.Value) {
	old := r.values[i]
	r.values[i] = v
	c.tx.touch(t.os.Name, r.id)
	c.gen++
	c.tx.undo = append(c.tx.undo, func() {
		r.values[i] = old
		c.gen++
	})
}

func (c *core) truncate(t *table) {
	saved := *t
	t.reset()
	c.gen++
	c.tx.undo = append(c.tx.undo, func() {
		*t = saved
		c.gen++
	})
}
