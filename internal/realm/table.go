package realm

import (
	"github.com/google/btree"

	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// row is one stored object. The pointer is the object's identity for the
// lifetime of the core; its position in the table changes as rows compact.
type row struct {
	id     uint64
	values []value.Value
}

// Value implements query.Row.
func (r *row) Value(i int) value.Value {
	return r.values[i]
}

// table holds the rows of one object type in row order.
type table struct {
	os   *schema.ObjectSchema
	rows []*row
	pos  map[uint64]int
	pk   *pkIndex // nil without a primary key
	free *btree.FreeList
}

func newTable(os *schema.ObjectSchema, free *btree.FreeList) *table {
	t := &table{os: os, free: free}
	t.reset()
	return t
}

// reset empties the table. The previous rows, position map and index are
// left untouched so that a saved copy of the table stays usable.
func (t *table) reset() {
	t.rows = nil
	t.pos = make(map[uint64]int)
	t.pk = nil
	if t.os.PrimaryKey != "" {
		t.pk = newPKIndex(t.free)
	}
}

func (t *table) len() int {
	return len(t.rows)
}

func (t *table) get(id uint64) (*row, bool) {
	i, ok := t.pos[id]
	if !ok {
		return nil, false
	}
	return t.rows[i], true
}

func (t *table) index(id uint64) (int, bool) {
	i, ok := t.pos[id]
	return i, ok
}

func (t *table) pkKey(r *row) value.Value {
	return r.values[t.os.PrimaryKeyProperty().Index]
}

// lookup finds the row holding a primary key.
func (t *table) lookup(key value.Value) (*row, bool) {
	if t.pk == nil {
		return nil, false
	}
	id, ok := t.pk.lookup(key)
	if !ok {
		return nil, false
	}
	return t.get(id)
}

// insert appends r as the last row.
func (t *table) insert(r *row) {
	t.rows = append(t.rows, r)
	t.pos[r.id] = len(t.rows) - 1
	if t.pk != nil {
		t.pk.put(t.pkKey(r), r.id)
	}
}

// remove deletes the row with the given id by moving the last row into its
// slot. It returns the freed index and the moved row, or nil when the
// removed row was last.
func (t *table) remove(id uint64) (int, *row) {
	i, ok := t.pos[id]
	if !ok {
		return -1, nil
	}
	r := t.rows[i]
	if t.pk != nil {
		t.pk.remove(t.pkKey(r))
	}
	delete(t.pos, id)

	last := len(t.rows) - 1
	var moved *row
	if i != last {
		moved = t.rows[last]
		t.rows[i] = moved
		t.pos[moved.id] = i
	}
	t.rows[last] = nil
	t.rows = t.rows[:last]
	return i, moved
}

// reinsert reverses the remove that freed index i.
func (t *table) reinsert(r *row, i int) {
	if i == len(t.rows) {
		t.rows = append(t.rows, r)
	} else {
		moved := t.rows[i]
		t.rows = append(t.rows, moved)
		t.pos[moved.id] = len(t.rows) - 1
		t.rows[i] = r
	}
	t.pos[r.id] = i
	if t.pk != nil {
		t.pk.put(t.pkKey(r), r.id)
	}
}
