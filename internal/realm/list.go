package realm

import (
	"iter"
	"slices"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// List is a live view of a list property. Reads reflect the current value;
// writes require a write transaction.
type List struct {
	parent *Object
	prop   *schema.Property
}

// Property returns the list's property description.
func (l *List) Property() *schema.Property {
	return l.prop
}

func (l *List) links() value.LinkList {
	_, rw, err := l.parent.row()
	if err != nil {
		return nil
	}
	return rw.values[l.prop.Index].(value.LinkList)
}

func (l *List) object(link value.Link) *Object {
	r := l.parent.realm
	return r.object(r.core.tables[link.Type].os, link.ID)
}

// Len returns the number of entries. The list of a deleted object is empty.
func (l *List) Len() int {
	return len(l.links())
}

// At returns the object at index i, or nil when i is out of range.
func (l *List) At(i int) *Object {
	links := l.links()
	if i < 0 || i >= len(links) {
		return nil
	}
	return l.object(links[i])
}

// All iterates over the entries present when iteration starts.
func (l *List) All() iter.Seq2[int, *Object] {
	return func(yield func(int, *Object) bool) {
		for i, link := range slices.Clone(l.links()) {
			if !yield(i, l.object(link)) {
				return
			}
		}
	}
}

// Objects returns the current entries as a slice.
func (l *List) Objects() []*Object {
	links := l.links()
	out := make([]*Object, len(links))
	for i, link := range links {
		out[i] = l.object(link)
	}
	return out
}

// mutate applies fn to a copy of the current links and stores the result.
func (l *List) mutate(fn func(cur value.LinkList) (value.LinkList, error)) error {
	t, rw, err := l.parent.row()
	if err != nil {
		return err
	}
	c := l.parent.realm.core
	if err := c.requireWrite("modify lists"); err != nil {
		return err
	}
	return c.atomically(func() error {
		cur := slices.Clone(rw.values[l.prop.Index].(value.LinkList))
		next, err := fn(cur)
		if err != nil {
			return err
		}
		c.setValue(t, rw, l.prop.Index, next)
		return nil
	})
}

func (l *List) coerceItems(items []any) (value.LinkList, error) {
	return l.parent.realm.coerceList(l.parent.os, l.prop, items, CreateOptions{})
}

func (l *List) checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return dberr.New(dberr.KindArgument, "index %d out of range for list of length %d", i, n).WithProperty(l.parent.os.Name, l.prop.Name)
	}
	return nil
}

// Append adds entries at the end. Items are objects or object literals,
// as in Create.
func (l *List) Append(items ...any) error {
	return l.mutate(func(cur value.LinkList) (value.LinkList, error) {
		add, err := l.coerceItems(items)
		if err != nil {
			return nil, err
		}
		return append(cur, add...), nil
	})
}

// Set replaces the entry at index i.
func (l *List) Set(i int, item any) error {
	return l.mutate(func(cur value.LinkList) (value.LinkList, error) {
		if err := l.checkIndex(i, len(cur)); err != nil {
			return nil, err
		}
		add, err := l.coerceItems([]any{item})
		if err != nil {
			return nil, err
		}
		cur[i] = add[0]
		return cur, nil
	})
}

// Remove deletes the entry at index i. The object itself is not deleted.
func (l *List) Remove(i int) error {
	return l.mutate(func(cur value.LinkList) (value.LinkList, error) {
		if err := l.checkIndex(i, len(cur)); err != nil {
			return nil, err
		}
		return slices.Delete(cur, i, i+1), nil
	})
}

// Clear removes every entry. The objects themselves are not deleted.
func (l *List) Clear() error {
	return l.mutate(func(value.LinkList) (value.LinkList, error) {
		return value.LinkList{}, nil
	})
}
