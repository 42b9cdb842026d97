package realm

import (
	"slices"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/store"
	"github.com/roach88/emberdb/internal/value"
)

// Delete removes objects. target is an *Object, a []*Object, a []any of
// objects, a *Results or a *List; collections are deleted as they are at
// the time of the call.
//
// Rows compact by moving the last row of a type into each freed slot.
// Single links to a deleted object become null and list entries pointing at
// it are removed. A required (non-optional) link to a deleted object that
// is not itself deleted makes the whole delete fail with ArgumentError.
func (r *Realm) Delete(target any) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	objects, err := deleteTargets(target)
	if err != nil {
		return err
	}
	c := r.core
	if err := c.requireWrite("delete objects"); err != nil {
		return err
	}
	return c.atomically(func() error { return r.deleteObjects(objects) })
}

func deleteTargets(target any) ([]*Object, error) {
	switch v := target.(type) {
	case *Object:
		if v == nil {
			break
		}
		return []*Object{v}, nil
	case []*Object:
		return v, nil
	case []any:
		out := make([]*Object, len(v))
		for i, item := range v {
			o, ok := item.(*Object)
			if !ok || o == nil {
				return nil, dberr.New(dberr.KindArgument, "delete expects objects, got %T at index %d", item, i)
			}
			out[i] = o
		}
		return out, nil
	case *Results:
		if v == nil {
			break
		}
		return v.Objects(), nil
	case *List:
		if v == nil {
			break
		}
		return v.Objects(), nil
	}
	return nil, dberr.New(dberr.KindArgument, "delete expects an object or a collection of objects, got %T", target)
}

func (r *Realm) deleteObjects(objects []*Object) error {
	c := r.core
	dying := make(map[store.Key]struct{}, len(objects))
	byType := make(map[string][]*row)
	for _, o := range objects {
		if o.realm.core != c {
			return dberr.New(dberr.KindArgument, "object belongs to a different realm").WithType(o.os.Name)
		}
		_, rw, err := o.row()
		if err != nil {
			return err
		}
		k := store.Key{Type: o.os.Name, ID: o.id}
		if _, dup := dying[k]; dup {
			continue
		}
		dying[k] = struct{}{}
		byType[k.Type] = append(byType[k.Type], rw)
	}
	if len(dying) == 0 {
		return nil
	}

	if err := r.unlink(dying); err != nil {
		return err
	}

	for _, os := range c.schema.Types() {
		rows := byType[os.Name]
		if len(rows) == 0 {
			continue
		}
		t := c.tables[os.Name]
		// Highest row first, so that every row that moves into a freed
		// slot is one that survives.
		slices.SortFunc(rows, func(a, b *row) int {
			ia, _ := t.index(a.id)
			ib, _ := t.index(b.id)
			return ib - ia
		})
		for _, rw := range rows {
			c.removeRow(t, rw)
		}
	}
	return nil
}

// unlink clears every link into the dying set held by a surviving object.
func (r *Realm) unlink(dying map[store.Key]struct{}) error {
	c := r.core
	for _, os := range c.schema.Types() {
		t := c.tables[os.Name]
		for i := range os.Properties {
			p := &os.Properties[i]
			if !p.Type.IsLink() {
				continue
			}
			for _, rw := range t.rows {
				if _, self := dying[store.Key{Type: os.Name, ID: rw.id}]; self {
					continue
				}
				if err := r.unlinkValue(t, rw, p, dying); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Realm) unlinkValue(t *table, rw *row, p *schema.Property, dying map[store.Key]struct{}) error {
	c := r.core
	switch v := rw.values[p.Index].(type) {
	case value.Link:
		if _, hit := dying[store.Key{Type: v.Type, ID: v.ID}]; !hit {
			return nil
		}
		if !p.Optional {
			return dberr.New(dberr.KindArgument, "cannot delete %s object linked from a required property", v.Type).WithProperty(t.os.Name, p.Name)
		}
		c.setValue(t, rw, p.Index, value.Null{})
	case value.LinkList:
		kept := slices.DeleteFunc(slices.Clone(v), func(l value.Link) bool {
			_, hit := dying[store.Key{Type: l.Type, ID: l.ID}]
			return hit
		})
		if len(kept) != len(v) {
			c.setValue(t, rw, p.Index, kept)
		}
	}
	return nil
}
