package realm

import (
	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Object is a handle on one stored object. It stays bound to the object
// as rows move, and becomes invalid once the object is deleted.
type Object struct {
	realm *Realm
	os    *schema.ObjectSchema
	id    uint64
}

// Type returns the object type name.
func (o *Object) Type() string {
	return o.os.Name
}

// Schema returns the object's type description.
func (o *Object) Schema() *schema.ObjectSchema {
	return o.os
}

// Realm returns the realm the object was obtained from.
func (o *Object) Realm() *Realm {
	return o.realm
}

// Same reports whether o and other refer to the same stored object.
func (o *Object) Same(other *Object) bool {
	return o != nil && other != nil && o.realm.core == other.realm.core && o.os.Name == other.os.Name && o.id == other.id
}

// IsValid reports whether the object still exists and its realm is open.
func (o *Object) IsValid() bool {
	_, _, err := o.row()
	return err == nil
}

// Keys returns the declared property names in order.
func (o *Object) Keys() []string {
	return o.os.PropertyNames()
}

func (o *Object) row() (*table, *row, error) {
	if err := o.realm.checkOpen(); err != nil {
		return nil, nil, err
	}
	t := o.realm.core.tables[o.os.Name]
	r, ok := t.get(o.id)
	if !ok {
		return nil, nil, dberr.New(dberr.KindInvalidatedObject, "object has been deleted").WithType(o.os.Name)
	}
	return t, r, nil
}

func (o *Object) property(name string) (*schema.Property, error) {
	p, ok := o.os.Property(name)
	if !ok {
		return nil, dberr.New(dberr.KindUnknownProperty, "property is not declared").WithProperty(o.os.Name, name)
	}
	return p, nil
}

// Value returns the stored value of a property.
func (o *Object) Value(name string) (value.Value, error) {
	_, r, err := o.row()
	if err != nil {
		return nil, err
	}
	p, err := o.property(name)
	if err != nil {
		return nil, err
	}
	return value.Clone(r.values[p.Index]), nil
}

// Get returns a property value in its Go form: nil, bool, int64, float32,
// float64, string, time.Time or []byte for scalars, *Object for object
// links (untyped nil when unset) and *List for lists.
func (o *Object) Get(name string) (any, error) {
	v, err := o.Value(name)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case value.Link:
		return o.realm.object(o.realm.core.tables[val.Type].os, val.ID), nil
	case value.LinkList:
		p, _ := o.os.Property(name)
		return &List{parent: o, prop: p}, nil
	}
	return value.Interface(v), nil
}

// Set assigns a property. Values are coerced as in Create. Assigning a
// list replaces its contents. The primary key cannot be changed.
func (o *Object) Set(name string, v any) error {
	t, r, err := o.row()
	if err != nil {
		return err
	}
	p, err := o.property(name)
	if err != nil {
		return err
	}
	c := o.realm.core
	if err := c.requireWrite("set properties"); err != nil {
		return err
	}
	return c.atomically(func() error {
		nv, err := o.realm.coerceProperty(o.os, p, v, CreateOptions{})
		if err != nil {
			return err
		}
		if o.os.PrimaryKey == p.Name {
			if value.Equal(nv, r.values[p.Index]) {
				return nil
			}
			return dberr.New(dberr.KindArgument, "primary key cannot be changed").WithProperty(o.os.Name, p.Name)
		}
		c.setValue(t, r, p.Index, nv)
		return nil
	})
}

// Map returns every property in its Get form, keyed by name.
func (o *Object) Map() (map[string]any, error) {
	out := make(map[string]any, len(o.os.Properties))
	for _, name := range o.Keys() {
		v, err := o.Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
