package realm

import (
	"github.com/roach88/emberdb/internal/coerce"
	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// CreateOptions controls CreateWith.
type CreateOptions struct {
	// Update turns a create whose primary key already exists into an
	// update of the properties present in the input. Nested object
	// literals are created or updated the same way.
	Update bool

	// Coercion selects the accepted input domain for scalar values.
	// coerce.Loose accepts the shapes produced by YAML and JSON documents.
	Coercion coerce.Mode
}

// Create creates an object of typeName. values is either a []any holding
// one value per declared property in order, or a map[string]any keyed by
// property name; properties missing from a map take their default.
//
// Errors:
//   - TransactionRequired: called outside a write transaction
//   - UnknownType, UnknownProperty: undeclared type or property name
//   - DuplicateKey: an object with the same primary key exists
//   - InvalidNull: null or missing value for a required property
//   - TypeMismatch: a value that does not fit its property
//
// A failed create leaves no partial changes behind, including nested
// objects it created.
func (r *Realm) Create(typeName string, values any) (*Object, error) {
	return r.CreateWith(typeName, values, CreateOptions{})
}

// Upsert creates an object of typeName, or updates the existing object with
// the same primary key. Only properties present in values are updated.
func (r *Realm) Upsert(typeName string, values any) (*Object, error) {
	return r.CreateWith(typeName, values, CreateOptions{Update: true})
}

// CreateWith creates an object with explicit options. See Create.
func (r *Realm) CreateWith(typeName string, values any, opts CreateOptions) (*Object, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	c := r.core
	if err := c.requireWrite("create objects"); err != nil {
		return nil, err
	}
	t, err := r.table(typeName)
	if err != nil {
		return nil, err
	}
	var rw *row
	err = c.atomically(func() error {
		var err error
		rw, err = r.create(t, values, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.object(t.os, rw.id), nil
}

// input is a create argument normalized to declaration order.
type input struct {
	values []any
	has    []bool
}

func readInput(os *schema.ObjectSchema, values any) (input, error) {
	n := len(os.Properties)
	in := input{values: make([]any, n), has: make([]bool, n)}
	switch v := values.(type) {
	case []any:
		if len(v) != n {
			return input{}, dberr.New(dberr.KindArgument, "positional values must have %d entries, got %d", n, len(v)).WithType(os.Name)
		}
		copy(in.values, v)
		for i := range in.has {
			in.has[i] = true
		}
	case map[string]any:
		for k, x := range v {
			p, ok := os.Property(k)
			if !ok {
				return input{}, dberr.New(dberr.KindUnknownProperty, "property is not declared").WithProperty(os.Name, k)
			}
			in.values[p.Index] = x
			in.has[p.Index] = true
		}
	default:
		return input{}, dberr.New(dberr.KindArgument, "object values must be a list or a mapping, got %T", values).WithType(os.Name)
	}
	return in, nil
}

func (r *Realm) create(t *table, values any, opts CreateOptions) (*row, error) {
	c := r.core
	os := t.os
	in, err := readInput(os, values)
	if err != nil {
		return nil, err
	}

	if pk := os.PrimaryKeyProperty(); pk != nil {
		var key value.Value
		if in.has[pk.Index] {
			key, err = coerceScalar(os, pk, in.values[pk.Index], opts)
		} else {
			key, err = r.defaultValue(os, pk, opts)
		}
		if err != nil {
			return nil, err
		}
		if existing, ok := t.lookup(key); ok {
			if !opts.Update {
				return nil, dberr.New(dberr.KindDuplicateKey, "an object with primary key %s already exists", value.Format(key)).WithProperty(os.Name, pk.Name)
			}
			return existing, r.update(t, existing, in, opts)
		}
		// The coerced key is reused below so it is not coerced twice.
		in.values[pk.Index] = key
		in.has[pk.Index] = true
	}

	out := make([]value.Value, len(os.Properties))
	for i := range os.Properties {
		p := &os.Properties[i]
		if in.has[i] {
			out[i], err = r.coerceProperty(os, p, in.values[i], opts)
		} else {
			out[i], err = r.defaultValue(os, p, opts)
		}
		if err != nil {
			return nil, err
		}
	}

	// Nested literals of a self-linking type may have taken the key.
	if pk := os.PrimaryKeyProperty(); pk != nil {
		if _, ok := t.lookup(out[pk.Index]); ok {
			return nil, dberr.New(dberr.KindDuplicateKey, "an object with primary key %s already exists", value.Format(out[pk.Index])).WithProperty(os.Name, pk.Name)
		}
	}

	rw := &row{id: c.allocID(), values: out}
	c.insertRow(t, rw)
	return rw, nil
}

func (r *Realm) update(t *table, rw *row, in input, opts CreateOptions) error {
	pk := t.os.PrimaryKeyProperty()
	for i := range t.os.Properties {
		if !in.has[i] || i == pk.Index {
			continue
		}
		p := &t.os.Properties[i]
		v, err := r.coerceProperty(t.os, p, in.values[i], opts)
		if err != nil {
			return err
		}
		r.core.setValue(t, rw, i, v)
	}
	return nil
}

// defaultValue is the value of a property missing from a create.
func (r *Realm) defaultValue(os *schema.ObjectSchema, p *schema.Property, opts CreateOptions) (value.Value, error) {
	if p.HasDefault {
		if p.Type.IsLink() {
			return r.coerceProperty(os, p, p.Default, CreateOptions{Update: opts.Update, Coercion: coerce.Loose})
		}
		v, _, err := coerce.Default(os.Name, p)
		return v, err
	}
	switch {
	case p.Type == schema.TypeList:
		return value.LinkList{}, nil
	case p.Optional:
		return value.Null{}, nil
	}
	return nil, dberr.New(dberr.KindInvalidNull, "missing value for required property").WithProperty(os.Name, p.Name)
}

func coerceScalar(os *schema.ObjectSchema, p *schema.Property, in any, opts CreateOptions) (value.Value, error) {
	return coerce.Scalar(os.Name, p, in, opts.Coercion)
}

// coerceProperty converts an input value for p. Object literals in link
// positions are created (or upserted) as new objects of the target type.
func (r *Realm) coerceProperty(os *schema.ObjectSchema, p *schema.Property, in any, opts CreateOptions) (value.Value, error) {
	switch p.Type {
	case schema.TypeObject:
		if coerce.IsNull(in) {
			if p.Optional {
				return value.Null{}, nil
			}
			return nil, dberr.New(dberr.KindInvalidNull, "null is not valid for a required object link").WithProperty(os.Name, p.Name)
		}
		return r.coerceLink(os, p, in, opts)
	case schema.TypeList:
		return r.coerceList(os, p, in, opts)
	default:
		return coerceScalar(os, p, in, opts)
	}
}

func (r *Realm) coerceLink(os *schema.ObjectSchema, p *schema.Property, in any, opts CreateOptions) (value.Link, error) {
	c := r.core
	switch v := in.(type) {
	case *Object:
		if v.realm.core != c {
			return value.Link{}, dberr.New(dberr.KindArgument, "object belongs to a different realm").WithProperty(os.Name, p.Name)
		}
		if _, _, err := v.row(); err != nil {
			return value.Link{}, err
		}
		if v.os.Name != p.ObjectType {
			return value.Link{}, dberr.New(dberr.KindTypeMismatch, "%s object is not valid for a link to %s", v.os.Name, p.ObjectType).WithProperty(os.Name, p.Name)
		}
		return value.Link{Type: v.os.Name, ID: v.id}, nil
	case []any, map[string]any:
		target := c.tables[p.ObjectType]
		rw, err := r.create(target, v, opts)
		if err != nil {
			return value.Link{}, err
		}
		return value.Link{Type: p.ObjectType, ID: rw.id}, nil
	}
	return value.Link{}, dberr.New(dberr.KindTypeMismatch, "%T is not valid for a link to %s", in, p.ObjectType).WithProperty(os.Name, p.Name)
}

func (r *Realm) coerceList(os *schema.ObjectSchema, p *schema.Property, in any, opts CreateOptions) (value.LinkList, error) {
	if coerce.IsNull(in) {
		return nil, dberr.New(dberr.KindInvalidNull, "null is not valid for a list").WithProperty(os.Name, p.Name)
	}
	var items []any
	switch v := in.(type) {
	case []any:
		items = v
	case []*Object:
		items = make([]any, len(v))
		for i, o := range v {
			items[i] = o
		}
	case *List:
		items = objectsAsAny(v.Objects())
	case *Results:
		items = objectsAsAny(v.Objects())
	default:
		return nil, dberr.New(dberr.KindTypeMismatch, "%T is not valid for a list of %s", in, p.ObjectType).WithProperty(os.Name, p.Name)
	}

	out := make(value.LinkList, 0, len(items))
	for _, item := range items {
		if coerce.IsNull(item) {
			return nil, dberr.New(dberr.KindInvalidNull, "lists cannot hold null").WithProperty(os.Name, p.Name)
		}
		l, err := r.coerceLink(os, p, item, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func objectsAsAny(objects []*Object) []any {
	out := make([]any, len(objects))
	for i, o := range objects {
		out[i] = o
	}
	return out
}
