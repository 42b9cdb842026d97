package schema

import (
	"sort"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/value"
)

// PropertyType is the declared storage type of a property.
type PropertyType string

const (
	TypeBool   PropertyType = "bool"
	TypeInt    PropertyType = "int"
	TypeFloat  PropertyType = "float"
	TypeDouble PropertyType = "double"
	TypeString PropertyType = "string"
	TypeDate   PropertyType = "date"
	TypeData   PropertyType = "data"
	TypeObject PropertyType = "object"
	TypeList   PropertyType = "list"
)

// IsLink reports whether values of this type reference other objects.
func (t PropertyType) IsLink() bool {
	return t == TypeObject || t == TypeList
}

// Ordered reports whether values of this type support <, <=, >, >=.
func (t PropertyType) Ordered() bool {
	switch t {
	case TypeInt, TypeFloat, TypeDouble, TypeString, TypeDate:
		return true
	}
	return false
}

// Property describes one declared property of an object type.
type Property struct {
	Name string
	Type PropertyType

	// ObjectType names the target type for object and list properties.
	ObjectType string

	// Optional properties accept null. Lists are never optional.
	Optional bool

	// Default is used when a create omits the property.
	// Only meaningful when HasDefault is set; a nil Default with HasDefault
	// is an explicit null default.
	Default    any
	HasDefault bool

	// Index is the position of the property within its type.
	Index int
}

// ObjectSchema describes one object type.
type ObjectSchema struct {
	Name       string
	PrimaryKey string
	Properties []Property

	byName map[string]int
}

// Property looks up a property by name.
func (o *ObjectSchema) Property(name string) (*Property, bool) {
	i, ok := o.byName[name]
	if !ok {
		return nil, false
	}
	return &o.Properties[i], true
}

// PrimaryKeyProperty returns the primary key property, or nil.
func (o *ObjectSchema) PrimaryKeyProperty() *Property {
	if o.PrimaryKey == "" {
		return nil
	}
	p, _ := o.Property(o.PrimaryKey)
	return p
}

// PropertyNames returns the declared property names in order.
func (o *ObjectSchema) PropertyNames() []string {
	names := make([]string, len(o.Properties))
	for i := range o.Properties {
		names[i] = o.Properties[i].Name
	}
	return names
}

// Schema is the validated, immutable set of object types for one store.
type Schema struct {
	types  []*ObjectSchema
	byName map[string]*ObjectSchema
}

// Empty returns a schema with no types.
func Empty() *Schema {
	return &Schema{byName: map[string]*ObjectSchema{}}
}

// New validates the given object types and builds a Schema.
// Property indices are assigned from declaration order.
func New(types ...ObjectSchema) (*Schema, error) {
	s := &Schema{byName: make(map[string]*ObjectSchema, len(types))}
	for i := range types {
		os := types[i]
		if os.Name == "" {
			return nil, dberr.New(dberr.KindSchemaValidation, "schema[%d]: object type name must be a non-empty string", i)
		}
		if _, dup := s.byName[os.Name]; dup {
			return nil, dberr.New(dberr.KindSchemaValidation, "duplicate object type").WithType(os.Name)
		}
		if len(os.Properties) == 0 {
			return nil, dberr.New(dberr.KindSchemaValidation, "properties must not be empty").WithType(os.Name)
		}
		props := make([]Property, len(os.Properties))
		copy(props, os.Properties)
		os.Properties = props
		os.byName = make(map[string]int, len(props))
		for j := range props {
			p := &props[j]
			if p.Name == "" {
				return nil, dberr.New(dberr.KindSchemaValidation, "properties[%d]: name must be a non-empty string", j).WithType(os.Name)
			}
			if _, dup := os.byName[p.Name]; dup {
				return nil, dberr.New(dberr.KindSchemaValidation, "duplicate property").WithProperty(os.Name, p.Name)
			}
			p.Index = j
			os.byName[p.Name] = j
		}
		s.types = append(s.types, &os)
		s.byName[os.Name] = &os
	}

	for _, os := range s.types {
		for j := range os.Properties {
			if err := s.checkProperty(os, &os.Properties[j]); err != nil {
				return nil, err
			}
		}
		if os.PrimaryKey != "" {
			pk, ok := os.Property(os.PrimaryKey)
			if !ok {
				return nil, dberr.New(dberr.KindSchemaValidation, "primary key %q is not a declared property", os.PrimaryKey).WithType(os.Name)
			}
			if pk.Type != TypeInt && pk.Type != TypeString {
				return nil, dberr.New(dberr.KindSchemaValidation, "primary key must be int or string, got %s", pk.Type).WithProperty(os.Name, pk.Name)
			}
			if pk.Optional {
				return nil, dberr.New(dberr.KindSchemaValidation, "primary key must not be optional").WithProperty(os.Name, pk.Name)
			}
		}
	}
	return s, nil
}

func (s *Schema) checkProperty(os *ObjectSchema, p *Property) error {
	switch p.Type {
	case TypeBool, TypeInt, TypeFloat, TypeDouble, TypeString, TypeDate, TypeData:
		if p.ObjectType != "" {
			return dberr.New(dberr.KindSchemaValidation, "objectType is only valid for object and list properties").WithProperty(os.Name, p.Name)
		}
		if p.HasDefault && p.Default == nil && !p.Optional {
			return dberr.New(dberr.KindSchemaValidation, "null default for a required property").WithProperty(os.Name, p.Name)
		}
	case TypeObject, TypeList:
		if p.ObjectType == "" {
			return dberr.New(dberr.KindSchemaValidation, "%s property requires an objectType", p.Type).WithProperty(os.Name, p.Name)
		}
		if _, ok := s.byName[p.ObjectType]; !ok {
			return dberr.New(dberr.KindSchemaValidation, "objectType %q is not a declared type", p.ObjectType).WithProperty(os.Name, p.Name)
		}
		if p.Type == TypeList && p.Optional {
			return dberr.New(dberr.KindSchemaValidation, "list properties cannot be optional").WithProperty(os.Name, p.Name)
		}
	default:
		return dberr.New(dberr.KindSchemaValidation, "unknown property type %q", p.Type).WithProperty(os.Name, p.Name)
	}
	return nil
}

// Lookup returns the object type with the given name.
func (s *Schema) Lookup(name string) (*ObjectSchema, bool) {
	os, ok := s.byName[name]
	return os, ok
}

// Types returns the object types in declaration order.
func (s *Schema) Types() []*ObjectSchema {
	return s.types
}

// Names returns the object type names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.types))
	for i, os := range s.types {
		names[i] = os.Name
	}
	return names
}

// Len returns the number of object types.
func (s *Schema) Len() int {
	return len(s.types)
}

// ToRaw renders the schema in the raw form accepted by Parse, defaults
// included.
func (s *Schema) ToRaw() []any {
	return s.raw(true)
}

func (s *Schema) raw(defaults bool) []any {
	out := make([]any, 0, len(s.types))
	for _, os := range s.types {
		props := make([]any, len(os.Properties))
		for i, p := range os.Properties {
			pm := map[string]any{
				"name":     p.Name,
				"type":     string(p.Type),
				"optional": p.Optional,
			}
			if p.ObjectType != "" {
				pm["objectType"] = p.ObjectType
			}
			if defaults && p.HasDefault {
				pm["default"] = p.Default
			}
			props[i] = pm
		}
		om := map[string]any{
			"name":       os.Name,
			"properties": props,
		}
		if os.PrimaryKey != "" {
			om["primaryKey"] = os.PrimaryKey
		}
		out = append(out, om)
	}
	return out
}

// Fingerprint returns a hash of the schema's structural content.
// Type declaration order and defaults do not affect it; property order
// does, since positional creates depend on it.
func (s *Schema) Fingerprint() string {
	raw := s.raw(false)
	sort.Slice(raw, func(i, j int) bool {
		return raw[i].(map[string]any)["name"].(string) < raw[j].(map[string]any)["name"].(string)
	})
	// The structural form only holds canonical-safe values.
	fp, err := value.Fingerprint(value.DomainSchema, raw)
	if err != nil {
		panic("schema: fingerprint: " + err.Error())
	}
	return fp
}

// Equal reports whether two schemas have the same structural content.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Fingerprint() == other.Fingerprint()
}
