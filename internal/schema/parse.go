package schema

import (
	"sort"
	"strings"

	"github.com/roach88/emberdb/internal/dberr"
)

// Parse validates a loosely typed schema description and builds a Schema.
//
// raw must be a list whose elements are mappings with a "name"
// string, an optional "primaryKey" string and a "properties" collection.
// Properties are either a list of descriptors or a mapping from property
// name to descriptor. A descriptor is a type string or a mapping with
// "type", "objectType", "optional" and "default" keys.
//
// Type strings are one of bool, int, float, double, string, date, data,
// object, list (alias array), optionally suffixed with "?" for optional.
// A declared type name is shorthand for an object link to that type, and
// "Name[]" is shorthand for a list of that type. Object links are optional
// unless declared with optional: false.
//
// Mapping-form properties are ordered by name.
func Parse(raw any) (*Schema, error) {
	switch v := raw.(type) {
	case *Schema:
		if v == nil {
			return nil, dberr.New(dberr.KindSchemaValidation, "schema must be an array")
		}
		return v, nil
	case []ObjectSchema:
		return New(v...)
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return parseList(items)
	case []any:
		return parseList(v)
	default:
		return nil, dberr.New(dberr.KindSchemaValidation, "schema must be an array, got %T", raw)
	}
}

func parseList(items []any) (*Schema, error) {
	if len(items) == 0 {
		return Empty(), nil
	}

	// Type names are collected first so that a property type may name any
	// declared type, including ones declared later.
	declared := make(map[string]bool, len(items))
	entries := make([]map[string]any, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, dberr.New(dberr.KindSchemaValidation, "schema[%d] must be an object, got %T", i, item)
		}
		name, ok := m["name"].(string)
		if !ok || name == "" {
			return nil, dberr.New(dberr.KindSchemaValidation, "schema[%d] must have a string name", i)
		}
		entries[i] = m
		declared[name] = true
	}

	types := make([]ObjectSchema, len(entries))
	for i, m := range entries {
		os, err := parseObject(m, declared)
		if err != nil {
			return nil, err
		}
		types[i] = os
	}
	return New(types...)
}

func parseObject(m map[string]any, declared map[string]bool) (ObjectSchema, error) {
	name := m["name"].(string)
	os := ObjectSchema{Name: name}

	if pk, ok := m["primaryKey"]; ok && pk != nil {
		s, ok := pk.(string)
		if !ok {
			return os, dberr.New(dberr.KindSchemaValidation, "primaryKey must be a string").WithType(name)
		}
		os.PrimaryKey = s
	}

	switch props := m["properties"].(type) {
	case []any:
		if len(props) == 0 {
			return os, dberr.New(dberr.KindSchemaValidation, "properties must not be empty").WithType(name)
		}
		for i, item := range props {
			pm, ok := item.(map[string]any)
			if !ok {
				return os, dberr.New(dberr.KindSchemaValidation, "properties[%d] must be an object, got %T", i, item).WithType(name)
			}
			pname, ok := pm["name"].(string)
			if !ok || pname == "" {
				return os, dberr.New(dberr.KindSchemaValidation, "properties[%d] must have a string name", i).WithType(name)
			}
			p, err := parseDescriptor(name, pname, pm, declared)
			if err != nil {
				return os, err
			}
			os.Properties = append(os.Properties, p)
		}
	case []map[string]any:
		items := make([]any, len(props))
		for i := range props {
			items[i] = props[i]
		}
		m2 := map[string]any{"name": name, "primaryKey": m["primaryKey"], "properties": items}
		return parseObject(m2, declared)
	case map[string]any:
		if len(props) == 0 {
			return os, dberr.New(dberr.KindSchemaValidation, "properties must not be empty").WithType(name)
		}
		names := make([]string, 0, len(props))
		for k := range props {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, pname := range names {
			var desc map[string]any
			switch d := props[pname].(type) {
			case string:
				desc = map[string]any{"type": d}
			case map[string]any:
				desc = d
			default:
				return os, dberr.New(dberr.KindSchemaValidation, "descriptor must be a type string or an object, got %T", d).WithProperty(name, pname)
			}
			p, err := parseDescriptor(name, pname, desc, declared)
			if err != nil {
				return os, err
			}
			os.Properties = append(os.Properties, p)
		}
	case nil:
		return os, dberr.New(dberr.KindSchemaValidation, "missing properties").WithType(name)
	default:
		return os, dberr.New(dberr.KindSchemaValidation, "properties must be a list or a mapping, got %T", props).WithType(name)
	}
	return os, nil
}

func parseDescriptor(typeName, name string, m map[string]any, declared map[string]bool) (Property, error) {
	p := Property{Name: name}

	ts, ok := m["type"].(string)
	if !ok || ts == "" {
		return p, dberr.New(dberr.KindSchemaValidation, "type must be a non-empty string").WithProperty(typeName, name)
	}
	optionalSuffix := false
	if strings.HasSuffix(ts, "?") {
		optionalSuffix = true
		ts = strings.TrimSuffix(ts, "?")
	}

	switch {
	case strings.HasSuffix(ts, "[]"):
		p.Type = TypeList
		p.ObjectType = strings.TrimSuffix(ts, "[]")
	case declared[ts]:
		p.Type = TypeObject
		p.ObjectType = ts
	default:
		pt, ok := primitiveType(ts)
		if !ok {
			return p, dberr.New(dberr.KindSchemaValidation, "unknown type %q", ts).WithProperty(typeName, name)
		}
		p.Type = pt
	}

	if ot, present := m["objectType"]; present && ot != nil {
		s, ok := ot.(string)
		if !ok {
			return p, dberr.New(dberr.KindSchemaValidation, "objectType must be a string").WithProperty(typeName, name)
		}
		if p.ObjectType != "" && p.ObjectType != s {
			return p, dberr.New(dberr.KindSchemaValidation, "objectType %q conflicts with type %q", s, ts).WithProperty(typeName, name)
		}
		p.ObjectType = s
	}

	p.Optional = optionalSuffix || p.Type == TypeObject
	if opt, present := m["optional"]; present && opt != nil {
		b, ok := opt.(bool)
		if !ok {
			return p, dberr.New(dberr.KindSchemaValidation, "optional must be a bool").WithProperty(typeName, name)
		}
		p.Optional = b || optionalSuffix
	}

	if def, present := m["default"]; present {
		p.Default = def
		p.HasDefault = true
	}
	return p, nil
}

func primitiveType(s string) (PropertyType, bool) {
	switch strings.ToLower(s) {
	case "bool", "boolean":
		return TypeBool, true
	case "int", "integer":
		return TypeInt, true
	case "float":
		return TypeFloat, true
	case "double":
		return TypeDouble, true
	case "string":
		return TypeString, true
	case "date":
		return TypeDate, true
	case "data":
		return TypeData, true
	case "object":
		return TypeObject, true
	case "list", "array":
		return TypeList, true
	}
	return "", false
}
