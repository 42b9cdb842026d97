// Package compiler turns CUE schema declarations into the raw schema form
// accepted by schema.Parse.
//
// A schema file declares its object types under "types", in the order they
// should appear, and an optional "schemaVersion":
//
//	schemaVersion: 2
//	types: Person: {
//		primaryKey: "name"
//		properties: {
//			name:     string
//			age:      *0 | float
//			nick?:    string
//			born:     {type: "date", optional: true}
//			best:     "Person"
//			friends:  "Person[]"
//		}
//	}
//
// A property is a CUE type (string, int, float, number, bool, bytes), a
// concrete type string as understood by schema.Parse, or a descriptor
// struct with type, objectType, optional and default fields. Optional CUE
// fields are optional properties and CUE defaults become property defaults.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/emberdb/internal/schema"
)

// File is a compiled schema file.
type File struct {
	// Version is the declared schemaVersion, 0 when absent.
	Version uint64

	// Raw is the schema in the form accepted by schema.Parse. Properties
	// are lists, so declaration order is kept.
	Raw []any
}

// Schema parses the compiled raw schema.
func (f *File) Schema() (*schema.Schema, error) {
	return schema.Parse(f.Raw)
}

// CompileString compiles CUE source. filename is used in error positions.
func CompileString(src, filename string) (*File, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// CompileFile compiles a .cue file, or every .cue file of the package in a
// directory.
func CompileFile(path string) (*File, error) {
	v, err := LoadValue(path)
	if err != nil {
		return nil, err
	}
	return Compile(v)
}

// LoadSchema reads a schema file of either format: .yaml, .yml and .json
// files through schema.LoadYAML, anything else (including a directory) as
// CUE. The version is the CUE schemaVersion, 0 for YAML.
func LoadSchema(path string) (*schema.Schema, uint64, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		sch, err := schema.LoadYAML(path)
		return sch, 0, err
	}
	f, err := CompileFile(path)
	if err != nil {
		return nil, 0, err
	}
	sch, err := f.Schema()
	if err != nil {
		return nil, 0, err
	}
	return sch, f.Version, nil
}

// LoadValue builds the CUE value of a file or a package directory.
func LoadValue(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("stat schema path: %w", err)
	}
	ctx := cuecontext.New()
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read schema file: %w", err)
		}
		return ctx.CompileBytes(src, cue.Filename(path)), nil
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances in %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, formatCUEError(inst.Err)
	}
	return ctx.BuildInstance(inst), nil
}

// Compile extracts a schema file from a CUE value. It stops at the first
// problem; Validate reports all of them.
func Compile(v cue.Value) (*File, error) {
	c := &compiler{}
	f := c.file(v)
	if len(c.errs) > 0 {
		return nil, c.errs[0]
	}
	return f, nil
}

// compiler collects every problem found while walking a value.
type compiler struct {
	errs []*CompileError
}

func (c *compiler) fail(field, msg string, pos token.Pos) {
	c.errs = append(c.errs, &CompileError{Field: field, Message: msg, Pos: pos})
}

func (c *compiler) cueErr(err error) {
	if ce, ok := formatCUEError(err).(*CompileError); ok {
		c.errs = append(c.errs, ce)
		return
	}
	c.fail("cue", err.Error(), token.NoPos)
}

func (c *compiler) file(v cue.Value) *File {
	if err := v.Err(); err != nil {
		c.cueErr(err)
		return nil
	}
	f := &File{Raw: []any{}}

	fields, err := v.Fields()
	if err != nil {
		c.cueErr(err)
		return nil
	}
	for fields.Next() {
		switch label := fields.Label(); label {
		case "schemaVersion", "types":
		default:
			c.fail(label, "unknown top-level field", fields.Value().Pos())
		}
	}

	if sv := v.LookupPath(cue.ParsePath("schemaVersion")); sv.Exists() {
		n, err := sv.Uint64()
		if err != nil {
			c.fail("schemaVersion", "must be a non-negative integer", sv.Pos())
		}
		f.Version = n
	}

	types := v.LookupPath(cue.ParsePath("types"))
	if !types.Exists() {
		c.fail("types", "types is required", v.Pos())
		return f
	}
	iter, err := types.Fields()
	if err != nil {
		c.fail("types", "types must be a struct of object types", types.Pos())
		return f
	}
	for iter.Next() {
		if t := c.objectType(iter.Label(), iter.Value()); t != nil {
			f.Raw = append(f.Raw, t)
		}
	}
	return f
}

func (c *compiler) objectType(name string, v cue.Value) map[string]any {
	field := "types." + name
	out := map[string]any{"name": name}

	iter, err := v.Fields()
	if err != nil {
		c.fail(field, "object type must be a struct", v.Pos())
		return nil
	}
	for iter.Next() {
		switch label := iter.Label(); label {
		case "primaryKey", "properties":
		default:
			c.fail(field+"."+label, "unknown object type field", iter.Value().Pos())
		}
	}

	if pk := v.LookupPath(cue.ParsePath("primaryKey")); pk.Exists() {
		s, err := pk.String()
		if err != nil {
			c.fail(field+".primaryKey", "must be a string", pk.Pos())
		} else {
			out["primaryKey"] = s
		}
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		c.fail(field+".properties", "properties is required", v.Pos())
		return out
	}
	props, err := propsVal.Fields(cue.Optional(true))
	if err != nil {
		c.fail(field+".properties", "properties must be a struct", propsVal.Pos())
		return out
	}
	list := []any{}
	for props.Next() {
		p := c.property(field+".properties."+props.Label(), props.Label(), props.Value(), props.IsOptional())
		if p != nil {
			list = append(list, p)
		}
	}
	out["properties"] = list
	return out
}

// property builds one property descriptor.
func (c *compiler) property(field, name string, v cue.Value, optional bool) map[string]any {
	if err := v.Err(); err != nil {
		c.cueErr(err)
		return nil
	}
	desc := map[string]any{"name": name}
	if optional {
		desc["optional"] = true
	}

	def, hasDefault := v.Default()
	if !hasDefault && v.IsConcrete() {
		switch v.Kind() {
		case cue.StringKind:
			s, _ := v.String()
			desc["type"] = s
			return desc
		case cue.StructKind:
			return c.descriptor(field, desc, v)
		}
	}

	typ, ok := kindType(v.IncompleteKind())
	if !ok {
		c.fail(field, fmt.Sprintf("unsupported property kind %v", v.IncompleteKind()), v.Pos())
		return nil
	}
	desc["type"] = typ
	if hasDefault {
		d, err := c.goValue(field, def)
		if err != nil {
			return nil
		}
		desc["default"] = d
	}
	return desc
}

// kindType maps a CUE kind to a property type.
func kindType(k cue.Kind) (string, bool) {
	switch k {
	case cue.StringKind:
		return "string", true
	case cue.IntKind:
		return "int", true
	case cue.FloatKind, cue.NumberKind:
		return "double", true
	case cue.BoolKind:
		return "bool", true
	case cue.BytesKind:
		return "data", true
	}
	return "", false
}

func (c *compiler) descriptor(field string, desc map[string]any, v cue.Value) map[string]any {
	iter, err := v.Fields()
	if err != nil {
		c.cueErr(err)
		return nil
	}
	for iter.Next() {
		label := iter.Label()
		switch label {
		case "type", "objectType", "optional", "default":
		default:
			c.fail(field+"."+label, "unknown property descriptor field", iter.Value().Pos())
			continue
		}
		x, err := c.goValue(field+"."+label, iter.Value())
		if err != nil {
			continue
		}
		if label == "optional" && desc["optional"] == true {
			continue
		}
		desc[label] = x
	}
	if _, ok := desc["type"]; !ok {
		c.fail(field+".type", "type is required", v.Pos())
		return nil
	}
	return desc
}

// goValue converts a concrete CUE value to the loosely typed Go form used
// by raw schemas: nil, bool, int64, float64, string, []byte, []any and
// map[string]any.
func (c *compiler) goValue(field string, v cue.Value) (any, error) {
	if err := v.Err(); err != nil {
		c.cueErr(err)
		return nil, err
	}
	if !v.IsConcrete() {
		err := &CompileError{Field: field, Message: "value must be concrete", Pos: v.Pos()}
		c.errs = append(c.errs, err)
		return nil, err
	}
	var (
		out any
		err error
	)
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		out, err = v.Bool()
	case cue.IntKind:
		out, err = v.Int64()
	case cue.FloatKind:
		out, err = v.Float64()
	case cue.StringKind:
		out, err = v.String()
	case cue.BytesKind:
		out, err = v.Bytes()
	case cue.ListKind:
		var iter cue.Iterator
		iter, err = v.List()
		if err == nil {
			list := []any{}
			for iter.Next() {
				x, xerr := c.goValue(field, iter.Value())
				if xerr != nil {
					return nil, xerr
				}
				list = append(list, x)
			}
			out = list
		}
	case cue.StructKind:
		var iter *cue.Iterator
		iter, err = v.Fields()
		if err == nil {
			m := map[string]any{}
			for iter.Next() {
				x, xerr := c.goValue(field+"."+iter.Label(), iter.Value())
				if xerr != nil {
					return nil, xerr
				}
				m[iter.Label()] = x
			}
			out = m
		}
	default:
		err = fmt.Errorf("unsupported value kind %v", v.Kind())
	}
	if err != nil {
		c.fail(field, err.Error(), v.Pos())
		return nil, err
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
