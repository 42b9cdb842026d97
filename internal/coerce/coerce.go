// Package coerce converts caller-supplied Go values into stored values.
//
// Each scalar property type accepts a fixed input domain:
//
//	bool    bool
//	int     any Go integer; integral floats; json.Number
//	float   any Go number, stored as float32
//	double  any Go number
//	string  string
//	date    time.Time (millisecond resolution)
//	data    []byte, *bytes.Buffer, DataView, typed numeric slices
//
// Anything else is a TypeMismatch. Null (nil, a nil pointer or value.Null)
// is accepted only for optional properties; otherwise it is InvalidNull.
//
// Loose mode additionally accepts the shapes produced by decoded documents
// and schema defaults: strings for data (UTF-8 bytes), RFC 3339 strings and
// epoch milliseconds for dates.
package coerce

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Mode selects the accepted input domain.
type Mode int

const (
	// Strict accepts only native Go representations.
	Strict Mode = iota

	// Loose also accepts document encodings (defaults, YAML imports).
	Loose
)

// DataView is a sized window over a larger buffer. Coercion copies exactly
// Length bytes starting at Offset.
type DataView struct {
	Buffer []byte
	Offset int
	Length int
}

// IsNull reports whether in is a null input: untyped nil, value.Null or a
// nil pointer.
func IsNull(in any) bool {
	if in == nil {
		return true
	}
	if _, ok := in.(value.Null); ok {
		return true
	}
	rv := reflect.ValueOf(in)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Scalar coerces in for a non-link property of the named type.
func Scalar(typeName string, p *schema.Property, in any, mode Mode) (value.Value, error) {
	if IsNull(in) {
		if p.Optional {
			return value.Null{}, nil
		}
		return nil, dberr.New(dberr.KindInvalidNull, "null is not valid for required %s property", p.Type).WithProperty(typeName, p.Name)
	}
	in = deref(in)
	if v, ok := in.(value.Value); ok {
		in = value.Interface(v)
	}

	var (
		out value.Value
		err error
	)
	switch p.Type {
	case schema.TypeBool:
		b, ok := in.(bool)
		if !ok {
			return nil, mismatch(typeName, p, in)
		}
		out = value.Bool(b)
	case schema.TypeInt:
		out, err = toInt(in)
	case schema.TypeFloat:
		var f float64
		f, err = toFloat(in)
		out = value.Float(float32(f))
	case schema.TypeDouble:
		var f float64
		f, err = toFloat(in)
		out = value.Double(f)
	case schema.TypeString:
		s, ok := in.(string)
		if !ok {
			return nil, mismatch(typeName, p, in)
		}
		out = value.String(s)
	case schema.TypeDate:
		out, err = toDate(in, mode)
	case schema.TypeData:
		out, err = toData(in, mode)
	default:
		return nil, dberr.New(dberr.KindTypeMismatch, "%s property does not hold a scalar", p.Type).WithProperty(typeName, p.Name)
	}
	if err != nil {
		if de, ok := err.(*dberr.Error); ok && err != errNotNumber && err != errNotDate {
			return nil, de.WithProperty(typeName, p.Name)
		}
		return nil, mismatch(typeName, p, in)
	}
	return out, nil
}

// Default coerces the declared default of a scalar property.
// The second result is false when the property has no default.
func Default(typeName string, p *schema.Property) (value.Value, bool, error) {
	if !p.HasDefault {
		return nil, false, nil
	}
	v, err := Scalar(typeName, p, p.Default, Loose)
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

// Zero returns the zero value for a required scalar property, used when a
// property is added by a schema upgrade.
func Zero(p *schema.Property) value.Value {
	if p.Optional {
		return value.Null{}
	}
	switch p.Type {
	case schema.TypeBool:
		return value.Bool(false)
	case schema.TypeInt:
		return value.Int(0)
	case schema.TypeFloat:
		return value.Float(0)
	case schema.TypeDouble:
		return value.Double(0)
	case schema.TypeString:
		return value.String("")
	case schema.TypeDate:
		return value.Date(0)
	case schema.TypeData:
		return value.Data{}
	case schema.TypeList:
		return value.LinkList{}
	}
	return value.Null{}
}

func mismatch(typeName string, p *schema.Property, in any) *dberr.Error {
	return dberr.New(dberr.KindTypeMismatch, "%T is not valid for %s property", in, p.Type).WithProperty(typeName, p.Name)
}

func deref(in any) any {
	rv := reflect.ValueOf(in)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		switch in.(type) {
		case *bytes.Buffer:
			return in
		}
		rv = rv.Elem()
		in = rv.Interface()
	}
	return in
}

var errNotNumber = dberr.New(dberr.KindTypeMismatch, "not a number")

func toInt(in any) (value.Value, error) {
	switch n := in.(type) {
	case int:
		return value.Int(n), nil
	case int8:
		return value.Int(n), nil
	case int16:
		return value.Int(n), nil
	case int32:
		return value.Int(n), nil
	case int64:
		return value.Int(n), nil
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return value.Int(n), nil
	case uint16:
		return value.Int(n), nil
	case uint32:
		return value.Int(n), nil
	case uint64:
		return uintToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return value.Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, errNotNumber
		}
		return floatToInt(f)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}
	return nil, errNotNumber
}

func uintToInt(u uint64) (value.Value, error) {
	if u > math.MaxInt64 {
		return nil, dberr.New(dberr.KindTypeMismatch, "%d overflows int", u)
	}
	return value.Int(int64(u)), nil
}

func floatToInt(f float64) (value.Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, dberr.New(dberr.KindTypeMismatch, "%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, dberr.New(dberr.KindTypeMismatch, "%v overflows int", f)
	}
	return value.Int(int64(f)), nil
}

func toFloat(in any) (float64, error) {
	switch n := in.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, errNotNumber
		}
		return f, nil
	}
	return 0, errNotNumber
}

func toDate(in any, mode Mode) (value.Value, error) {
	if t, ok := in.(time.Time); ok {
		return value.NewDate(t), nil
	}
	if mode != Loose {
		return nil, errNotDate
	}
	if s, ok := in.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			if ms, perr := strconv.ParseInt(s, 10, 64); perr == nil {
				return value.Date(ms), nil
			}
			return nil, dberr.Wrap(dberr.KindTypeMismatch, err, "invalid date string %q", s)
		}
		return value.NewDate(t), nil
	}
	f, err := toFloat(in)
	if err != nil {
		return nil, errNotDate
	}
	// Epoch milliseconds; fractional milliseconds truncate.
	return value.Date(int64(f)), nil
}

var errNotDate = dberr.New(dberr.KindTypeMismatch, "not a date")

func toData(in any, mode Mode) (value.Value, error) {
	switch d := in.(type) {
	case []byte:
		return value.Data(bytes.Clone(nonNil(d))), nil
	case *bytes.Buffer:
		return value.Data(bytes.Clone(nonNil(d.Bytes()))), nil
	case DataView:
		if d.Offset < 0 || d.Length < 0 || d.Offset > len(d.Buffer) || d.Length > len(d.Buffer)-d.Offset {
			return nil, dberr.New(dberr.KindArgument, "data view [%d:+%d] out of range for %d-byte buffer", d.Offset, d.Length, len(d.Buffer))
		}
		return value.Data(bytes.Clone(d.Buffer[d.Offset : d.Offset+d.Length : d.Offset+d.Length])), nil
	case []int8, []int16, []uint16, []int32, []uint32, []int64, []uint64, []float32, []float64:
		buf, err := binary.Append(nil, binary.LittleEndian, d)
		if err != nil {
			return nil, dberr.Wrap(dberr.KindTypeMismatch, err, "encode %T", d)
		}
		return value.Data(nonNil(buf)), nil
	case string:
		if mode == Loose {
			return value.Data([]byte(d)), nil
		}
	}
	return nil, dberr.New(dberr.KindTypeMismatch, "%T is not binary data", in)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
