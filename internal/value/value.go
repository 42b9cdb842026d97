package value

import (
	"bytes"
	"fmt"
	"time"
)

// Value is a sealed interface over the canonical stored representations.
// Only the types in this package implement it.
type Value interface {
	storedValue() // Sealed
}

// Null is the stored null. Used for nullable properties and empty links.
type Null struct{}

func (Null) storedValue() {}

// Bool is a stored boolean.
type Bool bool

func (Bool) storedValue() {}

// Int is a stored 64-bit integer.
type Int int64

func (Int) storedValue() {}

// Float is a stored single-precision float.
// Float properties deliberately lose precision against float64 input.
type Float float32

func (Float) storedValue() {}

// Double is a stored double-precision float.
type Double float64

func (Double) storedValue() {}

// String is a stored string.
type String string

func (String) storedValue() {}

// Date is a stored timestamp in milliseconds since the Unix epoch.
type Date int64

func (Date) storedValue() {}

// NewDate truncates t to millisecond resolution.
func NewDate(t time.Time) Date {
	return Date(t.UnixMilli())
}

// Time returns the date as a UTC time.Time.
func (d Date) Time() time.Time {
	return time.UnixMilli(int64(d)).UTC()
}

// Data is a stored byte sequence. Stored slices are never shared with callers.
type Data []byte

func (Data) storedValue() {}

// Link is a non-owning reference to a stored object.
// ID is the arena identity of the target, stable across row moves.
type Link struct {
	Type string
	ID   uint64
}

func (Link) storedValue() {}

// LinkList is an ordered sequence of links (an array property).
type LinkList []Link

func (LinkList) storedValue() {}

// IsNull reports whether v is the stored null (or a nil interface).
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Clone returns a copy of v that shares no memory with it.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Data:
		return Data(bytes.Clone(val))
	case LinkList:
		out := make(LinkList, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Equal reports whether two stored values are identical.
// Numeric values of different widths compare by value.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	switch x := a.(type) {
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Data:
		y, ok := b.(Data)
		return ok && bytes.Equal(x, y)
	case Link:
		y, ok := b.(Link)
		return ok && x == y
	case LinkList:
		y, ok := b.(LinkList)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values of compatible kinds. Numbers compare with
// numbers, strings with strings, dates with dates. The second result is
// false when the pair has no ordering (including any null operand).
func Compare(a, b Value) (int, bool) {
	if af, ok := numeric(a); ok {
		bf, ok := numeric(b)
		if !ok {
			return 0, false
		}
		// Exact comparison for pure integer pairs.
		if ai, aok := a.(Int); aok {
			if bi, bok := b.(Int); bok {
				return cmp3(int64(ai), int64(bi)), true
			}
		}
		return cmp3(af, bf), true
	}
	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		if !ok {
			return 0, false
		}
		return cmp3(string(x), string(y)), true
	case Date:
		y, ok := b.(Date)
		if !ok {
			return 0, false
		}
		return cmp3(int64(x), int64(y)), true
	}
	return 0, false
}

func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	case Double:
		return float64(n), true
	}
	return 0, false
}

func cmp3[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Interface converts a scalar stored value to its natural Go form:
// nil, bool, int64, float32, float64, string, time.Time or []byte (a copy).
// Links are returned as-is; callers holding a store resolve them.
func Interface(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float32(val)
	case Double:
		return float64(val)
	case String:
		return string(val)
	case Date:
		return val.Time()
	case Data:
		return bytes.Clone([]byte(val))
	default:
		return v
	}
}

// Format renders a value for diagnostics.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return fmt.Sprintf("%q", string(val))
	case Date:
		return val.Time().Format(time.RFC3339Nano)
	case Data:
		return fmt.Sprintf("<%d bytes>", len(val))
	case Link:
		return fmt.Sprintf("%s#%d", val.Type, val.ID)
	case LinkList:
		return fmt.Sprintf("[%d links]", len(val))
	default:
		return fmt.Sprintf("%v", Interface(v))
	}
}
