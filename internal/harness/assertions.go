package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/roach88/emberdb/internal/realm"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against r and returns the
// failure messages, in assertion order.
func EvaluateAssertions(r *realm.Realm, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCount:
			err = assertCount(r, a)
		case AssertObject:
			err = assertObject(r, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertCount checks the number of objects matching the predicate.
func assertCount(r *realm.Realm, a Assertion) error {
	h := &Harness{realm: r}
	params, err := h.resolveParams(a.Params)
	if err != nil {
		return err
	}
	res, err := r.Objects(a.ObjectType, a.Predicate, params...)
	if err != nil {
		return err
	}
	if n := res.Len(); n != a.Expected {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s objects%s", a.Expected, a.ObjectType, describePredicate(a.Predicate)),
			Actual:   fmt.Sprintf("%d objects", n),
		}
	}
	return nil
}

// assertObject finds exactly one object and compares the expected
// properties (subset semantics).
func assertObject(r *realm.Realm, a Assertion) error {
	h := &Harness{realm: r}
	objects, err := h.selectObjects(a.ObjectType, a.Key, a.Predicate, a.Params)
	if err != nil {
		return err
	}
	where := describePredicate(a.Predicate)
	if a.Key != nil {
		where = fmt.Sprintf(" with primary key %v", a.Key)
	}
	switch len(objects) {
	case 0:
		return &AssertionError{
			Type:     AssertObject,
			Expected: fmt.Sprintf("a %s object%s", a.ObjectType, where),
			Actual:   "object not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertObject,
			Expected: fmt.Sprintf("exactly one %s object%s", a.ObjectType, where),
			Actual:   fmt.Sprintf("%d objects matched (assertion is ambiguous)", len(objects)),
		}
	}

	actual, err := Snapshot(objects[0])
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		expected := a.Expect[key]
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertObject,
				Expected: fmt.Sprintf("property %q to exist", key),
				Actual:   fmt.Sprintf("%s has properties %v", a.ObjectType, objects[0].Keys()),
			}
		}
		if !valuesEqual(expected, got) {
			return &AssertionError{
				Type:     AssertObject,
				Expected: fmt.Sprintf("property %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("property %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

func describePredicate(predicate string) string {
	if predicate == "" {
		return ""
	}
	return fmt.Sprintf(" matching %q", predicate)
}

// valuesEqual compares a YAML-decoded expected value with a snapshot
// value. Numbers compare by value, float properties at float32 precision.
// Timestamps compare as instants and data compares with its raw text, the
// way loose coercion reads data strings.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if a, ok := actual.(float32); ok {
		e, ok := toFloat(expected)
		return ok && float32(e) == a
	}
	if e, ok := toFloat(expected); ok {
		a, ok := toFloat(actual)
		return ok && e == a
	}

	switch e := expected.(type) {
	case string:
		if data, ok := actual.([]byte); ok {
			return e == string(data)
		}
		a, ok := actual.(string)
		if !ok {
			return false
		}
		if e == a {
			return true
		}
		et, err1 := time.Parse(time.RFC3339Nano, e)
		at, err2 := time.Parse(time.RFC3339Nano, a)
		return err1 == nil && err2 == nil && et.Equal(at)
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !valuesEqual(e[i], a[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
