package realm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/testutil"
)

func openPeople(t *testing.T) *realm.Realm {
	t.Helper()
	r := testutil.OpenRealm(t, testutil.PersonObject())
	testutil.MustWrite(t, r, func() error {
		create(t, r, testutil.PersonObjectType, map[string]any{"name": "Ari", "age": 10})
		create(t, r, testutil.PersonObjectType, map[string]any{"name": "Tim", "age": 11})
		create(t, r, testutil.PersonObjectType, map[string]any{"name": "Bjarne", "age": 12, "married": true})
		create(t, r, testutil.PersonObjectType, map[string]any{"name": "Alex", "age": 12, "married": true})
		return nil
	})
	return r
}

func names(t *testing.T, res *realm.Results) []string {
	t.Helper()
	out := make([]string, 0, res.Len())
	for _, o := range res.All() {
		out = append(out, get(t, o, "name").(string))
	}
	return out
}

func TestObjects_Queries(t *testing.T) {
	r := openPeople(t)

	tests := []struct {
		predicate string
		params    []any
		want      int
	}{
		{"", nil, 4},
		{"truepredicate", nil, 4},
		{"falsepredicate", nil, 0},
		{"age = 11", nil, 1},
		{"age = $0", []any{11}, 1},
		{"age > $1 && age < $0", []any{13, 10}, 3},
		{"age >= 12", nil, 2},
		{"age < 11 || age > 11", nil, 3},
		{"name = 'Tim'", nil, 1},
		{`name = "Tim"`, nil, 1},
		{"name BEGINSWITH 'A'", nil, 2},
		{"name ENDSWITH 'm'", nil, 1},
		{"name CONTAINS 'jar'", nil, 1},
		{"name CONTAINS[c] 'JAR'", nil, 1},
		{"married == true", nil, 2},
		{"NOT (married == true)", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.predicate, func(t *testing.T) {
			assert.Equal(t, tt.want, count(t, r, testutil.PersonObjectType, tt.predicate, tt.params...))
		})
	}
}

func TestObjects_Errors(t *testing.T) {
	r := openPeople(t)

	tests := []struct {
		name      string
		typeName  string
		predicate string
		params    []any
		want      error
	}{
		{"unknown type", "InvalidClass", "", nil, dberr.ErrUnknownType},
		{"missing parameter", testutil.PersonObjectType, "age > $1 && age < $0 && age != $2", []any{13, 10}, dberr.ErrQueryParameter},
		{"syntax", testutil.PersonObjectType, "age =", nil, dberr.ErrQuerySyntax},
		{"unknown property", testutil.PersonObjectType, "height = 1", nil, dberr.ErrQuerySyntax},
		{"bad literal", testutil.PersonObjectType, "age = 'ten'", nil, dberr.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Objects(tt.typeName, tt.predicate, tt.params...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestObjects_DateParameters(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.BasicTypes())
	testutil.MustWrite(t, r, func() error {
		for i := int64(1); i <= 3; i++ {
			create(t, r, testutil.BasicTypesType, []any{true, 1, 1.1, 1.11, "s", time.UnixMilli(i * 1000), []byte{}})
		}
		return nil
	})
	assert.Equal(t, 2, count(t, r, testutil.BasicTypesType, "dateCol > $0", time.UnixMilli(1000)))
	assert.Equal(t, 1, count(t, r, testutil.BasicTypesType, "dateCol == $0", time.UnixMilli(2000)))
}

func TestObjects_LinkParameter(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.LinkTypes(), testutil.TestObject())
	var target *realm.Object
	testutil.MustWrite(t, r, func() error {
		owner := create(t, r, testutil.LinkTypesType, map[string]any{"objectCol": []any{1}})
		create(t, r, testutil.LinkTypesType, map[string]any{"objectCol": []any{2}})
		target = get(t, owner, "objectCol").(*realm.Object)
		return nil
	})
	assert.Equal(t, 1, count(t, r, testutil.LinkTypesType, "objectCol == $0", target))
	assert.Equal(t, 0, count(t, r, testutil.LinkTypesType, "objectCol1 == $0", target))
	assert.Equal(t, 2, count(t, r, testutil.LinkTypesType, "objectCol1 == null"))

	_, err := r.Objects(testutil.LinkTypesType, "objectCol == $0", 1)
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)
}

func TestResults_Live(t *testing.T) {
	r := openPeople(t)
	young, err := r.Objects(testutil.PersonObjectType, "age < 12")
	require.NoError(t, err)
	assert.True(t, young.IsLive())
	assert.Equal(t, "age < 12", young.Predicate())
	assert.Equal(t, testutil.PersonObjectType, young.Type())
	assert.Equal(t, []string{"Ari", "Tim"}, names(t, young))

	testutil.MustWrite(t, r, func() error {
		kid := create(t, r, testutil.PersonObjectType, map[string]any{"name": "Kid", "age": 5})
		assert.Equal(t, 3, young.Len(), "uncommitted changes are visible")
		return kid.Set("age", 50)
	})
	assert.Equal(t, 2, young.Len())

	testutil.MustWrite(t, r, func() error {
		return young.At(0).Set("age", 30)
	})
	assert.Equal(t, []string{"Tim"}, names(t, young))
	assert.Nil(t, young.At(1))
	assert.Nil(t, young.At(-1))
}

func TestResults_Snapshot(t *testing.T) {
	r := openPeople(t)
	all, err := r.Objects(testutil.PersonObjectType, "")
	require.NoError(t, err)
	snap := all.Snapshot()
	assert.False(t, snap.IsLive())

	testutil.MustWrite(t, r, func() error {
		create(t, r, testutil.PersonObjectType, map[string]any{"name": "New", "age": 1})
		return r.Delete(all.At(0))
	})
	assert.Equal(t, 4, all.Len())
	assert.Equal(t, 4, snap.Len())
	assert.False(t, snap.At(0).IsValid())

	_, err = snap.Filtered("age > 1")
	assert.ErrorIs(t, err, dberr.ErrArgument)
	_, err = snap.Sorted("age", false)
	assert.ErrorIs(t, err, dberr.ErrArgument)
}

func TestResults_Filtered(t *testing.T) {
	r := openPeople(t)
	married, err := r.Objects(testutil.PersonObjectType, "married == true")
	require.NoError(t, err)
	a, err := married.Filtered("name BEGINSWITH $0", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alex"}, names(t, a))
	assert.Equal(t, "(married == true) && (name BEGINSWITH $0)", a.Predicate())

	_, err = married.Filtered("nope == 1")
	assert.ErrorIs(t, err, dberr.ErrQuerySyntax)
}

func TestResults_Sorted(t *testing.T) {
	r := openPeople(t)
	all, err := r.Objects(testutil.PersonObjectType, "")
	require.NoError(t, err)

	byName, err := all.Sorted("name", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alex", "Ari", "Bjarne", "Tim"}, names(t, byName))

	byAgeDesc, err := all.Sorted("age", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bjarne", "Alex", "Tim", "Ari"}, names(t, byAgeDesc), "ties keep row order")

	byMarried, err := all.Sorted("married", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ari", "Tim", "Bjarne", "Alex"}, names(t, byMarried))

	// Sorting stays live and composes with filters.
	testutil.MustWrite(t, r, func() error {
		create(t, r, testutil.PersonObjectType, map[string]any{"name": "Aaron", "age": 99})
		return nil
	})
	assert.Equal(t, "Aaron", get(t, byName.At(0), "name"))
	filtered, err := byName.Filtered("age < 12")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ari", "Tim"}, names(t, filtered))

	_, err = all.Sorted("nope", false)
	assert.ErrorIs(t, err, dberr.ErrUnknownProperty)
}

func TestResults_SortedNullsFirst(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.NullableBasicTypes())
	testutil.MustWrite(t, r, func() error {
		create(t, r, testutil.NullableBasicTypesType, map[string]any{"intCol": 2})
		create(t, r, testutil.NullableBasicTypesType, map[string]any{})
		create(t, r, testutil.NullableBasicTypesType, map[string]any{"intCol": 1})
		return nil
	})
	all, err := r.Objects(testutil.NullableBasicTypesType, "")
	require.NoError(t, err)
	sorted, err := all.Sorted("intCol", false)
	require.NoError(t, err)

	var got []any
	for _, o := range sorted.All() {
		got = append(got, get(t, o, "intCol"))
	}
	assert.Equal(t, []any{nil, int64(1), int64(2)}, got)

	_, err = all.Sorted("dataCol", false)
	assert.ErrorIs(t, err, dberr.ErrArgument)
}

func TestResults_ClosedRealm(t *testing.T) {
	r := openPeople(t)
	all, err := r.Objects(testutil.PersonObjectType, "")
	require.NoError(t, err)
	obj := all.At(0)
	require.NoError(t, r.Close())

	assert.Equal(t, 0, all.Len())
	_, err = obj.Get("name")
	assert.ErrorIs(t, err, dberr.ErrClosed)
	_, err = r.Objects(testutil.PersonObjectType, "")
	assert.ErrorIs(t, err, dberr.ErrClosed)
}

func TestResults_AllStopsEarly(t *testing.T) {
	r := openPeople(t)
	all, err := r.Objects(testutil.PersonObjectType, "")
	require.NoError(t, err)
	n := 0
	for range all.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
	assert.Len(t, all.Objects(), 4)
}
