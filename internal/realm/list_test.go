package realm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/testutil"
)

func openList(t *testing.T) (*realm.Realm, *realm.List) {
	t.Helper()
	r := testutil.OpenRealm(t, testutil.LinkTypes(), testutil.TestObject())
	var owner *realm.Object
	testutil.MustWrite(t, r, func() error {
		owner = create(t, r, testutil.LinkTypesType, map[string]any{
			"arrayCol": []any{[]any{1}, []any{2}},
		})
		return nil
	})
	return r, get(t, owner, "arrayCol").(*realm.List)
}

func listDoubles(t *testing.T, l *realm.List) []float64 {
	t.Helper()
	var out []float64
	for _, o := range l.All() {
		out = append(out, get(t, o, "doubleCol").(float64))
	}
	return out
}

func TestList_Read(t *testing.T) {
	_, list := openList(t)
	assert.Equal(t, "arrayCol", list.Property().Name)
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, []float64{1, 2}, listDoubles(t, list))
	assert.Nil(t, list.At(2))
	assert.Nil(t, list.At(-1))
	assert.Len(t, list.Objects(), 2)
}

func TestList_Mutations(t *testing.T) {
	r, list := openList(t)

	testutil.MustWrite(t, r, func() error {
		require.NoError(t, list.Append(map[string]any{"doubleCol": 3}))
		require.NoError(t, list.Append(list.At(0)))
		return nil
	})
	assert.Equal(t, []float64{1, 2, 3, 1}, listDoubles(t, list))
	assert.True(t, list.At(0).Same(list.At(3)))

	testutil.MustWrite(t, r, func() error {
		require.NoError(t, list.Set(1, []any{20}))
		return list.Remove(0)
	})
	assert.Equal(t, []float64{20, 3, 1}, listDoubles(t, list))
	assert.Equal(t, 4, count(t, r, testutil.TestObjectType, ""), "removing from a list keeps the object")

	testutil.MustWrite(t, r, func() error { return list.Clear() })
	assert.Equal(t, 0, list.Len())
	assert.Equal(t, 4, count(t, r, testutil.TestObjectType, ""))
}

func TestList_Errors(t *testing.T) {
	r, list := openList(t)

	assert.ErrorIs(t, list.Append([]any{3}), dberr.ErrTransactionRequired)
	assert.ErrorIs(t, list.Clear(), dberr.ErrTransactionRequired)

	testutil.MustWrite(t, r, func() error {
		assert.ErrorIs(t, list.Set(5, []any{1}), dberr.ErrArgument)
		assert.ErrorIs(t, list.Remove(-1), dberr.ErrArgument)
		assert.ErrorIs(t, list.Append(nil), dberr.ErrInvalidNull)
		assert.ErrorIs(t, list.Append("x"), dberr.ErrTypeMismatch)
		// A failed append creates nothing.
		assert.ErrorIs(t, list.Append([]any{4}, "x"), dberr.ErrTypeMismatch)
		return nil
	})
	assert.Equal(t, []float64{1, 2}, listDoubles(t, list))
	assert.Equal(t, 2, count(t, r, testutil.TestObjectType, ""))
}

func TestList_OwnerDeleted(t *testing.T) {
	r, list := openList(t)
	owner, err := r.Objects(testutil.LinkTypesType, "")
	require.NoError(t, err)

	testutil.MustWrite(t, r, func() error { return r.Delete(owner) })
	assert.Equal(t, 0, list.Len())
	assert.Nil(t, list.At(0))

	testutil.MustWrite(t, r, func() error {
		assert.ErrorIs(t, list.Append([]any{1}), dberr.ErrInvalidatedObject)
		return nil
	})
}

func TestList_AssignFromCollections(t *testing.T) {
	r, list := openList(t)
	others, err := r.Objects(testutil.TestObjectType, "doubleCol > 1")
	require.NoError(t, err)

	var second *realm.Object
	testutil.MustWrite(t, r, func() error {
		second = create(t, r, testutil.LinkTypesType, map[string]any{"arrayCol": list})
		return nil
	})
	assert.Equal(t, []float64{1, 2}, listDoubles(t, get(t, second, "arrayCol").(*realm.List)))

	testutil.MustWrite(t, r, func() error {
		return second.Set("arrayCol", others)
	})
	assert.Equal(t, []float64{2}, listDoubles(t, get(t, second, "arrayCol").(*realm.List)))
}
