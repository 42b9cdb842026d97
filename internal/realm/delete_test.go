package realm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/testutil"
)

func TestDelete_CompactsByMovingLastRow(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	testutil.MustWrite(t, r, func() error {
		for i := 0; i < 10; i++ {
			create(t, r, testutil.TestObjectType, []any{i})
		}
		return nil
	})
	objects, err := r.Objects(testutil.TestObjectType, "")
	require.NoError(t, err)

	testutil.MustWrite(t, r, func() error {
		return r.Delete(objects.At(0))
	})
	assert.Equal(t, 9, objects.Len())
	assert.Equal(t, 9.0, get(t, objects.At(0), "doubleCol"))
	assert.Equal(t, 1.0, get(t, objects.At(1), "doubleCol"))

	testutil.MustWrite(t, r, func() error {
		return r.Delete([]*realm.Object{objects.At(0), objects.At(1)})
	})
	assert.Equal(t, 7, objects.Len())
	assert.Equal(t, 7.0, get(t, objects.At(0), "doubleCol"))
	assert.Equal(t, 8.0, get(t, objects.At(1), "doubleCol"))

	threeObjects, err := r.Objects(testutil.TestObjectType, "doubleCol < 5")
	require.NoError(t, err)
	assert.Equal(t, 3, threeObjects.Len())
	testutil.MustWrite(t, r, func() error {
		return r.Delete(threeObjects)
	})
	assert.Equal(t, 4, objects.Len())
	assert.Equal(t, 0, threeObjects.Len())
	assert.Equal(t, []float64{7, 8, 6, 5}, doubles(t, objects))
}

func TestDelete_Targets(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject(), testutil.LinkTypes())
	var owner *realm.Object
	testutil.MustWrite(t, r, func() error {
		owner = create(t, r, testutil.LinkTypesType, map[string]any{
			"arrayCol": []any{[]any{1}, []any{2}},
		})
		create(t, r, testutil.TestObjectType, []any{3})
		create(t, r, testutil.TestObjectType, []any{4})
		return nil
	})

	tests := []struct {
		name string
		arg  func() any
		want []float64
	}{
		{
			name: "list",
			arg:  func() any { return get(t, owner, "arrayCol") },
			want: []float64{3, 4},
		},
		{
			name: "slice of any",
			arg: func() any {
				objects, _ := r.Objects(testutil.TestObjectType, "doubleCol == 3")
				return []any{objects.At(0), objects.At(0)}
			},
			want: []float64{4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.MustWrite(t, r, func() error { return r.Delete(tt.arg()) })
			objects, err := r.Objects(testutil.TestObjectType, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, doubles(t, objects))
		})
	}

	testutil.MustWrite(t, r, func() error {
		assert.ErrorIs(t, r.Delete(nil), dberr.ErrArgument)
		assert.ErrorIs(t, r.Delete("TestObject"), dberr.ErrArgument)
		assert.ErrorIs(t, r.Delete([]any{owner, 1}), dberr.ErrArgument)
		assert.ErrorIs(t, r.Delete((*realm.Object)(nil)), dberr.ErrArgument)
		return nil
	})
	assert.ErrorIs(t, r.Delete(owner), dberr.ErrTransactionRequired)
}

func TestDelete_InvalidatesHandles(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	var obj *realm.Object
	testutil.MustWrite(t, r, func() error {
		obj = create(t, r, testutil.TestObjectType, []any{1})
		return nil
	})
	snapshot := func() *realm.Results {
		res, err := r.Objects(testutil.TestObjectType, "")
		require.NoError(t, err)
		return res.Snapshot()
	}()

	testutil.MustWrite(t, r, func() error { return r.Delete(obj) })
	assert.False(t, obj.IsValid())
	_, err := obj.Get("doubleCol")
	assert.ErrorIs(t, err, dberr.ErrInvalidatedObject)

	testutil.MustWrite(t, r, func() error {
		assert.ErrorIs(t, obj.Set("doubleCol", 2), dberr.ErrInvalidatedObject)
		assert.ErrorIs(t, r.Delete(obj), dberr.ErrInvalidatedObject)
		return nil
	})

	require.Equal(t, 1, snapshot.Len(), "snapshots keep deleted objects")
	assert.False(t, snapshot.At(0).IsValid())
}

func TestDelete_ClearsLinks(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject(), testutil.LinkTypes())
	var owner, target *realm.Object
	testutil.MustWrite(t, r, func() error {
		owner = create(t, r, testutil.LinkTypesType, map[string]any{
			"objectCol": []any{1},
			"arrayCol":  []any{[]any{2}, []any{3}},
		})
		target = get(t, owner, "objectCol").(*realm.Object)
		require.NoError(t, owner.Set("objectCol1", target))
		list := get(t, owner, "arrayCol").(*realm.List)
		return list.Append(target, list.At(0))
	})
	list := get(t, owner, "arrayCol").(*realm.List)
	require.Equal(t, 4, list.Len())

	testutil.MustWrite(t, r, func() error { return r.Delete(target) })
	assert.Nil(t, get(t, owner, "objectCol"))
	assert.Nil(t, get(t, owner, "objectCol1"))
	require.Equal(t, 3, list.Len())
	assert.Equal(t, 2.0, get(t, list.At(0), "doubleCol"))
	assert.Equal(t, 3.0, get(t, list.At(1), "doubleCol"))
	assert.Equal(t, 2.0, get(t, list.At(2), "doubleCol"))

	testutil.MustWrite(t, r, func() error { return r.Delete(list.At(0)) })
	require.Equal(t, 1, list.Len())
	assert.Equal(t, 3.0, get(t, list.At(0), "doubleCol"))
}

func TestDelete_RequiredLink(t *testing.T) {
	holder := map[string]any{
		"name": "Holder",
		"properties": []any{
			map[string]any{"name": "target", "type": testutil.TestObjectType, "optional": false},
		},
	}
	r := testutil.OpenRealm(t, testutil.TestObject(), holder)

	var h *realm.Object
	testutil.MustWrite(t, r, func() error {
		h = create(t, r, "Holder", []any{[]any{1}})
		return nil
	})
	target := get(t, h, "target").(*realm.Object)

	testutil.MustWrite(t, r, func() error {
		assert.ErrorIs(t, r.Delete(target), dberr.ErrArgument)
		return nil
	})
	assert.True(t, target.IsValid())

	// Deleting both sides together is fine.
	testutil.MustWrite(t, r, func() error {
		return r.Delete([]*realm.Object{target, h})
	})
	assert.Equal(t, 0, count(t, r, testutil.TestObjectType, ""))
	assert.Equal(t, 0, count(t, r, "Holder", ""))
}

func TestDeleteAll(t *testing.T) {
	path := testutil.TempPath(t, "test.emberdb")
	cfg := realm.Config{Path: path, Schema: testutil.Schema(testutil.TestObject(), testutil.IntPrimary())}
	r := testutil.OpenRealmConfig(t, cfg)

	testutil.MustWrite(t, r, func() error {
		create(t, r, testutil.TestObjectType, []any{1})
		create(t, r, testutil.TestObjectType, []any{2})
		create(t, r, testutil.IntPrimaryType, []any{2, "value"})
		return nil
	})
	assert.Equal(t, 2, count(t, r, testutil.TestObjectType, ""))
	assert.Equal(t, 1, count(t, r, testutil.IntPrimaryType, ""))

	assert.ErrorIs(t, r.DeleteAll(), dberr.ErrTransactionRequired)

	testutil.MustWrite(t, r, func() error { return r.DeleteAll() })
	assert.Equal(t, 0, count(t, r, testutil.TestObjectType, ""))
	assert.Equal(t, 0, count(t, r, testutil.IntPrimaryType, ""))

	// The key index is cleared too, and the deletion is durable.
	testutil.MustWrite(t, r, func() error {
		create(t, r, testutil.IntPrimaryType, []any{2, "again"})
		return nil
	})
	require.NoError(t, r.Close())

	r2 := testutil.OpenRealmConfig(t, cfg)
	assert.Equal(t, 0, count(t, r2, testutil.TestObjectType, ""))
	obj, err := r2.ObjectForPrimaryKey(testutil.IntPrimaryType, 2)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "again", get(t, obj, "valueCol"))
}
