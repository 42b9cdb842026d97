package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/testutil"
)

func TestFixtures_Parse(t *testing.T) {
	sch, err := schema.Parse(testutil.Schema(
		testutil.TestObject(),
		testutil.PersonObject(),
		testutil.BasicTypes(),
		testutil.NullableBasicTypes(),
		testutil.LinkTypes(),
		testutil.IntPrimary(),
		testutil.AllTypes(),
		testutil.DefaultValues(),
	))
	require.NoError(t, err)
	assert.Equal(t, 8, sch.Len())

	all, ok := sch.Lookup(testutil.AllTypesType)
	require.True(t, ok)
	assert.Equal(t, "primaryCol", all.PrimaryKey)
	arr, ok := all.Property("arrayCol")
	require.True(t, ok)
	assert.Equal(t, schema.TypeList, arr.Type)
	assert.Equal(t, testutil.TestObjectType, arr.ObjectType)
}

func TestOpenRealm(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.DefaultValues(), testutil.TestObject())
	assert.Equal(t, 2, r.Schema().Len())
	assert.FileExists(t, r.Path())

	testutil.MustWrite(t, r, func() error {
		_, err := r.Create(testutil.DefaultValuesType, map[string]any{})
		return err
	})
	res, err := r.Objects(testutil.TestObjectType, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len(), "object defaults create linked objects")
}
