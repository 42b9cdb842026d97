package realm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/realm"
)

func get(t *testing.T, o *realm.Object, name string) any {
	t.Helper()
	require.NotNil(t, o, "object is nil")
	v, err := o.Get(name)
	require.NoError(t, err)
	return v
}

func doubles(t *testing.T, res *realm.Results) []float64 {
	t.Helper()
	out := make([]float64, 0, res.Len())
	for _, o := range res.All() {
		out = append(out, get(t, o, "doubleCol").(float64))
	}
	return out
}

func count(t *testing.T, r *realm.Realm, typeName, predicate string, params ...any) int {
	t.Helper()
	res, err := r.Objects(typeName, predicate, params...)
	require.NoError(t, err)
	return res.Len()
}

func create(t *testing.T, r *realm.Realm, typeName string, values any) *realm.Object {
	t.Helper()
	o, err := r.Create(typeName, values)
	require.NoError(t, err)
	return o
}
