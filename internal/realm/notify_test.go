package realm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/testutil"
)

type counter struct {
	calls  int
	events []string
}

func (c *counter) RealmChanged(_ *realm.Realm, event string) error {
	c.calls++
	c.events = append(c.events, event)
	return nil
}

func TestListeners_Notifications(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	notificationCount := 0
	var notificationName string
	var notified *realm.Realm

	listener := realm.ListenerFunc(func(rr *realm.Realm, name string) error {
		notificationCount++
		notificationName = name
		notified = rr
		return nil
	})
	require.NoError(t, r.AddListener(realm.EventChange, listener))
	assert.Equal(t, 0, notificationCount)

	testutil.MustWrite(t, r, func() error { return nil })
	assert.Equal(t, 1, notificationCount)
	assert.Equal(t, realm.EventChange, notificationName)
	assert.Same(t, r, notified)

	// Adding the same listener again is a no-op.
	require.NoError(t, r.AddListener(realm.EventChange, listener))
	testutil.MustWrite(t, r, func() error { return nil })
	assert.Equal(t, 2, notificationCount)

	require.NoError(t, r.RemoveListener(realm.EventChange, listener))
	testutil.MustWrite(t, r, func() error { return nil })
	assert.Equal(t, 2, notificationCount)

	require.NoError(t, r.AddListener(realm.EventChange, listener))
	r.RemoveAllListeners()
	testutil.MustWrite(t, r, func() error { return nil })
	assert.Equal(t, 2, notificationCount)

	assert.ErrorIs(t, r.AddListener("invalid", listener), dberr.ErrUnsupportedEvent)
	assert.ErrorIs(t, r.RemoveListener("invalid", listener), dberr.ErrUnsupportedEvent)
}

func TestListeners_RolledBackWriteDoesNotNotify(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	c := &counter{}
	require.NoError(t, r.AddListener(realm.EventChange, c))

	err := r.Write(func() error {
		create(t, r, testutil.TestObjectType, []any{1})
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.calls)
}

func TestListeners_Order(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	var order []int
	for i := range 3 {
		require.NoError(t, r.AddListener(realm.EventChange, realm.ListenerFunc(func(*realm.Realm, string) error {
			order = append(order, i)
			return nil
		})))
	}
	testutil.MustWrite(t, r, func() error { return nil })
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestListeners_ErrorIsReturned(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	boom := errors.New("boom")
	after := &counter{}
	require.NoError(t, r.AddListener(realm.EventChange, realm.ListenerFunc(func(*realm.Realm, string) error {
		return boom
	})))
	require.NoError(t, r.AddListener(realm.EventChange, after))

	err := r.Write(func() error {
		create(t, r, testutil.TestObjectType, []any{1})
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, after.calls)
	assert.False(t, r.IsInTransaction())
	assert.Equal(t, 1, count(t, r, testutil.TestObjectType, ""), "the write stays committed")
}

type funcValue func(*realm.Realm, string) error

func (f funcValue) RealmChanged(r *realm.Realm, event string) error { return f(r, event) }

func TestListeners_RejectsInvalid(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	assert.ErrorIs(t, r.AddListener(realm.EventChange, nil), dberr.ErrArgument)
	assert.ErrorIs(t, r.AddListener(realm.EventChange, funcValue(func(*realm.Realm, string) error { return nil })), dberr.ErrArgument)
	assert.NoError(t, r.RemoveListener(realm.EventChange, nil))
}

func TestListeners_SharedHandles(t *testing.T) {
	path := testutil.TempPath(t, "test.emberdb")
	cfg := realm.Config{Path: path, Schema: testutil.Schema(testutil.TestObject())}
	r1 := testutil.OpenRealmConfig(t, cfg)
	r2 := testutil.OpenRealmConfig(t, cfg)

	c1, c2 := &counter{}, &counter{}
	require.NoError(t, r1.AddListener(realm.EventChange, c1))
	require.NoError(t, r2.AddListener(realm.EventChange, c2))

	testutil.MustWrite(t, r1, func() error {
		create(t, r1, testutil.TestObjectType, []any{1})
		return nil
	})
	assert.Equal(t, 1, c1.calls)
	assert.Equal(t, 1, c2.calls)
	assert.Equal(t, 1, count(t, r2, testutil.TestObjectType, ""))

	require.NoError(t, r2.Close())
	testutil.MustWrite(t, r1, func() error { return nil })
	assert.Equal(t, 2, c1.calls)
	assert.Equal(t, 1, c2.calls, "closed handles are not notified")
}

func TestListeners_ClosedRealm(t *testing.T) {
	r := testutil.OpenRealm(t, testutil.TestObject())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.AddListener(realm.EventChange, &counter{}), dberr.ErrClosed)
	assert.ErrorIs(t, r.Write(func() error { return nil }), dberr.ErrClosed)
}
