package realm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/notify"
	"github.com/roach88/emberdb/internal/query"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// EventChange is the only supported listener event. It fires after every
// committed write transaction.
const EventChange = "change"

// Listener is notified after a write transaction commits. An error returned
// by a listener is returned from the write that triggered it; the write
// itself stays committed.
//
// Listeners are deduplicated by equality, so the dynamic type must be
// comparable. Use ListenerFunc to wrap a plain function.
type Listener interface {
	RealmChanged(r *Realm, event string) error
}

type funcListener struct {
	fn func(r *Realm, event string) error
}

func (l *funcListener) RealmChanged(r *Realm, event string) error {
	return l.fn(r, event)
}

// ListenerFunc wraps fn as a Listener. Each call returns a distinct
// listener; keep the result to remove it later.
func ListenerFunc(fn func(r *Realm, event string) error) Listener {
	return &funcListener{fn: fn}
}

// Realm is a handle on an open store. Handles opened on the same path share
// state. A handle and the objects and collections obtained from it must be
// used by one goroutine at a time.
type Realm struct {
	core   *core
	path   string
	bus    *notify.Bus[Listener]
	closed bool
}

func newRealm(c *core, path string) *Realm {
	return &Realm{core: c, path: path, bus: notify.New[Listener](EventChange)}
}

// Open opens or creates the realm described by cfg.
//
// Errors:
//   - SchemaValidation: malformed schema or default value
//   - SchemaVersionMismatch: the stored version is newer than requested,
//     or equal with a different schema, or the path is already open at a
//     different version or schema
//   - any storage error opening the file
func Open(cfg Config) (*Realm, error) {
	return OpenContext(context.Background(), cfg)
}

// OpenContext is Open with a context for the storage operations.
// The migration hook, if any, runs with the process-wide open lock held and
// must not open or close realms.
func OpenContext(ctx context.Context, cfg Config) (*Realm, error) {
	cfg = cfg.withDefaults()

	var sch *schema.Schema
	if cfg.Schema != nil {
		s, err := schema.Parse(cfg.Schema)
		if err != nil {
			return nil, err
		}
		if err := checkDefaults(s); err != nil {
			return nil, err
		}
		sch = s
	}

	key, err := registryKey(cfg)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindArgument, err, "invalid realm path")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if c, ok := registry.cores[key]; ok {
		if err := c.attachCompatible(sch, cfg.SchemaVersion); err != nil {
			return nil, err
		}
		return c.attach(cfg.Path), nil
	}

	c, r, err := openCore(ctx, key, cfg, sch)
	if err != nil {
		return nil, err
	}
	registry.cores[key] = c
	return r, nil
}

// Path returns the path the realm was opened with.
func (r *Realm) Path() string {
	return r.path
}

// SchemaVersion returns the schema version of the open realm.
func (r *Realm) SchemaVersion() uint64 {
	return r.core.version
}

// Schema returns the schema of the open realm.
func (r *Realm) Schema() *schema.Schema {
	return r.core.schema
}

// StoreID returns the identifier assigned to the file when it was created.
func (r *Realm) StoreID() string {
	return r.core.meta.StoreID
}

// IsInTransaction reports whether a write transaction is active.
func (r *Realm) IsInTransaction() bool {
	return r.core.tx != nil
}

// IsClosed reports whether Close has been called on this handle.
func (r *Realm) IsClosed() bool {
	return r.closed
}

func (r *Realm) checkOpen() error {
	if r.closed {
		return dberr.New(dberr.KindClosed, "realm at %s is closed", r.path)
	}
	return nil
}

// Close releases the handle. Closing the last handle on a path closes the
// file. Close is idempotent; it fails while a write transaction is active.
func (r *Realm) Close() error {
	if r.closed {
		return nil
	}
	if r.core.tx != nil {
		return dberr.New(dberr.KindTransactionInProgress, "cannot close a realm during a write transaction")
	}
	r.closed = true
	r.bus.RemoveAll()
	return r.core.release(r)
}

// Write runs fn as a write transaction. See WriteContext.
func (r *Realm) Write(fn func() error) error {
	return r.WriteContext(context.Background(), fn)
}

// WriteContext runs fn as a write transaction.
//
// The changes made by fn are committed when it returns nil and rolled back
// when it returns an error or panics; a panic is re-raised after the
// rollback. Once committed, change listeners on every handle sharing this
// realm run in registration order. The first listener error is returned.
//
// A write inside another write fails with TransactionInProgress.
// ctx applies to persisting the commit.
func (r *Realm) WriteContext(ctx context.Context, fn func() error) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if fn == nil {
		return dberr.New(dberr.KindArgument, "write requires a function")
	}
	c := r.core
	if c.tx != nil {
		return dberr.New(dberr.KindTransactionInProgress, "a write transaction is already in progress")
	}

	c.begin(r)
	committed := false
	defer func() {
		if !committed {
			c.rollback()
		}
	}()

	if err := fn(); err != nil {
		return err
	}
	if err := c.commit(ctx); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	committed = true
	return c.dispatch()
}

func (c *core) dispatch() error {
	handles := append([]*Realm(nil), c.handles...)
	for _, h := range handles {
		if h.closed {
			continue
		}
		for _, l := range h.bus.Listeners(EventChange) {
			if err := l.RealmChanged(h, EventChange); err != nil {
				return fmt.Errorf("%s listener: %w", EventChange, err)
			}
		}
	}
	return nil
}

// AddListener registers l for event. Adding a registered listener again is
// a no-op.
func (r *Realm) AddListener(event string, l Listener) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if l == nil {
		return dberr.New(dberr.KindArgument, "listener must not be nil")
	}
	if !reflect.TypeOf(l).Comparable() {
		return dberr.New(dberr.KindArgument, "listener type %T is not comparable; wrap functions with ListenerFunc", l)
	}
	return r.bus.Add(event, l)
}

// RemoveListener unregisters l from event.
func (r *Realm) RemoveListener(event string, l Listener) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return nil
	}
	return r.bus.Remove(event, l)
}

// RemoveAllListeners unregisters every listener of this handle.
func (r *Realm) RemoveAllListeners() {
	r.bus.RemoveAll()
}

// DeleteAll removes every object of every type. The schema is kept.
func (r *Realm) DeleteAll() error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	c := r.core
	if err := c.requireWrite("delete all objects"); err != nil {
		return err
	}
	for _, os := range c.schema.Types() {
		c.truncate(c.tables[os.Name])
	}
	c.tx.dropTypes = append(c.tx.dropTypes, c.schema.Names()...)
	return nil
}

// Objects returns a live collection of the objects of a type that match
// predicate. An empty predicate matches every object. Parameters are
// bound to $0, $1, ... and checked immediately.
//
// Errors:
//   - UnknownType: typeName is not in the schema
//   - QuerySyntax, QueryParameter, TypeMismatch: see query.Compile
func (r *Realm) Objects(typeName string, predicate string, params ...any) (*Results, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	t, err := r.table(typeName)
	if err != nil {
		return nil, err
	}
	pred, err := query.Compile(t.os, predicate, params, r.resolveLink)
	if err != nil {
		return nil, err
	}
	return &Results{realm: r, os: t.os, pred: pred}, nil
}

// ObjectForPrimaryKey returns the object of typeName whose primary key is
// key, or nil when there is none.
func (r *Realm) ObjectForPrimaryKey(typeName string, key any) (*Object, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	t, err := r.table(typeName)
	if err != nil {
		return nil, err
	}
	pk := t.os.PrimaryKeyProperty()
	if pk == nil {
		return nil, dberr.New(dberr.KindArgument, "type has no primary key").WithType(typeName)
	}
	k, err := coerceScalar(t.os, pk, key, CreateOptions{})
	if err != nil {
		return nil, err
	}
	rw, ok := t.lookup(k)
	if !ok {
		return nil, nil
	}
	return r.object(t.os, rw.id), nil
}

func (r *Realm) table(typeName string) (*table, error) {
	t, ok := r.core.tables[typeName]
	if !ok {
		return nil, dberr.New(dberr.KindUnknownType, "object type %q is not in the schema", typeName).WithType(typeName)
	}
	return t, nil
}

func (r *Realm) object(os *schema.ObjectSchema, id uint64) *Object {
	return &Object{realm: r, os: os, id: id}
}

// resolveLink maps an object argument of this realm to a link.
func (r *Realm) resolveLink(arg any) (value.Link, bool) {
	o, ok := arg.(*Object)
	if !ok || o == nil || o.realm.core != r.core {
		return value.Link{}, false
	}
	return value.Link{Type: o.os.Name, ID: o.id}, true
}
