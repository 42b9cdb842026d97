package realm

import (
	"context"
	"fmt"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/roach88/emberdb/internal/coerce"
	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/store"
	"github.com/roach88/emberdb/internal/value"
)

// core is the in-memory state of one open path, shared by every handle
// opened on it.
type core struct {
	key    string
	path   string
	store  *store.Store
	logger *zap.Logger
	free   *btree.FreeList

	schema  *schema.Schema
	version uint64
	meta    store.Meta
	tables  map[string]*table
	nextID  uint64

	// gen changes on every mutation and rollback. Live results cache
	// against it.
	gen uint64

	tx      *txn
	handles []*Realm
}

func openCore(ctx context.Context, key string, cfg Config, sch *schema.Schema) (*core, *Realm, error) {
	storePath := cfg.Path
	if cfg.InMemory {
		storePath = store.MemoryPath
	}
	st, err := store.Open(storePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open realm %s: %w", cfg.Path, err)
	}

	c := &core{
		key:    key,
		path:   cfg.Path,
		store:  st,
		logger: cfg.Logger.With(zap.String("path", cfg.Path)),
		free:   btree.NewFreeList(btree.DefaultFreeListSize),
	}
	r := c.attach(cfg.Path)
	if err := c.init(ctx, r, cfg, sch); err != nil {
		st.Close()
		return nil, nil, err
	}
	return c, r, nil
}

func (c *core) attach(path string) *Realm {
	r := newRealm(c, path)
	c.handles = append(c.handles, r)
	return r
}

func (c *core) init(ctx context.Context, r *Realm, cfg Config, sch *schema.Schema) error {
	meta, found, err := c.store.LoadMeta(ctx)
	if err != nil {
		return fmt.Errorf("open realm %s: %w", c.path, err)
	}

	if !found {
		if sch == nil {
			sch = schema.Empty()
		}
		c.meta = store.Meta{StoreID: store.NewStoreID(), NextID: 1}
		c.nextID = 1
		c.setSchema(sch, cfg.SchemaVersion)
		if err := c.store.Commit(ctx, c.schema, store.Batch{Meta: &c.meta}); err != nil {
			return fmt.Errorf("open realm %s: %w", c.path, err)
		}
		c.logger.Debug("realm created",
			zap.String("store_id", c.meta.StoreID),
			zap.Uint64("schema_version", c.version))
		return nil
	}

	stored, err := storedSchema(meta)
	if err != nil {
		return fmt.Errorf("open realm %s: %w", c.path, err)
	}
	c.meta = meta
	c.nextID = max(meta.NextID, 1)

	switch {
	case sch == nil && cfg.SchemaVersion == 0:
		c.setSchema(stored, meta.SchemaVersion)
		return c.load(ctx)

	case cfg.SchemaVersion < meta.SchemaVersion:
		return dberr.New(dberr.KindSchemaVersionMismatch,
			"realm at %s has schema version %d, which is newer than the requested version %d",
			c.path, meta.SchemaVersion, cfg.SchemaVersion)

	case cfg.SchemaVersion == meta.SchemaVersion:
		if sch == nil {
			sch = stored
		}
		if !sch.Equal(stored) {
			return dberr.New(dberr.KindSchemaVersionMismatch,
				"schema of realm at %s changed without a schema version bump (version %d)", c.path, meta.SchemaVersion)
		}
		c.setSchema(sch, meta.SchemaVersion)
		return c.load(ctx)

	default:
		if sch == nil {
			sch = stored
		}
		return c.upgrade(ctx, r, stored, sch, meta.SchemaVersion, cfg)
	}
}

func storedSchema(meta store.Meta) (*schema.Schema, error) {
	if len(meta.Schema) == 0 {
		return schema.Empty(), nil
	}
	s, err := schema.Parse(meta.Schema)
	if err != nil {
		return nil, fmt.Errorf("stored schema: %w", err)
	}
	return s, nil
}

// setSchema installs sch with empty tables and refreshes the schema fields
// of the meta record.
func (c *core) setSchema(sch *schema.Schema, version uint64) {
	c.schema = sch
	c.version = version
	c.tables = make(map[string]*table, sch.Len())
	for _, os := range sch.Types() {
		c.tables[os.Name] = newTable(os, c.free)
	}
	c.meta.SchemaVersion = version
	c.meta.Fingerprint = sch.Fingerprint()
	c.meta.Schema = storedRaw(sch)
}

// storedRaw is the raw schema written to the file. Scalar defaults are
// stored in their coerced form so they survive the BSON round trip.
func storedRaw(sch *schema.Schema) []any {
	raw := sch.ToRaw()
	for i, os := range sch.Types() {
		props := raw[i].(map[string]any)["properties"].([]any)
		for j := range os.Properties {
			p := &os.Properties[j]
			if !p.HasDefault || p.Type.IsLink() {
				continue
			}
			if v, _, err := coerce.Default(os.Name, p); err == nil {
				props[j].(map[string]any)["default"] = value.Interface(v)
			}
		}
	}
	return raw
}

// load reads every object of the current schema from the store. Values the
// stored documents lack, or hold in an incompatible type, are filled in
// from defaults.
func (c *core) load(ctx context.Context) error {
	total := 0
	for _, os := range c.schema.Types() {
		objects, err := c.store.LoadObjectsAs(ctx, os.Name, os)
		if err != nil {
			return fmt.Errorf("load %s: %w", os.Name, err)
		}
		t := c.tables[os.Name]
		for _, obj := range objects {
			fillMissing(os, obj.Values)
			r := &row{id: obj.ID, values: obj.Values}
			if t.pk != nil {
				if _, dup := t.lookup(t.pkKey(r)); dup {
					return dberr.New(dberr.KindDuplicateKey, "stored objects share primary key %s", value.Format(t.pkKey(r))).WithType(os.Name)
				}
			}
			t.insert(r)
			if obj.ID >= c.nextID {
				c.nextID = obj.ID + 1
			}
		}
		total += len(objects)
	}
	if n := c.dropDanglingLinks(); n > 0 {
		c.logger.Debug("dropped dangling links", zap.Int("count", n))
	}
	c.logger.Debug("realm loaded",
		zap.Int("objects", total),
		zap.Uint64("schema_version", c.version))
	return nil
}

// upgrade moves the file from stored to sch at the requested version in
// one write transaction, running the migration hook inside it.
func (c *core) upgrade(ctx context.Context, r *Realm, stored, sch *schema.Schema, oldVersion uint64, cfg Config) error {
	c.setSchema(sch, cfg.SchemaVersion)
	if err := c.load(ctx); err != nil {
		return err
	}
	c.logger.Info("upgrading schema",
		zap.Uint64("from", oldVersion),
		zap.Uint64("to", cfg.SchemaVersion))

	return r.WriteContext(ctx, func() error {
		tx := c.tx
		tx.metaDirty = true
		tx.dropTypes = append(tx.dropTypes, stored.Names()...)
		for _, t := range c.tables {
			for _, rw := range t.rows {
				tx.touch(t.os.Name, rw.id)
			}
		}
		if cfg.Migration != nil {
			return cfg.Migration(oldVersion, r)
		}
		return nil
	})
}

func fillMissing(os *schema.ObjectSchema, values []value.Value) {
	for i := range os.Properties {
		if values[i] != nil {
			continue
		}
		p := &os.Properties[i]
		switch p.Type {
		case schema.TypeObject:
			values[i] = value.Null{}
		case schema.TypeList:
			values[i] = value.LinkList{}
		default:
			if v, ok, err := coerce.Default(os.Name, p); ok && err == nil {
				values[i] = v
			} else {
				values[i] = coerce.Zero(p)
			}
		}
	}
}

// dropDanglingLinks clears links whose target is not loaded. It runs only
// at load time and returns the number of links removed.
func (c *core) dropDanglingLinks() int {
	n := 0
	for _, t := range c.tables {
		for _, rw := range t.rows {
			for i := range t.os.Properties {
				p := &t.os.Properties[i]
				switch v := rw.values[i].(type) {
				case value.Link:
					if !c.exists(v) {
						rw.values[i] = value.Null{}
						n++
					}
				case value.LinkList:
					if p.Type != schema.TypeList {
						continue
					}
					kept := v[:0]
					for _, l := range v {
						if c.exists(l) {
							kept = append(kept, l)
						} else {
							n++
						}
					}
					rw.values[i] = kept
				}
			}
		}
	}
	return n
}

func (c *core) exists(l value.Link) bool {
	t, ok := c.tables[l.Type]
	if !ok {
		return false
	}
	_, ok = t.get(l.ID)
	return ok
}

func (c *core) row(l value.Link) (*table, *row, bool) {
	t, ok := c.tables[l.Type]
	if !ok {
		return nil, nil, false
	}
	r, ok := t.get(l.ID)
	return t, r, ok
}

// checkDefaults validates the declared scalar defaults of sch.
func checkDefaults(sch *schema.Schema) error {
	for _, os := range sch.Types() {
		for i := range os.Properties {
			p := &os.Properties[i]
			if p.Type.IsLink() || !p.HasDefault {
				continue
			}
			if _, _, err := coerce.Default(os.Name, p); err != nil {
				return dberr.Wrap(dberr.KindSchemaValidation, err, "invalid default").WithProperty(os.Name, p.Name)
			}
		}
	}
	return nil
}
