package store

import (
	"context"
	"fmt"

	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Key identifies one stored object.
type Key struct {
	Type string
	ID   uint64
}

// Record is one object to write. Ord is its row position within its type.
type Record struct {
	Key
	Ord    int
	Values []value.Value
}

// Object is one object read back from the file.
// Values is aligned with the schema it was decoded against; see DecodeObject.
type Object struct {
	ID     uint64
	Values []value.Value
}

// Batch is the set of changes made by one write transaction.
type Batch struct {
	// Meta replaces the meta record when non-nil.
	Meta *Meta

	// DropTypes removes every object of the named types before Puts apply.
	DropTypes []string

	Deletes []Key
	Puts    []Record
}

// Empty reports whether the batch changes nothing.
func (b *Batch) Empty() bool {
	return b.Meta == nil && len(b.DropTypes) == 0 && len(b.Deletes) == 0 && len(b.Puts) == 0
}

// Commit applies a batch atomically. Object values are encoded against sch.
// On error nothing is written.
func (s *Store) Commit(ctx context.Context, sch *schema.Schema, b Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin: %w", err)
	}
	defer tx.Rollback()

	if b.Meta != nil {
		if err := writeMeta(ctx, tx, *b.Meta); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	for _, typ := range b.DropTypes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE type = ?`, typ); err != nil {
			return fmt.Errorf("commit: drop %s: %w", typ, err)
		}
	}

	for _, k := range b.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE type = ? AND id = ?`, k.Type, int64(k.ID)); err != nil {
			return fmt.Errorf("commit: delete %s#%d: %w", k.Type, k.ID, err)
		}
	}

	if len(b.Puts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO objects (type, id, ord, data) VALUES (?, ?, ?, ?)
			ON CONFLICT(type, id) DO UPDATE SET ord = excluded.ord, data = excluded.data
		`)
		if err != nil {
			return fmt.Errorf("commit: prepare put: %w", err)
		}
		defer stmt.Close()

		for _, r := range b.Puts {
			os, ok := sch.Lookup(r.Type)
			if !ok {
				return fmt.Errorf("commit: put %s#%d: type not in schema", r.Type, r.ID)
			}
			data, err := EncodeObject(os, r.Values)
			if err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, r.Type, int64(r.ID), r.Ord, data); err != nil {
				return fmt.Errorf("commit: put %s#%d: %w", r.Type, r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadObjects returns every stored object of the given type in row order,
// decoded against os.
//
// Returns an empty slice (not nil) when the type has no objects.
func (s *Store) LoadObjects(ctx context.Context, os *schema.ObjectSchema) ([]Object, error) {
	return s.loadObjects(ctx, os.Name, os)
}

// LoadObjectsAs reads objects stored under storedType but decodes them
// against os. Used when a schema upgrade carries data over.
func (s *Store) LoadObjectsAs(ctx context.Context, storedType string, os *schema.ObjectSchema) ([]Object, error) {
	return s.loadObjects(ctx, storedType, os)
}

func (s *Store) loadObjects(ctx context.Context, storedType string, os *schema.ObjectSchema) ([]Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data FROM objects
		WHERE type = ?
		ORDER BY ord ASC, id ASC
	`, storedType)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	objects := []Object{}
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		values, err := DecodeObject(os, data)
		if err != nil {
			return nil, err
		}
		objects = append(objects, Object{ID: uint64(id), Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return objects, nil
}
