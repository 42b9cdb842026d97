package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Meta keys.
const (
	metaStoreID       = "store_id"
	metaSchemaVersion = "schema_version"
	metaFingerprint   = "fingerprint"
	metaSchema        = "schema"
	metaNextID        = "next_id"
)

// Meta is the store-level record kept alongside the objects.
type Meta struct {
	// StoreID identifies the file. Assigned once, at creation.
	StoreID string

	SchemaVersion uint64

	// Fingerprint is the structural hash of Schema.
	Fingerprint string

	// Schema is the raw structural schema (schema.Schema.ToRaw form).
	Schema []any

	// NextID is the next unused object id.
	NextID uint64
}

// NewStoreID returns a fresh store identifier (UUIDv7, time-ordered).
func NewStoreID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// LoadMeta reads the meta record. The second result is false for a file
// that has never been committed to.
func (s *Store) LoadMeta(ctx context.Context) (Meta, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, false, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	values := map[string][]byte{}
	for rows.Next() {
		var (
			key string
			val []byte
		)
		if err := rows.Scan(&key, &val); err != nil {
			return Meta{}, false, fmt.Errorf("scan meta: %w", err)
		}
		values[key] = val
	}
	if err := rows.Err(); err != nil {
		return Meta{}, false, fmt.Errorf("iterate meta: %w", err)
	}

	id, ok := values[metaStoreID]
	if !ok {
		return Meta{}, false, nil
	}

	m := Meta{StoreID: string(id), Fingerprint: string(values[metaFingerprint])}
	if m.SchemaVersion, err = parseUint(values, metaSchemaVersion); err != nil {
		return Meta{}, false, err
	}
	if m.NextID, err = parseUint(values, metaNextID); err != nil {
		return Meta{}, false, err
	}
	if raw, ok := values[metaSchema]; ok {
		if m.Schema, err = decodeRaw(raw); err != nil {
			return Meta{}, false, fmt.Errorf("decode schema record: %w", err)
		}
	}
	return m, true, nil
}

func parseUint(values map[string][]byte, key string) (uint64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse meta %s: %w", key, err)
	}
	return n, nil
}

func writeMeta(ctx context.Context, tx *sql.Tx, m Meta) error {
	raw := m.Schema
	if raw == nil {
		raw = []any{}
	}
	schemaBlob, err := encodeRaw(raw)
	if err != nil {
		return fmt.Errorf("encode schema record: %w", err)
	}
	entries := []struct {
		key string
		val []byte
	}{
		{metaStoreID, []byte(m.StoreID)},
		{metaSchemaVersion, []byte(strconv.FormatUint(m.SchemaVersion, 10))},
		{metaFingerprint, []byte(m.Fingerprint)},
		{metaSchema, schemaBlob},
		{metaNextID, []byte(strconv.FormatUint(m.NextID, 10))},
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, e.key, e.val); err != nil {
			return fmt.Errorf("write meta %s: %w", e.key, err)
		}
	}
	return nil
}
