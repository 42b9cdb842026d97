// Package store provides SQLite-backed durable storage for EmberDB files.
//
// One file holds one store:
//   - meta: store id (UUIDv7), schema version, structural schema and its
//     fingerprint, and the object id counter
//   - objects: one BSON document per object, keyed by (type, id), with its
//     row position within the type
//
// The in-memory object graph lives in the realm package. This package only
// loads a snapshot at open time and applies the change batch of each
// committed write transaction inside one SQL transaction, so a file never
// holds a partially applied write.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - user_version: File format version, migrated on open
package store
