// Package realm is the EmberDB object store.
//
// A Realm holds objects of the types declared by its schema. Objects are
// created, modified and deleted only inside a write transaction:
//
//	err := r.Write(func() error {
//		_, err := r.Create("Person", map[string]any{"name": "Tim", "age": 11})
//		return err
//	})
//
// Reads need no transaction. Objects returns live Results that always show
// the current state, and Object handles follow their object until it is
// deleted.
//
// # State
//
// The whole object graph of an open path lives in memory, in one table per
// type. Rows of a table are kept dense: deleting a row moves the last row of
// the table into its slot. Objects are identified by an id assigned at
// creation that never changes, so handles and links survive row moves.
// Types with a primary key keep an ordered index from key to object id.
//
// # Transactions
//
// There is at most one write transaction per path. Every mutation records
// its inverse in an undo log; a failed write replays the log backwards.
// Individual operations inside a write are atomic as well: a create that
// fails halfway, after creating nested objects, leaves nothing behind.
//
// A successful write is persisted to the store package as one batch and
// then change listeners run. Listener errors are returned from Write after
// the commit.
//
// # Sharing
//
// Opening a path that is already open in the process returns a new handle
// on the same state. Handles are not safe for concurrent use.
package realm
