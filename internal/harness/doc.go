// Package harness runs YAML scenarios against a fresh realm.
//
// A scenario declares a schema, a sequence of write and query steps, and
// assertions on the final contents of the realm:
//
//	name: people_basics
//	description: "Create, update and query people"
//	schema:
//	  - name: Person
//	    primaryKey: name
//	    properties:
//	      name: string
//	      age: int
//	      best: Person
//	steps:
//	  - op: create
//	    type: Person
//	    values: {name: Ari, age: 10}
//	  - op: create
//	    type: Person
//	    values: {name: Ari, age: 11}
//	    expect_error: DUPLICATE_KEY
//	  - op: set
//	    type: Person
//	    key: Ari
//	    values: {best: {$ref: {type: Person, key: Ari}}}
//	  - op: query
//	    type: Person
//	    predicate: "age > $0"
//	    params: [5]
//	assertions:
//	  - type: count
//	    object_type: Person
//	    expected: 1
//	  - type: object
//	    object_type: Person
//	    key: Ari
//	    expect: {age: 10}
//
// The schema is given inline (YAML form, see schema.ParseYAML) or through
// schema_file, a .cue file or directory compiled with the compiler package
// or a .yaml file. Relative paths resolve against the scenario's directory.
//
// # Steps
//
//   - create, upsert: create an object from values (a mapping or a list)
//   - set: assign values to the objects selected by key or predicate
//   - delete: delete the objects selected by key or predicate
//   - delete_all: delete every object
//   - query: record the objects matching predicate, optionally sorted
//
// Every step runs in its own write transaction. A step with expect_error
// must fail with that error kind (see dberr.ParseKind); a failed step
// without it fails the scenario. Values use loose coercion, so dates may
// be RFC 3339 strings. A mapping of the form {$ref: {type: T, key: k}}
// anywhere in values or params stands for the existing object of type T
// with primary key k.
//
// # Assertions
//
//   - count: the number of objects of object_type matching predicate
//   - object: the object selected by key or predicate has the expected
//     property values (subset match; links compare by primary key)
//
// # Traces
//
// Each step adds a TraceEvent to the result. Traces contain no ids or
// timestamps, so the canonical JSON of a trace (MarshalTrace) is stable
// across runs and can be compared against golden files.
package harness
