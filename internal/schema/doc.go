// Package schema holds the declared object types of an EmberDB store.
//
// A Schema is built once when a store opens and is immutable afterwards.
// Each ObjectSchema carries its properties in declaration order together
// with a name to position table, so accessors resolve a property name once
// and then index rows directly.
//
// Schemas are usually built from a loosely typed description (Parse) such
// as a decoded JSON or YAML document:
//
//	s, err := schema.Parse([]any{
//	    map[string]any{
//	        "name":       "Person",
//	        "primaryKey": "name",
//	        "properties": []any{
//	            map[string]any{"name": "name", "type": "string"},
//	            map[string]any{"name": "age", "type": "int?"},
//	            map[string]any{"name": "friends", "type": "Person[]"},
//	        },
//	    },
//	})
//
// Validation failures are dberr.KindSchemaValidation errors naming the
// offending type and property.
package schema
