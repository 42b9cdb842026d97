// Package testutil provides schema fixtures and realm helpers for tests.
package testutil

import "time"

// Fixture type names.
const (
	TestObjectType         = "TestObject"
	PersonObjectType       = "PersonObject"
	BasicTypesType         = "BasicTypesObject"
	NullableBasicTypesType = "NullableBasicTypesObject"
	LinkTypesType          = "LinkTypesObject"
	IntPrimaryType         = "IntPrimaryObject"
	AllTypesType           = "AllTypesObject"
	DefaultValuesType      = "DefaultValuesObject"
)

func prop(name, typ string) map[string]any {
	return map[string]any{"name": name, "type": typ}
}

// TestObject has a single double property.
func TestObject() map[string]any {
	return map[string]any{
		"name":       TestObjectType,
		"properties": []any{prop("doubleCol", "double")},
	}
}

// PersonObject is the query fixture. married defaults to false.
func PersonObject() map[string]any {
	return map[string]any{
		"name": PersonObjectType,
		"properties": []any{
			prop("name", "string"),
			prop("age", "double"),
			map[string]any{"name": "married", "type": "bool", "default": false},
		},
	}
}

func basicProperties(suffix string) []any {
	return []any{
		prop("boolCol", "bool"+suffix),
		prop("intCol", "int"+suffix),
		prop("floatCol", "float"+suffix),
		prop("doubleCol", "double"+suffix),
		prop("stringCol", "string"+suffix),
		prop("dateCol", "date"+suffix),
		prop("dataCol", "data"+suffix),
	}
}

// BasicTypes has one required property of every scalar type.
func BasicTypes() map[string]any {
	return map[string]any{"name": BasicTypesType, "properties": basicProperties("")}
}

// NullableBasicTypes has one optional property of every scalar type.
func NullableBasicTypes() map[string]any {
	return map[string]any{"name": NullableBasicTypesType, "properties": basicProperties("?")}
}

// LinkTypes links to TestObject through two object properties and a list.
func LinkTypes() map[string]any {
	return map[string]any{
		"name": LinkTypesType,
		"properties": []any{
			prop("objectCol", TestObjectType),
			map[string]any{"name": "objectCol1", "type": "object", "objectType": TestObjectType},
			map[string]any{"name": "arrayCol", "type": "list", "objectType": TestObjectType},
		},
	}
}

// IntPrimary is keyed by an int.
func IntPrimary() map[string]any {
	return map[string]any{
		"name":       IntPrimaryType,
		"primaryKey": "primaryCol",
		"properties": []any{
			prop("primaryCol", "int"),
			prop("valueCol", "string"),
		},
	}
}

// AllTypes is keyed by a string and has every property type.
func AllTypes() map[string]any {
	props := []any{prop("primaryCol", "string")}
	props = append(props, basicProperties("")...)
	props = append(props,
		prop("objectCol", TestObjectType),
		prop("arrayCol", TestObjectType+"[]"),
	)
	return map[string]any{
		"name":       AllTypesType,
		"primaryKey": "primaryCol",
		"properties": props,
	}
}

// DefaultValuesDate is the dateCol default of DefaultValues.
var DefaultValuesDate = time.UnixMilli(1).UTC()

// DefaultValues declares a default for every property.
func DefaultValues() map[string]any {
	return map[string]any{
		"name": DefaultValuesType,
		"properties": []any{
			map[string]any{"name": "boolCol", "type": "bool", "default": true},
			map[string]any{"name": "intCol", "type": "int", "default": -1},
			map[string]any{"name": "floatCol", "type": "float", "default": -1.1},
			map[string]any{"name": "doubleCol", "type": "double", "default": -1.11},
			map[string]any{"name": "stringCol", "type": "string", "default": "defaultString"},
			map[string]any{"name": "dateCol", "type": "date", "default": DefaultValuesDate},
			map[string]any{"name": "dataCol", "type": "data", "default": "defaultData"},
			map[string]any{"name": "objectCol", "type": TestObjectType, "default": []any{1.0}},
			map[string]any{"name": "nullObjectCol", "type": TestObjectType, "default": nil},
			map[string]any{"name": "arrayCol", "type": TestObjectType + "[]", "default": []any{[]any{2.0}}},
		},
	}
}

// Schema builds a raw schema from fixtures.
func Schema(types ...map[string]any) []any {
	out := make([]any, len(types))
	for i, t := range types {
		out[i] = t
	}
	return out
}
