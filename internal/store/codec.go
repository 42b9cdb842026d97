package store

import (
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Link sub-document keys.
const (
	linkTypeKey = "link_type"
	linkIDKey   = "link_id"
)

// EncodeObject serializes one object's values as a BSON document keyed by
// property name, in declaration order.
//
// Mapping:
//
//	bool   -> boolean      int    -> int64
//	float  -> double       double -> double
//	string -> string       date   -> datetime
//	data   -> binary       object -> {link_type, link_id} or null
//	list   -> array of {link_type, link_id}
func EncodeObject(os *schema.ObjectSchema, values []value.Value) ([]byte, error) {
	if len(values) != len(os.Properties) {
		return nil, fmt.Errorf("encode %s: got %d values for %d properties", os.Name, len(values), len(os.Properties))
	}
	doc := make(bson.D, 0, len(values))
	for i, p := range os.Properties {
		v, err := encodeValue(values[i])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", os.Name, p.Name, err)
		}
		doc = append(doc, bson.E{Key: p.Name, Value: v})
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", os.Name, err)
	}
	return data, nil
}

func encodeValue(v value.Value) (any, error) {
	switch val := v.(type) {
	case nil, value.Null:
		return nil, nil
	case value.Bool:
		return bool(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.Double:
		return float64(val), nil
	case value.String:
		return string(val), nil
	case value.Date:
		return primitive.DateTime(int64(val)), nil
	case value.Data:
		return primitive.Binary{Subtype: 0x00, Data: []byte(val)}, nil
	case value.Link:
		return encodeLink(val), nil
	case value.LinkList:
		arr := make(bson.A, len(val))
		for i, l := range val {
			arr[i] = encodeLink(l)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

func encodeLink(l value.Link) bson.D {
	return bson.D{{Key: linkTypeKey, Value: l.Type}, {Key: linkIDKey, Value: int64(l.ID)}}
}

// DecodeObject parses a document written by EncodeObject against os.
//
// The result is aligned with os.Properties. An entry is nil when the
// document has no usable value for that property: the property is absent,
// or its stored type cannot be carried over to the declared type. Numeric
// values convert between widths; everything else must match exactly.
func DecodeObject(os *schema.ObjectSchema, data []byte) ([]value.Value, error) {
	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", os.Name, err)
	}
	out := make([]value.Value, len(os.Properties))
	for _, e := range doc {
		p, ok := os.Property(e.Key)
		if !ok {
			continue
		}
		out[p.Index] = decodeValue(p, e.Value)
	}
	return out, nil
}

func decodeValue(p *schema.Property, raw any) value.Value {
	if raw == nil {
		if p.Optional {
			return value.Null{}
		}
		return nil
	}
	switch p.Type {
	case schema.TypeBool:
		if b, ok := raw.(bool); ok {
			return value.Bool(b)
		}
	case schema.TypeInt:
		switch n := raw.(type) {
		case int64:
			return value.Int(n)
		case int32:
			return value.Int(n)
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < math.MaxInt64 {
				return value.Int(int64(n))
			}
		}
	case schema.TypeFloat:
		if f, ok := number(raw); ok {
			return value.Float(float32(f))
		}
	case schema.TypeDouble:
		if f, ok := number(raw); ok {
			return value.Double(f)
		}
	case schema.TypeString:
		if s, ok := raw.(string); ok {
			return value.String(s)
		}
	case schema.TypeDate:
		if d, ok := raw.(primitive.DateTime); ok {
			return value.Date(int64(d))
		}
	case schema.TypeData:
		if b, ok := raw.(primitive.Binary); ok {
			return value.Data(append([]byte{}, b.Data...))
		}
	case schema.TypeObject:
		if l, ok := decodeLink(raw); ok && l.Type == p.ObjectType {
			return l
		}
	case schema.TypeList:
		arr, ok := raw.(primitive.A)
		if !ok {
			return nil
		}
		out := make(value.LinkList, 0, len(arr))
		for _, item := range arr {
			if l, ok := decodeLink(item); ok && l.Type == p.ObjectType {
				out = append(out, l)
			}
		}
		return out
	}
	return nil
}

func number(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func decodeLink(raw any) (value.Link, bool) {
	var m map[string]any
	switch d := raw.(type) {
	case primitive.D:
		m = docMap(d)
	case primitive.M:
		m = d
	case map[string]any:
		m = d
	default:
		return value.Link{}, false
	}
	typ, ok := m[linkTypeKey].(string)
	if !ok {
		return value.Link{}, false
	}
	switch id := m[linkIDKey].(type) {
	case int64:
		return value.Link{Type: typ, ID: uint64(id)}, true
	case int32:
		return value.Link{Type: typ, ID: uint64(id)}, true
	}
	return value.Link{}, false
}

// encodeRaw serializes a loosely typed document (the raw schema list).
func encodeRaw(raw []any) ([]byte, error) {
	return bson.Marshal(bson.M{"types": raw})
}

// decodeRaw reverses encodeRaw, normalizing driver types to plain Go
// maps and slices.
func decodeRaw(data []byte) ([]any, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	types, ok := normalize(doc["types"]).([]any)
	if !ok {
		return nil, fmt.Errorf("schema record has no type list")
	}
	return types, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case primitive.A:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalize(val[i])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalize(val[i])
		}
		return out
	case primitive.D:
		return normalize(docMap(val))
	case primitive.M:
		return normalize(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case int32:
		return int64(val)
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Binary:
		return val.Data
	}
	return v
}

func docMap(d primitive.D) map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}
