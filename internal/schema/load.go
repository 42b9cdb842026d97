package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/emberdb/internal/dberr"
)

// ParseYAML parses a YAML (or JSON) schema document.
//
// The document is either the schema list itself or a mapping with a
// "schema" key holding it. Unlike Parse on a decoded map, mapping-form
// properties keep their document order.
func ParseYAML(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dberr.Wrap(dberr.KindSchemaValidation, err, "invalid YAML")
	}
	if len(doc.Content) == 0 {
		return nil, dberr.New(dberr.KindSchemaValidation, "empty schema document")
	}
	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		if n := mappingValue(root, "schema"); n != nil {
			root = n
		}
	}
	raw, err := RawFromNode(root)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// LoadYAML reads and parses a YAML schema file.
func LoadYAML(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return ParseYAML(data)
}

// RawFromNode converts a YAML schema list node into the raw form accepted
// by Parse, rewriting mapping-form properties as ordered lists.
func RawFromNode(n *yaml.Node) (any, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, dberr.New(dberr.KindSchemaValidation, "schema must be an array (line %d)", n.Line)
	}
	out := make([]any, 0, len(n.Content))
	for i, typeNode := range n.Content {
		var entry any
		if err := typeNode.Decode(&entry); err != nil {
			return nil, dberr.Wrap(dberr.KindSchemaValidation, err, "schema[%d] (line %d)", i, typeNode.Line)
		}
		m, ok := entry.(map[string]any)
		if ok {
			if props := mappingValue(typeNode, "properties"); props != nil && props.Kind == yaml.MappingNode {
				ordered, err := orderedProperties(props)
				if err != nil {
					return nil, err
				}
				m["properties"] = ordered
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func orderedProperties(n *yaml.Node) ([]any, error) {
	props := make([]any, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		var desc any
		if err := val.Decode(&desc); err != nil {
			return nil, dberr.Wrap(dberr.KindSchemaValidation, err, "property %q (line %d)", key.Value, val.Line)
		}
		var pm map[string]any
		switch d := desc.(type) {
		case string:
			pm = map[string]any{"type": d}
		case map[string]any:
			pm = d
		default:
			return nil, dberr.New(dberr.KindSchemaValidation, "property %q: descriptor must be a type string or an object (line %d)", key.Value, val.Line)
		}
		pm["name"] = key.Value
		props = append(props, pm)
	}
	return props, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
