package models

import (
	"fmt"

	"go.yaml.in/yaml/v3"
)

// OrderedMap is a string-keyed map that remembers insertion order.
// Decoding from YAML preserves the document's key order, which the engine
// relies on for deterministic scheduling and naming.
type OrderedMap[V any] struct {
	keys   []string
	values map[string]V
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap[V any]() OrderedMap[V] {
	return OrderedMap[V]{values: make(map[string]V)}
}

// Set inserts or replaces key. Replacing keeps the existing position.
func (m *OrderedMap[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m OrderedMap[V]) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in insertion order.
func (m OrderedMap[V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

// Len returns the number of entries.
func (m OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Map returns a plain map copy.
func (m OrderedMap[V]) Map() map[string]V {
	out := make(map[string]V, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// UnmarshalYAML decodes a YAML mapping keeping key order.
func (m *OrderedMap[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	*m = NewOrderedMap[V]()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var value V
		// Scalars of any tag are accepted as strings (e.g. `version: 2`).
		if s, ok := any(&value).(*string); ok && valueNode.Kind == yaml.ScalarNode {
			if valueNode.ShortTag() != "!!null" {
				*s = valueNode.Value
			}
		} else if err := valueNode.Decode(&value); err != nil {
			return fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		m.Set(keyNode.Value, value)
	}
	return nil
}

// MarshalYAML encodes the map as a YAML mapping in insertion order.
func (m OrderedMap[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		var valueNode yaml.Node
		if err := valueNode.Encode(m.values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&valueNode,
		)
	}
	return node, nil
}
