package undot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a JSON object or array into a Container, keeping the
// document's key order. Integral numbers decode as int64, other numbers as
// float64.
func ParseJSON(data []byte) (*Container, error) {
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if dataType != jsonparser.Object && dataType != jsonparser.Array {
		return nil, fmt.Errorf("parse json: top-level value is %v, want object or array", dataType)
	}
	v, err := jsonValue(value, dataType)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return v.nested, nil
}

func jsonValue(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.Object:
		c := New()
		err := jsonparser.ObjectEach(raw, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
			v, err := jsonValue(value, vt)
			if err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			c.Set(KeyOf(string(key)), v)
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		return NestedValue(c), nil
	case jsonparser.Array:
		c := New()
		var firstErr error
		_, err := jsonparser.ArrayEach(raw, func(value []byte, vt jsonparser.ValueType, _ int, err error) {
			if firstErr != nil {
				return
			}
			if err != nil {
				firstErr = err
				return
			}
			v, err := jsonValue(value, vt)
			if err != nil {
				firstErr = fmt.Errorf("index %d: %w", c.Len(), err)
				return
			}
			c.Set(IndexKey(c.Len()), v)
		})
		if err != nil {
			return Value{}, err
		}
		if firstErr != nil {
			return Value{}, firstErr
		}
		return NestedValue(c), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, err
		}
		return ScalarValue(s), nil
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(raw); err == nil {
			return ScalarValue(n), nil
		}
		f, err := jsonparser.ParseFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return ScalarValue(f), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, err
		}
		return ScalarValue(b), nil
	case jsonparser.Null:
		return ScalarValue(nil), nil
	}
	return Value{}, fmt.Errorf("unsupported json value %q", raw)
}

// ParseYAML decodes a YAML document into a Container, keeping mapping
// order. Aliases are resolved and "<<" merge keys fill in keys the mapping
// does not define itself. An empty document yields an empty Container.
func ParseYAML(data []byte) (*Container, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return New(), nil
	}
	v, err := yamlValue(&doc)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if !v.IsNested() {
		return nil, fmt.Errorf("parse yaml: top-level value must be a mapping or sequence")
	}
	return v.nested, nil
}

func yamlValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NestedValue(New()), nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		c := New()
		var merges []*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			if k.Tag == "!!merge" {
				merges = append(merges, v)
				continue
			}
			val, err := yamlValue(v)
			if err != nil {
				return Value{}, err
			}
			c.Set(KeyOf(k.Value), val)
		}
		for _, m := range merges {
			if err := applyYAMLMerge(c, m); err != nil {
				return Value{}, err
			}
		}
		return NestedValue(c), nil
	case yaml.SequenceNode:
		c := New()
		for _, item := range n.Content {
			val, err := yamlValue(item)
			if err != nil {
				return Value{}, err
			}
			c.Set(IndexKey(c.Len()), val)
		}
		return NestedValue(c), nil
	case yaml.ScalarNode:
		var s any
		if err := n.Decode(&s); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return ScalarValue(s), nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

// applyYAMLMerge copies keys from a "<<" source into c unless c already
// defines them.
func applyYAMLMerge(c *Container, src *yaml.Node) error {
	if src.Kind == yaml.SequenceNode {
		for _, item := range src.Content {
			if err := applyYAMLMerge(c, item); err != nil {
				return err
			}
		}
		return nil
	}
	v, err := yamlValue(src)
	if err != nil {
		return err
	}
	if !v.IsNested() {
		return fmt.Errorf("line %d: merge key needs a mapping", src.Line)
	}
	for k, val := range v.nested.All() {
		if !c.Has(k) {
			c.Set(k, val)
		}
	}
	return nil
}

// MarshalJSON renders list-like containers as arrays and everything else
// as objects, in insertion order.
func (c *Container) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Container) writeJSON(buf *bytes.Buffer) error {
	list := c.isList()
	if list {
		buf.WriteByte('[')
	} else {
		buf.WriteByte('{')
	}
	first := true
	for k, v := range c.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if !list {
			kb, err := json.Marshal(k.String())
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
		}
		if v.IsNested() {
			if err := v.nested.writeJSON(buf); err != nil {
				return err
			}
			continue
		}
		vb, err := json.Marshal(v.scalar)
		if err != nil {
			return fmt.Errorf("key %s: %w", k, err)
		}
		buf.Write(vb)
	}
	if list {
		buf.WriteByte(']')
	} else {
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON replaces the contents of c with the decoded document.
func (c *Container) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	c.entries = parsed.entries
	return nil
}

// MarshalYAML renders the container as an ordered YAML node.
func (c *Container) MarshalYAML() (any, error) {
	return c.yamlNode()
}

func (c *Container) yamlNode() (*yaml.Node, error) {
	list := c.isList()
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if list {
		n = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	for k, v := range c.All() {
		if !list {
			tag := "!!str"
			if k.IsIndex() {
				tag = "!!int"
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: k.String()})
		}
		var child *yaml.Node
		if v.IsNested() {
			var err error
			if child, err = v.nested.yamlNode(); err != nil {
				return nil, err
			}
		} else {
			child = &yaml.Node{}
			if err := child.Encode(v.scalar); err != nil {
				return nil, fmt.Errorf("key %s: %w", k, err)
			}
		}
		n.Content = append(n.Content, child)
	}
	return n, nil
}

// UnmarshalYAML replaces the contents of c with the decoded node.
func (c *Container) UnmarshalYAML(n *yaml.Node) error {
	v, err := yamlValue(n)
	if err != nil {
		return err
	}
	if !v.IsNested() {
		return fmt.Errorf("undot: yaml value must be a mapping or sequence")
	}
	c.entries = v.nested.entries
	return nil
}

// Fingerprint returns a hash of the JSON rendering. Equal containers have
// equal fingerprints.
func (c *Container) Fingerprint() (uint64, error) {
	b, err := c.MarshalJSON()
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(b), nil
}
