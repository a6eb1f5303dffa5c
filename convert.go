package undot

import (
	"fmt"
	"slices"
)

// FromAny converts decoded Go data into a Container.
//
// map[string]any entries are visited in sorted key order since Go maps
// carry no order; []any elements become index keys. *Container and Value
// inputs are deep-copied. Any other input yields an error.
func FromAny(v any) (*Container, error) {
	switch t := v.(type) {
	case *Container:
		return t.Clone(), nil
	case Value:
		if !t.IsNested() {
			return nil, fmt.Errorf("undot: scalar value cannot be converted to a container")
		}
		return t.nested.Clone(), nil
	case map[string]any, []any:
		return valueOf(t).nested, nil
	case nil:
		return New(), nil
	}
	return nil, fmt.Errorf("undot: cannot convert %T to a container", v)
}

// valueOf wraps arbitrary Go data as a Value, converting maps and slices
// into containers recursively.
func valueOf(v any) Value {
	switch t := v.(type) {
	case Value:
		return t
	case *Container:
		return NestedValue(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		c := New()
		for _, k := range keys {
			c.Set(KeyOf(k), valueOf(t[k]))
		}
		return NestedValue(c)
	case []any:
		c := New()
		for i, item := range t {
			c.Set(IndexKey(i), valueOf(item))
		}
		return NestedValue(c)
	}
	return ScalarValue(v)
}

// ToAny converts the container into plain Go data. Containers whose keys
// are exactly 0..n-1 in order become []any; all others become
// map[string]any with index keys rendered in decimal.
func (c *Container) ToAny() any {
	if c.isList() {
		out := make([]any, 0, c.Len())
		for _, v := range c.All() {
			out = append(out, v.toAny())
		}
		return out
	}
	out := make(map[string]any, c.Len())
	for k, v := range c.All() {
		out[k.String()] = v.toAny()
	}
	return out
}

// ToMap is ToAny for callers that need an object at the root. List-like
// containers are rendered with decimal keys.
func (c *Container) ToMap() map[string]any {
	out := make(map[string]any, c.Len())
	for k, v := range c.All() {
		out[k.String()] = v.toAny()
	}
	return out
}

func (v Value) toAny() any {
	if v.nested != nil {
		return v.nested.ToAny()
	}
	return v.scalar
}

// isList reports whether the keys are exactly 0..n-1 in insertion order.
// The empty container is not a list.
func (c *Container) isList() bool {
	if c.Len() == 0 {
		return false
	}
	i := 0
	for k := range c.All() {
		if !k.index || k.idx != i {
			return false
		}
		i++
	}
	return true
}

