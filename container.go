// Package undot expands dotted configuration keys into real nesting.
//
// A configuration assembled from several layers (files, environment,
// remote values) often mixes nested objects with flat dotted keys such as
// "database.pool.size". Undot rewrites every dotted key into nested
// containers, later values overriding earlier ones and colliding nested
// containers being deep-merged.
package undot

import (
	"fmt"
	"iter"
	"reflect"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Key is a container key: either a non-negative index or a string.
type Key struct {
	str   string
	idx   int
	index bool
}

// IndexKey returns an index key. It panics on a negative index.
func IndexKey(n int) Key {
	if n < 0 {
		panic(fmt.Sprintf("undot: negative index key %d", n))
	}
	return Key{idx: n, index: true}
}

// StringKey returns a string key without any normalisation.
func StringKey(s string) Key {
	return Key{str: s}
}

// KeyOf converts textual keys the way parsed configuration keys are stored:
// a canonical non-negative decimal ("0", "12", but not "012" or "-1")
// becomes an index key, anything else a string key.
func KeyOf(s string) Key {
	if n, ok := canonicalIndex(s); ok {
		return IndexKey(n)
	}
	return StringKey(s)
}

func canonicalIndex(s string) (int, bool) {
	if s == "" || len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsIndex reports whether k is an index key.
func (k Key) IsIndex() bool { return k.index }

// Index returns the index of an index key and 0 for string keys.
func (k Key) Index() int { return k.idx }

// String returns the textual form of the key.
func (k Key) String() string {
	if k.index {
		return strconv.Itoa(k.idx)
	}
	return k.str
}

// isDotted reports whether k is a string key holding a path.
func (k Key) isDotted() bool {
	return !k.index && strings.Contains(k.str, Delimiter)
}

// Value is either an opaque scalar or a nested Container.
type Value struct {
	scalar any
	nested *Container
}

// ScalarValue wraps a leaf. Leaves are never inspected or copied.
func ScalarValue(v any) Value {
	return Value{scalar: v}
}

// NestedValue wraps a container. A nil container is treated as empty.
func NestedValue(c *Container) Value {
	if c == nil {
		c = New()
	}
	return Value{nested: c}
}

// IsNested reports whether v holds a Container.
func (v Value) IsNested() bool { return v.nested != nil }

// Nested returns the held Container, or nil for scalars.
func (v Value) Nested() *Container { return v.nested }

// Scalar returns the held leaf, or nil for containers.
func (v Value) Scalar() any { return v.scalar }

// clone deep-copies nested values; scalars are returned as is.
func (v Value) clone() Value {
	if v.nested != nil {
		return Value{nested: v.nested.Clone()}
	}
	return v
}

// Container is an ordered mapping from Key to Value.
// The zero value is not usable; create containers with New or Of.
type Container struct {
	entries *orderedmap.OrderedMap[Key, Value]
}

// New returns an empty Container.
func New() *Container {
	return &Container{entries: orderedmap.New[Key, Value]()}
}

// Of builds a Container from alternating key/value arguments.
//
// Keys are strings (normalised with KeyOf), ints or Key values. Values
// that are *Container or Value are stored as such; everything else is
// converted with FromAny when it is a map or slice, or stored as a scalar.
// Of panics on malformed arguments; it is meant for literals in code.
func Of(kv ...any) *Container {
	if len(kv)%2 != 0 {
		panic("undot: Of needs an even number of arguments")
	}
	c := New()
	for i := 0; i < len(kv); i += 2 {
		var key Key
		switch k := kv[i].(type) {
		case string:
			key = KeyOf(k)
		case int:
			key = IndexKey(k)
		case Key:
			key = k
		default:
			panic(fmt.Sprintf("undot: unsupported key type %T", kv[i]))
		}
		c.Set(key, valueOf(kv[i+1]))
	}
	return c
}

// Len returns the number of entries.
func (c *Container) Len() int {
	return c.entries.Len()
}

// Get returns the value stored at k.
func (c *Container) Get(k Key) (Value, bool) {
	return c.entries.Get(k)
}

// Has reports whether k is present, whatever its value.
func (c *Container) Has(k Key) bool {
	_, ok := c.entries.Get(k)
	return ok
}

// Set stores v at k. An existing key keeps its position; a new key is appended.
func (c *Container) Set(k Key, v Value) {
	c.entries.Set(k, v)
}

// Delete removes k if present.
func (c *Container) Delete(k Key) {
	c.entries.Delete(k)
}

// Append stores v under the next free index and returns that key.
// The next free index is one past the largest index key, or 0.
func (c *Container) Append(v Value) Key {
	k := IndexKey(c.nextIndex())
	c.entries.Set(k, v)
	return k
}

func (c *Container) nextIndex() int {
	next := 0
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key.index && pair.Key.idx >= next {
			next = pair.Key.idx + 1
		}
	}
	return next
}

// Keys returns the keys in insertion order.
func (c *Container) Keys() []Key {
	keys := make([]Key, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// All iterates over the entries in insertion order.
func (c *Container) All() iter.Seq2[Key, Value] {
	return func(yield func(Key, Value) bool) {
		for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy of the container tree. Leaves are shared.
func (c *Container) Clone() *Container {
	out := &Container{entries: orderedmap.New[Key, Value](orderedmap.WithCapacity[Key, Value](c.entries.Len()))}
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		out.entries.Set(pair.Key, pair.Value.clone())
	}
	return out
}

// Equal reports whether both trees hold the same keys in the same order
// with deeply equal values.
func (c *Container) Equal(other *Container) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Len() != other.Len() {
		return false
	}
	a, b := c.entries.Oldest(), other.entries.Oldest()
	for ; a != nil && b != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key || a.Value.IsNested() != b.Value.IsNested() {
			return false
		}
		if a.Value.IsNested() {
			if !a.Value.nested.Equal(b.Value.nested) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(a.Value.scalar, b.Value.scalar) {
			return false
		}
	}
	return true
}

// Lookup walks a dotted path and returns the value found there.
func (c *Container) Lookup(path string) (Value, bool) {
	cur := c
	segments := strings.Split(path, Delimiter)
	for i, seg := range segments {
		v, ok := cur.Get(KeyOf(seg))
		if !ok {
			return Value{}, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		if !v.IsNested() {
			return Value{}, false
		}
		cur = v.nested
	}
	return Value{}, false
}

// SetPath stores v at a dotted path, creating intermediate containers and
// replacing scalars that are in the way. Unlike a dotted key passed through
// Undot, an existing container at the final segment is overwritten.
func (c *Container) SetPath(path string, v Value) {
	segments := splitPath(path)
	descend(c, segments[:len(segments)-1]).Set(segments[len(segments)-1], v)
}

// String renders the container as JSON, mainly for test failure output.
func (c *Container) String() string {
	b, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<container: %v>", err)
	}
	return string(b)
}
