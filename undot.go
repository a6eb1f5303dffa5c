package undot

import "strings"

// Delimiter separates path segments in dotted keys.
const Delimiter = "."

// PostProcessor transforms a merged configuration before it is cached.
type PostProcessor interface {
	Process(c *Container) (*Container, error)
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(c *Container) (*Container, error)

// Process calls f(c).
func (f PostProcessorFunc) Process(c *Container) (*Container, error) {
	return f(c)
}

// Undotter is the PostProcessor form of Undot, for registration on an
// Aggregator alongside other post-processors.
type Undotter struct{}

var _ PostProcessor = Undotter{}

// Process returns Undot(c). It never fails.
func (Undotter) Process(c *Container) (*Container, error) {
	return Undot(c), nil
}

// Undot returns a copy of input where every dotted key has been expanded
// into nested containers.
//
// Keys are processed in order. A dotted key whose value is a container is
// merged into whatever container already sits at its path, while scalars
// at a dotted path always overwrite. Plain keys overwrite without merging,
// except that a nested value is undotted into the container already
// present at that key. Given
//
//	{"a": {"b": "Nested"}, "a.b": "Dotted"}
//
// the result is {"a": {"b": "Dotted"}}; swapping the two keys yields
// "Nested". The input is never modified.
func Undot(input *Container) *Container {
	out := New()
	undotInto(input, out)
	return out
}

// undotInto writes the undotted entries of input into out. out is owned
// by the caller and nothing else references it.
func undotInto(input, out *Container) {
	for key, value := range input.All() {
		if value.IsNested() {
			target := New()
			if !key.isDotted() {
				if existing, ok := out.Get(key); ok && existing.IsNested() {
					target = existing.nested
				}
			}
			undotInto(value.nested, target)
			value = NestedValue(target)
		}

		if key.isDotted() {
			insertDotted(out, key.str, value)
			out.Delete(key)
			continue
		}
		out.Set(key, value)
	}
}

// insertDotted stores value at the path named by a dotted key, creating
// intermediate containers as needed. A scalar in the way of the path is
// replaced by an empty container.
func insertDotted(out *Container, dotted string, value Value) {
	segments := splitPath(dotted)
	cur := descend(out, segments[:len(segments)-1])

	last := segments[len(segments)-1]
	if value.IsNested() {
		if existing, ok := cur.Get(last); ok && existing.IsNested() {
			cur.Set(last, NestedValue(Merge(existing.nested, value.nested)))
			return
		}
	}
	cur.Set(last, value)
}

// descend walks c along path, creating or replacing anything that is not a
// container, and returns the container at the end of the path.
func descend(c *Container, path []Key) *Container {
	cur := c
	for _, seg := range path {
		next, ok := cur.Get(seg)
		if !ok || !next.IsNested() {
			next = NestedValue(New())
			cur.Set(seg, next)
		}
		cur = next.nested
	}
	return cur
}

// splitPath splits a dotted key into keys. Segments that look like
// indexes become index keys.
func splitPath(dotted string) []Key {
	parts := strings.Split(dotted, Delimiter)
	if len(parts) == 0 {
		panic("undot: dotted key " + dotted + " produced no path segments")
	}
	keys := make([]Key, len(parts))
	for i, p := range parts {
		keys[i] = KeyOf(p)
	}
	return keys
}
