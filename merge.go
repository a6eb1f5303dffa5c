package undot

// Merge performs a deep merge of incoming into a copy of base:
//   - Index keys from incoming are always appended (list semantics)
//   - String keys present in base merge recursively when both values are
//     containers, otherwise the incoming value wins in place
//   - String keys absent from base are appended
//
// Neither argument is modified.
func Merge(base, incoming *Container) *Container {
	result := base.Clone()
	next := -1
	for key, value := range incoming.All() {
		if key.IsIndex() {
			if next < 0 {
				next = result.nextIndex()
			}
			result.Set(IndexKey(next), value.clone())
			next++
			continue
		}
		if existing, ok := result.Get(key); ok && existing.IsNested() && value.IsNested() {
			result.Set(key, NestedValue(Merge(existing.nested, value.nested)))
			continue
		}
		result.Set(key, value.clone())
	}
	return result
}
