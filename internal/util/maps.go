package util

// Without returns a shallow copy of m with the given keys removed. Empty
// key names are ignored so unset field names can be passed through.
func Without(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		if k != "" {
			delete(out, k)
		}
	}
	return out
}

// Merge shallow-merges the given maps into a new map. Later maps win.
func Merge(maps ...map[string]any) map[string]any {
	n := 0
	for _, m := range maps {
		n += len(m)
	}
	out := make(map[string]any, n)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
