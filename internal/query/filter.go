package query

import "github.com/leonunix/esdoc/internal/util"

// Filter is a caller-owned filter mapping. Translations are cached per
// *Filter instance, so the underlying map must not be mutated once the
// filter has been translated; derive a new Filter with With or Without
// instead.
type Filter struct {
	clauses map[string]any
}

// NewFilter wraps a filter mapping. A nil map is an empty filter.
func NewFilter(clauses map[string]any) *Filter {
	return &Filter{clauses: clauses}
}

// Clauses returns the underlying mapping. Callers must treat it as read-only.
func (f *Filter) Clauses() map[string]any {
	if f == nil {
		return nil
	}
	return f.clauses
}

// Len returns the number of top-level keys.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.clauses)
}

// With returns a new Filter with key set to v.
func (f *Filter) With(key string, v any) *Filter {
	return NewFilter(util.Merge(f.Clauses(), map[string]any{key: v}))
}

// Without returns a new Filter with keys removed.
func (f *Filter) Without(keys ...string) *Filter {
	return NewFilter(util.Without(f.Clauses(), keys...))
}
