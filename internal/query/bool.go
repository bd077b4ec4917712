package query

import "encoding/json"

// Clause is a single engine query clause, e.g. {"term": {"name": "Bob"}}.
type Clause map[string]any

// Bool is the engine's boolean query: the value of a {"bool": ...} clause.
type Bool struct {
	Must               []Clause
	Filter             []Clause
	Should             []Clause
	MustNot            []Clause
	MinimumShouldMatch *int
}

// IsZero reports whether b carries no constraint at all.
func (b *Bool) IsZero() bool {
	return b == nil || (b.Must == nil && b.Filter == nil && b.Should == nil &&
		b.MustNot == nil && b.MinimumShouldMatch == nil)
}

// Query wraps b as a top-level query clause.
func (b *Bool) Query() Clause {
	return Clause{"bool": b}
}

// MarshalJSON emits only the sections that were set. An empty but non-nil
// section is kept, so {$or: []} renders as {"should":[],"minimum_should_match":1}.
func (b *Bool) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 5)
	if b.Must != nil {
		out["must"] = b.Must
	}
	if b.Filter != nil {
		out["filter"] = b.Filter
	}
	if b.Should != nil {
		out["should"] = b.Should
	}
	if b.MustNot != nil {
		out["must_not"] = b.MustNot
	}
	if b.MinimumShouldMatch != nil {
		out["minimum_should_match"] = *b.MinimumShouldMatch
	}
	return json.Marshal(out)
}

func (b *Bool) add(s section, c Clause) {
	switch s {
	case sectionMust:
		b.Must = append(b.Must, c)
	case sectionFilter:
		b.Filter = append(b.Filter, c)
	case sectionShould:
		b.Should = append(b.Should, c)
	case sectionMustNot:
		b.MustNot = append(b.MustNot, c)
	}
}

// merge concatenates other's sections onto b. A minimum_should_match set
// on other replaces b's.
func (b *Bool) merge(other *Bool) {
	if other.Must != nil {
		b.Must = append(append([]Clause{}, b.Must...), other.Must...)
	}
	if other.Filter != nil {
		b.Filter = append(append([]Clause{}, b.Filter...), other.Filter...)
	}
	if other.Should != nil {
		b.Should = append(append([]Clause{}, b.Should...), other.Should...)
	}
	if other.MustNot != nil {
		b.MustNot = append(append([]Clause{}, b.MustNot...), other.MustNot...)
	}
	if other.MinimumShouldMatch != nil {
		msm := *other.MinimumShouldMatch
		b.MinimumShouldMatch = &msm
	}
}
