// Package query translates filter mappings into the engine's boolean query
// tree.
//
// A filter mapping is a nested map from field names or operators to values.
// Keys beginning with "$" are operators:
//
//	{"name": "Bob", "age": {"$gte": 21}, "$or": [{"tags": "go"}, {"tags": "rust"}]}
//
// Plain keys become term/terms clauses; map values are field criteria;
// structural operators recurse with an increasing depth that is bounded by
// Limits.MaxDepth.
package query

// Operator is one of the closed set of filter operators.
type Operator string

// Structural and logical operators, valid as filter keys.
const (
	OpAnd     Operator = "$and"
	OpOr      Operator = "$or"
	OpAll     Operator = "$all"
	OpSQS     Operator = "$sqs"
	OpNested  Operator = "$nested"
	OpChild   Operator = "$child"
	OpParent  Operator = "$parent"
	OpExists  Operator = "$exists"
	OpMissing Operator = "$missing"
)

// Field criteria, valid inside a field's value map.
const (
	OpIn           Operator = "$in"
	OpNin          Operator = "$nin"
	OpGt           Operator = "$gt"
	OpGte          Operator = "$gte"
	OpLt           Operator = "$lt"
	OpLte          Operator = "$lte"
	OpNe           Operator = "$ne"
	OpPrefix       Operator = "$prefix"
	OpWildcard     Operator = "$wildcard"
	OpRegexp       Operator = "$regexp"
	OpMatch        Operator = "$match"
	OpPhrase       Operator = "$phrase"
	OpPhrasePrefix Operator = "$phrase_prefix"
)

// Keys of the operator argument objects.
const (
	argPath     = "$path"
	argType     = "$type"
	argFields   = "$fields"
	argQuery    = "$query"
	argOperator = "$operator"
)

// Clause sections of a boolean query.
type section int

const (
	sectionMust section = iota
	sectionFilter
	sectionShould
	sectionMustNot
)

// criterion describes where a field criterion lands in the boolean tree.
type criterion struct {
	section section
	clause  string // term, terms, range, prefix, match, ...
	operand string // range bound (gt, gte, ...); empty for other clauses
}

// criterionFor resolves a field criterion operator. The second result is
// false for operators that are not field criteria.
func criterionFor(op Operator) (criterion, bool) {
	switch op {
	case OpIn:
		return criterion{sectionFilter, "terms", ""}, true
	case OpNin:
		return criterion{sectionMustNot, "terms", ""}, true
	case OpGt:
		return criterion{sectionFilter, "range", "gt"}, true
	case OpGte:
		return criterion{sectionFilter, "range", "gte"}, true
	case OpLt:
		return criterion{sectionFilter, "range", "lt"}, true
	case OpLte:
		return criterion{sectionFilter, "range", "lte"}, true
	case OpNe:
		return criterion{sectionMustNot, "term", ""}, true
	case OpPrefix:
		return criterion{sectionFilter, "prefix", ""}, true
	case OpWildcard:
		return criterion{sectionFilter, "wildcard", ""}, true
	case OpRegexp:
		return criterion{sectionFilter, "regexp", ""}, true
	case OpMatch:
		return criterion{sectionMust, "match", ""}, true
	case OpPhrase:
		return criterion{sectionMust, "match_phrase", ""}, true
	case OpPhrasePrefix:
		return criterion{sectionMust, "match_phrase_prefix", ""}, true
	}
	return criterion{}, false
}
