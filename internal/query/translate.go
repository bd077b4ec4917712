package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leonunix/esdoc/internal/metrics"
	"github.com/leonunix/esdoc/internal/util"
)

var (
	// ErrDepthExceeded signals a filter nested deeper than Limits.MaxDepth.
	ErrDepthExceeded = errors.New("query depth exceeded")
	// ErrInvalidFilter signals a malformed filter: an unknown operator or a
	// value of the wrong type.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Limits bounds what a single filter may ask of the engine.
type Limits struct {
	MaxDepth             int
	MaxArraySize         int      // 0 disables the check
	MaxQueryStringLength int      // 0 disables the check
	SearchableFields     []string // empty allows any $sqs field
}

// Translator turns filter mappings into boolean query trees. It is safe for
// concurrent use.
type Translator struct {
	idField string
	limits  Limits
	cache   *cache
}

// NewTranslator creates a Translator that rewrites idField to the engine's
// _id field.
func NewTranslator(idField string, limits Limits) *Translator {
	return &Translator{
		idField: idField,
		limits:  limits,
		cache:   newCache(),
	}
}

// Translate returns the boolean query for f, or nil when f imposes no
// constraint. Results are cached per *Filter instance and shared between
// callers, so the returned Bool must not be modified.
func (t *Translator) Translate(f *Filter) (*Bool, error) {
	if f == nil {
		return nil, nil
	}
	if b, ok := t.cache.get(f); ok {
		metrics.ObserveCache(true)
		return b, nil
	}
	metrics.ObserveCache(false)

	b, err := t.translate(f.clauses, 0)
	if err != nil {
		return nil, err
	}
	t.cache.put(f, b)
	return b, nil
}

func (t *Translator) translate(m map[string]any, depth int) (*Bool, error) {
	if depth > t.limits.MaxDepth {
		return nil, fmt.Errorf("%w: query nesting exceeds maximum depth of %d", ErrDepthExceeded, t.limits.MaxDepth)
	}
	if len(m) == 0 {
		return nil, nil
	}

	b := &Bool{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := m[key]
		field := key
		if field == t.idField {
			field = "_id"
		}

		if strings.HasPrefix(field, "$") {
			if err := t.operator(Operator(field), value, b, depth); err != nil {
				return nil, err
			}
			continue
		}

		kind := util.TypeOf(value)
		switch kind {
		case util.KindNull:
			// Absent constraint.
		case util.KindObject:
			criteria, _ := util.AsMap(value)
			if err := t.criteria(field, criteria, b); err != nil {
				return nil, err
			}
		case util.KindArray:
			items, err := t.array(value, field)
			if err != nil {
				return nil, err
			}
			if err := scalars(items, field); err != nil {
				return nil, err
			}
			b.add(sectionFilter, Clause{"terms": map[string]any{field: items}})
		case util.KindString, util.KindNumber, util.KindBool:
			b.add(sectionFilter, Clause{"term": map[string]any{field: value}})
		default:
			return nil, invalidType(value, field, util.KindNumber, util.KindString, util.KindBool, util.KindObject, util.KindArray)
		}
	}

	if b.IsZero() {
		return nil, nil
	}
	return b, nil
}

func (t *Translator) operator(op Operator, value any, b *Bool, depth int) error {
	switch op {
	case OpAnd:
		return t.and(value, b, depth)
	case OpOr:
		return t.or(value, b, depth)
	case OpAll:
		return all(value, b)
	case OpSQS:
		return t.sqs(value, b)
	case OpNested:
		return t.nested(value, b, depth)
	case OpChild:
		return t.relation(OpChild, "has_child", "type", value, b, depth)
	case OpParent:
		return t.relation(OpParent, "has_parent", "parent_type", value, b, depth)
	case OpExists:
		return t.existence(OpExists, sectionMust, value, b)
	case OpMissing:
		return t.existence(OpMissing, sectionMustNot, value, b)
	}
	if _, ok := criterionFor(op); ok {
		return fmt.Errorf("%w: %s is a field operator and must be nested under a field", ErrInvalidFilter, op)
	}
	return fmt.Errorf("%w: unknown operator %s", ErrInvalidFilter, op)
}

func (t *Translator) and(value any, b *Bool, depth int) error {
	items, err := t.array(value, string(OpAnd))
	if err != nil {
		return err
	}
	for i, item := range items {
		parsed, err := t.child(item, fmt.Sprintf("%s[%d]", OpAnd, i), depth)
		if err != nil {
			return err
		}
		if parsed != nil {
			b.merge(parsed)
		}
	}
	return nil
}

func (t *Translator) or(value any, b *Bool, depth int) error {
	items, err := t.array(value, string(OpOr))
	if err != nil {
		return err
	}
	if b.Should == nil {
		b.Should = []Clause{}
	}
	for i, item := range items {
		parsed, err := t.child(item, fmt.Sprintf("%s[%d]", OpOr, i), depth)
		if err != nil {
			return err
		}
		if parsed != nil {
			b.Should = append(b.Should, Clause{"bool": parsed})
		}
	}
	one := 1
	b.MinimumShouldMatch = &one
	return nil
}

func all(value any, b *Bool) error {
	if value == nil {
		return nil
	}
	if err := util.ValidateType(value, string(OpAll), util.KindBool); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	if value.(bool) {
		b.add(sectionMust, Clause{"match_all": map[string]any{}})
	}
	return nil
}

func (t *Translator) sqs(value any, b *Bool) error {
	if value == nil {
		return nil
	}
	args, err := object(value, string(OpSQS))
	if err != nil {
		return err
	}

	fieldsName := string(OpSQS) + "." + argFields
	rawFields, err := t.array(args[argFields], fieldsName)
	if err != nil {
		return err
	}
	fields := make([]string, len(rawFields))
	for i, f := range rawFields {
		name := fmt.Sprintf("%s[%d]", fieldsName, i)
		if err := util.ValidateType(f, name, util.KindString); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		fields[i] = f.(string)
		if len(t.limits.SearchableFields) > 0 {
			base, _, _ := strings.Cut(fields[i], "^")
			if !slices.Contains(t.limits.SearchableFields, base) {
				return fmt.Errorf("%w: field %q is not searchable", ErrInvalidFilter, base)
			}
		}
	}

	q := args[argQuery]
	if err := util.ValidateType(q, string(OpSQS)+"."+argQuery, util.KindString); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	if limit := t.limits.MaxQueryStringLength; limit > 0 && len(q.(string)) > limit {
		return fmt.Errorf("%w: %s.%s exceeds maximum length of %d", ErrInvalidFilter, OpSQS, argQuery, limit)
	}

	operator := "or"
	if op, ok := args[argOperator]; ok && op != nil {
		if err := util.ValidateType(op, string(OpSQS)+"."+argOperator, util.KindString); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		if s := op.(string); s != "" {
			operator = s
		}
	}

	b.add(sectionMust, Clause{"simple_query_string": map[string]any{
		"fields":           fields,
		"query":            q,
		"default_operator": operator,
	}})
	return nil
}

func (t *Translator) nested(value any, b *Bool, depth int) error {
	if value == nil {
		return nil
	}
	args, err := object(value, string(OpNested))
	if err != nil {
		return err
	}
	path := args[argPath]
	if err := util.ValidateType(path, string(OpNested)+"."+argPath, util.KindString); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	sub, err := t.translate(util.Without(args, argPath), depth+1)
	if err != nil || sub == nil {
		return err
	}
	b.add(sectionMust, Clause{"nested": map[string]any{
		"path":  path,
		"query": sub.Query(),
	}})
	return nil
}

// relation handles $child and $parent, scoping a sub-query to a join type.
func (t *Translator) relation(op Operator, clause, typeKey string, value any, b *Bool, depth int) error {
	if value == nil {
		return nil
	}
	args, err := object(value, string(op))
	if err != nil {
		return err
	}
	typ := args[argType]
	if err := util.ValidateType(typ, string(op)+"."+argType, util.KindString); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	sub, err := t.translate(util.Without(args, argType), depth+1)
	if err != nil || sub == nil {
		return err
	}
	b.add(sectionMust, Clause{clause: map[string]any{
		typeKey: typ,
		"query": sub.Query(),
	}})
	return nil
}

func (t *Translator) existence(op Operator, s section, value any, b *Bool) error {
	if value == nil {
		return nil
	}
	fields, err := t.array(value, string(op))
	if err != nil {
		return err
	}
	for i, f := range fields {
		if err := util.ValidateType(f, fmt.Sprintf("%s[%d]", op, i), util.KindString); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		b.add(s, Clause{"exists": map[string]any{"field": f}})
	}
	return nil
}

func (t *Translator) criteria(field string, criteria map[string]any, b *Bool) error {
	ops := make([]string, 0, len(criteria))
	for k := range criteria {
		ops = append(ops, k)
	}
	slices.Sort(ops)

	for _, key := range ops {
		value := criteria[key]
		name := field + "." + key
		c, ok := criterionFor(Operator(key))
		if !ok {
			return fmt.Errorf("%w: unknown operator %s", ErrInvalidFilter, name)
		}
		if value == nil {
			continue
		}

		switch Operator(key) {
		case OpIn, OpNin:
			items, err := t.array(value, name)
			if err != nil {
				return err
			}
			if err := scalars(items, name); err != nil {
				return err
			}
			value = items
		case OpPrefix, OpWildcard, OpRegexp:
			if err := util.ValidateType(value, name, util.KindString); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
			}
		case OpGt, OpGte, OpLt, OpLte:
			if err := util.ValidateType(value, name, util.KindNumber, util.KindString); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
			}
		default:
			if err := util.ValidateType(value, name, util.KindNumber, util.KindString, util.KindBool); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
			}
		}

		var body any = value
		if c.operand != "" {
			body = map[string]any{c.operand: value}
		}
		b.add(c.section, Clause{c.clause: map[string]any{field: body}})
	}
	return nil
}

// child translates one element of a $and/$or array. Elements may be
// mappings, *Filter values or nil (skipped).
func (t *Translator) child(item any, name string, depth int) (*Bool, error) {
	switch v := item.(type) {
	case nil:
		return nil, nil
	case *Filter:
		return t.translate(v.Clauses(), depth+1)
	}
	m, err := object(item, name)
	if err != nil {
		return nil, err
	}
	return t.translate(m, depth+1)
}

func (t *Translator) array(value any, name string) ([]any, error) {
	items, ok := util.AsSlice(value)
	if !ok {
		return nil, invalidType(value, name, util.KindArray)
	}
	if limit := t.limits.MaxArraySize; limit > 0 && len(items) > limit {
		return nil, fmt.Errorf("%w: %s has %d elements, maximum is %d", ErrInvalidFilter, name, len(items), limit)
	}
	return items, nil
}

func object(value any, name string) (map[string]any, error) {
	if f, ok := value.(*Filter); ok {
		return f.Clauses(), nil
	}
	m, ok := util.AsMap(value)
	if !ok {
		return nil, invalidType(value, name, util.KindObject)
	}
	return m, nil
}

func scalars(items []any, name string) error {
	for i, item := range items {
		if err := util.ValidateType(item, fmt.Sprintf("%s[%d]", name, i), util.KindNumber, util.KindString, util.KindBool); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
	}
	return nil
}

func invalidType(value any, name string, allowed ...util.Kind) error {
	return fmt.Errorf("%w: %w", ErrInvalidFilter, util.ValidateType(value, name, allowed...))
}
