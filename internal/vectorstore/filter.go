package vectorstore

import (
	"fmt"
	"regexp"

	"github.com/alleneee/docingest/internal/model"
)

// fieldNamePattern whitelists the metadata field names toSQL will
// interpolate into the JSONB `->>'...'` accessor. Values are always
// bound as parameters; field names are not, so this is what stands
// between a caller-controlled field name and the SQL text.
var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Op is a filter predicate kind. Per the Open Question decision in
// SPEC_FULL.md, the shared subset across vector-store backends is
// equality and inclusion only; anything else is rejected rather than
// silently approximated.
type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
)

// Predicate is one constraint on a metadata field.
type Predicate struct {
	Op    Op
	Value any
}

// Filter is a conjunction of per-field predicates over Node.Metadata.
type Filter map[string]Predicate

// Eq builds an equality predicate.
func Eq(field string, value any) Filter {
	return Filter{field: {Op: OpEq, Value: value}}
}

// In builds an inclusion predicate.
func In(field string, values []any) Filter {
	return Filter{field: {Op: OpIn, Value: values}}
}

// And merges filters into one conjunction; a field present in both is
// overwritten by the later filter.
func And(filters ...Filter) Filter {
	merged := Filter{}
	for _, f := range filters {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}

// toSQL renders the filter as a parameterized SQL clause over a JSONB
// `metadata` column, starting parameter numbering at startParam (1-based
// pgx placeholders). Returns model.ErrUnsupportedFilter for any
// predicate outside {eq, in}.
func (f Filter) toSQL(startParam int) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}

	clause := ""
	args := make([]any, 0, len(f))
	n := startParam

	for field, pred := range f {
		if !fieldNamePattern.MatchString(field) {
			return "", nil, fmt.Errorf("%w: field %q: invalid metadata field name", model.ErrUnsupportedFilter, field)
		}
		if clause != "" {
			clause += " AND "
		}
		switch pred.Op {
		case OpEq:
			clause += fmt.Sprintf("metadata->>'%s' = $%d", field, n)
			args = append(args, fmt.Sprintf("%v", pred.Value))
			n++
		case OpIn:
			values, ok := pred.Value.([]any)
			if !ok {
				return "", nil, fmt.Errorf("%w: field %q: `in` value must be a list", model.ErrUnsupportedFilter, field)
			}
			clause += fmt.Sprintf("metadata->>'%s' = ANY($%d)", field, n)
			strs := make([]string, len(values))
			for i, v := range values {
				strs[i] = fmt.Sprintf("%v", v)
			}
			args = append(args, strs)
			n++
		default:
			return "", nil, fmt.Errorf("%w: field %q: operator %q", model.ErrUnsupportedFilter, field, pred.Op)
		}
	}
	return clause, args, nil
}

