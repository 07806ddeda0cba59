package storage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jytian/gasops/internal/core/domain"
)

// Operator is the closed set of condition operators the repository can
// compile into the store's filter language.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notIn"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpIsNull     Operator = "isNull"
	OpNotNull    Operator = "notNull"
	OpBetween    Operator = "between"
	OpSearch     Operator = "search"
)

// Condition is one declarative filter: {field, operator, value|values}.
type Condition struct {
	Field  string
	Op     Operator
	Value  any
	Values []any
}

func Eq(field string, v any) Condition  { return Condition{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Condition  { return Condition{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Condition  { return Condition{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Condition { return Condition{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Condition  { return Condition{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Condition { return Condition{Field: field, Op: OpLte, Value: v} }
func In(field string, vs ...any) Condition {
	return Condition{Field: field, Op: OpIn, Values: vs}
}
func NotIn(field string, vs ...any) Condition {
	return Condition{Field: field, Op: OpNotIn, Values: vs}
}
func Contains(field string, v string) Condition {
	return Condition{Field: field, Op: OpContains, Value: v}
}
func StartsWith(field string, v string) Condition {
	return Condition{Field: field, Op: OpStartsWith, Value: v}
}
func EndsWith(field string, v string) Condition {
	return Condition{Field: field, Op: OpEndsWith, Value: v}
}
func IsNull(field string) Condition  { return Condition{Field: field, Op: OpIsNull} }
func NotNull(field string) Condition { return Condition{Field: field, Op: OpNotNull} }
func Between(field string, lo, hi any) Condition {
	return Condition{Field: field, Op: OpBetween, Values: []any{lo, hi}}
}
func Search(field string, v string) Condition {
	return Condition{Field: field, Op: OpSearch, Value: v}
}

// Identifiers are interpolated into SQL text, so they are restricted to a
// safe character set; everything else travels as placeholder args.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool { return identPattern.MatchString(s) }

// compile translates one condition into a WHERE fragment plus its args.
func (c Condition) compile() (string, []any, error) {
	if !validIdent(c.Field) {
		return "", nil, domain.NewValidation("field", fmt.Sprintf("invalid field name %q", c.Field))
	}

	switch c.Op {
	case OpEq:
		return c.Field + " = ?", []any{c.Value}, nil
	case OpNe:
		return c.Field + " <> ?", []any{c.Value}, nil
	case OpGt:
		return c.Field + " > ?", []any{c.Value}, nil
	case OpGte:
		return c.Field + " >= ?", []any{c.Value}, nil
	case OpLt:
		return c.Field + " < ?", []any{c.Value}, nil
	case OpLte:
		return c.Field + " <= ?", []any{c.Value}, nil
	case OpIn, OpNotIn:
		if len(c.Values) == 0 {
			return "", nil, domain.NewValidation(c.Field, "in/notIn requires at least one value")
		}
		op := "IN"
		if c.Op == OpNotIn {
			op = "NOT IN"
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.Values)), ", ")
		return fmt.Sprintf("%s %s (%s)", c.Field, op, placeholders), c.Values, nil
	case OpContains, OpSearch:
		return c.Field + " LIKE ?", []any{"%" + fmt.Sprint(c.Value) + "%"}, nil
	case OpStartsWith:
		return c.Field + " LIKE ?", []any{fmt.Sprint(c.Value) + "%"}, nil
	case OpEndsWith:
		return c.Field + " LIKE ?", []any{"%" + fmt.Sprint(c.Value)}, nil
	case OpIsNull:
		return c.Field + " IS NULL", nil, nil
	case OpNotNull:
		return c.Field + " IS NOT NULL", nil, nil
	case OpBetween:
		if len(c.Values) != 2 {
			return "", nil, domain.NewValidation(c.Field, "between requires exactly two values")
		}
		return c.Field + " BETWEEN ? AND ?", c.Values, nil
	default:
		return "", nil, domain.NewValidation("operator", fmt.Sprintf("unsupported operator %q", c.Op))
	}
}

// buildWhere joins conditions with AND. An empty condition list compiles to
// an empty fragment.
func buildWhere(conds []Condition) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	fragments := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		frag, condArgs, err := c.compile()
		if err != nil {
			return "", nil, err
		}
		fragments = append(fragments, frag)
		args = append(args, condArgs...)
	}

	return " WHERE " + strings.Join(fragments, " AND "), args, nil
}

// Ordering is an optional sort directive for list queries.
type Ordering struct {
	Field string
	Desc  bool
}

func (o Ordering) compile() (string, error) {
	if o.Field == "" {
		return "", nil
	}
	if !validIdent(o.Field) {
		return "", domain.NewValidation("orderBy", fmt.Sprintf("invalid field name %q", o.Field))
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return " ORDER BY " + o.Field + " " + dir, nil
}

// Pagination carries 1-based page coordinates.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	defaultPage     = 1
	defaultPageSize = 20
)

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = defaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	return p
}

func (p Pagination) offset() int { return (p.Page - 1) * p.PageSize }

// Page is one page of results plus its coordinates.
type Page[T any] struct {
	Items       []T
	Total       int
	Page        int
	PageSize    int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

func newPage[T any](items []T, total int, p Pagination) *Page[T] {
	totalPages := (total + p.PageSize - 1) / p.PageSize
	return &Page[T]{
		Items:       items,
		Total:       total,
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  totalPages,
		HasNext:     p.Page < totalPages,
		HasPrevious: p.Page > 1,
	}
}
