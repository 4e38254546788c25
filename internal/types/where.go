package types

import (
	"fmt"
	"sort"
	"strings"
)

// WhereExpr is the tagged variant that replaces the duck-typed filter object
// from the source ($gt/$gte/... mixed with Prisma-style {gte,lte,in,...} and
// AND/OR/NOT arrays). Every concrete case below implements it; Lower
// recursively compiles the tree into a parameterized SQL fragment.
//
// Backward compatibility with both legacy shapes is handled by ParseFilter,
// which canonicalizes either input shape into this representation before any
// fingerprinting or SQL generation happens.
type WhereExpr interface {
	// Lower compiles the expression into a SQL boolean fragment (no leading
	// "WHERE") plus the positional arguments that fill its placeholders.
	Lower() (sql string, args []any)

	// Normalize returns a canonical, deterministically-ordered copy of the
	// expression, used as the input to fingerprinting (spec §4.A: map key
	// order must not affect the hash).
	Normalize() WhereExpr
}

// CompareOp enumerates the comparison operators a Term may use.
type CompareOp string

const (
	OpEq        CompareOp = "eq"
	OpNeq       CompareOp = "neq"
	OpGt        CompareOp = "gt"
	OpGte       CompareOp = "gte"
	OpLt        CompareOp = "lt"
	OpLte       CompareOp = "lte"
	OpIn        CompareOp = "in"
	OpNotIn     CompareOp = "notIn"
	OpContains  CompareOp = "contains"
	OpStartsWith CompareOp = "startsWith"
	OpEndsWith  CompareOp = "endsWith"
	OpIsNull    CompareOp = "isNull"
	OpIsNotNull CompareOp = "isNotNull"
)

// Term is a single column comparison: column <op> value.
type Term struct {
	Column string
	Op     CompareOp
	Value  any    // scalar for eq/neq/gt/gte/lt/lte/contains/startsWith/endsWith
	Values []any  // slice for in/notIn
}

func (t Term) Lower() (string, []any) {
	col := quoteIdent(t.Column)
	switch t.Op {
	case OpEq:
		return col + " = ?", []any{t.Value}
	case OpNeq:
		return col + " != ?", []any{t.Value}
	case OpGt:
		return col + " > ?", []any{t.Value}
	case OpGte:
		return col + " >= ?", []any{t.Value}
	case OpLt:
		return col + " < ?", []any{t.Value}
	case OpLte:
		return col + " <= ?", []any{t.Value}
	case OpContains:
		return col + " LIKE ?", []any{"%" + fmt.Sprint(t.Value) + "%"}
	case OpStartsWith:
		return col + " LIKE ?", []any{fmt.Sprint(t.Value) + "%"}
	case OpEndsWith:
		return col + " LIKE ?", []any{"%" + fmt.Sprint(t.Value)}
	case OpIsNull:
		return col + " IS NULL", nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil
	case OpIn, OpNotIn:
		if len(t.Values) == 0 {
			// empty IN() is never true, empty NOT IN() is always true
			if t.Op == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		placeholders := make([]string, len(t.Values))
		args := make([]any, len(t.Values))
		for i, v := range t.Values {
			placeholders[i] = "?"
			args[i] = v
		}
		kw := "IN"
		if t.Op == OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(placeholders, ",")), args
	default:
		return "1 = 1", nil
	}
}

func (t Term) Normalize() WhereExpr {
	if len(t.Values) == 0 {
		return t
	}
	// Order of Values affects SQL text only (IN list), not the set of
	// matched rows, but fingerprinting requires determinism: sort a copy
	// by its string form when all values are comparably stringified.
	sorted := make([]any, len(t.Values))
	copy(sorted, t.Values)
	sort.Slice(sorted, func(i, j int) bool {
		return fmt.Sprint(sorted[i]) < fmt.Sprint(sorted[j])
	})
	t.Values = sorted
	return t
}

// Conjunction is a logical AND across sub-expressions.
type Conjunction struct {
	Exprs []WhereExpr
}

func (c Conjunction) Lower() (string, []any) {
	return lowerJoin(c.Exprs, " AND ")
}

func (c Conjunction) Normalize() WhereExpr {
	return Conjunction{Exprs: normalizeSorted(c.Exprs)}
}

// Disjunction is a logical OR across sub-expressions.
type Disjunction struct {
	Exprs []WhereExpr
}

func (d Disjunction) Lower() (string, []any) {
	return lowerJoin(d.Exprs, " OR ")
}

func (d Disjunction) Normalize() WhereExpr {
	return Disjunction{Exprs: normalizeSorted(d.Exprs)}
}

// Negation is a logical NOT of one sub-expression.
type Negation struct {
	Expr WhereExpr
}

func (n Negation) Lower() (string, []any) {
	inner, args := n.Expr.Lower()
	return "NOT (" + inner + ")", args
}

func (n Negation) Normalize() WhereExpr {
	return Negation{Expr: n.Expr.Normalize()}
}

// Operator is a raw escape hatch for vendor-specific predicates the Term
// shape doesn't cover (e.g. JSON_CONTAINS); it participates in Lower/Normalize
// like any other node but performs no canonicalization of Args.
type Operator struct {
	SQL  string
	Args []any
}

func (o Operator) Lower() (string, []any) { return o.SQL, o.Args }
func (o Operator) Normalize() WhereExpr   { return o }

func lowerJoin(exprs []WhereExpr, sep string) (string, []any) {
	if len(exprs) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(exprs))
	var args []any
	for _, e := range exprs {
		s, a := e.Lower()
		parts = append(parts, "("+s+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args
}

func normalizeSorted(exprs []WhereExpr) []WhereExpr {
	out := make([]WhereExpr, len(exprs))
	keyed := make([]string, len(exprs))
	for i, e := range exprs {
		n := e.Normalize()
		out[i] = n
		s, a := n.Lower()
		keyed[i] = s + fmt.Sprint(a)
	}
	idx := make([]int, len(exprs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return keyed[idx[i]] < keyed[idx[j]] })
	sorted := make([]WhereExpr, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
