package types

import "sort"

// ParseFilter canonicalizes either supported legacy filter shape into a
// WhereExpr tree:
//
//   - Mongo-style:   {"age": {"$gt": 18}, "status": "open"}
//   - Prisma-style:  {"age": {"gte": 18, "lte": 65}, "name": {"contains": "a"}}
//   - Logical arrays: {"AND": [...]}, {"OR": [...]}, {"NOT": {...}}
//
// A bare scalar value for a column means equality. Top-level keys are
// combined with AND. This is the only place in the codebase that still
// understands the legacy duck-typed shape; everything downstream operates on
// WhereExpr.
func ParseFilter(filter map[string]any) WhereExpr {
	if len(filter) == 0 {
		return Conjunction{}
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var terms []WhereExpr
	for _, key := range keys {
		val := filter[key]
		switch key {
		case "AND", "and":
			terms = append(terms, Conjunction{Exprs: parseExprList(val)})
		case "OR", "or":
			terms = append(terms, Disjunction{Exprs: parseExprList(val)})
		case "NOT", "not":
			if sub, ok := val.(map[string]any); ok {
				terms = append(terms, Negation{Expr: ParseFilter(sub)})
			}
		default:
			terms = append(terms, parseColumnExpr(key, val))
		}
	}
	return Conjunction{Exprs: terms}
}

func parseExprList(val any) []WhereExpr {
	list, ok := val.([]map[string]any)
	if ok {
		out := make([]WhereExpr, 0, len(list))
		for _, m := range list {
			out = append(out, ParseFilter(m))
		}
		return out
	}
	// Accept []any containing map[string]any, the common JSON-decoded shape.
	if anyList, ok := val.([]any); ok {
		out := make([]WhereExpr, 0, len(anyList))
		for _, item := range anyList {
			if m, ok := item.(map[string]any); ok {
				out = append(out, ParseFilter(m))
			}
		}
		return out
	}
	return nil
}

func parseColumnExpr(column string, val any) WhereExpr {
	ops, ok := val.(map[string]any)
	if !ok {
		return Term{Column: column, Op: OpEq, Value: val}
	}

	var sub []WhereExpr
	opKeys := make([]string, 0, len(ops))
	for k := range ops {
		opKeys = append(opKeys, k)
	}
	sort.Strings(opKeys)

	for _, opKey := range opKeys {
		opVal := ops[opKey]
		switch normalizeOpKey(opKey) {
		case "gt":
			sub = append(sub, Term{Column: column, Op: OpGt, Value: opVal})
		case "gte":
			sub = append(sub, Term{Column: column, Op: OpGte, Value: opVal})
		case "lt":
			sub = append(sub, Term{Column: column, Op: OpLt, Value: opVal})
		case "lte":
			sub = append(sub, Term{Column: column, Op: OpLte, Value: opVal})
		case "eq":
			sub = append(sub, Term{Column: column, Op: OpEq, Value: opVal})
		case "ne", "neq":
			sub = append(sub, Term{Column: column, Op: OpNeq, Value: opVal})
		case "in":
			sub = append(sub, Term{Column: column, Op: OpIn, Values: toAnySlice(opVal)})
		case "notin", "nin":
			sub = append(sub, Term{Column: column, Op: OpNotIn, Values: toAnySlice(opVal)})
		case "contains":
			sub = append(sub, Term{Column: column, Op: OpContains, Value: opVal})
		case "startswith":
			sub = append(sub, Term{Column: column, Op: OpStartsWith, Value: opVal})
		case "endswith":
			sub = append(sub, Term{Column: column, Op: OpEndsWith, Value: opVal})
		case "isnull":
			if b, ok := opVal.(bool); ok && b {
				sub = append(sub, Term{Column: column, Op: OpIsNull})
			} else {
				sub = append(sub, Term{Column: column, Op: OpIsNotNull})
			}
		}
	}
	if len(sub) == 1 {
		return sub[0]
	}
	return Conjunction{Exprs: sub}
}

// normalizeOpKey strips a leading '$' (Mongo-style) and lowercases, so
// "$gte" and "gte" both resolve to the same case.
func normalizeOpKey(key string) string {
	if len(key) > 0 && key[0] == '$' {
		key = key[1:]
	}
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}

func toAnySlice(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
