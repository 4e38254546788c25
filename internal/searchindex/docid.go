package searchindex

import (
	"fmt"
	"sort"
	"strings"
)

// extractDocID implements the spec §4.F docId extraction rule: first present
// among "id", "<singularized-table>_id", "<table>_id", or the first key
// ending in "_id" (map iteration order is non-deterministic in Go, so ties
// are broken by sorting candidate keys first).
func extractDocID(table string, doc map[string]any) (string, bool) {
	if v, ok := doc["id"]; ok {
		return fmt.Sprint(v), true
	}
	if v, ok := doc[singularize(table)+"_id"]; ok {
		return fmt.Sprint(v), true
	}
	if v, ok := doc[table+"_id"]; ok {
		return fmt.Sprint(v), true
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		if strings.HasSuffix(k, "_id") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return fmt.Sprint(doc[keys[0]]), true
}

// singularize applies a minimal English pluralization rule, enough for the
// common "orders" -> "order" case the id-extraction heuristic depends on.
// It intentionally does not attempt full irregular-plural coverage.
func singularize(table string) string {
	switch {
	case strings.HasSuffix(table, "ies") && len(table) > 3:
		return table[:len(table)-3] + "y"
	case strings.HasSuffix(table, "ses") && len(table) > 3:
		return table[:len(table)-2]
	case strings.HasSuffix(table, "s") && len(table) > 1:
		return table[:len(table)-1]
	default:
		return table
	}
}
