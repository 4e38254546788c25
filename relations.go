package sqldb

import (
	"context"
	"fmt"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// expandRelations attaches dependency (belongs-to) and dependent (has-many)
// rows to copies of records, fetched fresh from the database in batches
// joined by FK-column equality — never from cache, so relation data can
// never be stale behind a cached parent row (spec §4.M).
func (c *Client) expandRelations(ctx context.Context, table string, records []map[string]any) ([]map[string]any, error) {
	if len(records) == 0 {
		return records, nil
	}
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = copyRecord(r)
	}
	if c.graph == nil {
		return out, nil
	}

	for _, rel := range c.graph.Relationships() {
		switch {
		case rel.FromTable == table:
			if err := c.attachDependency(ctx, out, rel); err != nil {
				return nil, err
			}
		case rel.ToTable == table:
			if err := c.attachDependents(ctx, out, rel); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// attachDependency fetches the single parent row each record's FK column
// points at (table.FromColumn -> rel.ToTable.rel.ToColumn).
func (c *Client) attachDependency(ctx context.Context, records []map[string]any, rel types.Relationship) error {
	values := distinctValues(records, rel.FromColumn)
	if len(values) == 0 {
		return nil
	}
	where := types.Term{Column: rel.ToColumn, Op: types.OpIn, Values: values}
	rows, err := c.queryRows(ctx, rel.ToTable, where, types.QueryOptions{})
	if err != nil {
		return fmt.Errorf("expanding relation %s.%s -> %s: %w", rel.FromTable, rel.FromColumn, rel.ToTable, err)
	}

	byKey := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		byKey[fmt.Sprint(row[rel.ToColumn])] = row
	}
	for _, r := range records {
		v, ok := r[rel.FromColumn]
		if !ok || v == nil {
			continue
		}
		if match, found := byKey[fmt.Sprint(v)]; found {
			r[rel.ToTable] = match
		}
	}
	return nil
}

// attachDependents fetches every child row referencing each record
// (rel.FromTable.rel.FromColumn -> table.rel.ToColumn), grouped into slices.
func (c *Client) attachDependents(ctx context.Context, records []map[string]any, rel types.Relationship) error {
	values := distinctValues(records, rel.ToColumn)
	if len(values) == 0 {
		return nil
	}
	where := types.Term{Column: rel.FromColumn, Op: types.OpIn, Values: values}
	rows, err := c.queryRows(ctx, rel.FromTable, where, types.QueryOptions{})
	if err != nil {
		return fmt.Errorf("expanding relation %s -> %s.%s: %w", rel.FromTable, rel.ToTable, rel.ToColumn, err)
	}

	byKey := make(map[string][]map[string]any)
	for _, row := range rows {
		k := fmt.Sprint(row[rel.FromColumn])
		byKey[k] = append(byKey[k], row)
	}
	for _, r := range records {
		v, ok := r[rel.ToColumn]
		if !ok || v == nil {
			continue
		}
		r[rel.FromTable] = byKey[fmt.Sprint(v)]
	}
	return nil
}

func distinctValues(records []map[string]any, column string) []any {
	seen := make(map[string]struct{}, len(records))
	out := make([]any, 0, len(records))
	for _, r := range records {
		v, ok := r[column]
		if !ok || v == nil {
			continue
		}
		k := fmt.Sprint(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
