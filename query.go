package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/erbhushanpawar/sqldb-go/internal/dbconn"
	"github.com/erbhushanpawar/sqldb-go/internal/sqlschema"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// cachedRead is the shared flow behind FindMany/FindOne/Count/Raw (spec
// §4.M): derive fingerprint, consult cache, on miss execute fetch and cache
// the JSON-encoded result with an operation-specific ttl, record stats, and
// register a replay closure the warmer can re-issue later.
func (c *Client) cachedRead(ctx context.Context, table string, op types.OpKind, where types.WhereExpr, opts types.QueryOptions, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	where = where.Normalize()
	key := c.fp.For(table, op, where, opts)
	digest := digestTail(key)

	if !opts.SkipCache {
		if data, hit, err := c.cache.Get(ctx, key); err == nil && hit {
			return data, nil
		}
	}

	start := nowFunc()
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	execMs := msSince(start)

	if !opts.SkipCache {
		c.cache.Set(ctx, key, data, ttlFor(op, c.cfg.Cache.DefaultTTL))
	}
	c.statsTracker.Record(table, op, key, digest, execMs)
	c.registerReplay(key, table, op, where, opts)
	return data, nil
}

func (c *Client) execQuery(ctx context.Context, pool *dbconn.Pool, table string, where types.WhereExpr, opts types.QueryOptions) ([]map[string]any, error) {
	query, args := c.buildSelect(table, where, opts)
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (c *Client) buildSelect(table string, where types.WhereExpr, opts types.QueryOptions) (string, []any) {
	cols := "*"
	if len(opts.Select) > 0 {
		quoted := make([]string, len(opts.Select))
		for i, s := range opts.Select {
			quoted[i] = sqlschema.QuoteIdent(s)
		}
		cols = strings.Join(quoted, ", ")
	}

	whereSQL, args := where.Lower()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", cols, sqlschema.QuoteIdent(table), whereSQL)

	if len(opts.OrderBy) > 0 {
		query += " ORDER BY " + strings.Join(quoteOrderBy(opts.OrderBy), ", ")
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return query, args
}

// quoteOrderBy quotes each order-by entry's column while preserving an
// optional trailing "asc"/"desc" direction keyword.
func quoteOrderBy(entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		fields := strings.Fields(e)
		if len(fields) == 0 {
			out[i] = e
			continue
		}
		col := sqlschema.QuoteIdent(fields[0])
		if len(fields) > 1 {
			out[i] = col + " " + strings.ToUpper(fields[1])
		} else {
			out[i] = col
		}
	}
	return out
}
