package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/sqlschema"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
	"github.com/erbhushanpawar/sqldb-go/internal/warmer"
)

// registerReplay captures how to re-issue the query behind key against the
// warming pool, keyed by fingerprint, so the auto-warmer can repopulate the
// cache for a hot query without the façade inventing SQL from a bare
// filters-digest (spec §4.L step 3: "re-issue a query derived from
// (op-kind, table, filters)"). The capture is necessarily a façade-level
// concern: the in-memory stats tracker records only a digest of the filters,
// never the filters themselves.
func (c *Client) registerReplay(key, table string, op types.OpKind, where types.WhereExpr, opts types.QueryOptions) {
	normalized := where.Normalize()

	c.replayMu.Lock()
	defer c.replayMu.Unlock()
	c.replay[key] = func(ctx context.Context) (float64, string, []byte, error) {
		start := nowFunc()
		data, err := c.replayFetch(ctx, table, op, normalized, opts)
		if err != nil {
			return 0, "", nil, err
		}
		return msSince(start), key, data, nil
	}
}

func (c *Client) replayFetch(ctx context.Context, table string, op types.OpKind, where types.WhereExpr, opts types.QueryOptions) ([]byte, error) {
	switch op {
	case types.OpCount:
		whereSQL, args := where.Lower()
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", sqlschema.QuoteIdent(table), whereSQL)
		var count int64
		if err := c.warmPool.QueryRow(ctx, func(row *sql.Row) error { return row.Scan(&count) }, query, args...); err != nil {
			return nil, fmt.Errorf("warming count on %s: %w", table, err)
		}
		return json.Marshal(count)

	case types.OpRaw:
		raw, ok := where.(types.Operator)
		if !ok {
			return nil, fmt.Errorf("warmer: raw replay for %s missing its operator expression", table)
		}
		rows, err := c.warmPool.Query(ctx, raw.SQL, raw.Args...)
		if err != nil {
			return nil, fmt.Errorf("warming raw query on %s: %w", table, err)
		}
		defer rows.Close()
		records, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return json.Marshal(records)

	case types.OpFindOne:
		limited := opts
		limited.Limit = 1
		records, err := c.execQuery(ctx, c.warmPool, table, where, limited)
		if err != nil {
			return nil, fmt.Errorf("warming findOne on %s: %w", table, err)
		}
		if len(records) > 1 {
			records = records[:1]
		}
		return json.Marshal(records)

	case types.OpFindByID:
		records, err := c.execQuery(ctx, c.warmPool, table, where, opts)
		if err != nil {
			return nil, fmt.Errorf("warming findById on %s: %w", table, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("warming findById on %s: row no longer exists", table)
		}
		return json.Marshal(records[0])

	default: // findMany
		records, err := c.execQuery(ctx, c.warmPool, table, where, opts)
		if err != nil {
			return nil, fmt.Errorf("warming %s on %s: %w", op, table, err)
		}
		return json.Marshal(records)
	}
}

func (c *Client) buildWarmer(tables []string) *warmer.Warmer {
	cfg := warmer.Config{
		Interval:           time.Duration(c.cfg.Warming.IntervalMs) * time.Millisecond,
		TopQueriesPerTable: c.cfg.Warming.TopQueriesPerTable,
		MinAccessCount:     c.cfg.Warming.MinAccessCount,
		WarmTTL:            c.cfg.Cache.DefaultTTL,
	}
	if onComplete := c.cfg.Warming.OnComplete; onComplete != nil {
		cfg.OnComplete = func(r warmer.Report) { onComplete(r) }
	}
	cfg.OnError = c.cfg.Warming.OnError

	w := warmer.New(cfg, c.statsTracker, c.warmCacheWrite)
	for _, table := range tables {
		w.RegisterTable(table, c.warmExecute)
	}
	return w
}

func (c *Client) warmCacheWrite(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.cache.Set(ctx, key, value, ttl)
}

func (c *Client) warmExecute(ctx context.Context, stat types.QueryStat) (float64, string, []byte, error) {
	c.replayMu.Lock()
	fn, ok := c.replay[stat.Fingerprint]
	c.replayMu.Unlock()
	if !ok {
		return 0, "", nil, fmt.Errorf("warmer: no replay registered for fingerprint %s", stat.Fingerprint)
	}
	return fn(ctx)
}
