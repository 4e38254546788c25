package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/geobucket"
	"github.com/erbhushanpawar/sqldb-go/internal/ranker"
	"github.com/erbhushanpawar/sqldb-go/internal/sqlschema"
	"github.com/erbhushanpawar/sqldb-go/internal/tokenizer"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// TableOperations is the public API for one table: cached reads, writes with
// scheduled cascade invalidation, and (when configured) full-text and geo
// search (spec §4.M).
type TableOperations struct {
	client *Client
	table  string
}

// FindMany caches and returns every row matching filter.
func (t *TableOperations) FindMany(ctx context.Context, filter map[string]any, opts types.QueryOptions) ([]map[string]any, error) {
	where := types.ParseFilter(filter)
	data, err := t.client.cachedRead(ctx, t.table, types.OpFindMany, where, opts, func(ctx context.Context) ([]byte, error) {
		records, err := t.client.queryRows(ctx, t.table, where, opts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(records)
	})
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding cached result for %s: %w", t.table, err)
	}
	if opts.WithRelations {
		return t.client.expandRelations(ctx, t.table, records)
	}
	return records, nil
}

// FindOne caches and returns the first row matching filter, or (nil, nil) if
// none match.
func (t *TableOperations) FindOne(ctx context.Context, filter map[string]any, opts types.QueryOptions) (map[string]any, error) {
	opts.Limit = 1
	where := types.ParseFilter(filter)
	data, err := t.client.cachedRead(ctx, t.table, types.OpFindOne, where, opts, func(ctx context.Context) ([]byte, error) {
		records, err := t.client.queryRows(ctx, t.table, where, opts)
		if err != nil {
			return nil, err
		}
		if len(records) > 1 {
			records = records[:1]
		}
		return json.Marshal(records)
	})
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding cached result for %s: %w", t.table, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if opts.WithRelations {
		expanded, err := t.client.expandRelations(ctx, t.table, records)
		if err != nil {
			return nil, err
		}
		return expanded[0], nil
	}
	return records[0], nil
}

// FindByID caches and returns the row whose primary key equals id, using the
// shorter `<prefix>:cache:<table>:id:<id>` key form (spec §4.A).
func (t *TableOperations) FindByID(ctx context.Context, id any, opts types.QueryOptions) (map[string]any, error) {
	meta, ok := t.client.tableMeta[t.table]
	if !ok || meta.PrimaryKey == "" {
		return nil, fmt.Errorf("sqldb: table %q has no discovered primary key", t.table)
	}
	idStr := fmt.Sprint(id)
	key := t.client.fp.ForID(t.table, idStr)

	if !opts.SkipCache {
		if data, hit, err := t.client.cache.Get(ctx, key); err == nil && hit {
			var record map[string]any
			if err := json.Unmarshal(data, &record); err == nil {
				return t.attachRelationsIfNeeded(ctx, record, opts)
			}
		}
	}

	where := types.Term{Column: meta.PrimaryKey, Op: types.OpEq, Value: id}
	start := time.Now()
	records, err := t.client.execQuery(ctx, t.client.pool, t.table, where, types.QueryOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("finding %s by id %v: %w", t.table, id, err)
	}
	execMs := msSince(start)

	if len(records) == 0 {
		return nil, nil
	}
	record := records[0]

	if !opts.SkipCache {
		if data, err := json.Marshal(record); err == nil {
			t.client.cache.Set(ctx, key, data, t.client.cfg.Cache.DefaultTTL)
		}
	}
	t.client.statsTracker.Record(t.table, types.OpFindByID, key, idStr, execMs)
	t.client.registerReplay(key, t.table, types.OpFindByID, where, types.QueryOptions{Limit: 1})

	return t.attachRelationsIfNeeded(ctx, record, opts)
}

func (t *TableOperations) attachRelationsIfNeeded(ctx context.Context, record map[string]any, opts types.QueryOptions) (map[string]any, error) {
	if record == nil || !opts.WithRelations {
		return record, nil
	}
	expanded, err := t.client.expandRelations(ctx, t.table, []map[string]any{record})
	if err != nil {
		return nil, err
	}
	return expanded[0], nil
}

// Count caches and returns the number of rows matching filter (spec §3:
// count entries use a clamped shorter ttl).
func (t *TableOperations) Count(ctx context.Context, filter map[string]any) (int64, error) {
	where := types.ParseFilter(filter)
	data, err := t.client.cachedRead(ctx, t.table, types.OpCount, where, types.QueryOptions{}, func(ctx context.Context) ([]byte, error) {
		whereSQL, args := where.Normalize().Lower()
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", sqlschema.QuoteIdent(t.table), whereSQL)
		var count int64
		err := t.client.pool.QueryRow(ctx, func(row *sql.Row) error { return row.Scan(&count) }, query, args...)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", t.table, err)
		}
		return json.Marshal(count)
	})
	if err != nil {
		return 0, err
	}
	var count int64
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("decoding cached count for %s: %w", t.table, err)
	}
	return count, nil
}

// Raw caches and returns the rows of an arbitrary parameterized SELECT
// (spec §3: raw-SQL entries use a fixed 60s ttl).
func (t *TableOperations) Raw(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	where := types.Operator{SQL: query, Args: args}
	data, err := t.client.cachedRead(ctx, t.table, types.OpRaw, where, types.QueryOptions{}, func(ctx context.Context) ([]byte, error) {
		rows, err := t.client.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("raw query against %s: %w", t.table, err)
		}
		defer rows.Close()
		records, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return json.Marshal(records)
	})
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding cached raw result for %s: %w", t.table, err)
	}
	return records, nil
}

// Create inserts a row and schedules invalidation for the table.
func (t *TableOperations) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	cols, vals := columnsAndValues(data)
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqldb: create on %s called with no columns", t.table)
	}
	placeholders := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		quoted[i] = sqlschema.QuoteIdent(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlschema.QuoteIdent(t.table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	res, err := t.client.pool.Exec(ctx, query, vals...)
	if err != nil {
		return nil, fmt.Errorf("creating row in %s: %w", t.table, err)
	}
	t.client.scheduleInvalidation(t.table)

	out := copyRecord(data)
	if meta, ok := t.client.tableMeta[t.table]; ok && meta.PrimaryKey != "" {
		if _, exists := out[meta.PrimaryKey]; !exists {
			if id, err := res.LastInsertId(); err == nil && id != 0 {
				out[meta.PrimaryKey] = id
			}
		}
		if cfg, ok := t.client.searchCfg[t.table]; ok && cfg.RebuildOnWrite {
			if id, ok := out[meta.PrimaryKey]; ok {
				t.client.reindexSearchDocument(ctx, t.table, fmt.Sprint(id), out)
			}
		}
	}
	return out, nil
}

// UpdateByID updates the row with the given primary key and schedules
// invalidation for the table.
func (t *TableOperations) UpdateByID(ctx context.Context, id any, data map[string]any) error {
	meta, ok := t.client.tableMeta[t.table]
	if !ok || meta.PrimaryKey == "" {
		return fmt.Errorf("sqldb: table %q has no discovered primary key", t.table)
	}
	cols, vals := columnsAndValues(data)
	if len(cols) == 0 {
		return fmt.Errorf("sqldb: updateById on %s called with no columns", t.table)
	}
	setClauses := make([]string, len(cols))
	for i, c := range cols {
		setClauses[i] = sqlschema.QuoteIdent(c) + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		sqlschema.QuoteIdent(t.table), strings.Join(setClauses, ", "), sqlschema.QuoteIdent(meta.PrimaryKey))

	args := append(append([]any{}, vals...), id)
	if _, err := t.client.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("updating %s id %v: %w", t.table, id, err)
	}
	t.client.scheduleInvalidation(t.table)

	idStr := fmt.Sprint(id)
	if cfg, ok := t.client.searchCfg[t.table]; ok && cfg.RebuildOnWrite {
		where := types.Term{Column: meta.PrimaryKey, Op: types.OpEq, Value: id}
		rows, err := t.client.queryRows(ctx, t.table, where, types.QueryOptions{Limit: 1})
		if err == nil && len(rows) == 1 {
			t.client.reindexSearchDocument(ctx, t.table, idStr, rows[0])
		}
	}
	return nil
}

// DeleteByID deletes the row with the given primary key and schedules
// invalidation for the table.
func (t *TableOperations) DeleteByID(ctx context.Context, id any) error {
	meta, ok := t.client.tableMeta[t.table]
	if !ok || meta.PrimaryKey == "" {
		return fmt.Errorf("sqldb: table %q has no discovered primary key", t.table)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", sqlschema.QuoteIdent(t.table), sqlschema.QuoteIdent(meta.PrimaryKey))
	if _, err := t.client.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("deleting %s id %v: %w", t.table, id, err)
	}
	t.client.scheduleInvalidation(t.table)

	if cfg, ok := t.client.searchCfg[t.table]; ok && cfg.RebuildOnWrite {
		t.client.deindexSearchDocument(ctx, t.table, fmt.Sprint(id))
	}
	return nil
}

// SearchOptions controls a full-text Search call.
type SearchOptions struct {
	Limit    int
	MinScore float64
}

// Search runs the table's configured inverted-index search, then ranks and
// highlights the matched rows (spec §4.F, §4.G). Each matched row is
// re-fetched through FindByID so a search hit is never served from a stale
// cached payload distinct from the row's own cache entry.
func (t *TableOperations) Search(ctx context.Context, query string, opts SearchOptions) ([]ranker.Scored, error) {
	engine, ok := t.client.search[t.table]
	if !ok {
		return nil, fmt.Errorf("sqldb: table %q has no inverted index configured", t.table)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	hits, err := engine.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", t.table, err)
	}

	records := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		row, err := t.FindByID(ctx, h.DocID, types.QueryOptions{})
		if err != nil || row == nil {
			continue
		}
		records = append(records, row)
	}

	terms := t.client.queryTerms(t.table, query)
	cfg := t.client.searchCfg[t.table]
	return ranker.RankAndFilter(records, terms, ranker.Config{
		ScoringFields:   cfg.SearchableFields,
		HighlightFields: cfg.SearchableFields,
		MinScore:        opts.MinScore,
	}), nil
}

// SearchByRadius runs the table's configured geo-spatial radius search
// (spec §4.I).
func (t *TableOperations) SearchByRadius(ctx context.Context, lat, lng, radiusKm float64, opts GeoRadiusOptions) ([]GeoHit, error) {
	engine, ok := t.client.geo[t.table]
	if !ok {
		return nil, fmt.Errorf("sqldb: table %q has no geo index configured", t.table)
	}
	return engine.SearchByRadius(ctx, lat, lng, radiusKm, opts)
}

// SearchByBucket runs a radius search around a previously built geo bucket's
// center with the bucket's radius, nearest first; any indexed point inside
// that circle is returned, not only the bucket's recorded members.
func (t *TableOperations) SearchByBucket(ctx context.Context, bucketID string, limit int) ([]GeoHit, error) {
	engine, ok := t.client.geo[t.table]
	if !ok {
		return nil, fmt.Errorf("sqldb: table %q has no geo index configured", t.table)
	}
	return engine.SearchByBucket(ctx, bucketID, limit)
}

// SearchByLocationName normalizes name to coordinates or a bucket and
// delegates to SearchByRadius or SearchByBucket (spec §4.H, §4.I).
func (t *TableOperations) SearchByLocationName(ctx context.Context, name string, opts GeoRadiusOptions) ([]GeoHit, error) {
	engine, ok := t.client.geo[t.table]
	if !ok {
		return nil, fmt.Errorf("sqldb: table %q has no geo index configured", t.table)
	}
	return engine.SearchByLocationName(ctx, name, opts)
}

// BuildSearchIndex rebuilds the table's inverted index from scratch against
// every row currently in the database (spec §4.F buildIndex). Call this once
// after configuring InvertedIndex search for a table, or periodically for
// tables that don't set RebuildOnWrite.
func (t *TableOperations) BuildSearchIndex(ctx context.Context) (SearchBuildStats, error) {
	engine, ok := t.client.search[t.table]
	if !ok {
		return SearchBuildStats{}, fmt.Errorf("sqldb: table %q has no inverted index configured", t.table)
	}
	rows, err := t.client.queryRows(ctx, t.table, types.Operator{SQL: "1=1"}, types.QueryOptions{})
	if err != nil {
		return SearchBuildStats{}, fmt.Errorf("loading %s rows for index build: %w", t.table, err)
	}
	return engine.BuildIndex(ctx, rows)
}

// IndexGeoDocument adds or replaces one point in the table's geo-spatial
// index (spec §4.I indexDocument).
func (t *TableOperations) IndexGeoDocument(ctx context.Context, doc GeoDocument) error {
	engine, ok := t.client.geo[t.table]
	if !ok {
		return fmt.Errorf("sqldb: table %q has no geo index configured", t.table)
	}
	return engine.IndexDocument(ctx, doc)
}

// BuildGeoBuckets enumerates every point currently in the table's geo index,
// partitions them with geobucket.Build, and atomically replaces the table's
// bucket set with the result (spec §4.J). A point's location name, when
// needed for a bucket's majority-vote label, is read from its JSON payload
// using the field named by TableGeoConfig.LocationNameField.
func (t *TableOperations) BuildGeoBuckets(ctx context.Context, opts GeoBucketOptions) ([]GeoBucket, error) {
	engine, ok := t.client.geo[t.table]
	if !ok {
		return nil, fmt.Errorf("sqldb: table %q has no geo index configured", t.table)
	}
	indexed, err := engine.ListPoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating %s geo points: %w", t.table, err)
	}
	nameField := t.client.geoCfg[t.table].LocationNameField

	points := make([]geobucket.Point, 0, len(indexed))
	for _, p := range indexed {
		var name string
		if nameField != "" {
			if v, ok := p.Payload[nameField]; ok {
				name, _ = v.(string)
			}
		}
		points = append(points, geobucket.Point{ID: p.ID, Lat: p.Lat, Lng: p.Lng, LocationName: name})
	}

	buckets := geobucket.Build(points, opts)
	if err := engine.ReplaceBuckets(ctx, buckets); err != nil {
		return nil, fmt.Errorf("replacing %s geo buckets: %w", t.table, err)
	}
	return buckets, nil
}

func (c *Client) scheduleInvalidation(table string) {
	c.invalidator.InvalidateAsync(table, types.InvalidationStrategy(c.cfg.Cache.Strategy), c.cfg.Cache.CascadeInvalidation)
}

// reindexSearchDocument re-indexes one row in table's inverted index, if one
// is configured. Errors are logged rather than propagated: a write already
// succeeded against the database, and a stale search index entry is
// recovered by the next BuildSearchIndex or UpdateByID call, not by failing
// the write that triggered it.
func (c *Client) reindexSearchDocument(ctx context.Context, table, docID string, record map[string]any) {
	engine, ok := c.search[table]
	if !ok {
		return
	}
	if err := engine.UpdateDocument(ctx, docID, record); err != nil {
		debug.Warnf("reindexing %s doc %s after write: %v", table, docID, err)
	}
}

func (c *Client) deindexSearchDocument(ctx context.Context, table, docID string) {
	engine, ok := c.search[table]
	if !ok {
		return
	}
	if err := engine.DeleteDocument(ctx, docID); err != nil {
		debug.Warnf("removing %s doc %s from search index after delete: %v", table, docID, err)
	}
}

func (c *Client) queryRows(ctx context.Context, table string, where types.WhereExpr, opts types.QueryOptions) ([]map[string]any, error) {
	return c.execQuery(ctx, c.pool, table, where, opts)
}

func (c *Client) queryTerms(table, query string) []string {
	tc := c.searchCfg[table]
	variant := tokenizer.VariantSimple
	switch tc.Tokenizer {
	case "stemming":
		variant = tokenizer.VariantStemming
	case "n-gram":
		variant = tokenizer.VariantNGram
	}
	tz := tokenizer.New(tokenizer.Config{
		Variant:       variant,
		MinWordLength: tc.MinWordLength,
		CaseSensitive: tc.CaseSensitive,
	})
	toks := tz.Tokenize("query", query)
	seen := make(map[string]struct{}, len(toks))
	terms := make([]string, 0, len(toks))
	for _, tok := range toks {
		if _, ok := seen[tok.Term]; ok {
			continue
		}
		seen[tok.Term] = struct{}{}
		terms = append(terms, tok.Term)
	}
	return terms
}

func columnsAndValues(data map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(data))
	for c := range data {
		cols = append(cols, c)
	}
	// Deterministic column order keeps generated SQL (and therefore logs and
	// retries) stable across calls with the same data.
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j] < cols[j-1]; j-- {
			cols[j], cols[j-1] = cols[j-1], cols[j]
		}
	}
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = data[c]
	}
	return cols, vals
}
