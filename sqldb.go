// Package sqldb is a caching and search façade that sits between a Go
// application and a MariaDB/MySQL database, backed by Redis for cached reads,
// a per-table inverted text index, and a per-table geo-spatial index. A
// Client discovers the database's schema and foreign-key graph once at
// startup and binds every other component (cache, invalidation, search,
// geo, stats, warmer) to that discovered shape.
package sqldb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/cachestore"
	"github.com/erbhushanpawar/sqldb-go/internal/dbconn"
	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/depgraph"
	"github.com/erbhushanpawar/sqldb-go/internal/fingerprint"
	"github.com/erbhushanpawar/sqldb-go/internal/geobucket"
	"github.com/erbhushanpawar/sqldb-go/internal/geoindex"
	"github.com/erbhushanpawar/sqldb-go/internal/geonorm"
	"github.com/erbhushanpawar/sqldb-go/internal/invalidate"
	"github.com/erbhushanpawar/sqldb-go/internal/ranker"
	"github.com/erbhushanpawar/sqldb-go/internal/searchindex"
	"github.com/erbhushanpawar/sqldb-go/internal/sqldbcfg"
	"github.com/erbhushanpawar/sqldb-go/internal/sqlschema"
	"github.com/erbhushanpawar/sqldb-go/internal/stats"
	"github.com/erbhushanpawar/sqldb-go/internal/statsdb"
	"github.com/erbhushanpawar/sqldb-go/internal/tokenizer"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
	"github.com/erbhushanpawar/sqldb-go/internal/warmer"
)

// Configuration types are re-exported so a host application only ever
// imports this package, not its internal/ tree.
type (
	Config             = sqldbcfg.Config
	CacheConfig        = sqldbcfg.CacheConfig
	TableSearchConfig  = sqldbcfg.TableSearchConfig
	TableGeoConfig     = sqldbcfg.TableGeoConfig
	DistanceBoostEntry = sqldbcfg.DistanceBoostEntry
	LocationMapping    = sqldbcfg.LocationMapping
	SearchConfig       = sqldbcfg.SearchConfig
	WarmingConfig      = sqldbcfg.WarmingConfig
)

// QueryOptions and OpKind are re-exported for callers building requests.
type (
	QueryOptions = types.QueryOptions
	OpKind       = types.OpKind
)

// SearchHit is one ranked, highlighted full-text result.
type SearchHit = ranker.Scored

// GeoHit is one ranked, optionally distance-annotated geo result.
type GeoHit = geoindex.RadiusHit

// GeoRadiusOptions configures a radius/bucket/location-name geo search.
type GeoRadiusOptions = geoindex.RadiusOptions

// GeoBucketOptions tunes the grid-partition and k-means parameters
// BuildGeoBuckets uses to cluster a table's geo index into buckets.
type GeoBucketOptions = geobucket.Options

// GeoBucket is one clustered region produced by BuildGeoBuckets.
type GeoBucket = types.GeoBucket

// GeoDocument is one point indexed by IndexGeoDocument.
type GeoDocument = types.GeoDocument

// SearchBuildStats reports what BuildSearchIndex did.
type SearchBuildStats = searchindex.BuildStats

// replayFunc re-issues a previously-cached query against the warming pool,
// returning its execution time, its cache key, and the JSON-encoded result
// the warmer should write back into cache (spec §4.L).
type replayFunc func(ctx context.Context) (execMs float64, cacheKey string, payload []byte, err error)

// Client binds every sqldb-go component to one discovered database shape. It
// is safe for concurrent use by multiple goroutines once New has returned.
type Client struct {
	cfg sqldbcfg.Config

	pool     *dbconn.Pool
	warmPool *dbconn.Pool
	redis    *redis.Client

	cache        *cachestore.Store
	fp           fingerprint.Deriver
	graph        *depgraph.Graph
	invalidator  *invalidate.Engine
	statsTracker *stats.Tracker
	warmer       *warmer.Warmer

	tableMeta map[string]types.TableMeta

	search    map[string]*searchindex.Engine
	searchCfg map[string]sqldbcfg.TableSearchConfig

	geo    map[string]*geoindex.Engine
	geoCfg map[string]sqldbcfg.TableGeoConfig

	replayMu sync.Mutex
	replay   map[string]replayFunc
}

// New validates cfg, opens the database and Redis connections, discovers the
// schema and FK graph, wires every component, and — if configured — starts
// the auto-warmer. Configuration errors fail loudly here rather than being
// deferred to first use (spec §7).
func New(ctx context.Context, cfg sqldbcfg.Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sqldb: invalid configuration: %w", err)
	}

	pool, err := dbconn.Open(cfg.DSN, 0, 0, "primary")
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening primary connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("sqldb: pinging database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	cache := cachestore.New(redisClient)
	if err := cache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("sqldb: pinging redis: %w", err)
	}

	discoverer := sqlschema.New(pool.DB(), cfg.Schema)
	tables, err := discoverer.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqldb: discovering tables: %w", err)
	}

	tableMeta := make(map[string]types.TableMeta, len(tables))
	for _, table := range tables {
		meta, err := discoverer.TableMeta(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("sqldb: discovering shape of %s: %w", table, err)
		}
		tableMeta[table] = meta
	}
	for table := range cfg.Search.InvertedIndex {
		if _, ok := tableMeta[table]; !ok {
			return nil, fmt.Errorf("sqldb: invalid configuration: search configured for unknown table %q", table)
		}
	}
	for table := range cfg.Search.Geo {
		if _, ok := tableMeta[table]; !ok {
			return nil, fmt.Errorf("sqldb: invalid configuration: geo search configured for unknown table %q", table)
		}
	}

	relationships, err := discoverer.Relationships(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("sqldb: discovering relationships: %w", err)
	}
	graph := depgraph.Build(tables, relationships)

	warmPool := pool
	if cfg.Warming.UseSeparatePool {
		warmPool, err = dbconn.Open(cfg.DSN, cfg.Warming.WarmingPoolSize, cfg.Warming.WarmingPoolSize, "secondary")
		if err != nil {
			return nil, fmt.Errorf("sqldb: opening secondary warming pool: %w", err)
		}
	}

	var mirror stats.Mirror
	if cfg.Warming.TrackInDatabase {
		m := statsdb.New(pool.DB(), cfg.Warming.StatsTableName)
		if err := m.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("sqldb: creating query-stats table: %w", err)
		}
		mirror = m
	}

	c := &Client{
		cfg:          cfg,
		pool:         pool,
		warmPool:     warmPool,
		redis:        redisClient,
		cache:        cache,
		fp:           fingerprint.New(cfg.KeyPrefix),
		graph:        graph,
		invalidator:  invalidate.New(graph, cache, cfg.KeyPrefix),
		statsTracker: stats.New(mirror, cfg.Warming.MaxStatsAge),
		tableMeta:    tableMeta,
		search:       make(map[string]*searchindex.Engine),
		searchCfg:    make(map[string]sqldbcfg.TableSearchConfig),
		geo:          make(map[string]*geoindex.Engine),
		geoCfg:       make(map[string]sqldbcfg.TableGeoConfig),
		replay:       make(map[string]replayFunc),
	}

	for table, tc := range cfg.Search.InvertedIndex {
		c.search[table] = searchindex.New(cache, cfg.KeyPrefix, table, toSearchEngineConfig(tc))
		c.searchCfg[table] = tc
	}
	for table, gc := range cfg.Search.Geo {
		normalizer := geonorm.New(toLocationMappings(gc.LocationMappings), nil)
		c.geo[table] = geoindex.New(cache, cfg.KeyPrefix, table, toGeoEngineConfig(gc), normalizer)
		c.geoCfg[table] = gc
	}

	c.warmer = c.buildWarmer(tables)
	if cfg.Warming.Enabled {
		c.warmer.Start(ctx)
	}

	return c, nil
}

// Close stops the warmer's background loop, closes the separate warming pool
// (when one was opened), closes the Redis client, and finally closes the
// primary database pool, returning that pool's close error.
func (c *Client) Close() error {
	if c.warmer != nil {
		c.warmer.Stop()
	}
	if c.warmPool != nil && c.warmPool != c.pool {
		if err := c.warmPool.Close(); err != nil {
			debug.Warnf("sqldb: closing warming pool: %v", err)
		}
	}
	if err := c.redis.Close(); err != nil {
		debug.Warnf("sqldb: closing redis client: %v", err)
	}
	return c.pool.Close()
}

// Table returns a plain constructor bound to table for read/write/search
// calls. No dynamic proxy or reflection-based accessor is used — a host
// application wanting db.Users.FindMany(...) ergonomics wraps this in its
// own named field, the idiomatic Go way to get that sugar (spec's redesign
// note on proxy-based dynamic table accessors).
func (c *Client) Table(name string) *TableOperations {
	return &TableOperations{client: c, table: name}
}

// Graph exposes the discovered dependency graph, e.g. for diagnostics.
func (c *Client) Graph() *depgraph.Graph {
	return c.graph
}

// TriggerWarmCycle runs one warm cycle immediately and returns its report.
func (c *Client) TriggerWarmCycle(ctx context.Context) warmer.Report {
	return c.warmer.TriggerCycle(ctx)
}

func toSearchEngineConfig(tc sqldbcfg.TableSearchConfig) searchindex.Config {
	var stop map[string]struct{}
	if len(tc.StopWords) > 0 {
		stop = make(map[string]struct{}, len(tc.StopWords))
		for _, w := range tc.StopWords {
			stop[strings.ToLower(w)] = struct{}{}
		}
	}
	variant := tokenizer.VariantSimple
	switch tc.Tokenizer {
	case "stemming":
		variant = tokenizer.VariantStemming
	case "n-gram":
		variant = tokenizer.VariantNGram
	}
	return searchindex.Config{
		SearchableFields: tc.SearchableFields,
		FieldBoosts:      tc.FieldBoosts,
		Tokenizer: tokenizer.Config{
			Variant:       variant,
			MinWordLength: tc.MinWordLength,
			StopWords:     stop,
			CaseSensitive: tc.CaseSensitive,
		},
	}
}

func toGeoEngineConfig(gc sqldbcfg.TableGeoConfig) geoindex.Config {
	tiers := make([]geoindex.DistanceBoostTier, len(gc.DistanceBoost))
	for i, t := range gc.DistanceBoost {
		tiers[i] = geoindex.DistanceBoostTier{ThresholdKm: t.ThresholdKm, Boost: t.Boost}
	}
	return geoindex.Config{
		AutoNormalize: gc.AutoNormalize,
		DefaultRadius: gc.DefaultRadius,
		MaxRadius:     gc.MaxRadius,
		DistanceBoost: tiers,
	}
}

func toLocationMappings(mappings []sqldbcfg.LocationMapping) map[string]geonorm.Canonical {
	out := make(map[string]geonorm.Canonical, len(mappings))
	for _, m := range mappings {
		out[m.Name] = geonorm.Canonical{Name: m.Name, Lat: m.Lat, Lng: m.Lng, HasCoord: true}
	}
	return out
}

// ttlFor returns the effective cache ttl for op (spec §3 "Cache entry":
// count queries clamp to <= 30s, raw-SQL entries use a fixed 60s ttl).
func ttlFor(op types.OpKind, defaultTTL time.Duration) time.Duration {
	switch op {
	case types.OpCount:
		const countClamp = 30 * time.Second
		if defaultTTL <= 0 || defaultTTL > countClamp {
			return countClamp
		}
		return defaultTTL
	case types.OpRaw:
		return 60 * time.Second
	default:
		return defaultTTL
	}
}

// digestTail extracts the hash suffix of a fingerprint key for use as a
// query-stat's filtersDigest, avoiding a second, separate digest computation
// over the same canonical payload.
func digestTail(key string) string {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

// nowFunc is overridable in tests.
var nowFunc = time.Now

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func copyRecord(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
