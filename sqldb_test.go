package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/cachestore"
	"github.com/erbhushanpawar/sqldb-go/internal/dbconn"
	"github.com/erbhushanpawar/sqldb-go/internal/depgraph"
	"github.com/erbhushanpawar/sqldb-go/internal/fingerprint"
	"github.com/erbhushanpawar/sqldb-go/internal/invalidate"
	"github.com/erbhushanpawar/sqldb-go/internal/sqldbcfg"
	"github.com/erbhushanpawar/sqldb-go/internal/stats"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// newTestClient wires a Client by hand against a sqlmock database and a
// miniredis cache, bypassing New's live schema discovery — the shape it
// would have discovered (a users/orders FK pair) is supplied directly, in
// the style of internal/invalidate/engine_test.go's newTestEngine helper.
func newTestClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })
	cache := cachestore.New(redisClient)

	tables := []string{"users", "orders"}
	relationships := []types.Relationship{
		{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id", OnDelete: types.ActionCascade},
	}
	graph := depgraph.Build(tables, relationships)

	cfg := sqldbcfg.Config{
		DSN:       "test",
		RedisAddr: mr.Addr(),
		KeyPrefix: "test",
		Cache: sqldbcfg.CacheConfig{
			Strategy:            "immediate",
			CascadeInvalidation: true,
			DefaultTTL:          5 * time.Minute,
		},
	}.WithDefaults()

	pool := dbconn.Wrap(db, "primary")

	return &Client{
		cfg:          cfg,
		pool:         pool,
		warmPool:     pool,
		redis:        redisClient,
		cache:        cache,
		fp:           fingerprint.New(cfg.KeyPrefix),
		graph:        graph,
		invalidator:  invalidate.New(graph, cache, cfg.KeyPrefix),
		statsTracker: stats.New(nil, time.Hour),
		tableMeta: map[string]types.TableMeta{
			"users":  {Name: "users", PrimaryKey: "id"},
			"orders": {Name: "orders", PrimaryKey: "id"},
		},
		searchCfg: map[string]sqldbcfg.TableSearchConfig{},
		geoCfg:    map[string]sqldbcfg.TableGeoConfig{},
		replay:    map[string]replayFunc{},
	}, mock
}

// TestFindManyCachesResult exercises the cache-aside flow behind FindMany:
// a cache miss queries the database once, and a repeat call with the same
// filter is served from cache without touching sqlmock's expectation queue.
func TestFindManyCachesResult(t *testing.T) {
	c, mock := newTestClient(t)
	ctx := context.Background()
	tbl := c.Table("orders")

	rows := sqlmock.NewRows([]string{"id", "user_id"}).AddRow("1", "7")
	mock.ExpectQuery(`SELECT \* FROM `+"`orders`"+` WHERE `).WillReturnRows(rows)

	filter := map[string]any{"user_id": 7}

	first, err := tbl.FindMany(ctx, filter, types.QueryOptions{})
	if err != nil {
		t.Fatalf("FindMany (miss): %v", err)
	}
	if len(first) != 1 || first[0]["id"] != "1" {
		t.Fatalf("unexpected result from cache miss: %+v", first)
	}

	second, err := tbl.FindMany(ctx, filter, types.QueryOptions{})
	if err != nil {
		t.Fatalf("FindMany (hit): %v", err)
	}
	if len(second) != 1 || second[0]["id"] != "1" {
		t.Fatalf("unexpected result from cache hit: %+v", second)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected exactly one query, found unmet/extra expectations: %v", err)
	}
}

// TestCascadeInvalidationOnUpdate implements the façade-level version of
// scenario S1: a cached orders.findMany keyed off user_id is invalidated
// once the owning user row is updated, because orders depends on users via
// a foreign key (the dependency graph follows every foreign key, whatever its
// ON DELETE action).
func TestCascadeInvalidationOnUpdate(t *testing.T) {
	c, mock := newTestClient(t)
	ctx := context.Background()
	orders := c.Table("orders")
	users := c.Table("users")

	rows := sqlmock.NewRows([]string{"id", "user_id"}).AddRow("1", "7")
	mock.ExpectQuery(`SELECT \* FROM `+"`orders`"+` WHERE `).WillReturnRows(rows)

	filter := map[string]any{"user_id": 7}
	if _, err := orders.FindMany(ctx, filter, types.QueryOptions{}); err != nil {
		t.Fatalf("warming FindMany: %v", err)
	}

	key := c.fp.For("orders", types.OpFindMany, types.ParseFilter(filter).Normalize(), types.QueryOptions{})
	if _, hit, _ := c.cache.Get(ctx, key); !hit {
		t.Fatalf("expected orders query to be cached before invalidation")
	}

	mock.ExpectExec(`UPDATE `+"`users`").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := users.UpdateByID(ctx, 7, map[string]any{"name": "renamed"}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, hit, _ := c.cache.Get(ctx, key); !hit {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cascade invalidation did not clear orders cache entry in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestCountTTLClampsTo30Seconds asserts that a Count cache entry never
// outlives 30 seconds even when the configured default ttl is much larger.
func TestCountTTLClampsTo30Seconds(t *testing.T) {
	c, mock := newTestClient(t)
	c.cfg.Cache.DefaultTTL = 10 * time.Minute
	ctx := context.Background()
	tbl := c.Table("orders")

	countRows := sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(3)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM `+"`orders`"+` WHERE `).WillReturnRows(countRows)

	n, err := tbl.Count(ctx, map[string]any{"user_id": 7})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}

	key := c.fp.For("orders", types.OpCount, types.ParseFilter(map[string]any{"user_id": 7}).Normalize(), types.QueryOptions{})
	ttl := c.cache.Client().TTL(ctx, key).Val()
	if ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("expected count ttl in (0, 30s], got %s", ttl)
	}
}
