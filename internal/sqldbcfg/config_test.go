package sqldbcfg

import "testing"

func TestWithDefaultsFillsUnsetFields(t *testing.T) {
	c := Config{DSN: "x", RedisAddr: "localhost:6379"}.WithDefaults()
	if c.KeyPrefix != "sqldb" {
		t.Fatalf("expected default key prefix, got %q", c.KeyPrefix)
	}
	if c.Cache.Strategy != "immediate" {
		t.Fatalf("expected default cache strategy, got %q", c.Cache.Strategy)
	}
	if c.Warming.StatsTableName != "__sqldb_query_stats" {
		t.Fatalf("expected default stats table name, got %q", c.Warming.StatsTableName)
	}
}

func TestValidateRequiresDSNAndRedisAddr(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error for empty config")
	}
	if err := (Config{DSN: "x"}).Validate(); err == nil {
		t.Fatalf("expected error for missing redis addr")
	}
}

func TestValidateRejectsUnknownCacheStrategy(t *testing.T) {
	c := Config{DSN: "x", RedisAddr: "y", Cache: CacheConfig{Strategy: "bogus"}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown cache strategy")
	}
}

func TestValidateRejectsSearchTableWithNoFields(t *testing.T) {
	c := Config{
		DSN: "x", RedisAddr: "y",
		Cache: CacheConfig{Strategy: "immediate"},
		Search: SearchConfig{InvertedIndex: map[string]TableSearchConfig{
			"orders": {Tokenizer: "simple"},
		}},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for table with no searchableFields")
	}
}

func TestValidateRejectsGeoTableMissingFields(t *testing.T) {
	c := Config{
		DSN: "x", RedisAddr: "y",
		Cache: CacheConfig{Strategy: "immediate"},
		Search: SearchConfig{Geo: map[string]TableGeoConfig{
			"places": {},
		}},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for geo table missing lat/lng fields")
	}
}
