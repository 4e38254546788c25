// Package sqldbcfg holds the typed configuration structs recognized at
// startup (spec §6 "Configuration"), with defaulting and validation. No
// flag/env parsing library is wired here deliberately: sqldb-go is consumed
// as a library embedded in a host application, which already owns its own
// configuration surface (flags, env, files) and constructs a Config value
// directly — the corpus's CLI-flag libraries (cobra, viper) have no
// component to bind to in a library with no command-line surface of its own.
package sqldbcfg

import (
	"fmt"
	"time"
)

// CacheConfig controls the cache store and invalidation behavior.
type CacheConfig struct {
	Enabled             bool
	DefaultTTL          time.Duration
	MaxKeys             int
	InvalidateOnWrite   bool
	CascadeInvalidation bool
	Strategy            string // "immediate" | "lazy" | "ttl-only"
}

// TableSearchConfig configures the inverted index for one table.
type TableSearchConfig struct {
	SearchableFields []string
	Tokenizer        string // "simple" | "stemming" | "n-gram"
	MinWordLength    int
	StopWords        []string
	CaseSensitive    bool
	RebuildOnWrite   bool
	FieldBoosts      map[string]float64
}

// DistanceBoostEntry is one (thresholdKm, boost) pair.
type DistanceBoostEntry struct {
	ThresholdKm float64
	Boost       float64
}

// LocationMapping is a user-supplied canonical location override.
type LocationMapping struct {
	Name string
	Lat  float64
	Lng  float64
}

// TableGeoConfig configures geo-spatial search for one table.
type TableGeoConfig struct {
	LatitudeField       string
	LongitudeField      string
	LocationNameField   string
	Buckets             []string
	LocationMappings    []LocationMapping
	AutoNormalize       bool
	DefaultRadius       float64
	MaxRadius           float64
	CombineWithTextSearch bool
	DistanceBoost       []DistanceBoostEntry
}

// SearchConfig groups per-table text and geo search configuration.
type SearchConfig struct {
	InvertedIndex map[string]TableSearchConfig
	Geo           map[string]TableGeoConfig
}

// WarmingConfig controls the auto-warmer.
type WarmingConfig struct {
	Enabled            bool
	IntervalMs         int
	TopQueriesPerTable int
	MinAccessCount     int
	MaxStatsAge        time.Duration
	UseSeparatePool    bool
	WarmingPoolSize    int
	TrackInDatabase    bool
	StatsTableName     string
	OnComplete         func(any)
	OnError            func(error)
}

// Config is the full startup configuration for a Client.
type Config struct {
	DSN          string
	RedisAddr    string
	KeyPrefix    string
	Schema       string
	Cache        CacheConfig
	Search       SearchConfig
	Warming      WarmingConfig
}

// WithDefaults returns a copy of c with unset fields filled to their
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "sqldb"
	}
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = 5 * time.Minute
	}
	if c.Cache.Strategy == "" {
		c.Cache.Strategy = "immediate"
	}
	if c.Warming.IntervalMs <= 0 {
		c.Warming.IntervalMs = 60_000
	}
	if c.Warming.TopQueriesPerTable <= 0 {
		c.Warming.TopQueriesPerTable = 10
	}
	if c.Warming.StatsTableName == "" {
		c.Warming.StatsTableName = "__sqldb_query_stats"
	}
	for table, tc := range c.Search.InvertedIndex {
		if tc.Tokenizer == "" {
			tc.Tokenizer = "simple"
		}
		if tc.MinWordLength <= 0 {
			tc.MinWordLength = 2
		}
		c.Search.InvertedIndex[table] = tc
	}
	for table, gc := range c.Search.Geo {
		if gc.DefaultRadius <= 0 {
			gc.DefaultRadius = 10
		}
		c.Search.Geo[table] = gc
	}
	return c
}

// Validate fails loudly on a missing DSN or RedisAddr, an unknown cache
// strategy or tokenizer variant, a search table with no searchable fields,
// and a geo table missing its latitude/longitude field. Table names are not
// checked here, since the schema is not yet known; sqldb.New rejects search
// or geo configuration for tables absent from the discovered schema.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("sqldbcfg: DSN is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("sqldbcfg: RedisAddr is required")
	}
	switch c.Cache.Strategy {
	case "immediate", "lazy", "ttl-only":
	default:
		return fmt.Errorf("sqldbcfg: unknown cache strategy %q", c.Cache.Strategy)
	}
	for table, tc := range c.Search.InvertedIndex {
		if len(tc.SearchableFields) == 0 {
			return fmt.Errorf("sqldbcfg: table %q has no searchableFields configured", table)
		}
		switch tc.Tokenizer {
		case "simple", "stemming", "n-gram":
		default:
			return fmt.Errorf("sqldbcfg: table %q has unknown tokenizer variant %q", table, tc.Tokenizer)
		}
	}
	for table, gc := range c.Search.Geo {
		if gc.LatitudeField == "" || gc.LongitudeField == "" {
			return fmt.Errorf("sqldbcfg: table %q geo config missing latitude/longitude field", table)
		}
	}
	return nil
}
