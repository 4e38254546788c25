// Package geoindex is the geo-spatial search engine (spec §4.I): coordinate
// index, radius search with elastic range expansion, and bucket lookup,
// backed by Redis GEOADD/GEORADIUS/GEOPOS and plain string/set keys.
package geoindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/cachestore"
	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/geonorm"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// DistanceBoostTier is one (threshold, boost) pair in a table's
// distanceBoost configuration (spec §6).
type DistanceBoostTier struct {
	ThresholdKm float64
	Boost       float64
}

// Config holds per-table geo-index settings.
type Config struct {
	AutoNormalize  bool
	DefaultRadius  float64 // km
	MaxRadius      float64 // km
	DistanceBoost  []DistanceBoostTier
}

// Engine is the geo index bound to one table.
type Engine struct {
	store      *cachestore.Store
	prefix     string
	table      string
	cfg        Config
	normalizer *geonorm.Normalizer
}

// New returns an Engine for table.
func New(store *cachestore.Store, prefix, table string, cfg Config, normalizer *geonorm.Normalizer) *Engine {
	return &Engine{store: store, prefix: prefix, table: table, cfg: cfg, normalizer: normalizer}
}

func (e *Engine) mainKey() string                 { return fmt.Sprintf("%s:geo:%s:main", e.prefix, e.table) }
func (e *Engine) docKey(id string) string         { return fmt.Sprintf("%s:geo:%s:doc:%s", e.prefix, e.table, id) }
func (e *Engine) bucketKey(id string) string      { return fmt.Sprintf("%s:geo:%s:bucket:%s", e.prefix, e.table, id) }
func (e *Engine) bucketDataKey(id string) string  { return fmt.Sprintf("%s:geo:%s:bucket-data:%s", e.prefix, e.table, id) }
func (e *Engine) locationKey(canon string) string { return fmt.Sprintf("%s:geo:%s:location:%s", e.prefix, e.table, canon) }

// ErrInvalidCoordinates is returned (and logged as a warning) when a
// document's coordinates fall outside the valid lat/lng range.
var ErrInvalidCoordinates = fmt.Errorf("invalid coordinates")

// IndexDocument validates coordinates, writes the document into the
// coordinate index and its payload key, appends it to its bucket's member
// set if a bucket is known, and optionally appends it to a location-name set
// when auto-normalize is configured (spec §4.I).
func (e *Engine) IndexDocument(ctx context.Context, doc types.GeoDocument) error {
	if doc.Lat < -90 || doc.Lat > 90 || doc.Lng < -180 || doc.Lng > 180 {
		debug.Warnf("geoindex: table %s: doc %s: coordinates (%v,%v) out of range, skipping", e.table, doc.ID, doc.Lat, doc.Lng)
		return ErrInvalidCoordinates
	}

	pipe := e.store.Client().Pipeline()
	pipe.GeoAdd(ctx, e.mainKey(), &redis.GeoLocation{Name: doc.ID, Longitude: doc.Lng, Latitude: doc.Lat})
	pipe.Set(ctx, e.docKey(doc.ID), doc.Payload, 0)
	if doc.BucketID != "" {
		pipe.SAdd(ctx, e.bucketKey(doc.BucketID), doc.ID)
	}
	if e.cfg.AutoNormalize && doc.LocationName != "" && e.normalizer != nil {
		canon := e.normalizer.Normalize(doc.LocationName)
		pipe.SAdd(ctx, e.locationKey(normalizeForKey(canon.Name)), doc.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexing geo document %s: %w", doc.ID, err)
	}
	return nil
}

func normalizeForKey(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		case c == ' ':
			out = append(out, '-')
		}
	}
	return string(out)
}

// fetchPayload retrieves and JSON-decodes a document's payload.
func (e *Engine) fetchPayload(ctx context.Context, id string) (map[string]any, bool) {
	data, ok, err := e.store.Get(ctx, e.docKey(id))
	if err != nil || !ok {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}
