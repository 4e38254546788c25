package geoindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

func decodeBucket(data []byte) (types.GeoBucket, error) {
	var b types.GeoBucket
	if err := json.Unmarshal(data, &b); err != nil {
		return types.GeoBucket{}, err
	}
	return b, nil
}

// PersistBucket stores a GeoBucket's metadata and member set so later
// SearchByBucket calls can resolve it (spec §4.J writes through this).
func (e *Engine) PersistBucket(ctx context.Context, bucket types.GeoBucket) error {
	data, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("encoding bucket %s: %w", bucket.ID, err)
	}
	e.store.Set(ctx, e.bucketDataKey(bucket.ID), data, 0)

	if len(bucket.Members) > 0 {
		members := make([]any, len(bucket.Members))
		for i, m := range bucket.Members {
			members[i] = m
		}
		e.store.Client().SAdd(ctx, e.bucketKey(bucket.ID), members...)
	}
	return nil
}

// BucketMembers returns the docIDs currently recorded under a bucket.
func (e *Engine) BucketMembers(ctx context.Context, bucketID string) ([]string, error) {
	return e.store.Client().SMembers(ctx, e.bucketKey(bucketID)).Result()
}

// ReplaceBuckets atomically drops a table's previous bucket set and writes
// the newly computed ones (spec §4.J: "atomic replace of prior buckets").
func (e *Engine) ReplaceBuckets(ctx context.Context, buckets []types.GeoBucket) error {
	keys, err := e.store.Scan(ctx, fmt.Sprintf("%s:geo:%s:bucket*", e.prefix, e.table))
	if err != nil {
		return fmt.Errorf("scanning old buckets for %s: %w", e.table, err)
	}
	if len(keys) > 0 {
		e.store.Del(ctx, keys...)
	}
	for _, b := range buckets {
		if err := e.PersistBucket(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// IndexedPoint is one document enumerated from the coordinate index, with
// its decoded payload available so a bucket builder can pull a location
// name out of it (spec §4.J step 1: "enumerate all indexed (id, lat, lng)
// pairs").
type IndexedPoint struct {
	ID      string
	Lat     float64
	Lng     float64
	Payload map[string]any
}

// ListPoints enumerates every document currently in the table's coordinate
// index along with its decoded payload.
func (e *Engine) ListPoints(ctx context.Context) ([]IndexedPoint, error) {
	ids, err := e.store.Client().ZRange(ctx, e.mainKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing geo points for %s: %w", e.table, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	positions, err := e.store.Client().GeoPos(ctx, e.mainKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading positions for %s: %w", e.table, err)
	}
	points := make([]IndexedPoint, 0, len(ids))
	for i, id := range ids {
		if i >= len(positions) || positions[i] == nil {
			continue // a member present in the zset but missing a position; skip rather than fail the whole enumeration
		}
		payload, _ := e.fetchPayload(ctx, id)
		points = append(points, IndexedPoint{
			ID:      id,
			Lat:     positions[i].Latitude,
			Lng:     positions[i].Longitude,
			Payload: payload,
		})
	}
	return points, nil
}
