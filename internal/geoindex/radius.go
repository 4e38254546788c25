package geoindex

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RadiusOptions configures a searchByRadius call (spec §4.I).
type RadiusOptions struct {
	MaxRange       float64 // km; if set and > Radius, elastic expansion may apply
	MinResults     int
	Limit          int
	SortByDistance bool
	IncludeDistance bool
}

// RadiusHit is one scored, optionally distance-annotated search result.
type RadiusHit struct {
	DocID          string
	DistanceKm     float64
	RelevanceScore float64
	Payload        map[string]any
}

// SearchByRadius implements spec §4.I.searchByRadius:
//  1. query the coordinate index within radius, ascending by distance;
//  2. if fewer than MinResults came back and MaxRange > radius, expand the
//     query radius step-wise (doubling each step, capped at MaxRange),
//     re-querying after each step and stopping as soon as MinResults is met
//     or MaxRange is reached — elastic expansion grows only as far as it has
//     to, so a doc just past the stopping radius is never pulled in;
//  3. for each hit, fetch the payload and compute a base distance score,
//     applying a 0.7 penalty to hits beyond the original radius when
//     expansion occurred;
//  4. apply distance-boost tiers;
//  5. optionally include distance; return up to Limit.
func (e *Engine) SearchByRadius(ctx context.Context, lat, lng, radiusKm float64, opts RadiusOptions) ([]RadiusHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	queryRadius := radiusKm
	results, err := e.geoRadiusQuery(ctx, lat, lng, queryRadius, limit)
	if err != nil {
		return nil, err
	}

	expanded := false
	if len(results) < opts.MinResults && opts.MaxRange > 0 && opts.MaxRange > radiusKm {
		step := queryRadius
		if step <= 0 {
			step = 1
		}
		for len(results) < opts.MinResults && queryRadius < opts.MaxRange {
			queryRadius += step
			if queryRadius > opts.MaxRange {
				queryRadius = opts.MaxRange
			}
			results, err = e.geoRadiusQuery(ctx, lat, lng, queryRadius, limit)
			if err != nil {
				return nil, err
			}
			expanded = true
			step *= 2
		}
	}

	maxDistance := queryRadius
	hits := make([]RadiusHit, 0, len(results))
	for _, r := range results {
		payload, _ := e.fetchPayload(ctx, r.Name)
		base := 1 - r.Dist/maxDistance
		if base < 0 {
			base = 0
		}
		if expanded && r.Dist > radiusKm {
			base *= expansionPenalty
		}
		boost := e.distanceBoostFor(r.Dist)
		hit := RadiusHit{
			DocID:          r.Name,
			RelevanceScore: base * boost,
			Payload:        payload,
		}
		if opts.IncludeDistance {
			hit.DistanceKm = r.Dist
		}
		hits = append(hits, hit)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// expansionPenalty is applied to hits beyond the originally-requested radius
// when elastic range expansion kicked in (spec §4.I, §9: tunable constant).
const expansionPenalty = 0.7

func (e *Engine) distanceBoostFor(distKm float64) float64 {
	boost := 1.0
	for _, tier := range e.cfg.DistanceBoost {
		if distKm <= tier.ThresholdKm && tier.Boost > boost {
			boost = tier.Boost
		}
	}
	return boost
}

func (e *Engine) geoRadiusQuery(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redis.GeoLocation, error) {
	res, err := e.store.Client().GeoRadius(ctx, e.mainKey(), lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: false,
		WithDist:  true,
		Sort:      "ASC",
		Count:     limit * 4, // over-fetch so MinResults/expansion logic has real signal
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius query on %s: %w", e.table, err)
	}
	return res, nil
}

// SearchByBucket fetches bucket metadata and delegates to SearchByRadius
// using the bucket's center and radius (spec §4.I).
func (e *Engine) SearchByBucket(ctx context.Context, bucketID string, limit int) ([]RadiusHit, error) {
	meta, ok, err := e.store.Get(ctx, e.bucketDataKey(bucketID))
	if err != nil {
		return nil, fmt.Errorf("fetching bucket %s: %w", bucketID, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s not found", bucketID)
	}
	bucket, err := decodeBucket(meta)
	if err != nil {
		return nil, fmt.Errorf("decoding bucket %s: %w", bucketID, err)
	}
	radiusKm := bucket.Radius.Value
	if bucket.Radius.Unit == "mi" {
		radiusKm = milesToKm(radiusKm)
	}
	return e.SearchByRadius(ctx, bucket.CenterLat, bucket.CenterLng, radiusKm, RadiusOptions{Limit: limit, SortByDistance: true})
}

// SearchByLocationName normalizes name and delegates to SearchByRadius (when
// coordinates resolved) or SearchByBucket (when only a bucket resolved).
// An unresolvable name with neither coordinates nor a bucket fails with an
// explicit error (spec §4.I, §7).
func (e *Engine) SearchByLocationName(ctx context.Context, name string, opts RadiusOptions) ([]RadiusHit, error) {
	if e.normalizer == nil {
		return nil, fmt.Errorf("geo normalizer not configured for table %s", e.table)
	}
	canon := e.normalizer.Normalize(name)
	switch {
	case canon.HasCoord:
		radius := e.cfg.DefaultRadius
		if radius <= 0 {
			radius = 10
		}
		return e.SearchByRadius(ctx, canon.Lat, canon.Lng, radius, opts)
	case canon.BucketID != "":
		return e.SearchByBucket(ctx, canon.BucketID, opts.Limit)
	default:
		return nil, fmt.Errorf("unknown location: %q", name)
	}
}

func milesToKm(mi float64) float64 { return mi * 1.60934 }
