// Package geobucket groups a table's indexed geo documents into spatial
// clusters: a lat/lng grid partition, subdivided by k-means where a cell is
// too large, yielding buckets ready for searchByBucket lookups (spec §4.J).
package geobucket

import (
	"math"
	"sort"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// Options configures one buildBuckets run.
type Options struct {
	TargetBucketSize int
	GridSizeKm       float64
	MinBucketSize    int
}

func (o Options) withDefaults() Options {
	if o.TargetBucketSize <= 0 {
		o.TargetBucketSize = 50
	}
	if o.GridSizeKm <= 0 {
		o.GridSizeKm = 10
	}
	if o.MinBucketSize <= 0 {
		o.MinBucketSize = 3
	}
	return o
}

// Point is one geo document as seen by the bucket builder.
type Point struct {
	ID           string
	Lat          float64
	Lng          float64
	LocationName string
}

// kmPerDegree approximates the length of one degree of latitude/longitude in
// kilometers, matching the spec's "degrees-per-km approximation".
const kmPerDegree = 111.0

// Build partitions points into a lat/lng grid, subdivides oversized cells by
// k-means, and emits one types.GeoBucket per resulting cluster with at least
// MinBucketSize members (spec §4.J).
func Build(points []Point, opts Options) []types.GeoBucket {
	opts = opts.withDefaults()

	finite := make([]Point, 0, len(points))
	for _, p := range points {
		if isFinite(p.Lat) && isFinite(p.Lng) {
			finite = append(finite, p)
		}
	}

	cells := partitionGrid(finite, opts.GridSizeKm)

	// deterministic iteration order for reproducible bucket IDs across runs
	cellKeys := make([]gridKey, 0, len(cells))
	for k := range cells {
		cellKeys = append(cellKeys, k)
	}
	sort.Slice(cellKeys, func(i, j int) bool {
		if cellKeys[i].latCell != cellKeys[j].latCell {
			return cellKeys[i].latCell < cellKeys[j].latCell
		}
		return cellKeys[i].lngCell < cellKeys[j].lngCell
	})

	var buckets []types.GeoBucket
	bucketSeq := 0
	for _, key := range cellKeys {
		members := cells[key]
		if len(members) < opts.MinBucketSize {
			continue
		}
		var clusters [][]Point
		if len(members) < 3*opts.TargetBucketSize {
			clusters = [][]Point{members}
		} else {
			k := (len(members) + opts.TargetBucketSize - 1) / opts.TargetBucketSize
			clusters = kmeans(members, k)
		}
		for _, cluster := range clusters {
			if len(cluster) < opts.MinBucketSize {
				continue
			}
			buckets = append(buckets, emitBucket(bucketSeq, cluster))
			bucketSeq++
		}
	}
	return buckets
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type gridKey struct {
	latCell, lngCell int
}

// partitionGrid buckets points into cells of side gridSizeKm using the
// degrees-per-km approximation (spec §4.J step 2).
func partitionGrid(points []Point, gridSizeKm float64) map[gridKey][]Point {
	cellDeg := gridSizeKm / kmPerDegree
	cells := map[gridKey][]Point{}
	for _, p := range points {
		key := gridKey{
			latCell: int(math.Floor(p.Lat / cellDeg)),
			lngCell: int(math.Floor(p.Lng / cellDeg)),
		}
		cells[key] = append(cells[key], p)
	}
	return cells
}

// kmeans clusters points into k groups, capped at 20 iterations with a
// 1e-4 degree convergence threshold per centroid (spec §4.J step 3, §8
// invariant 7). A cluster that goes empty in a given iteration keeps its
// previous centroid rather than re-centroiding on nothing.
func kmeans(points []Point, k int) [][]Point {
	if k <= 1 || k >= len(points) {
		return [][]Point{points}
	}

	centroids := make([]Point, k)
	for i := 0; i < k; i++ {
		centroids[i] = points[(i*len(points))/k]
	}

	const maxIterations = 20
	const convergenceThresholdDeg = 1e-4

	var assignment []int
	for iter := 0; iter < maxIterations; iter++ {
		assignment = make([]int, len(points))
		for i, p := range points {
			assignment[i] = nearestCentroid(p, centroids)
		}

		newCentroids := make([]Point, k)
		counts := make([]int, k)
		sums := make([][2]float64, k)
		for i, p := range points {
			c := assignment[i]
			sums[c][0] += p.Lat
			sums[c][1] += p.Lng
			counts[c]++
		}

		maxShift := 0.0
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				newCentroids[c] = centroids[c] // skip recentroiding empty clusters
				continue
			}
			newCentroids[c] = Point{
				Lat: sums[c][0] / float64(counts[c]),
				Lng: sums[c][1] / float64(counts[c]),
			}
			shift := haversineDeg(centroids[c].Lat, centroids[c].Lng, newCentroids[c].Lat, newCentroids[c].Lng)
			if shift > maxShift {
				maxShift = shift
			}
		}
		centroids = newCentroids
		if maxShift < convergenceThresholdDeg {
			break
		}
	}

	clusters := make([][]Point, k)
	for i, p := range points {
		c := assignment[i]
		clusters[c] = append(clusters[c], p)
	}
	return clusters
}

// haversineDeg is a cheap planar approximation of the distance between two
// centroids expressed in degrees, sufficient for the convergence check.
func haversineDeg(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := lat1 - lat2
	dLng := lng1 - lng2
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

func nearestCentroid(p Point, centroids []Point) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		d := HaversineKm(p.Lat, p.Lng, c.Lat, c.Lng)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// HaversineKm is the great-circle distance between two lat/lng points in
// kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// emitBucket computes a cluster's center, buffered radius, bounds and
// majority location name (spec §4.J step 4).
func emitBucket(seq int, cluster []Point) types.GeoBucket {
	var sumLat, sumLng float64
	for _, p := range cluster {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	center := Point{
		Lat: sumLat / float64(len(cluster)),
		Lng: sumLng / float64(len(cluster)),
	}

	maxDist := 0.0
	bounds := types.GeoBounds{NELat: -math.MaxFloat64, NELng: -math.MaxFloat64, SWLat: math.MaxFloat64, SWLng: math.MaxFloat64}
	members := make([]string, 0, len(cluster))
	nameCounts := map[string]int{}
	nameFirstSeen := map[string]int{}
	for i, p := range cluster {
		members = append(members, p.ID)
		d := HaversineKm(center.Lat, center.Lng, p.Lat, p.Lng)
		if d > maxDist {
			maxDist = d
		}
		if p.Lat > bounds.NELat {
			bounds.NELat = p.Lat
		}
		if p.Lng > bounds.NELng {
			bounds.NELng = p.Lng
		}
		if p.Lat < bounds.SWLat {
			bounds.SWLat = p.Lat
		}
		if p.Lng < bounds.SWLng {
			bounds.SWLng = p.Lng
		}
		if p.LocationName != "" {
			nameCounts[p.LocationName]++
			if _, seen := nameFirstSeen[p.LocationName]; !seen {
				nameFirstSeen[p.LocationName] = i
			}
		}
	}

	return types.GeoBucket{
		ID:           bucketID(seq),
		CenterLat:    center.Lat,
		CenterLng:    center.Lng,
		Radius:       types.Radius{Value: maxDist * 1.1, Unit: types.UnitKm},
		Bounds:       &bounds,
		LocationName: majorityName(nameCounts, nameFirstSeen),
		Members:      members,
	}
}

func majorityName(counts map[string]int, firstSeen map[string]int) string {
	best := ""
	bestCount := 0
	bestFirst := int(^uint(0) >> 1)
	for name, count := range counts {
		if count > bestCount || (count == bestCount && firstSeen[name] < bestFirst) {
			best, bestCount, bestFirst = name, count, firstSeen[name]
		}
	}
	return best
}

func bucketID(seq int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	if seq == 0 {
		return "bucket-" + string(alphabet[0])
	}
	buf := make([]byte, 0, 8)
	n := seq
	for n > 0 {
		buf = append([]byte{alphabet[n%len(alphabet)]}, buf...)
		n /= len(alphabet)
	}
	return "bucket-" + string(buf)
}
