// Package stats tracks per-fingerprint access counts and a running average
// execution time, in memory, with an optional fire-and-forget mirror to a
// persistent table for cross-restart ranking (spec §4.K).
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// Mirror is the persistence side-channel a Tracker writes through to. It is
// intentionally narrow: upsert is the only operation the tracker needs, and
// failures are never surfaced to the caller (spec §7: "stats tracking errors
// always silently dropped").
type Mirror interface {
	Upsert(stat types.QueryStat)
}

// Tracker is safe for concurrent use; every record access is a short
// critical section (spec §5: "per-key update discipline").
type Tracker struct {
	mu       sync.Mutex
	records  map[string]*types.QueryStat
	mirror   Mirror
	maxAge   time.Duration
	nowFunc  func() time.Time
}

// New returns a Tracker. A nil mirror disables persistent mirroring. maxAge
// of zero disables age-based exclusion from ranking queries.
func New(mirror Mirror, maxAge time.Duration) *Tracker {
	return &Tracker{
		records: make(map[string]*types.QueryStat),
		mirror:  mirror,
		maxAge:  maxAge,
		nowFunc: time.Now,
	}
}

// Record logs one access of fingerprint, updating accessCount and the
// incremental mean of execMs (spec §4.K, §8 invariant 8):
//
//	avg ← avg + (sample − avg) / accessCount
func (t *Tracker) Record(table string, op types.OpKind, fingerprint, filtersDigest string, execMs float64) {
	now := t.nowFunc()

	t.mu.Lock()
	rec, ok := t.records[fingerprint]
	if !ok {
		rec = &types.QueryStat{
			Fingerprint:   fingerprint,
			Table:         table,
			OpKind:        op,
			FiltersDigest: filtersDigest,
		}
		t.records[fingerprint] = rec
	}
	rec.AccessCount++
	rec.AvgExecMs += (execMs - rec.AvgExecMs) / float64(rec.AccessCount)
	rec.LastAccessTime = now
	snapshot := *rec
	t.mu.Unlock()

	if t.mirror != nil {
		t.mirror.Upsert(snapshot)
	}
}

// MarkWarmed updates a fingerprint's lastWarmTime after the auto-warmer
// successfully re-executes it.
func (t *Tracker) MarkWarmed(fingerprint string, when time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[fingerprint]; ok {
		rec.LastWarmTime = when
	}
}

// Get returns a copy of the tracked record for fingerprint, if any.
func (t *Tracker) Get(fingerprint string) (types.QueryStat, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[fingerprint]
	if !ok {
		return types.QueryStat{}, false
	}
	return *rec, true
}

// GetTopQueries returns up to limit records for table with accessCount >=
// minAccessCount, excluding records older than maxAge (if configured),
// sorted by accessCount desc, then avgExecMs desc (slower first) among ties,
// since warming slower queries yields larger wins.
func (t *Tracker) GetTopQueries(table string, limit, minAccessCount int) []types.QueryStat {
	now := t.nowFunc()

	t.mu.Lock()
	candidates := make([]types.QueryStat, 0, len(t.records))
	for _, rec := range t.records {
		if rec.Table != table || rec.AccessCount < int64(minAccessCount) {
			continue
		}
		if t.maxAge > 0 && now.Sub(rec.LastAccessTime) > t.maxAge {
			continue
		}
		candidates = append(candidates, *rec)
	}
	t.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].AccessCount != candidates[j].AccessCount {
			return candidates[i].AccessCount > candidates[j].AccessCount
		}
		return candidates[i].AvgExecMs > candidates[j].AvgExecMs
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
