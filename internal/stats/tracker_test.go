package stats

import (
	"testing"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

type fakeMirror struct {
	upserts []types.QueryStat
}

func (f *fakeMirror) Upsert(stat types.QueryStat) {
	f.upserts = append(f.upserts, stat)
}

func TestRecordIncrementalMeanMatchesDirectAverage(t *testing.T) {
	tr := New(nil, 0)
	samples := []float64{10, 20, 15, 40, 5}

	for _, s := range samples {
		tr.Record("orders", types.OpFindMany, "fp1", "digest", s)
	}

	rec, ok := tr.Get("fp1")
	if !ok {
		t.Fatalf("expected record for fp1")
	}
	if rec.AccessCount != int64(len(samples)) {
		t.Fatalf("expected accessCount=%d, got %d", len(samples), rec.AccessCount)
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	want := sum / float64(len(samples))
	if diff := rec.AvgExecMs - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected avgExecMs=%v, got %v", want, rec.AvgExecMs)
	}
}

func TestRecordMirrorsUpsertOnEveryAccess(t *testing.T) {
	mirror := &fakeMirror{}
	tr := New(mirror, 0)
	tr.Record("orders", types.OpFindMany, "fp1", "digest", 10)
	tr.Record("orders", types.OpFindMany, "fp1", "digest", 20)
	if len(mirror.upserts) != 2 {
		t.Fatalf("expected 2 mirror upserts, got %d", len(mirror.upserts))
	}
}

func TestGetTopQueriesOrdersByAccessCountThenSlowerFirst(t *testing.T) {
	tr := New(nil, 0)
	for i := 0; i < 5; i++ {
		tr.Record("orders", types.OpFindMany, "fp-hot", "d1", 5)
	}
	for i := 0; i < 5; i++ {
		tr.Record("orders", types.OpFindMany, "fp-hot-slow", "d2", 50)
	}
	for i := 0; i < 2; i++ {
		tr.Record("orders", types.OpCount, "fp-cold", "d3", 1)
	}

	top := tr.GetTopQueries("orders", 10, 2)
	if len(top) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(top))
	}
	if top[0].Fingerprint != "fp-hot" && top[1].Fingerprint != "fp-hot" {
		t.Fatalf("expected fp-hot and fp-hot-slow tied at accessCount=5 to rank above fp-cold, got %+v", top)
	}
	// among the accessCount=5 tie, the slower one (fp-hot-slow) ranks first
	if top[0].Fingerprint != "fp-hot-slow" {
		t.Fatalf("expected slower query first among ties, got %+v", top[0])
	}
}

func TestGetTopQueriesFiltersByMinAccessCount(t *testing.T) {
	tr := New(nil, 0)
	tr.Record("orders", types.OpFindMany, "fp1", "d1", 10)
	top := tr.GetTopQueries("orders", 10, 2)
	if len(top) != 0 {
		t.Fatalf("expected no candidates below minAccessCount, got %+v", top)
	}
}

func TestGetTopQueriesExcludesStaleRecords(t *testing.T) {
	tr := New(nil, time.Minute)
	tr.nowFunc = func() time.Time { return time.Unix(0, 0) }
	tr.Record("orders", types.OpFindMany, "fp1", "d1", 10)

	tr.nowFunc = func() time.Time { return time.Unix(0, 0).Add(2 * time.Minute) }
	top := tr.GetTopQueries("orders", 10, 1)
	if len(top) != 0 {
		t.Fatalf("expected stale record excluded from ranking, got %+v", top)
	}
}

func TestMarkWarmedUpdatesLastWarmTime(t *testing.T) {
	tr := New(nil, 0)
	tr.Record("orders", types.OpFindMany, "fp1", "d1", 10)
	when := time.Now()
	tr.MarkWarmed("fp1", when)
	rec, _ := tr.Get("fp1")
	if !rec.LastWarmTime.Equal(when) {
		t.Fatalf("expected lastWarmTime=%v, got %v", when, rec.LastWarmTime)
	}
}
