package searchindex

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/cachestore"
	"github.com/erbhushanpawar/sqldb-go/internal/tokenizer"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := cachestore.New(client)
	return New(store, "app", "services", cfg), mr
}

func searchCorpusConfig() Config {
	return Config{
		SearchableFields: []string{"title", "description"},
		FieldBoosts:      map[string]float64{"title": 3.0, "description": 1.0},
		Tokenizer: tokenizer.Config{
			Variant:       tokenizer.VariantStemming,
			MinWordLength: 2,
		},
	}
}

func buildS2Corpus(t *testing.T, e *Engine) {
	t.Helper()
	docs := []map[string]any{
		{"id": "d1", "title": "Emergency Plumbing Repair", "description": "fix leaks"},
		{"id": "d2", "title": "Electrical Wiring", "description": "emergency repairs"},
	}
	if _, err := e.BuildIndex(context.Background(), docs); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
}

// S2 — single-term search: d1's title match (boost 3.0) should outrank d2's
// description match (boost 1.0).
func TestSearchSingleTermRanksByBoostedScore(t *testing.T) {
	e, _ := newTestEngine(t, searchCorpusConfig())
	buildS2Corpus(t, e)

	hits, err := e.Search(context.Background(), "emergency", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %v", hits)
	}
	if hits[0].DocID != "d1" {
		t.Fatalf("expected d1 (title boost) to rank first, got %+v", hits)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("expected d1's score to exceed d2's, got %+v", hits)
	}
}

// S3 — multi-term intersection returns only documents containing all terms.
func TestSearchMultiTermIntersection(t *testing.T) {
	e, _ := newTestEngine(t, searchCorpusConfig())
	buildS2Corpus(t, e)

	hits, err := e.Search(context.Background(), "emergency plumbing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != "d1" {
		t.Fatalf("expected only d1, got %+v", hits)
	}
}

func TestSingleTermReturnsAllMatchingDocs(t *testing.T) {
	e, _ := newTestEngine(t, Config{SearchableFields: []string{"title"}})
	docs := []map[string]any{
		{"id": "a", "title": "red car"},
		{"id": "b", "title": "red bike"},
		{"id": "c", "title": "blue car"},
	}
	if _, err := e.BuildIndex(context.Background(), docs); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	hits, err := e.Search(context.Background(), "red", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 docs containing 'red', got %+v", hits)
	}
}

func TestDeleteDocumentRemovesFromForwardAndReverseMaps(t *testing.T) {
	e, mr := newTestEngine(t, Config{SearchableFields: []string{"title"}})
	docs := []map[string]any{{"id": "a", "title": "hello world"}}
	if _, err := e.BuildIndex(context.Background(), docs); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if err := e.DeleteDocument(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	if mr.Exists(e.docKey("a")) {
		t.Fatalf("expected reverse mapping gone")
	}
	if mr.Exists(e.wordKey("hello")) {
		t.Fatalf("expected forward mapping for 'hello' gone")
	}
}

func TestBuildIndexSkipsDocumentWithNoID(t *testing.T) {
	e, _ := newTestEngine(t, Config{SearchableFields: []string{"title"}})
	docs := []map[string]any{
		{"title": "no id here"},
		{"id": "ok", "title": "has id"},
	}
	stats, err := e.BuildIndex(context.Background(), docs)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if stats.DocumentsSkipped != 1 || stats.DocumentsIndexed != 1 {
		t.Fatalf("expected 1 skipped, 1 indexed, got %+v", stats)
	}
}

func TestUpdateDocumentReplacesTerms(t *testing.T) {
	e, _ := newTestEngine(t, Config{SearchableFields: []string{"title"}})
	docs := []map[string]any{{"id": "a", "title": "old words"}}
	if _, err := e.BuildIndex(context.Background(), docs); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if err := e.UpdateDocument(context.Background(), "a", map[string]any{"id": "a", "title": "new terms"}); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	if hits, _ := e.Search(context.Background(), "old", 10); len(hits) != 0 {
		t.Fatalf("expected old term no longer indexed, got %+v", hits)
	}
	if hits, _ := e.Search(context.Background(), "new", 10); len(hits) != 1 {
		t.Fatalf("expected new term indexed, got %+v", hits)
	}
}

func TestRebuildIndexIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, Config{SearchableFields: []string{"title"}})
	docs := []map[string]any{
		{"id": "a", "title": "alpha beta"},
		{"id": "b", "title": "beta gamma"},
	}
	s1, err := e.BuildIndex(context.Background(), docs)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	first, _ := e.Search(context.Background(), "beta", 10)

	s2, err := e.BuildIndex(context.Background(), docs)
	if err != nil {
		t.Fatalf("rebuild BuildIndex: %v", err)
	}
	second, _ := e.Search(context.Background(), "beta", 10)

	if s1.DocumentsIndexed != s2.DocumentsIndexed || s1.TotalTerms != s2.TotalTerms {
		t.Fatalf("expected identical stats across rebuild, got %+v vs %+v", s1, s2)
	}
	if len(first) != len(second) {
		t.Fatalf("expected identical search results across rebuild")
	}
}
