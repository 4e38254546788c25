// Package searchindex is the inverted-index full-text search engine
// (spec §4.F): per-table forward map {term -> sorted(docId, score)} and
// reverse map {docId -> set(term)}, backed by Redis sorted sets and sets.
package searchindex

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/cachestore"
	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/tokenizer"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// Config holds per-table inverted-index settings.
type Config struct {
	SearchableFields []string
	FieldBoosts      map[string]float64 // defaults to 1.0 for unlisted fields
	Tokenizer        tokenizer.Config
}

// Engine is the inverted index bound to one table.
type Engine struct {
	store  *cachestore.Store
	prefix string
	table  string
	cfg    Config
	tz     *tokenizer.Tokenizer
}

// New returns an Engine for table, using prefix as the key-space root
// (spec §6 key-space layout: "<prefix>:index:<table>:...").
func New(store *cachestore.Store, prefix, table string, cfg Config) *Engine {
	if cfg.FieldBoosts == nil {
		cfg.FieldBoosts = map[string]float64{}
	}
	return &Engine{
		store:  store,
		prefix: prefix,
		table:  table,
		cfg:    cfg,
		tz:     tokenizer.New(cfg.Tokenizer),
	}
}

func (e *Engine) wordKey(term string) string { return fmt.Sprintf("%s:index:%s:word:%s", e.prefix, e.table, term) }
func (e *Engine) docKey(docID string) string { return fmt.Sprintf("%s:index:%s:doc:%s", e.prefix, e.table, docID) }
func (e *Engine) metaKey() string            { return fmt.Sprintf("%s:index:%s:meta", e.prefix, e.table) }

func (e *Engine) boost(field string) float64 {
	if b, ok := e.cfg.FieldBoosts[field]; ok {
		return b
	}
	return 1.0
}

// BuildStats summarizes one buildIndex/rebuildIndex run.
type BuildStats struct {
	DocumentsIndexed int
	DocumentsSkipped int
	TotalTerms       int
	TotalTokens      int
	DurationMs       int64
}

// BuildIndex clears the prior index for this table and rebuilds it from
// documents. Each document with no extractable docId is skipped with a
// warning rather than aborting the whole build (spec §4.F, §7: per-document
// errors are skip-and-continue; only global failures abort).
func (e *Engine) BuildIndex(ctx context.Context, documents []map[string]any) (BuildStats, error) {
	start := nowFunc()

	if err := e.clearIndex(ctx); err != nil {
		return BuildStats{}, fmt.Errorf("clearing prior index for %s: %w", e.table, err)
	}

	stats := BuildStats{}
	allTerms := map[string]struct{}{}

	for _, doc := range documents {
		docID, ok := extractDocID(e.table, doc)
		if !ok {
			debug.Warnf("searchindex: table %s: skipping document with no extractable id", e.table)
			stats.DocumentsSkipped++
			continue
		}
		n, err := e.indexOneDocument(ctx, docID, doc, allTerms)
		if err != nil {
			debug.Warnf("searchindex: table %s: doc %s: %v", e.table, docID, err)
			stats.DocumentsSkipped++
			continue
		}
		stats.DocumentsIndexed++
		stats.TotalTokens += n
	}
	stats.TotalTerms = len(allTerms)
	stats.DurationMs = time.Since(start).Milliseconds()

	meta := types.IndexMeta{
		TotalDocuments:  stats.DocumentsIndexed,
		TotalTerms:      stats.TotalTerms,
		TotalTokens:      stats.TotalTokens,
		LastBuildTime:   nowFunc(),
		BuildDurationMs: stats.DurationMs,
		Fields:          e.cfg.SearchableFields,
	}
	e.persistMeta(ctx, meta)

	return stats, nil
}

// clearIndex deletes every word/doc/meta key for this table using scan-only
// enumeration, never a full-keyspace listing primitive (spec §4.C).
func (e *Engine) clearIndex(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:index:%s:*", e.prefix, e.table)
	keys, err := e.store.Scan(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		e.store.Del(ctx, keys...)
	}
	return nil
}

// indexOneDocument tokenizes doc's configured fields, merges term frequency
// per field, and writes per-term scores in one pipeline so the document's
// index entries appear atomically (spec §5: "pipeline-per-document batching
// to keep per-document atomicity").
func (e *Engine) indexOneDocument(ctx context.Context, docID string, doc map[string]any, allTerms map[string]struct{}) (int, error) {
	toks := e.tz.TokenizeRecord(doc, e.cfg.SearchableFields)
	if len(toks) == 0 {
		return 0, nil
	}

	// termFieldFreq[term][field] = occurrence count of term in that field.
	termFieldFreq := map[string]map[string]int{}
	for _, tok := range toks {
		if termFieldFreq[tok.Term] == nil {
			termFieldFreq[tok.Term] = map[string]int{}
		}
		termFieldFreq[tok.Term][tok.Field]++
	}

	pipe := e.store.Client().Pipeline()
	for term, fieldFreq := range termFieldFreq {
		var score float64
		for field, freq := range fieldFreq {
			score += float64(freq) * e.boost(field)
		}
		pipe.ZAdd(ctx, e.wordKey(term), redis.Z{Score: score, Member: docID})
		pipe.SAdd(ctx, e.docKey(docID), term)
		allTerms[term] = struct{}{}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("writing index entries: %w", err)
	}
	return len(toks), nil
}

// UpdateDocument re-indexes one document: delete-then-insert. The deletion
// phase consults the reverse mapping so it need not scan every term
// (spec §4.F).
func (e *Engine) UpdateDocument(ctx context.Context, docID string, data map[string]any) error {
	if err := e.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	allTerms := map[string]struct{}{}
	_, err := e.indexOneDocument(ctx, docID, data, allTerms)
	return err
}

// DeleteDocument removes docID from every term's forward mapping and deletes
// its reverse mapping entry (spec §4.F, §8 invariant 4).
func (e *Engine) DeleteDocument(ctx context.Context, docID string) error {
	terms, err := e.store.Client().SMembers(ctx, e.docKey(docID)).Result()
	if err != nil {
		return fmt.Errorf("reading reverse mapping for %s: %w", docID, err)
	}
	if len(terms) == 0 {
		e.store.Del(ctx, e.docKey(docID))
		return nil
	}
	pipe := e.store.Client().Pipeline()
	for _, term := range terms {
		pipe.ZRem(ctx, e.wordKey(term), docID)
	}
	pipe.Del(ctx, e.docKey(docID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting document %s: %w", docID, err)
	}
	return nil
}

// Hit is one scored search result.
type Hit struct {
	DocID string
	Score float64
}

// Search tokenizes query, collects unique terms, and returns the top-limit
// docIds. A single term reads directly from that term's ordered mapping; N
// terms compute the score-summed intersection via ZINTERSTORE into a
// uniquely-named temporary key that is always cleaned up, even on error
// (spec §4.F, §5).
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	toks := e.tz.Tokenize("query", query)
	termSet := map[string]struct{}{}
	for _, t := range toks {
		termSet[t.Term] = struct{}{}
	}
	if len(termSet) == 0 {
		return nil, nil
	}
	terms := make([]string, 0, len(termSet))
	for t := range termSet {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	if len(terms) == 1 {
		return e.topFromZSet(ctx, e.wordKey(terms[0]), limit)
	}

	tempKey := fmt.Sprintf("%s:index:%s:tmp:%s", e.prefix, e.table, uuid.NewString())
	keys := make([]string, len(terms))
	for i, t := range terms {
		keys[i] = e.wordKey(t)
	}

	defer func() {
		// guaranteed cleanup even on error (spec §5)
		e.store.Del(context.WithoutCancel(ctx), tempKey)
	}()

	if err := e.store.Client().ZInterStore(ctx, tempKey, &redis.ZStore{
		Keys:      keys,
		Aggregate: "SUM",
	}).Err(); err != nil {
		return nil, fmt.Errorf("intersecting terms for query %q: %w", query, err)
	}

	return e.topFromZSet(ctx, tempKey, limit)
}

func (e *Engine) topFromZSet(ctx context.Context, key string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	// Fetch extra so deterministic tie-breaking by docId can re-sort within
	// equal-score groups without losing members at the cut line.
	raw, err := e.store.Client().ZRevRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading scored results: %w", err)
	}
	hits := make([]Hit, 0, len(raw))
	for _, z := range raw {
		hits = append(hits, Hit{DocID: fmt.Sprint(z.Member), Score: z.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (e *Engine) persistMeta(ctx context.Context, meta types.IndexMeta) {
	fields := map[string]interface{}{
		"totalDocuments":  meta.TotalDocuments,
		"totalTerms":      meta.TotalTerms,
		"totalTokens":     meta.TotalTokens,
		"lastBuildTime":   meta.LastBuildTime.Format(time.RFC3339),
		"buildDurationMs": meta.BuildDurationMs,
	}
	if err := e.store.Client().HSet(ctx, e.metaKey(), fields).Err(); err != nil {
		debug.Logf("searchindex: table %s: failed to persist meta: %v", e.table, err)
	}
}

// Meta returns the persisted build-statistics record, if any.
func (e *Engine) Meta(ctx context.Context) (types.IndexMeta, error) {
	m, err := e.store.Client().HGetAll(ctx, e.metaKey()).Result()
	if err != nil {
		return types.IndexMeta{}, err
	}
	return parseMeta(m), nil
}

// nowFunc is overridable in tests.
var nowFunc = time.Now
