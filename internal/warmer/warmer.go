// Package warmer implements the auto-warming loop (spec §4.L): a scheduled
// cycle that re-executes a table's hottest queries against a secondary
// connection pool and repopulates the cache before they go cold.
package warmer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// ErrPoolExhausted signals that the secondary (warming) connection pool has
// no capacity left. Unlike a per-query failure, this aborts the rest of the
// cycle rather than being counted and skipped (spec §7).
var ErrPoolExhausted = errors.New("warmer: secondary pool exhausted")

// Executor re-issues a tracked query and returns its execution time. Tables
// register one via RegisterTable; the warmer never constructs queries itself.
type Executor func(ctx context.Context, stat types.QueryStat) (execMs float64, cacheKey string, result []byte, err error)

// CacheWriter persists a warmed result under its fingerprint with a
// warming-owned (typically shorter) ttl.
type CacheWriter func(ctx context.Context, key string, value []byte, ttl time.Duration)

// StatsSource supplies the top-N candidates for a table and records warm
// completion.
type StatsSource interface {
	GetTopQueries(table string, limit, minAccessCount int) []types.QueryStat
	MarkWarmed(fingerprint string, when time.Time)
}

// Config controls one Warmer's schedule and per-cycle limits.
type Config struct {
	Interval         time.Duration
	TopQueriesPerTable int
	MinAccessCount   int
	WarmTTL          time.Duration
	OnComplete       func(Report)
	OnError          func(error)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.TopQueriesPerTable <= 0 {
		c.TopQueriesPerTable = 10
	}
	if c.WarmTTL <= 0 {
		c.WarmTTL = 30 * time.Second
	}
	return c
}

// Report is the aggregate outcome of one warm cycle.
type Report struct {
	QueriesWarmed  int
	QueriesFailed  int
	TotalMs        float64
	CacheHitBefore float64
	CacheHitAfter  float64
}

// Warmer owns the scheduled loop. It is safe for concurrent Start/Stop/
// TriggerCycle calls.
type Warmer struct {
	cfg     Config
	stats   StatsSource
	write   CacheWriter
	tables  []string
	execOf  map[string]Executor

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	lastReport Report
}

// New returns a Warmer. Tables are registered via RegisterTable before
// Start; the warmer's cycle enumerates whatever has been registered at the
// time each cycle runs.
func New(cfg Config, stats StatsSource, write CacheWriter) *Warmer {
	return &Warmer{
		cfg:    cfg.withDefaults(),
		stats:  stats,
		write:  write,
		execOf: make(map[string]Executor),
	}
}

// RegisterTable binds an Executor for table's tracked queries.
func (w *Warmer) RegisterTable(table string, exec Executor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.execOf[table]; !ok {
		w.tables = append(w.tables, table)
	}
	w.execOf[table] = exec
}

// Start runs an initial warm cycle synchronously, then schedules periodic
// cycles at cfg.Interval until Stop is called.
func (w *Warmer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.runCycle(ctx)

	go func() {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runCycle(ctx)
			}
		}
	}()
}

// Stop cancels the periodic schedule. A cycle already in flight completes.
func (w *Warmer) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// TriggerCycle runs one cycle immediately, returning its report. If a cycle
// is already running, it returns the previous cycle's report without
// starting a new one (spec §4.L: "concurrency guard").
func (w *Warmer) TriggerCycle(ctx context.Context) Report {
	return w.runCycle(ctx)
}

func (w *Warmer) runCycle(ctx context.Context) Report {
	if !w.running.CompareAndSwap(false, true) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.lastReport
	}
	defer w.running.Store(false)

	w.mu.Lock()
	tables := append([]string(nil), w.tables...)
	w.mu.Unlock()

	report := Report{}
	for _, table := range tables {
		w.mu.Lock()
		exec := w.execOf[table]
		w.mu.Unlock()
		if exec == nil {
			continue
		}

		candidates := w.stats.GetTopQueries(table, w.cfg.TopQueriesPerTable, w.cfg.MinAccessCount)
		for _, stat := range candidates {
			execMs, cacheKey, result, err := exec(ctx, stat)
			if errors.Is(err, ErrPoolExhausted) {
				if w.cfg.OnError != nil {
					w.cfg.OnError(err)
				}
				w.mu.Lock()
				w.lastReport = report
				w.mu.Unlock()
				return report
			}
			if err != nil {
				report.QueriesFailed++
				debug.Logf("warmer: table %s fingerprint %s: %v", table, stat.Fingerprint, err)
				continue
			}
			report.QueriesWarmed++
			report.TotalMs += execMs
			if w.write != nil && cacheKey != "" {
				w.write(ctx, cacheKey, result, w.cfg.WarmTTL)
			}
			w.stats.MarkWarmed(stat.Fingerprint, time.Now())
		}
	}

	w.mu.Lock()
	w.lastReport = report
	w.mu.Unlock()

	if w.cfg.OnComplete != nil {
		w.cfg.OnComplete(report)
	}
	return report
}
