// Package statsdb is the persistent mirror for the query-stats tracker
// (spec §4.K, §6 "Query-stats table"): an idempotently created MySQL/MariaDB
// table that survives process restarts, upserted fire-and-forget.
package statsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// DefaultTableName is used when configuration leaves it unset.
const DefaultTableName = "__sqldb_query_stats"

// Mirror is a statsdb-backed stats.Mirror.
type Mirror struct {
	db    *sql.DB
	table string
}

// New returns a Mirror bound to table (DefaultTableName if empty). Callers
// must run EnsureTable once at startup.
func New(db *sql.DB, table string) *Mirror {
	if table == "" {
		table = DefaultTableName
	}
	return &Mirror{db: db, table: table}
}

// EnsureTable issues the idempotent CREATE TABLE IF NOT EXISTS for the
// mirror, with indexes on (tableName, accessCount desc) and
// (lastAccessedAt) per spec §6.
func (m *Mirror) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		query_id VARCHAR(128) NOT NULL PRIMARY KEY,
		table_name VARCHAR(128) NOT NULL,
		query_type VARCHAR(32) NOT NULL,
		filters TEXT,
		access_count BIGINT NOT NULL DEFAULT 0,
		last_accessed_at DATETIME NOT NULL,
		avg_execution_time DOUBLE NOT NULL DEFAULT 0,
		last_warming_time DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_%s_table_access (table_name, access_count DESC),
		INDEX idx_%s_last_access (last_accessed_at)
	)`, quoteIdent(m.table), m.table, m.table)

	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating stats mirror table %s: %w", m.table, err)
	}
	return nil
}

// Upsert writes or updates one QueryStat row. Failures are logged and
// swallowed: the mirror is a best-effort cache of the in-memory tracker, not
// a source of truth (spec §7).
func (m *Mirror) Upsert(stat types.QueryStat) {
	query := fmt.Sprintf(`INSERT INTO %s
		(query_id, table_name, query_type, filters, access_count, last_accessed_at, avg_execution_time, last_warming_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			access_count = VALUES(access_count),
			last_accessed_at = VALUES(last_accessed_at),
			avg_execution_time = VALUES(avg_execution_time),
			last_warming_time = VALUES(last_warming_time)`, quoteIdent(m.table))

	var lastWarm any
	if !stat.LastWarmTime.IsZero() {
		lastWarm = stat.LastWarmTime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.db.ExecContext(ctx, query,
		stat.Fingerprint, stat.Table, string(stat.OpKind), stat.FiltersDigest,
		stat.AccessCount, stat.LastAccessTime, stat.AvgExecMs, lastWarm,
	); err != nil {
		debug.Logf("statsdb: upsert failed for fingerprint %s: %v", stat.Fingerprint, err)
	}
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}
