// Package sqlschema discovers table shapes and foreign-key relationships
// from MySQL/MariaDB information_schema tables (spec §6 "Database"),
// grounded on the same information_schema-query idiom the teacher's
// migration helpers use for idempotent DDL checks.
package sqlschema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erbhushanpawar/sqldb-go/internal/debug"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// Discoverer reads schema metadata for a single database/schema name.
type Discoverer struct {
	db     *sql.DB
	schema string
}

// New returns a Discoverer scoped to schema (the MySQL "database" name).
func New(db *sql.DB, schema string) *Discoverer {
	return &Discoverer{db: db, schema: schema}
}

// Tables lists base table names in the schema.
func (d *Discoverer) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, d.schema)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableMeta discovers one table's columns, key roles, and primary key.
func (d *Discoverer) TableMeta(ctx context.Context, table string) (types.TableMeta, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.extra,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			COALESCE(k.key_role, 'none') AS key_role
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT
				kcu.column_name,
				CASE
					WHEN tc.constraint_type = 'PRIMARY KEY' THEN 'primary'
					WHEN tc.constraint_type = 'UNIQUE' THEN 'unique'
					ELSE 'index'
				END AS key_role
			FROM information_schema.key_column_usage kcu
			JOIN information_schema.table_constraints tc
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE kcu.table_schema = ? AND kcu.table_name = ?
		) k ON k.column_name = c.column_name
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position`,
		d.schema, table, d.schema, table)
	if err != nil {
		return types.TableMeta{}, fmt.Errorf("discovering columns for %s: %w", table, err)
	}
	defer rows.Close()

	meta := types.TableMeta{Name: table}
	for rows.Next() {
		var (
			name, dataType, nullable, extra, keyRole string
			def                                      sql.NullString
			charMaxLen, numPrecision, numScale        sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &nullable, &def, &extra, &charMaxLen, &numPrecision, &numScale, &keyRole); err != nil {
			return types.TableMeta{}, fmt.Errorf("scanning column for %s: %w", table, err)
		}

		col := types.ColumnMeta{
			Name:          name,
			SemanticType:  dataType,
			Nullable:      nullable == "YES",
			KeyRole:       types.KeyRole(keyRole),
			AutoGenerated: extra == "auto_increment",
		}
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		if charMaxLen.Valid {
			v := charMaxLen.Int64
			col.CharMaxLength = &v
		}
		if numPrecision.Valid {
			v := numPrecision.Int64
			col.NumericPrecision = &v
		}
		if numScale.Valid {
			v := numScale.Int64
			col.NumericScale = &v
		}
		meta.Columns = append(meta.Columns, col)
		if col.KeyRole == types.KeyRolePrimary && meta.PrimaryKey == "" {
			meta.PrimaryKey = col.Name
		}
	}
	return meta, rows.Err()
}

// Relationships discovers foreign-key edges across the whole schema by
// joining referential_constraints to key_column_usage for FK direction and
// ON DELETE/ON UPDATE actions. FK targets pointing at tables outside
// knownTables are dropped with a warning (spec §3 invariant: "discovery
// never invents columns; unknown FK targets are dropped from the graph with
// a warning").
func (d *Discoverer) Relationships(ctx context.Context, knownTables []string) ([]types.Relationship, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			kcu.table_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = kcu.constraint_name
			AND rc.constraint_schema = kcu.table_schema
		WHERE kcu.table_schema = ? AND kcu.referenced_table_name IS NOT NULL`,
		d.schema)
	if err != nil {
		return nil, fmt.Errorf("discovering relationships: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{}, len(knownTables))
	for _, t := range knownTables {
		known[t] = struct{}{}
	}

	var rels []types.Relationship
	for rows.Next() {
		var fromTable, fromColumn, toTable, toColumn, deleteRule, updateRule string
		if err := rows.Scan(&fromTable, &fromColumn, &toTable, &toColumn, &deleteRule, &updateRule); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		if _, ok := known[toTable]; !ok {
			debug.Warnf("sqlschema: dropping relationship %s.%s -> unknown table %s", fromTable, fromColumn, toTable)
			continue
		}
		rels = append(rels, types.Relationship{
			FromTable:  fromTable,
			FromColumn: fromColumn,
			ToTable:    toTable,
			ToColumn:   toColumn,
			OnDelete:   mapReferentialAction(deleteRule),
			OnUpdate:   mapReferentialAction(updateRule),
		})
	}
	return rels, rows.Err()
}

func mapReferentialAction(rule string) types.ReferentialAction {
	switch rule {
	case "CASCADE":
		return types.ActionCascade
	case "SET NULL":
		return types.ActionSetNull
	case "RESTRICT":
		return types.ActionRestrict
	default:
		return types.ActionNoAction
	}
}

// QuoteIdent backtick-quotes a MySQL identifier for safe interpolation into
// DDL/DML where a placeholder cannot be used (spec §6: "Table and column
// names are quoted identifiers; values always pass through placeholders").
func QuoteIdent(name string) string {
	return "`" + name + "`"
}
