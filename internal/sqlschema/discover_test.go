package sqlschema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

func TestTablesListsBaseTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"table_name"}).AddRow("users").AddRow("orders")
	mock.ExpectQuery("SELECT table_name").WillReturnRows(rows)

	d := New(db, "appdb")
	tables, err := d.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 2 || tables[0] != "users" || tables[1] != "orders" {
		t.Fatalf("unexpected tables: %v", tables)
	}
}

func TestTableMetaMarksPrimaryKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"column_name", "data_type", "is_nullable", "column_default", "extra",
		"character_maximum_length", "numeric_precision", "numeric_scale", "key_role",
	}).
		AddRow("id", "bigint", "NO", nil, "auto_increment", nil, 19, 0, "primary").
		AddRow("name", "varchar", "YES", nil, "", 255, nil, nil, "none")

	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	d := New(db, "appdb")
	meta, err := d.TableMeta(context.Background(), "users")
	if err != nil {
		t.Fatalf("TableMeta: %v", err)
	}
	if meta.PrimaryKey != "id" {
		t.Fatalf("expected primary key id, got %q", meta.PrimaryKey)
	}
	if len(meta.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(meta.Columns))
	}
	if !meta.Columns[0].AutoGenerated {
		t.Fatalf("expected id column auto-generated")
	}
}

func TestRelationshipsDropsUnknownTargetTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"table_name", "column_name", "referenced_table_name", "referenced_column_name",
		"delete_rule", "update_rule",
	}).
		AddRow("orders", "user_id", "users", "id", "CASCADE", "CASCADE").
		AddRow("orders", "ghost_id", "ghost_table", "id", "NO ACTION", "NO ACTION")

	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	d := New(db, "appdb")
	rels, err := d.Relationships(context.Background(), []string{"users", "orders"})
	if err != nil {
		t.Fatalf("Relationships: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected unknown-target relationship dropped, got %+v", rels)
	}
	if rels[0].OnDelete != types.ActionCascade {
		t.Fatalf("expected cascade action, got %v", rels[0].OnDelete)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent("users"); got != "`users`" {
		t.Fatalf("expected backtick-quoted identifier, got %q", got)
	}
}
