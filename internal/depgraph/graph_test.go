package depgraph

import (
	"sort"
	"testing"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

func TestInvalidationTargetsIncludesSelf(t *testing.T) {
	g := Build([]string{"users"}, nil)
	targets := g.InvalidationTargets("users", true)
	if len(targets) != 1 || targets[0] != "users" {
		t.Fatalf("expected [users], got %v", targets)
	}
}

func TestInvalidationTargetsCascade(t *testing.T) {
	// users <- orders <- order_items
	rels := []types.Relationship{
		{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"},
		{FromTable: "order_items", FromColumn: "order_id", ToTable: "orders", ToColumn: "id"},
	}
	g := Build([]string{"users", "orders", "order_items"}, rels)

	targets := g.InvalidationTargets("users", true)
	sort.Strings(targets)
	want := []string{"order_items", "orders", "users"}
	if !equalSlices(targets, want) {
		t.Fatalf("got %v, want %v", targets, want)
	}
}

func TestInvalidationTargetsNoCascade(t *testing.T) {
	rels := []types.Relationship{
		{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"},
	}
	g := Build([]string{"users", "orders"}, rels)
	targets := g.InvalidationTargets("users", false)
	if len(targets) != 1 || targets[0] != "users" {
		t.Fatalf("expected no-cascade to return just [users], got %v", targets)
	}
}

func TestInvalidationTargetsTerminatesOnCycle(t *testing.T) {
	// a -> b -> a (self-referential cycle through two tables)
	rels := []types.Relationship{
		{FromTable: "a", FromColumn: "b_id", ToTable: "b", ToColumn: "id"},
		{FromTable: "b", FromColumn: "a_id", ToTable: "a", ToColumn: "id"},
	}
	g := Build([]string{"a", "b"}, rels)

	targets := g.InvalidationTargets("a", true)
	sort.Strings(targets)
	if !equalSlices(targets, []string{"a", "b"}) {
		t.Fatalf("got %v, want [a b]", targets)
	}
}

func TestSelfLoopAllowed(t *testing.T) {
	rels := []types.Relationship{
		{FromTable: "categories", FromColumn: "parent_id", ToTable: "categories", ToColumn: "id"},
	}
	g := Build([]string{"categories"}, rels)
	if !equalSlices(g.Dependents("categories"), []string{"categories"}) {
		t.Fatalf("expected self-loop dependent, got %v", g.Dependents("categories"))
	}
}

func TestUnknownTableDropped(t *testing.T) {
	rels := []types.Relationship{
		{FromTable: "orders", FromColumn: "ghost_id", ToTable: "ghosts", ToColumn: "id"},
	}
	g := Build([]string{"orders"}, rels)
	if deps := g.Dependencies("orders"); len(deps) != 0 {
		t.Fatalf("expected unknown FK target dropped, got %v", deps)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
