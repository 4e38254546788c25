// Package depgraph is an in-memory directed graph of foreign-key
// relationships between tables (spec §4.B). It is built once at discovery
// and read concurrently thereafter without locking.
package depgraph

import "github.com/erbhushanpawar/sqldb-go/internal/types"

// Graph holds forward (dependencies) and reverse (dependents) adjacency.
// Once constructed via Build, a Graph is never mutated — safe for concurrent
// readers (spec §5 shared-resource policy).
type Graph struct {
	// dependents[T] = set of tables whose rows reference T (children).
	dependents map[string]map[string]struct{}
	// dependencies[T] = set of tables T references (parents).
	dependencies map[string]map[string]struct{}
	relationships []types.Relationship
	tables       map[string]struct{}
}

// Build constructs a Graph from a flat relationship list. Relationships
// whose endpoints reference unknown columns should already have been
// dropped by schema discovery (spec §3 invariant); Build does not re-validate
// column existence, only table presence in the known set.
func Build(knownTables []string, relationships []types.Relationship) *Graph {
	g := &Graph{
		dependents:    make(map[string]map[string]struct{}),
		dependencies:  make(map[string]map[string]struct{}),
		relationships: append([]types.Relationship(nil), relationships...),
		tables:        make(map[string]struct{}, len(knownTables)),
	}
	for _, t := range knownTables {
		g.tables[t] = struct{}{}
		g.dependents[t] = make(map[string]struct{})
		g.dependencies[t] = make(map[string]struct{})
	}
	for _, rel := range relationships {
		if _, ok := g.tables[rel.FromTable]; !ok {
			continue
		}
		if _, ok := g.tables[rel.ToTable]; !ok {
			continue
		}
		// FromTable has an FK to ToTable: FromTable is a dependent of
		// ToTable (child referencing parent); ToTable is a dependency of
		// FromTable.
		g.dependents[rel.ToTable][rel.FromTable] = struct{}{}
		g.dependencies[rel.FromTable][rel.ToTable] = struct{}{}
	}
	return g
}

// Dependents returns the tables whose rows reference table (children in the
// FK sense). The returned slice is a fresh copy, safe to mutate.
func (g *Graph) Dependents(table string) []string {
	return setToSlice(g.dependents[table])
}

// Dependencies returns the tables table references (parents).
func (g *Graph) Dependencies(table string) []string {
	return setToSlice(g.dependencies[table])
}

// Relationships returns the full relationship list the graph was built from.
func (g *Graph) Relationships() []types.Relationship {
	return append([]types.Relationship(nil), g.relationships...)
}

// HasTable reports whether table is known to the graph.
func (g *Graph) HasTable(table string) bool {
	_, ok := g.tables[table]
	return ok
}

// InvalidationTargets computes the transitive closure: table itself plus,
// if cascade is true, every transitive dependent (one direction only —
// mutating a parent may invalidate cached child queries that JOIN/filter by
// FK). Uses breadth-first traversal with a visited set so cycles terminate
// (spec §4.B, §8 invariant 2). O(V+E).
func (g *Graph) InvalidationTargets(table string, cascade bool) []string {
	visited := map[string]struct{}{table: {}}
	order := []string{table}
	if !cascade {
		return order
	}
	queue := []string{table}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(cur) {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			order = append(order, dep)
			queue = append(queue, dep)
		}
	}
	return order
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
