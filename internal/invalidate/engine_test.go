package invalidate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/cachestore"
	"github.com/erbhushanpawar/sqldb-go/internal/depgraph"
	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *cachestore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cachestore.New(client)

	graph := depgraph.Build([]string{"users", "orders", "order_items"}, []types.Relationship{
		{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id", OnDelete: types.ActionCascade},
		{FromTable: "order_items", FromColumn: "order_id", ToTable: "orders", ToColumn: "id", OnDelete: types.ActionCascade},
	})
	return New(graph, store, "test"), store
}

// TestCascadeInvalidationS1 implements spec scenario S1: updating users
// invalidates cached orders queries that filter by the FK.
func TestCascadeInvalidationS1(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	store.Set(ctx, "test:cache:orders:findMany:abc123", []byte("cached"), time.Minute)
	store.Set(ctx, "test:cache:users:findById:id:7", []byte("cached"), time.Minute)

	if err := e.Invalidate(ctx, "users", types.StrategyImmediate, true); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "test:cache:orders:findMany:abc123"); ok {
		t.Fatalf("expected cascaded orders cache entry to be gone")
	}
	if _, ok, _ := store.Get(ctx, "test:cache:users:findById:id:7"); ok {
		t.Fatalf("expected users cache entry to be gone")
	}
}

func TestInvalidateWithoutCascadeOnlyClearsOwnTable(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	store.Set(ctx, "test:cache:orders:findMany:x", []byte("cached"), time.Minute)
	store.Set(ctx, "test:cache:users:findById:id:1", []byte("cached"), time.Minute)

	if err := e.Invalidate(ctx, "users", types.StrategyImmediate, false); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "test:cache:orders:findMany:x"); !ok {
		t.Fatalf("expected non-cascaded sibling table cache entry to survive")
	}
	if _, ok, _ := store.Get(ctx, "test:cache:users:findById:id:1"); ok {
		t.Fatalf("expected users cache entry to be gone")
	}
}

func TestInvalidateTTLOnlySkipsSweep(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	store.Set(ctx, "test:cache:users:findById:id:1", []byte("cached"), time.Minute)

	if err := e.Invalidate(ctx, "users", types.StrategyTTLOnly, true); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "test:cache:users:findById:id:1"); !ok {
		t.Fatalf("expected ttl-only strategy to leave cache untouched")
	}
}

func TestInvalidateTwiceIsIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	store.Set(ctx, "test:cache:users:findById:id:1", []byte("cached"), time.Minute)

	if err := e.Invalidate(ctx, "users", types.StrategyImmediate, true); err != nil {
		t.Fatalf("first Invalidate: %v", err)
	}
	if err := e.Invalidate(ctx, "users", types.StrategyImmediate, true); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
}

func TestInvalidateAsyncNeverBlocksAndRecordsFailures(t *testing.T) {
	e, _ := newTestEngine(t)
	done := make(chan struct{})
	go func() {
		e.InvalidateAsync("users", types.StrategyImmediate, true)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("InvalidateAsync blocked the caller")
	}
	time.Sleep(50 * time.Millisecond)
	if e.FailedInvalidations() != 0 {
		t.Fatalf("expected no failures for a healthy store, got %d", e.FailedInvalidations())
	}
}

func TestGraphAccessorExposesInvalidationTargets(t *testing.T) {
	e, _ := newTestEngine(t)
	targets := e.Graph().InvalidationTargets("users", true)
	want := map[string]bool{"users": true, "orders": true, "order_items": true}
	if len(targets) != len(want) {
		t.Fatalf("expected %d targets, got %v", len(want), targets)
	}
	for _, tbl := range targets {
		if !want[tbl] {
			t.Fatalf("unexpected target %s", tbl)
		}
	}
}
