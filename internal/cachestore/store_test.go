package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestGetSetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "k1", []byte("hello"), time.Minute)

	val, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(val) != "hello" {
		t.Fatalf("got %q", val)
	}
}

func TestGetMissReturnsFalseNotError(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("miss should never be an error, got %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestDel(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.Set(ctx, "k1", []byte("v"), 0)
	n := s.Del(ctx, "k1")
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, ok, _ := s.Get(ctx, "k1"); ok {
		t.Fatalf("expected key gone after Del")
	}
}

func TestScanExhaustsAllMatches(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		s.Set(ctx, "prefix:cache:orders:"+string(rune('a'+i%26))+string(rune(i)), []byte("x"), 0)
	}
	s.Set(ctx, "other:key", []byte("x"), 0)

	keys, err := s.Scan(ctx, "prefix:cache:orders:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 250 {
		t.Fatalf("expected 250 keys enumerated across scan batches, got %d", len(keys))
	}
}

func TestDegradedStoreNeverFailsCaller(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	mr.Close() // simulate an unreachable store

	s.Set(ctx, "k", []byte("v"), 0) // must not panic or block
	_, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("degraded get must not surface an error, got %v", err)
	}
	if ok {
		t.Fatalf("degraded store should report a miss")
	}
	if s.Healthy() {
		t.Fatalf("expected store to report unhealthy after connection loss")
	}
}

func TestTTLExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	s.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected key to have expired")
	}
}
