package cachemem

import (
	"context"
	"testing"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

func TestCache_PutGetDelete(t *testing.T) {
	c := New()
	ctx := context.Background()
	schema := domain.EventSchema{TenantID: "t1", EventType: "admission", Version: 2}

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss before put")
	}
	if err := c.Put(ctx, "k", schema, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Version != 2 {
		t.Fatalf("unexpected cached schema %+v", got)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()
	if err := c.Put(ctx, "k", domain.EventSchema{Version: 1}, time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestCache_NilReceiverIsInert(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	if err := c.Put(ctx, "k", domain.EventSchema{}, 0); err != nil {
		t.Fatalf("put on nil cache: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("nil cache must always miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete on nil cache: %v", err)
	}
}
