package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache("ordering")
	ctx := context.Background()

	key := c.Key("product-name", "10")
	if key != "ordering:product-name:10" {
		t.Fatalf("unexpected key: %s", key)
	}

	if err := c.Set(ctx, key, "keyboard", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "keyboard" {
		t.Fatalf("expected keyboard, got %q", value)
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache("ordering")

	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache("ordering")
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}
}
