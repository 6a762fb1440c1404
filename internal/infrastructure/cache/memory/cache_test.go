package memory

import (
	"context"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q", got)
	}

	// The stored copy must not alias the caller's slice.
	got[0] = 'X'
	again, _, _ := c.Get(ctx, "k1")
	if string(again) != "v1" {
		t.Fatalf("cache value mutated through returned slice: %q", again)
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k1"); ok {
		t.Fatalf("expired entry must miss")
	}
}

func TestDeleteByPrefix(t *testing.T) {
	c := New()
	ctx := context.Background()

	_ = c.Set(ctx, "hs:u1:vector:aaa", []byte("1"), 0)
	_ = c.Set(ctx, "hs:u1:hybrid:bbb", []byte("2"), 0)
	_ = c.Set(ctx, "hs:u2:vector:ccc", []byte("3"), 0)

	if err := c.DeleteByPrefix(ctx, "hs:u1:"); err != nil {
		t.Fatalf("DeleteByPrefix() error = %v", err)
	}

	if _, ok, _ := c.Get(ctx, "hs:u1:vector:aaa"); ok {
		t.Fatalf("u1 entry survived prefix delete")
	}
	if _, ok, _ := c.Get(ctx, "hs:u2:vector:ccc"); !ok {
		t.Fatalf("u2 entry must survive u1 prefix delete")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 0)
	time.Sleep(2 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatalf("zero TTL entry must not expire")
	}
}
