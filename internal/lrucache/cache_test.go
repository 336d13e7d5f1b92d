package lrucache

import (
	"testing"
	"time"
)

func mustNew(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// S1 — basic set/get/del.
func TestBasicSetGetDel(t *testing.T) {
	c := mustNew(t, WithCapacity(10))

	c.Set("k1", []byte("v1"), 0)
	v, ok := c.Get("k1")
	if !ok || string(v) != "v1" {
		t.Fatalf("Get(k1) = (%q, %v), want (v1, true)", v, ok)
	}

	c.Delete("k1")
	if _, ok := c.Get("k1"); ok {
		t.Fatal("Get(k1) after Delete should miss")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

// S2 — LRU eviction with touch.
func TestEvictionWithTouch(t *testing.T) {
	c := mustNew(t, WithCapacity(3))

	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)
	c.Set("c", []byte("3"), 0)
	c.Get("a")
	c.Set("d", []byte("4"), 0)

	if !c.Exists("a") {
		t.Error("a should still exist (touched before eviction)")
	}
	if c.Exists("b") {
		t.Error("b should have been evicted (least recently used)")
	}
	if !c.Exists("c") {
		t.Error("c should still exist")
	}
	if !c.Exists("d") {
		t.Error("d should exist (just inserted)")
	}
}

// S3 — TTL expiry.
func TestTTLExpiry(t *testing.T) {
	c := mustNew(t, WithCapacity(10))

	c.Set("k", []byte("v"), 30*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("Get(k) should miss after TTL elapsed")
	}
}

func TestCapacityInvariant(t *testing.T) {
	c := mustNew(t, WithCapacity(5))
	for i := 0; i < 50; i++ {
		c.Set(string(rune('a'+i%26))+"x", []byte("v"), 0)
		if c.Len() > c.Capacity() {
			t.Fatalf("Len() = %d exceeds Capacity() = %d", c.Len(), c.Capacity())
		}
	}
}

func TestExistsDoesNotRefreshRecency(t *testing.T) {
	c := mustNew(t, WithCapacity(2))
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	c.Exists("a") // must NOT count as an access
	c.Set("c", []byte("3"), 0)

	if c.Exists("a") {
		t.Error("a should have been evicted: Exists must not refresh recency")
	}
	if !c.Exists("b") {
		t.Error("b should still be present")
	}
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	c := mustNew(t, WithCapacity(10))
	c.Set("short", []byte("v"), 10*time.Millisecond)
	c.Set("long", []byte("v"), time.Hour)

	time.Sleep(30 * time.Millisecond)
	removed := c.CleanupExpired()
	if removed != 1 {
		t.Fatalf("CleanupExpired() removed %d entries, want 1", removed)
	}
	if !c.Exists("long") {
		t.Error("long-lived entry should survive cleanup")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestHitRate(t *testing.T) {
	c := mustNew(t, WithCapacity(10))
	c.Set("k", []byte("v"), 0)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if got, want := stats.HitRate(), 2.0/3.0; got != want {
		t.Errorf("HitRate() = %v, want %v", got, want)
	}
}

func TestSetIfNotExists(t *testing.T) {
	c := mustNew(t, WithCapacity(10))

	if !c.SetIfNotExists("k", []byte("first"), 0) {
		t.Fatal("first SetIfNotExists should succeed")
	}
	if c.SetIfNotExists("k", []byte("second"), 0) {
		t.Fatal("second SetIfNotExists should fail: key already present")
	}
	v, _ := c.Get("k")
	if string(v) != "first" {
		t.Errorf("value = %q, want %q (SetIfNotExists must not overwrite)", v, "first")
	}
}

func TestInvalidCapacityRejected(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("New() without WithCapacity should return an error")
	}
}

func TestSweeperRemovesExpiredInBackground(t *testing.T) {
	c := mustNew(t, WithCapacity(10), WithSweepInterval(10*time.Millisecond))
	c.Set("k", []byte("v"), 15*time.Millisecond)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweeper did not remove expired entry in time")
}
