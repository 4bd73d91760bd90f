package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them unchanged.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "stations", []byte(`[{"id":"1"}]`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "stations")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != `[{"id":"1"}]` {
		t.Errorf("Get() = %s", got)
	}
}

// TestInMemoryCache_SetCopiesValue verifies that mutating the caller's slice
// after Set does not change the cached value.
func TestInMemoryCache_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'
	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Get() = %q, want abc", got)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache()
	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that Get returns ok=false for expired
// entries and removes them from cache on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired access", c.Len())
	}
}

func TestInMemoryCache_NoExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("Get() ok = false, want true for ttl 0")
	}
}

// TestInMemoryCache_SetSweepsExpired verifies that expired entries which are
// never read again are dropped by a later Set.
func TestInMemoryCache_SetSweepsExpired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		if err := c.Set(ctx, fmt.Sprintf("historic:104208:%d:%d", i, i+86400), []byte("{}"), time.Millisecond); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := c.Set(ctx, "stations", []byte("[]"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if c.Len() != 1001 {
		t.Fatalf("Len() = %d, want 1001 before the entries expire", c.Len())
	}

	now = now.Add(sweepInterval + time.Second)
	if err := c.Set(ctx, "historic:104208:new", []byte("{}"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after sweep", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "stations"); !ok {
		t.Error("entry without expiry was swept")
	}
}

// TestInMemoryCache_Concurrent verifies the cache is safe under concurrent use.
func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Set(ctx, "k", []byte{byte(i)}, time.Minute)
			_, _, _ = c.Get(ctx, "k")
		}(i)
	}
	wg.Wait()
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("Get() ok = false after concurrent sets")
	}
}

type station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestJSONHelpers verifies GetJSON and SetJSON round trip a value and report misses.
func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	in := []station{{ID: "104208", Name: "Parque Norte"}}
	if err := SetJSON(ctx, c, "stations", in, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	var out []station
	ok, err := GetJSON(ctx, c, "stations", &out)
	if err != nil || !ok {
		t.Fatalf("GetJSON() = %v, %v", ok, err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("GetJSON() = %+v, want %+v", out, in)
	}

	ok, err = GetJSON(ctx, c, "missing", &out)
	if ok || err != nil {
		t.Errorf("GetJSON(missing) = %v, %v, want false, nil", ok, err)
	}

	_ = c.Set(ctx, "broken", []byte("{"), time.Minute)
	if _, err := GetJSON(ctx, c, "broken", &out); err == nil {
		t.Error("GetJSON(broken) error = nil, want decode error")
	}
}
