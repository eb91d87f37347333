// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package requestcache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("k1", "v1", 0)
	v, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit for k1")
	}
	if v.(string) != "v1" {
		t.Errorf("value = %v, want v1", v)
	}

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("short", "v", 10*time.Millisecond)
	if _, ok := c.Get("short"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, len = %d", c.Len())
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(3, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// Touch "a" so "b" becomes the LRU victim.
	c.Get("a")
	c.Set("d", 4, 0)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to survive eviction", k)
		}
	}

	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", s.Evictions)
	}
}

func TestCache_UpdateExisting(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("k", "old", 0)
	c.Set("k", "new", 0)

	v, _ := c.Get("k")
	if v.(string) != "new" {
		t.Errorf("value = %v, want new", v)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestCache_CleanupExpired(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("stale1", 1, 5*time.Millisecond)
	c.Set("stale2", 2, 5*time.Millisecond)
	c.Set("fresh", 3, time.Minute)

	time.Sleep(15 * time.Millisecond)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
}

func TestCache_Do_SingleFlight(t *testing.T) {
	c := New(10, time.Minute)

	var calls int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := c.Do("shared", func() (any, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "computed", nil
			})
			if err != nil {
				t.Errorf("Do returned error: %v", err)
				return
			}
			if v.(string) != "computed" {
				t.Errorf("value = %v, want computed", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("fn called %d times, want 1", n)
	}

	// Result must now be served from cache without re-running fn.
	if _, ok := c.Get("shared"); !ok {
		t.Error("expected Do result to be cached")
	}
}

func TestCache_Do_ErrorNotCached(t *testing.T) {
	c := New(10, time.Minute)

	sentinel := errors.New("transient")
	_, err := c.Do("k", func() (any, error) { return nil, sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}

	if _, ok := c.Get("k"); ok {
		t.Error("error result must not be cached")
	}

	// A later call retries the computation.
	v, err := c.Do("k", func() (any, error) { return "ok", nil })
	if err != nil || v.(string) != "ok" {
		t.Errorf("retry = (%v, %v), want (ok, nil)", v, err)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%20)
				if i%3 == 0 {
					c.Set(key, g, 0)
				} else {
					c.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("len = %d exceeds capacity", c.Len())
	}
}

func TestFingerprint_Stable(t *testing.T) {
	p1 := map[string]any{"a": 1, "b": "x", "c": 2.5}
	p2 := map[string]any{"c": 2.5, "b": "x", "a": 1}

	f1, f2 := Fingerprint(p1), Fingerprint(p2)
	if f1 != f2 {
		t.Errorf("fingerprint not order-independent: %s != %s", f1, f2)
	}
	if len(f1) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(f1))
	}

	if Fingerprint(map[string]any{"a": 1}) == Fingerprint(map[string]any{"a": 2}) {
		t.Error("different params produced identical fingerprints")
	}
}

func TestCaptionKey(t *testing.T) {
	lat, lon := 13.4125, 103.8667

	k1 := CaptionKey("asset1", &lat, &lon, "en", "creative")
	k2 := CaptionKey("asset1", &lat, &lon, "en", "creative")
	if k1 != k2 {
		t.Error("identical requests produced different keys")
	}

	// Sub-rounding jitter shares the entry.
	latJitter := 13.41251
	if CaptionKey("asset1", &latJitter, &lon, "en", "creative") != k1 {
		t.Error("coordinates within rounding should share a key")
	}

	if CaptionKey("asset1", nil, nil, "en", "creative") == k1 {
		t.Error("missing coordinates must not collide with present ones")
	}
	if CaptionKey("asset1", &lat, &lon, "fr", "creative") == k1 {
		t.Error("language must be part of the key")
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c := New(10000, time.Minute)
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("k%d", i%1000))
	}
}
