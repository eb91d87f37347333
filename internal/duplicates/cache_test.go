// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package duplicates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *embeddingCache {
	t.Helper()
	c, err := newEmbeddingCache(filepath.Join(t.TempDir(), "embeddings"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)

	vec := []float32{0.25, -1.5, 3.75}
	c.Put("k1", vec)

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 3 || got[0] != 0.25 || got[1] != -1.5 || got[2] != 3.75 {
		t.Errorf("got %v", got)
	}

	if _, ok := c.Get("absent"); ok {
		t.Error("unexpected hit for absent key")
	}

	entries, hitRate := c.Stats()
	if entries != 1 {
		t.Errorf("entries = %d, want 1", entries)
	}
	if hitRate != 0.5 {
		t.Errorf("hit rate = %f, want 0.5", hitRate)
	}
}

func TestCacheClearKeepsDiskTier(t *testing.T) {
	c := newTestCache(t)
	c.Put("k1", []float32{1, 2})

	c.Clear()
	if entries, _ := c.Stats(); entries != 0 {
		t.Fatalf("memory entries after clear = %d", entries)
	}

	// The disk tier survives and repopulates memory on the next read.
	got, ok := c.Get("k1")
	if !ok || len(got) != 2 || got[0] != 1 {
		t.Fatalf("disk tier lost the entry: %v %v", got, ok)
	}
	if entries, _ := c.Stats(); entries != 1 {
		t.Error("disk hit should promote back into memory")
	}
}

func TestCacheKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("original bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	key := CacheKey("asset-1", path)
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 8 || parts[1] != "asset-1" {
		t.Fatalf("key = %q, want 8-hex-char prefix and asset id", key)
	}

	if again := CacheKey("asset-1", path); again != key {
		t.Errorf("key not stable: %q vs %q", again, key)
	}

	// Rewriting the file (new size and mtime) must change the key.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("edited bytes, longer now"), 0o600); err != nil {
		t.Fatal(err)
	}
	if edited := CacheKey("asset-1", path); edited == key {
		t.Error("key unchanged after file edit")
	}

	// A missing file still yields a usable, stable key.
	missing := filepath.Join(dir, "gone.jpg")
	k1 := CacheKey("asset-2", missing)
	if k1 != CacheKey("asset-2", missing) || !strings.HasSuffix(k1, ":asset-2") {
		t.Errorf("missing-file key unstable: %q", k1)
	}
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0, 1, -1, 3.14159, -2.5e7}
	decoded := decodeVector(encodeVector(vec))
	if len(decoded) != len(vec) {
		t.Fatalf("length = %d", len(decoded))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("index %d: %f != %f", i, decoded[i], vec[i])
		}
	}
	if decodeVector([]byte{1, 2, 3}) != nil {
		t.Error("truncated payload must decode to nil")
	}
}
