// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package duplicates

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
)

// embeddingCache is the two-tier embedding store: an in-memory map over a
// Badger disk store. Reads go memory → disk → miss; writes populate both
// tiers. Badger's transactional writes give the atomic disk persistence.
type embeddingCache struct {
	db *badger.DB

	mu     sync.RWMutex
	mem    map[string][]float32
	hits   uint64
	misses uint64
}

func newEmbeddingCache(dir string) (*embeddingCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create embedding cache dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &embeddingCache{db: db, mem: make(map[string][]float32)}, nil
}

// CacheKey derives the content-addressed key: md5 over path, mtime and size
// truncated to 8 hex chars, joined with the asset id. A re-edited file gets
// a new key without any invalidation pass.
func CacheKey(assetID, path string) string {
	info, err := os.Stat(path)
	if err != nil {
		// Key still stable per (assetID, path); a missing file will fail
		// later at decode time anyway.
		sum := md5.Sum([]byte(path))
		return hex.EncodeToString(sum[:])[:8] + ":" + assetID
	}
	payload := fmt.Sprintf("%s%d%d", path, info.ModTime().UnixNano(), info.Size())
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])[:8] + ":" + assetID
}

// Get returns the cached embedding, checking memory first, then disk. Disk
// hits are promoted to the memory tier.
func (c *embeddingCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	vec, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		c.countHit()
		return vec, true
	}

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err != nil || vec == nil {
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Warn().Err(err).Msg("Embedding cache read failed")
		}
		c.countMiss()
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = vec
	c.mu.Unlock()
	c.countHit()
	return vec, true
}

// Put stores the embedding in both tiers.
func (c *embeddingCache) Put(key string, vec []float32) {
	c.mu.Lock()
	c.mem[key] = vec
	c.mu.Unlock()

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeVector(vec))
	})
	if err != nil {
		logging.Warn().Err(err).Msg("Embedding cache write failed")
	}
}

// Clear drops the in-memory tier; the disk tier stays.
func (c *embeddingCache) Clear() {
	c.mu.Lock()
	c.mem = make(map[string][]float32)
	c.mu.Unlock()
}

// Stats returns entry count of the memory tier and the hit rate since start.
func (c *embeddingCache) Stats() (entries int, hitRate float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return len(c.mem), hitRate
}

func (c *embeddingCache) Close() error {
	return c.db.Close()
}

func (c *embeddingCache) countHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	metrics.RecordCacheHit("embedding")
}

func (c *embeddingCache) countMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	metrics.RecordCacheMiss("embedding")
}

// encodeVector packs float32s little-endian.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
