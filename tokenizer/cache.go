package tokenizer

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
)

// DefaultCacheBytes is the token cache capacity used when none is configured
const DefaultCacheBytes = 64 << 20

// Cached memoizes an Encoder by line text. Sampling with replacement reads the
// same lines again and again, so repeated tokenization is skipped.
type Cached struct {
	enc   Encoder
	cache *fastcache.Cache
}

// NewCached wraps enc with a cache of roughly maxBytes
func NewCached(enc Encoder, maxBytes int) *Cached {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &Cached{
		enc:   enc,
		cache: fastcache.New(maxBytes),
	}
}

// Encode returns the cached ids for text, tokenizing on a miss
func (c *Cached) Encode(text string) []int64 {
	key := []byte(text)
	if buf, ok := c.cache.HasGet(nil, key); ok {
		if ids, ok := unpackIDs(buf); ok {
			return ids
		}
	}
	ids := c.enc.Encode(text)
	c.cache.Set(key, packIDs(ids))
	return ids
}

// Stats reports hits and misses of the underlying cache
func (c *Cached) Stats() fastcache.Stats {
	var s fastcache.Stats
	c.cache.UpdateStats(&s)
	return s
}

// Reset drops every cached line
func (c *Cached) Reset() {
	c.cache.Reset()
}

func packIDs(ids []int64) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64*(len(ids)+1))
	buf = binary.AppendUvarint(buf, uint64(len(ids)))
	for _, id := range ids {
		buf = binary.AppendVarint(buf, id)
	}
	return buf
}

func unpackIDs(buf []byte) ([]int64, bool) {
	n, k := binary.Uvarint(buf)
	if k <= 0 || n > uint64(len(buf)) {
		return nil, false
	}
	buf = buf[k:]
	ids := make([]int64, n)
	for i := range ids {
		id, k := binary.Varint(buf)
		if k <= 0 {
			return nil, false
		}
		ids[i] = id
		buf = buf[k:]
	}
	return ids, len(buf) == 0
}
