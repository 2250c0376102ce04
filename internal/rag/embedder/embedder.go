// Package embedder implements C1: mapping text to fixed-size vectors, with
// batching and an optional content-addressed cache.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"

	"ragcore/internal/config"
	"ragcore/internal/embedding"
	"ragcore/internal/ragerr"
)

// Embedder is C1's contract (§4.1).
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Ping(ctx context.Context) error
}

// Cache is the optional content-addressed cache backing an Embedder (§4.1).
// A cache miss must never block success: callers treat Get errors as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HTTPEmbedder calls an HTTP-served embedding endpoint, with a minimum delay
// between calls (some local servers crash under concurrent load) and an
// optional cache in front of it.
type HTTPEmbedder struct {
	cfg   config.EmbeddingConfig
	cache Cache

	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewHTTPEmbedder builds an Embedder backed by the configured HTTP endpoint.
// cache may be nil to disable caching.
func NewHTTPEmbedder(cfg config.EmbeddingConfig, cache Cache) *HTTPEmbedder {
	return &HTTPEmbedder{cfg: cfg, cache: cache, minDelay: 20 * time.Millisecond}
}

func (e *HTTPEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *HTTPEmbedder) Ping(ctx context.Context) error {
	if err := embedding.CheckReachability(ctx, e.cfg); err != nil {
		return ragerr.Wrap("Embedder.Ping", ragerr.Unavailable, err)
	}
	return nil
}

func (e *HTTPEmbedder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Encode returns one vector per input in order, checking the cache first and
// only calling the endpoint for uncached texts (§4.1). Calls are
// rate-limited to avoid overwhelming small local model servers; this keeps
// the batch API no slower per-item than the single API since both paths
// share the same throttle.
func (e *HTTPEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ragerr.New("Embedder.Encode", ragerr.InvalidInput)
	}
	out := make([][]float32, len(texts))
	misses := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ragerr.New("Embedder.Encode", ragerr.InvalidInput)
		}
		if e.cache != nil {
			if v, ok := e.getCached(ctx, t); ok {
				out[i] = v
				continue
			}
		}
		misses = append(misses, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) > 0 {
		vecs, err := e.callEndpoint(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, idx := range misses {
			if e.cfg.Dimension > 0 && len(vecs[j]) != e.cfg.Dimension {
				return nil, ragerr.New("Embedder.Encode", ragerr.InvalidInput)
			}
			out[idx] = vecs[j]
			e.setCached(ctx, missTexts[j], vecs[j])
		}
	}
	return out, nil
}

func (e *HTTPEmbedder) callEndpoint(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	wait := e.minDelay - time.Since(e.lastCall)
	if wait > 0 {
		e.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ragerr.Wrap("Embedder.Encode", ragerr.Cancelled, ctx.Err())
		}
		e.mu.Lock()
	}
	e.lastCall = time.Now()
	e.mu.Unlock()

	vecs, err := embedding.EmbedText(ctx, e.cfg, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ragerr.Wrap("Embedder.Encode", ragerr.Timeout, err)
		}
		return nil, ragerr.Wrap("Embedder.Encode", ragerr.Unavailable, err)
	}
	return vecs, nil
}

func (e *HTTPEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(e.cfg.Model + "\x00" + text))
	return "embed:" + hex.EncodeToString(h[:])
}

func (e *HTTPEmbedder) getCached(ctx context.Context, text string) ([]float32, bool) {
	b, ok, err := e.cache.Get(ctx, e.cacheKey(text))
	if err != nil || !ok {
		return nil, false
	}
	return decodeFloat32s(b), true
}

func (e *HTTPEmbedder) setCached(ctx context.Context, text string, vec []float32) {
	_ = e.cache.Set(ctx, e.cacheKey(text), encodeFloat32s(vec), e.cfg.CacheTTL)
}

func encodeFloat32s(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		bits := math.Float32bits(f)
		b[4*i] = byte(bits)
		b[4*i+1] = byte(bits >> 8)
		b[4*i+2] = byte(bits >> 16)
		b[4*i+3] = byte(bits >> 24)
	}
	return b
}

func decodeFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// Similarity computes cosine similarity, numerically stable; zero-norm
// vectors yield 0 (glossary: Cosine similarity).
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// BatchSimilarity scores q against every candidate in cands.
func BatchSimilarity(q []float32, cands [][]float32) []float32 {
	out := make([]float32, len(cands))
	for i, c := range cands {
		out[i] = Similarity(q, c)
	}
	return out
}

// DeterministicEmbedder is a fast, hash-based embedder for tests: identical
// inputs always yield identical vectors, without any network dependency.
type DeterministicEmbedder struct {
	dim int
}

func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	return &DeterministicEmbedder{dim: dim}
}

func (e *DeterministicEmbedder) Dimension() int { return e.dim }

func (e *DeterministicEmbedder) Ping(context.Context) error { return nil }

func (e *DeterministicEmbedder) EncodeOne(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ragerr.New("Embedder.EncodeOne", ragerr.InvalidInput)
	}
	return e.vector(text), nil
}

func (e *DeterministicEmbedder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ragerr.New("Embedder.Encode", ragerr.InvalidInput)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ragerr.New("Embedder.Encode", ragerr.InvalidInput)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

// vector hashes overlapping 3-grams of text into buckets, then L2-normalizes,
// giving similar texts similar (but not identical) vectors deterministically.
func (e *DeterministicEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	runes := []rune(strings.ToLower(text))
	gram := 3
	if len(runes) < gram {
		gram = len(runes)
	}
	if gram == 0 {
		return v
	}
	for i := 0; i+gram <= len(runes); i++ {
		h := fnv32(string(runes[i : i+gram]))
		v[int(h)%e.dim]++
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func fnv32(s string) uint32 {
	const prime32 = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
