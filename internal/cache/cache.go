// Package cache memoizes validated results keyed by content hash.
//
// Keying is exact: a key is a domain-separated hash over the canonical
// serialization of (spec_id, kernel identity, pipeline config), extended with
// formatter identity and decode configuration at full-output determinism.
// There is no approximate matching and no TTL; entries die only by explicit
// epoch invalidation when a kernel version or ontology snapshot is
// superseded.
//
// Concurrent misses on one key collapse to a single execution, and that
// execution runs to completion on a detached context so one caller's
// cancellation cannot poison the result for the others.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/veritas/internal/ir"
)

// KeyComponents enumerates everything a cached result's identity depends on.
type KeyComponents struct {
	SpecID           string
	KernelID         string
	KernelVersion    string
	PipelineConfigID string
	Determinism      ir.DeterminismLevel

	// Set only at full-output determinism.
	FormatterID  string
	DecodeConfig string
}

// Hash derives the cache key. Full-output keys include the formatter fields;
// numeric keys deliberately exclude them, so the same numbers are shared
// across formatters.
func (k KeyComponents) Hash() (string, error) {
	if k.SpecID == "" || k.KernelID == "" || k.KernelVersion == "" {
		return "", fmt.Errorf("cache key: missing identity component")
	}
	obj := ir.IRObject{
		"spec_id":            ir.IRString(k.SpecID),
		"kernel_id":          ir.IRString(k.KernelID),
		"kernel_version":     ir.IRString(k.KernelVersion),
		"pipeline_config_id": ir.IRString(k.PipelineConfigID),
		"determinism":        ir.IRString(string(k.Determinism)),
	}
	if k.Determinism == ir.DeterminismFullOutput {
		obj["formatter_id"] = ir.IRString(k.FormatterID)
		obj["decode_config"] = ir.IRString(k.DecodeConfig)
	}
	return ir.HashCacheKey(obj)
}

// Stats are cumulative cache counters. Reads are atomic snapshots.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Executions uint64
	Shared     uint64 // misses resolved by another caller's in-flight execution
	Invalidate uint64 // entries removed by epoch invalidation
}

// Cache is a bounded in-memory result cache with single-flight execution.
type Cache struct {
	store *lru.Cache[string, ir.CacheEntry]
	group singleflight.Group

	hits        atomic.Uint64
	misses      atomic.Uint64
	executions  atomic.Uint64
	shared      atomic.Uint64
	invalidated atomic.Uint64
}

// New builds a cache bounded to size entries.
func New(size int) (*Cache, error) {
	store, err := lru.New[string, ir.CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{store: store}, nil
}

// Meta is the epoch metadata stored with each entry, consulted only by
// invalidation.
type Meta struct {
	KernelEpoch     string // kernel_id@version
	OntologyVersion string
	Determinism     ir.DeterminismLevel
}

// Get returns the entry for key, if present.
func (c *Cache) Get(key string) (ir.CacheEntry, bool) {
	e, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	}
	return e, ok
}

// GetOrCompute returns the cached result for key, or runs compute exactly
// once across all concurrent callers and caches its result. The bool reports
// whether the result came from the cache without executing.
//
// compute receives a context detached from the caller's cancellation: once
// started, an execution runs to completion so its result is usable by every
// caller that collapsed onto it.
func (c *Cache) GetOrCompute(ctx context.Context, key string, meta Meta, compute func(context.Context) (ir.ValidatedResult, error)) (ir.ValidatedResult, bool, error) {
	if e, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return e.Result, true, nil
	}
	c.misses.Add(1)

	executed := false
	v, err, sharedFlight := c.group.Do(key, func() (any, error) {
		// Another flight may have populated the store between our miss and
		// acquiring the flight.
		if e, ok := c.store.Get(key); ok {
			return e, nil
		}
		executed = true
		c.executions.Add(1)
		result, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		e := ir.CacheEntry{
			Key:             key,
			Result:          result,
			KernelEpoch:     meta.KernelEpoch,
			OntologyVersion: meta.OntologyVersion,
			Determinism:     meta.Determinism,
		}
		c.store.Add(key, e)
		return e, nil
	})
	if err != nil {
		return ir.ValidatedResult{}, false, err
	}
	if sharedFlight && !executed {
		c.shared.Add(1)
	}
	return v.(ir.CacheEntry).Result, !executed, nil
}

// InvalidateKernelEpoch removes every entry computed under the given kernel
// epoch ("kernel_id@version"). Called when a catalog update supersedes or
// deprecates that version.
func (c *Cache) InvalidateKernelEpoch(epoch string) int {
	return c.invalidate(func(e ir.CacheEntry) bool { return e.KernelEpoch == epoch })
}

// InvalidateOntology removes every entry computed under the given ontology
// snapshot version.
func (c *Cache) InvalidateOntology(version string) int {
	return c.invalidate(func(e ir.CacheEntry) bool { return e.OntologyVersion == version })
}

func (c *Cache) invalidate(stale func(ir.CacheEntry) bool) int {
	n := 0
	for _, key := range c.store.Keys() {
		e, ok := c.store.Peek(key)
		if !ok || !stale(e) {
			continue
		}
		c.store.Remove(key)
		n++
	}
	c.invalidated.Add(uint64(n))
	return n
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Stats returns a snapshot of the cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Executions: c.executions.Load(),
		Shared:     c.shared.Load(),
		Invalidate: c.invalidated.Load(),
	}
}
