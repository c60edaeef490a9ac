// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scoutline/scoutline/pkg/validation"
	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// =============================================================================
// Metrics
// =============================================================================

var (
	localWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoutline_persistence_local_writes_total",
		Help: "Local cache snapshot writes by status",
	}, []string{"status"})

	remoteWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoutline_persistence_remote_writes_total",
		Help: "Remote snapshot writes by backend and status",
	}, []string{"backend", "status"})

	remoteWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoutline_persistence_remote_write_seconds",
		Help:    "Time to persist a snapshot to a remote backend",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"backend"})

	coalescedMutationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoutline_persistence_coalesced_mutations_total",
		Help: "Mutations absorbed into an already-scheduled remote write",
	})
)

// =============================================================================
// Configuration
// =============================================================================

// DefaultCacheKey is the single fixed key the whole state is stored under.
const DefaultCacheKey = "exploration_state"

// DefaultDebounce is how long the cascade waits for a mutation burst to
// settle before issuing the coalesced remote write.
const DefaultDebounce = 250 * time.Millisecond

// SnapshotFunc returns the latest in-memory state at the time it is
// called. The cascade never captures a snapshot at scheduling time; the
// deferred write always carries the post-burst state.
type SnapshotFunc func() *datatypes.ExplorationState

// CascadeConfig configures the persistence cascade.
type CascadeConfig struct {
	// Cache is the local durable snapshot store. Required.
	Cache LocalCache

	// Backends are the ranked remote stores, tried in declared order.
	// May be empty for a local-only configuration. A development
	// configuration ranks a FileSnapshotStore after the HTTP store; the
	// ordering is the whole fallback policy.
	Backends []RemoteBackend

	// CacheKey overrides DefaultCacheKey.
	CacheKey string

	// Debounce overrides DefaultDebounce.
	Debounce time.Duration

	// Logger for cascade operations.
	Logger *slog.Logger
}

// =============================================================================
// Cascade
// =============================================================================

// Cascade is the failure-tolerant persistence pipeline for one state
// manager.
//
// # Thread Safety
//
// Safe for concurrent use. The debounce timer fires on its own goroutine;
// everything it touches is guarded by the mutex or read through the
// snapshot function.
type Cascade struct {
	cache    LocalCache
	backends []RemoteBackend
	cacheKey string
	debounce time.Duration
	snapshot SnapshotFunc
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	closed  bool
}

// NewCascade creates a cascade.
//
// # Inputs
//
//   - cfg: Configuration. Cache is required.
//   - snapshot: Provider of the latest state. Required.
//
// # Outputs
//
//   - *Cascade: The cascade. Call Close() during shutdown.
//   - error: Non-nil on missing cache or snapshot function.
func NewCascade(cfg CascadeConfig, snapshot SnapshotFunc) (*Cascade, error) {
	if cfg.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if snapshot == nil {
		return nil, errors.New("snapshot function is required")
	}
	if cfg.CacheKey == "" {
		cfg.CacheKey = DefaultCacheKey
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Cascade{
		cache:    cfg.Cache,
		backends: cfg.Backends,
		cacheKey: cfg.CacheKey,
		debounce: cfg.Debounce,
		snapshot: snapshot,
		logger:   cfg.Logger.With(slog.String("component", "persistence_cascade")),
	}, nil
}

// SaveLocal writes the given snapshot to the local cache, synchronously
// and best-effort.
//
// The snapshot is passed in rather than read through the snapshot
// function: the state manager calls this while holding its own lock.
//
// A cache failure is logged and swallowed: the in-memory mutation has
// already succeeded and the caller's interaction must not appear to fail.
func (c *Cascade) SaveLocal(ctx context.Context, snap *datatypes.ExplorationState) {
	data, err := json.Marshal(snap)
	if err != nil {
		localWritesTotal.WithLabelValues("error").Inc()
		c.logger.Error("marshal snapshot for local cache", "error", err)
		return
	}

	if err := c.cache.Set(ctx, c.cacheKey, data); err != nil {
		localWritesTotal.WithLabelValues("error").Inc()
		c.logger.Error("local cache write failed", "error", err, "version", snap.Version)
		return
	}
	localWritesTotal.WithLabelValues("ok").Inc()
}

// LoadLocal reads the last locally cached snapshot, if any.
func (c *Cascade) LoadLocal(ctx context.Context) (*datatypes.ExplorationState, error) {
	data, err := c.cache.Get(ctx, c.cacheKey)
	if err != nil {
		return nil, err
	}
	var snap datatypes.ExplorationState
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}

// ScheduleRemote schedules one coalesced remote write.
//
// # Description
//
// The first mutation in a burst arms the debounce timer; every later
// mutation arriving before it fires is absorbed into the same burst, so
// N synchronous mutations produce exactly one outgoing remote write
// carrying the final post-burst state.
func (c *Cascade) ScheduleRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.pending {
		coalescedMutationsTotal.Inc()
		return
	}

	c.pending = true
	c.timer = time.AfterFunc(c.debounce, c.fireRemote)
}

// fireRemote is the timer callback for the deferred write.
func (c *Cascade) fireRemote() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Flush(ctx); err != nil {
		// No retry loop here: the next mutation's coalesced write is the
		// de facto retry and always carries the latest state.
		c.logger.Error("deferred remote write failed", "error", err)
	}
}

// Flush performs the remote write immediately with the latest snapshot.
//
// # Description
//
// Validates the state's identity token first; a malformed token is a
// caller-contract violation and fails fast without touching any backend.
// Then tries the ranked backends in declared order, stopping at the first
// success.
//
// # Outputs
//
//   - error: ErrInvalidIdentityToken for a malformed token; otherwise
//     the joined backend errors when every backend failed; nil on the
//     first backend success (or when no backends are configured).
func (c *Cascade) Flush(ctx context.Context) error {
	snap := c.snapshot()

	if err := validation.ValidateIdentityToken(snap.IdentityToken); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	if len(c.backends) == 0 {
		return nil
	}

	var failures []error
	for _, backend := range c.backends {
		start := time.Now()
		err := backend.Save(ctx, snap)
		remoteWriteDuration.WithLabelValues(backend.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			remoteWritesTotal.WithLabelValues(backend.Name(), "ok").Inc()
			c.logger.Debug("snapshot persisted",
				"backend", backend.Name(),
				"version", snap.Version,
			)
			return nil
		}

		remoteWritesTotal.WithLabelValues(backend.Name(), "error").Inc()
		c.logger.Warn("remote backend failed, trying next",
			"backend", backend.Name(),
			"error", err,
		)
		failures = append(failures, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	return errors.Join(failures...)
}

// PendingRemote reports whether a deferred remote write is scheduled but
// has not fired yet.
func (c *Cascade) PendingRemote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Close cancels any scheduled write after flushing it best-effort.
func (c *Cascade) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	hadPending := c.pending
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = false
	c.mu.Unlock()

	if hadPending {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Flush(ctx); err != nil {
			c.logger.Error("final remote write failed during close", "error", err)
		}
	}
	return nil
}
