// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retention runs the background tombstone compaction scheduler.
//
// Tombstoned companies are retained so removal stays reversible, but
// without a retention policy they accumulate forever. The scheduler
// periodically asks the state manager to compact tombstones older than
// the configured age. Retention is opt-in: a zero MaxTombstoneAge keeps
// every tombstone indefinitely.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scoutline/scoutline/services/explorer/state"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds configuration for the compaction scheduler.
type Config struct {
	// Interval is how often to run compaction cycles. Default: 1 hour.
	Interval time.Duration

	// MaxTombstoneAge is the minimum tombstone age before compaction.
	// Zero disables compaction entirely.
	MaxTombstoneAge time.Duration

	// BatchSize is the maximum tombstones compacted per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns production defaults with compaction disabled.
// Keeping tombstones forever is the safe default; operators opt in to
// retention by setting MaxTombstoneAge.
func DefaultConfig() Config {
	return Config{
		Interval:  1 * time.Hour,
		BatchSize: 100,
	}
}

// =============================================================================
// Scheduler
// =============================================================================

// Compactor is the slice of the state manager the scheduler needs.
type Compactor interface {
	CompactTombstones(ctx context.Context, maxAge time.Duration, limit int) state.CompactResult
}

// Scheduler runs periodic tombstone compaction.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. Uses the ticker + done
// channel pattern for graceful shutdown.
type Scheduler struct {
	compactor Compactor
	config    Config
	logger    *slog.Logger

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewScheduler creates a compaction scheduler.
func NewScheduler(compactor Compactor, config Config, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		compactor: compactor,
		config:    config,
		logger:    logger.With(slog.String("component", "retention_scheduler")),
		done:      make(chan struct{}),
	}
}

// Start begins the background compaction loop.
//
// Returns an error if the scheduler is already running or if retention
// is disabled (zero MaxTombstoneAge) — a disabled scheduler should not
// be started at all.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.MaxTombstoneAge <= 0 {
		return fmt.Errorf("retention is disabled (max tombstone age is zero)")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("retention scheduler starting",
		"interval", s.config.Interval.String(),
		"max_tombstone_age", s.config.MaxTombstoneAge.String(),
		"batch_size", s.config.BatchSize,
	)

	go s.runLoop(ctx)
	return nil
}

// Stop halts the scheduler. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.done)
	s.running = false
}

// RunNow triggers an immediate compaction cycle.
func (s *Scheduler) RunNow(ctx context.Context) state.CompactResult {
	return s.compactor.CompactTombstones(ctx, s.config.MaxTombstoneAge, s.config.BatchSize)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention scheduler stopped (context cancelled)")
			return
		case <-s.done:
			s.logger.Info("retention scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	result := s.compactor.CompactTombstones(ctx, s.config.MaxTombstoneAge, s.config.BatchSize)
	if result.TombstonesFound > 0 {
		s.logger.Info("compaction cycle completed",
			"found", result.TombstonesFound,
			"compacted", result.TombstonesCompacted,
			"orphans_erased", result.OrphansErased,
		)
	} else {
		s.logger.Debug("compaction cycle completed (no expired tombstones)")
	}
}
