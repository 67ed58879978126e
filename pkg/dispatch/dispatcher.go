/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dispatch drives passes over the shared queue: snapshot, shuffle,
// then resolve, claim and scan each target with bounded parallelism.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
	"github.com/carverauto/blockscan/pkg/queue"
	"github.com/carverauto/blockscan/pkg/results"
	"github.com/carverauto/blockscan/pkg/scan"
)

var (
	// ErrQueueEmpty ends a run normally.
	ErrQueueEmpty  = errors.New("queue is empty")
	errTargetPanic = errors.New("target worker panicked")
)

// Queue is the shared work list.
type Queue interface {
	Snapshot(ctx context.Context) ([]string, error)
	Claim(ctx context.Context, target string) (bool, error)
}

// Resolver turns a queue entry into an endpoint.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (models.Endpoint, error)
}

// Scanner probes the block around an endpoint and returns the online count.
type Scanner interface {
	Scan(ctx context.Context, anchor models.Endpoint) (int, error)
}

// Config controls the pass loop.
type Config struct {
	// Workers bounds concurrently processed targets; 0 means one per CPU.
	Workers   int
	PassDelay time.Duration
	Once      bool
}

// PassStats summarizes one pass.
type PassStats struct {
	ID            string
	Targets       int
	Launched      int
	Resolved      int
	ResolveFailed int
	Claimed       int
	Unclaimed     int
	Online        int
	Panics        int
}

// Dispatcher runs passes until the queue is empty or ctx is canceled.
type Dispatcher struct {
	queue    Queue
	resolver Resolver
	scanner  Scanner
	cfg      Config
	shuffle  func([]string)
	logger   logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithShuffle replaces the random target ordering.
func WithShuffle(fn func([]string)) Option {
	return func(d *Dispatcher) {
		d.shuffle = fn
	}
}

// New creates a Dispatcher.
func New(q Queue, r Resolver, s Scanner, cfg Config, log logger.Logger, opts ...Option) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = scan.CPUCount()
	}

	d := &Dispatcher{
		queue:    q,
		resolver: r,
		scanner:  s,
		cfg:      cfg,
		shuffle:  shuffleTargets,
		logger:   log,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func shuffleTargets(targets []string) {
	rand.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})
}

// Run loops over passes. It returns nil when the queue is empty or missing,
// or when ctx is canceled; pass errors such as a snapshot lock timeout are
// logged and retried after the pass delay.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		stats, err := d.RunPass(ctx)

		switch {
		case errors.Is(err, ErrQueueEmpty):
			d.logger.Info().Msg("Queue empty, stopping")

			return nil
		case errors.Is(err, queue.ErrQueueNotFound):
			d.logger.Warn().Err(err).Msg("Queue file missing, stopping")

			return nil
		case ctx.Err() != nil:
			d.logger.Info().Msg("Stop requested, no further passes")

			return nil
		case err != nil:
			d.logger.Warn().Err(err).Msg("Pass failed")
		default:
			d.logger.Info().
				Str("pass", stats.ID).
				Int("targets", stats.Targets).
				Int("resolved", stats.Resolved).
				Int("claimed", stats.Claimed).
				Int("online", stats.Online).
				Msg("Pass finished")
		}

		if d.cfg.Once {
			return err
		}

		if !sleep(ctx, d.cfg.PassDelay) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunPass snapshots the queue and processes every target once, with at most
// min(len(targets), Workers) in flight. Cancellation stops new targets from
// starting; targets already running finish their in-flight probes.
func (d *Dispatcher) RunPass(ctx context.Context) (PassStats, error) {
	targets, err := d.queue.Snapshot(ctx)
	if err != nil {
		return PassStats{}, fmt.Errorf("snapshot queue: %w", err)
	}

	if len(targets) == 0 {
		return PassStats{}, ErrQueueEmpty
	}

	d.shuffle(targets)

	stats := &passCounter{PassStats: PassStats{ID: uuid.NewString(), Targets: len(targets)}}
	limit := min(len(targets), d.cfg.Workers)
	sem := semaphore.NewWeighted(int64(limit))
	passCtx := results.ContextWithScanID(ctx, stats.ID)

	d.logger.Info().
		Str("pass", stats.ID).
		Int("targets", len(targets)).
		Int("workers", limit).
		Msg("Pass started")

	var g errgroup.Group

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		stats.add(func(s *PassStats) { s.Launched++ })

		g.Go(func() error {
			defer sem.Release(1)

			d.processTarget(passCtx, target, stats)

			return nil
		})
	}

	_ = g.Wait()

	return stats.snapshot(), ctx.Err()
}

func (d *Dispatcher) processTarget(ctx context.Context, target string, stats *passCounter) {
	log := d.logger.With().Str("target", target).Logger()

	defer func() {
		if r := recover(); r != nil {
			stats.add(func(s *PassStats) { s.Panics++ })
			log.Error().
				Err(fmt.Errorf("%w: %v", errTargetPanic, r)).
				Bytes("stack", debug.Stack()).
				Msg("Target aborted")
		}
	}()

	log.Info().Msg("Target start")

	ep, err := d.resolver.Resolve(ctx, target)
	if err != nil {
		stats.add(func(s *PassStats) { s.ResolveFailed++ })
		log.Warn().Err(err).Msg("Resolve failed")

		return
	}

	stats.add(func(s *PassStats) { s.Resolved++ })

	// An entry another worker already took, or one we could not lock, is
	// still scanned.
	claimed, err := d.queue.Claim(ctx, target)

	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Claim failed")
	case !claimed:
		stats.add(func(s *PassStats) { s.Unclaimed++ })
		log.Info().Msg("Not claimed")
	default:
		stats.add(func(s *PassStats) { s.Claimed++ })
	}

	online, err := d.scanner.Scan(ctx, ep)
	stats.add(func(s *PassStats) { s.Online += online })

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}

	ev.Str("endpoint", ep.String()).Int("online", online).Msg("Target done")
}

type passCounter struct {
	mu sync.Mutex
	PassStats
}

func (c *passCounter) add(fn func(*PassStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.PassStats)
}

func (c *passCounter) snapshot() PassStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.PassStats
}
