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

package scan

import (
	"context"
	"fmt"
	"net/netip"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

// Prober checks one endpoint; false means no usable response.
type Prober interface {
	Probe(ctx context.Context, ep models.Endpoint) (models.ProbeOutcome, bool)
}

// Sink receives outcomes as they arrive; false means the outcome was not kept.
type Sink interface {
	Record(ctx context.Context, outcome models.ProbeOutcome) bool
}

// BlockScanner fans a Prober out across every address in an anchor's block.
type BlockScanner struct {
	prober      Prober
	sink        Sink
	concurrency int
	logger      logger.Logger
}

const (
	defaultConcurrencyMultiplier = 2
)

// NewBlockScanner creates a scanner with a fixed pool size.
func NewBlockScanner(prober Prober, sink Sink, concurrency int, log logger.Logger) *BlockScanner {
	if concurrency <= 0 {
		concurrency = PoolSize(CPUCount(), models.PoolConfig{ScaleFactor: 30, MinWorkers: 32, MaxWorkers: 500})
	}

	return &BlockScanner{
		prober:      prober,
		sink:        sink,
		concurrency: concurrency,
		logger:      log,
	}
}

// Concurrency returns the pool size.
func (s *BlockScanner) Concurrency() int {
	return s.concurrency
}

// Scan probes the block around anchor on anchor's port and returns how many
// addresses answered. Outcomes are handed to the sink as they complete. When
// ctx is canceled no further probes start, probes already dialing finish,
// and ErrScanInterrupted is returned with the partial count.
func (s *BlockScanner) Scan(ctx context.Context, anchor models.Endpoint) (int, error) {
	block, err := ExpandBlock(anchor.Addr)
	if err != nil {
		return 0, err
	}

	start := time.Now()

	workCh := make(chan netip.Addr, s.concurrency*defaultConcurrencyMultiplier)
	resultCh := make(chan models.ProbeOutcome, s.concurrency)

	var (
		wg          sync.WaitGroup
		interrupted atomic.Bool
	)

	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.worker(ctx, anchor.Port, workCh, resultCh, &interrupted)
		}()
	}

	go func() {
		defer close(workCh)

		for addr := range block.All() {
			select {
			case <-ctx.Done():
				interrupted.Store(true)
				return
			case workCh <- addr:
			}
		}
	}()

	go func() {
		wg.Wait()

		close(resultCh)
	}()

	// Sink writes outlive a stop request; losing a confirmed hit helps no one.
	sinkCtx := context.WithoutCancel(ctx)
	online := 0

	for outcome := range resultCh {
		if s.record(sinkCtx, outcome) {
			online++
		}
	}

	s.logger.Debug().
		Str("block", block.Prefix().String()).
		Int("online", online).
		Dur("elapsed", time.Since(start)).
		Msg("Block scan finished")

	if interrupted.Load() {
		return online, fmt.Errorf("%w: %s", ErrScanInterrupted, block.Prefix())
	}

	return online, nil
}

func (s *BlockScanner) worker(
	ctx context.Context, port uint16, workCh <-chan netip.Addr, resultCh chan<- models.ProbeOutcome, interrupted *atomic.Bool,
) {
	probeCtx := context.WithoutCancel(ctx)

	for addr := range workCh {
		if ctx.Err() != nil {
			interrupted.Store(true)
			continue
		}

		outcome, ok := s.probe(probeCtx, models.NewEndpoint(addr, port))
		if !ok {
			continue
		}

		resultCh <- outcome
	}
}

// probe runs one probe; a panic counts the address as offline.
func (s *BlockScanner) probe(ctx context.Context, ep models.Endpoint) (outcome models.ProbeOutcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logPanic(r, ep, "Probe aborted")

			outcome, ok = models.ProbeOutcome{}, false
		}
	}()

	return s.prober.Probe(ctx, ep)
}

// record hands outcome to the sink. It reports false only when the sink
// panicked, in which case the address is counted as offline.
func (s *BlockScanner) record(ctx context.Context, outcome models.ProbeOutcome) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logPanic(r, outcome.Endpoint, "Record aborted")

			ok = false
		}
	}()

	s.sink.Record(ctx, outcome)

	return true
}

func (s *BlockScanner) logPanic(r any, ep models.Endpoint, msg string) {
	s.logger.Error().
		Err(fmt.Errorf("%w: %v", errWorkerPanic, r)).
		Str("endpoint", ep.String()).
		Bytes("stack", debug.Stack()).
		Msg(msg)
}
