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
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

type fakeProber struct {
	online map[netip.Addr]bool
	calls  atomic.Int64
	ports  sync.Map
	hook   func(models.Endpoint)
}

func (f *fakeProber) Probe(_ context.Context, ep models.Endpoint) (models.ProbeOutcome, bool) {
	f.calls.Add(1)
	f.ports.Store(ep.Port, true)

	if f.hook != nil {
		f.hook(ep)
	}

	if !f.online[ep.Addr] {
		return models.ProbeOutcome{}, false
	}

	return models.ProbeOutcome{
		Endpoint:   ep,
		Descriptor: models.ServiceDescriptor{VersionName: "1.8.9", PlayersMax: 20},
	}, true
}

type fakeSink struct {
	mu       sync.Mutex
	outcomes []models.ProbeOutcome
}

func (f *fakeSink) Record(_ context.Context, outcome models.ProbeOutcome) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.outcomes = append(f.outcomes, outcome)

	return true
}

func (f *fakeSink) addrs() []netip.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]netip.Addr, 0, len(f.outcomes))
	for _, o := range f.outcomes {
		out = append(out, o.Endpoint.Addr)
	}

	return out
}

func TestBlockScannerCountsAndStreams(t *testing.T) {
	online := map[netip.Addr]bool{
		netip.MustParseAddr("1.2.0.1"):   true,
		netip.MustParseAddr("1.2.3.4"):   true,
		netip.MustParseAddr("1.2.7.254"): true,
		netip.MustParseAddr("1.2.8.1"):   true, // outside the block
	}

	prober := &fakeProber{online: online}
	sink := &fakeSink{}
	scanner := NewBlockScanner(prober, sink, 16, logger.NewTestLogger())

	count, err := scanner.Scan(context.Background(), models.NewEndpoint(netip.MustParseAddr("1.2.3.4"), 25566))
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.Equal(t, int64(BlockSize), prober.calls.Load())
	assert.ElementsMatch(t, []netip.Addr{
		netip.MustParseAddr("1.2.0.1"),
		netip.MustParseAddr("1.2.3.4"),
		netip.MustParseAddr("1.2.7.254"),
	}, sink.addrs())

	_, usedAnchorPort := prober.ports.Load(uint16(25566))
	assert.True(t, usedAnchorPort)
}

type panickySink struct {
	fakeSink
	bad netip.Addr
}

func (p *panickySink) Record(ctx context.Context, outcome models.ProbeOutcome) bool {
	if outcome.Endpoint.Addr == p.bad {
		panic("sink exploded")
	}

	return p.fakeSink.Record(ctx, outcome)
}

func TestBlockScannerSurvivesPanics(t *testing.T) {
	probePanics := netip.MustParseAddr("1.2.3.4")
	sinkPanics := netip.MustParseAddr("1.2.0.1")
	healthy := netip.MustParseAddr("1.2.7.254")

	prober := &fakeProber{
		online: map[netip.Addr]bool{probePanics: true, sinkPanics: true, healthy: true},
		hook: func(ep models.Endpoint) {
			if ep.Addr == probePanics {
				panic("probe exploded")
			}
		},
	}
	sink := &panickySink{bad: sinkPanics}

	count, err := NewBlockScanner(prober, sink, 8, logger.NewTestLogger()).
		Scan(context.Background(), models.NewEndpoint(probePanics, 25565))
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, int64(BlockSize), prober.calls.Load())
	assert.Equal(t, []netip.Addr{healthy}, sink.addrs())
}

func TestBlockScannerNothingOnline(t *testing.T) {
	sink := &fakeSink{}
	scanner := NewBlockScanner(&fakeProber{}, sink, 4, logger.NewTestLogger())

	count, err := scanner.Scan(context.Background(), models.NewEndpoint(netip.MustParseAddr("10.0.0.1"), 25565))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, sink.addrs())
}

func TestBlockScannerRejectsIPv6Anchor(t *testing.T) {
	scanner := NewBlockScanner(&fakeProber{}, &fakeSink{}, 4, logger.NewTestLogger())

	_, err := scanner.Scan(context.Background(), models.NewEndpoint(netip.MustParseAddr("2001:db8::1"), 25565))
	require.ErrorIs(t, err, ErrNotIPv4)
}

func TestBlockScannerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &fakeProber{}
	prober.hook = func(models.Endpoint) {
		if prober.calls.Load() >= 50 {
			cancel()
		}
	}

	scanner := NewBlockScanner(prober, &fakeSink{}, 2, logger.NewTestLogger())

	_, err := scanner.Scan(ctx, models.NewEndpoint(netip.MustParseAddr("1.2.3.4"), 25565))
	require.ErrorIs(t, err, ErrScanInterrupted)
	assert.Less(t, prober.calls.Load(), int64(BlockSize))
}

func TestNewBlockScannerDefaultsConcurrency(t *testing.T) {
	scanner := NewBlockScanner(&fakeProber{}, &fakeSink{}, 0, logger.NewTestLogger())

	assert.GreaterOrEqual(t, scanner.Concurrency(), 32)
	assert.LessOrEqual(t, scanner.Concurrency(), 500)
}
