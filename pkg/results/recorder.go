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

// Package results turns probe outcomes into persisted server records.
package results

import (
	"context"
	"strings"
	"time"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
	"github.com/carverauto/blockscan/pkg/store"
)

// ContainsForbidden reports whether banner contains any of words,
// ignoring case. Empty words never match.
func ContainsForbidden(banner string, words []string) bool {
	lower := strings.ToLower(banner)

	for _, w := range words {
		if w == "" {
			continue
		}

		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}

	return false
}

// Recorder filters, enriches, logs and persists probe outcomes. Persistence
// failures are logged and otherwise ignored.
type Recorder struct {
	store     store.Store
	forbidden []string
	geo       GeoLookup
	now       func() time.Time
	logger    logger.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithGeoIP enables enrichment.
func WithGeoIP(g GeoLookup) Option {
	return func(r *Recorder) {
		r.geo = g
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder writing to s.
func NewRecorder(s store.Store, forbidden []string, log logger.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:     s,
		forbidden: forbidden,
		now:       time.Now,
		logger:    log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type scanIDKey struct{}

// ContextWithScanID attaches the pass identifier stamped on records.
func ContextWithScanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scanIDKey{}, id)
}

// ScanIDFromContext returns the identifier set by ContextWithScanID.
func ScanIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(scanIDKey{}).(string)

	return id
}

// Record handles one outcome and reports whether it was persisted.
func (r *Recorder) Record(ctx context.Context, outcome models.ProbeOutcome) bool {
	key := outcome.Endpoint.String()
	d := outcome.Descriptor

	if ContainsForbidden(d.Banner, r.forbidden) {
		r.logger.Debug().Str("endpoint", key).Str("banner", d.Banner).Msg("Banner filtered")

		return false
	}

	record := models.NewServerRecord(outcome, ScanIDFromContext(ctx), r.now())

	if r.geo != nil {
		if info, ok := r.geo.Lookup(outcome.Endpoint.Addr); ok {
			record.Country = info.Country
			record.ASN = info.ASN
			record.ASOrg = info.ASOrg
		}
	}

	r.logger.Info().
		Str("endpoint", key).
		Str("banner", d.Banner).
		Str("players", record.Players).
		Str("version", record.Version).
		Dur("resp_time", outcome.RespTime).
		Msg("Server online")

	if err := r.store.Upsert(ctx, key, record); err != nil {
		r.logger.Error().Err(err).Str("endpoint", key).Msg("Failed to persist server")

		return false
	}

	return true
}
