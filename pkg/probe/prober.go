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

// Package probe performs the status handshake against a single endpoint.
package probe

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
	"github.com/carverauto/blockscan/pkg/statusproto"
)

const defaultTimeout = 1600 * time.Millisecond

// Dialer opens the TCP connection for a probe. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober queries one endpoint for its status document.
type Prober struct {
	timeout         time.Duration
	protocolVersion uint32
	versionFilter   string
	dialer          Dialer
	logger          logger.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithProtocolVersion overrides the protocol number sent in the handshake.
func WithProtocolVersion(v uint32) Option {
	return func(p *Prober) {
		p.protocolVersion = v
	}
}

// WithVersionFilter discards responses whose version name is not exactly v.
func WithVersionFilter(v string) Option {
	return func(p *Prober) {
		p.versionFilter = v
	}
}

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(p *Prober) {
		p.dialer = d
	}
}

// NewProber creates a Prober. A non-positive timeout selects the default.
func NewProber(timeout time.Duration, log logger.Logger, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	p := &Prober{
		timeout:         timeout,
		protocolVersion: statusproto.DefaultProtocolVersion,
		dialer:          &net.Dialer{},
		logger:          log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe opens one connection to ep, runs the handshake and status request,
// and returns the decoded descriptor. Every failure, including a malformed
// response or a version mismatch, is reported as false.
func (p *Prober) Probe(ctx context.Context, ep models.Endpoint) (models.ProbeOutcome, bool) {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", ep.AddrPort().String())
	if err != nil {
		return models.ProbeOutcome{}, false
	}

	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			p.logger.Trace().Err(err).Str("endpoint", ep.String()).Msg("failed to close connection")
		}
	}(conn)

	if err := conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		return models.ProbeOutcome{}, false
	}

	resp, err := p.exchange(conn, ep)
	if err != nil {
		p.logger.Trace().Err(err).Str("endpoint", ep.String()).Msg("Status exchange failed")

		return models.ProbeOutcome{}, false
	}

	desc := resp.Descriptor()

	if p.versionFilter != "" && desc.VersionName != p.versionFilter {
		p.logger.Trace().
			Str("endpoint", ep.String()).
			Str("version", desc.VersionName).
			Msg("Version filtered")

		return models.ProbeOutcome{}, false
	}

	return models.ProbeOutcome{
		Endpoint:   ep,
		Descriptor: desc,
		RespTime:   time.Since(start),
	}, true
}

func (p *Prober) exchange(conn net.Conn, ep models.Endpoint) (*models.StatusResponse, error) {
	w := bufio.NewWriter(conn)

	if err := statusproto.WriteHandshake(w, p.protocolVersion, ep.Addr.String(), ep.Port); err != nil {
		return nil, err
	}

	if err := statusproto.WriteStatusRequest(w); err != nil {
		return nil, err
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}

	return statusproto.ReadStatusResponse(bufio.NewReader(conn))
}
