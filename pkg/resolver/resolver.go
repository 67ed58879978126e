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

// Package resolver turns queue entries into dialable endpoints.
package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

// Resolver tries, in order: a literal address:port, a literal address,
// each provider, and finally plain name resolution.
type Resolver struct {
	providers   []Provider
	hosts       HostResolver
	defaultPort uint16
	timeout     time.Duration
	logger      logger.Logger
}

// New creates a Resolver. A zero defaultPort selects models.DefaultPort.
func New(providers []Provider, hosts HostResolver, defaultPort uint16, timeout time.Duration, log logger.Logger) *Resolver {
	if defaultPort == 0 {
		defaultPort = models.DefaultPort
	}

	return &Resolver{
		providers:   providers,
		hosts:       hosts,
		defaultPort: defaultPort,
		timeout:     timeout,
		logger:      log,
	}
}

// Resolve returns the endpoint for raw. IPv6 literals fail with
// ErrIPv6Unsupported; everything else that cannot be resolved fails with
// ErrResolveFailure.
func (r *Resolver) Resolve(ctx context.Context, raw string) (models.Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Endpoint{}, fmt.Errorf("%w: empty target", ErrResolveFailure)
	}

	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return literal(ap.Addr(), ap.Port())
	}

	if addr, err := netip.ParseAddr(raw); err == nil {
		return literal(addr, r.defaultPort)
	}

	host, port := splitTarget(raw)

	for _, p := range r.providers {
		ep, err := r.viaProvider(ctx, p, raw, port)
		if err == nil {
			return ep, nil
		}

		r.logger.Debug().Err(err).Str("provider", p.Name()).Str("target", raw).Msg("Provider lookup failed")
	}

	if r.hosts != nil {
		addr, err := r.lookupHost(ctx, host)
		if err == nil {
			return endpoint(addr, port, r.defaultPort), nil
		}

		return models.Endpoint{}, fmt.Errorf("%w: %s: %w", ErrResolveFailure, raw, err)
	}

	return models.Endpoint{}, fmt.Errorf("%w: %s", ErrResolveFailure, raw)
}

func (r *Resolver) viaProvider(ctx context.Context, p Provider, raw string, explicitPort uint16) (models.Endpoint, error) {
	lookupCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	cand, err := p.Lookup(lookupCtx, raw)
	if err != nil {
		return models.Endpoint{}, err
	}

	port := explicitPort
	if cand.Port != 0 {
		port = cand.Port
	}

	if addr, err := netip.ParseAddr(cand.Host); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return models.Endpoint{}, fmt.Errorf("%w: %s", ErrIPv6Unsupported, addr)
		}

		return endpoint(addr, port, r.defaultPort), nil
	}

	if r.hosts == nil {
		return models.Endpoint{}, fmt.Errorf("%w: %s", ErrNoIPv4Record, cand.Host)
	}

	addr, err := r.lookupHost(ctx, cand.Host)
	if err != nil {
		return models.Endpoint{}, err
	}

	return endpoint(addr, port, r.defaultPort), nil
}

func (r *Resolver) lookupHost(ctx context.Context, host string) (netip.Addr, error) {
	lookupCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.hosts.LookupIPv4(lookupCtx, host)
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.timeout)
}

func literal(addr netip.Addr, port uint16) (models.Endpoint, error) {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}

	if !addr.Is4() {
		return models.Endpoint{}, fmt.Errorf("%w: %s", ErrIPv6Unsupported, addr)
	}

	if port == 0 {
		return models.Endpoint{}, fmt.Errorf("%w: %w: 0", ErrResolveFailure, ErrInvalidPort)
	}

	return models.NewEndpoint(addr, port), nil
}

func endpoint(addr netip.Addr, port, fallback uint16) models.Endpoint {
	if port == 0 {
		port = fallback
	}

	return models.NewEndpoint(addr, port)
}

// splitTarget separates "host:port"; port is zero when absent or not numeric.
func splitTarget(raw string) (string, uint16) {
	if strings.Count(raw, ":") != 1 {
		return raw, 0
	}

	host, p, err := net.SplitHostPort(raw)
	if err != nil {
		return raw, 0
	}

	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil || port == 0 {
		return raw, 0
	}

	return host, uint16(port)
}
