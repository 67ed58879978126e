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

package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// SystemResolver uses the platform resolver.
type SystemResolver struct {
	resolver *net.Resolver
}

// NewSystemResolver wraps net.DefaultResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{resolver: net.DefaultResolver}
}

// LookupIPv4 implements HostResolver.
func (s *SystemResolver) LookupIPv4(ctx context.Context, host string) (netip.Addr, error) {
	addrs, err := s.resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}

	for _, a := range addrs {
		if a = a.Unmap(); a.Is4() {
			return a, nil
		}
	}

	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoIPv4Record, host)
}

// DNSResolver sends A queries directly to configured servers, rotating the
// starting server between calls and failing over on error.
type DNSResolver struct {
	servers []string
	client  *dns.Client
	next    atomic.Uint32
}

// NewDNSResolver creates a resolver for servers given as "host" or
// "host:port"; port 53 is assumed when missing.
func NewDNSResolver(servers []string, timeout time.Duration) (*DNSResolver, error) {
	if len(servers) == 0 {
		return nil, ErrNoDNSServers
	}

	normalized := make([]string, 0, len(servers))

	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}

		normalized = append(normalized, s)
	}

	return &DNSResolver{
		servers: normalized,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

// LookupIPv4 implements HostResolver.
func (d *DNSResolver) LookupIPv4(ctx context.Context, host string) (netip.Addr, error) {
	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(host), dns.TypeA)
	query.RecursionDesired = true

	start := int(d.next.Add(1)-1) % len(d.servers)

	var lastErr error

	for i := range d.servers {
		server := d.servers[(start+i)%len(d.servers)]

		addr, err := d.exchange(ctx, query, server)
		if err == nil {
			return addr, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return netip.Addr{}, fmt.Errorf("lookup %s: %w", host, lastErr)
}

func (d *DNSResolver) exchange(ctx context.Context, query *dns.Msg, server string) (netip.Addr, error) {
	resp, _, err := d.client.ExchangeContext(ctx, query, server)
	if err != nil {
		return netip.Addr{}, err
	}

	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("%w: %s: %s", ErrDNSFailure, server, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
				return addr, nil
			}
		}
	}

	return netip.Addr{}, ErrNoIPv4Record
}
