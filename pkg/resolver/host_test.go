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
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDNSServer(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})

	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			resp := new(dns.Msg)
			resp.SetReply(req)

			q := req.Question[0]

			ip, ok := records[q.Name]
			if !ok {
				resp.Rcode = dns.RcodeNameError
			} else if q.Qtype == dns.TypeA {
				resp.Answer = append(resp.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP(ip),
				})
			}

			_ = w.WriteMsg(resp)
		}),
	}

	go func() { _ = srv.ActivateAndServe() }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}

	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSResolverLookup(t *testing.T) {
	addr := startDNSServer(t, map[string]string{"play.example.com.": "198.51.100.20"})

	r, err := NewDNSResolver([]string{addr}, time.Second)
	require.NoError(t, err)

	got, err := r.LookupIPv4(context.Background(), "play.example.com")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("198.51.100.20"), got)
}

func TestDNSResolverNXDomain(t *testing.T) {
	addr := startDNSServer(t, map[string]string{})

	r, err := NewDNSResolver([]string{addr}, time.Second)
	require.NoError(t, err)

	_, err = r.LookupIPv4(context.Background(), "missing.example.com")
	require.ErrorIs(t, err, ErrDNSFailure)
}

func TestDNSResolverFailsOver(t *testing.T) {
	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	deadAddr := dead.LocalAddr().String()
	require.NoError(t, dead.Close())

	live := startDNSServer(t, map[string]string{"example.com.": "192.0.2.1"})

	r, err := NewDNSResolver([]string{deadAddr, live}, 200*time.Millisecond)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := r.LookupIPv4(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr("192.0.2.1"), got)
	}
}

func TestNewDNSResolver(t *testing.T) {
	_, err := NewDNSResolver(nil, time.Second)
	require.ErrorIs(t, err, ErrNoDNSServers)

	r, err := NewDNSResolver([]string{"192.0.2.53", "192.0.2.54:5353"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.53:53", "192.0.2.54:5353"}, r.servers)
}

func TestSystemResolverLocalhost(t *testing.T) {
	got, err := NewSystemResolver().LookupIPv4(context.Background(), "localhost")
	if err != nil {
		t.Skipf("no local resolver: %v", err)
	}

	assert.True(t, got.Is4())
}
