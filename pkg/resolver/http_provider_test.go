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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

func TestHTTPProviderURL(t *testing.T) {
	withPlaceholder := NewHTTPProvider(models.ProviderConfig{Name: "mcsrvstat", URL: "https://api.mcsrvstat.us/2/{name}"}, nil)
	assert.Equal(t, "https://api.mcsrvstat.us/2/play.example.com:25570", withPlaceholder.URL("play.example.com:25570"))
	assert.Equal(t, "mcsrvstat", withPlaceholder.Name())

	appended := NewHTTPProvider(models.ProviderConfig{URL: "https://lookup.example/v3/"}, nil)
	assert.Equal(t, "https://lookup.example/v3/example.com", appended.URL("example.com"))
	assert.Equal(t, "https://lookup.example/v3/", appended.Name())
}

func TestHTTPProviderLookup(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Candidate
		wantErr error
	}{
		{name: "ip and numeric port", status: 200, body: `{"ip":"1.2.3.4","port":25566}`, want: Candidate{Host: "1.2.3.4", Port: 25566}},
		{name: "string port", status: 200, body: `{"ip":"1.2.3.4","port":"25570"}`, want: Candidate{Host: "1.2.3.4", Port: 25570}},
		{name: "hostname fallback", status: 200, body: `{"ip":"","hostname":"mc.example.net"}`, want: Candidate{Host: "mc.example.net"}},
		{name: "address fallback", status: 200, body: `{"address":"5.6.7.8"}`, want: Candidate{Host: "5.6.7.8"}},
		{name: "domain fallback", status: 200, body: `{"domain":"x.example.org","port":null}`, want: Candidate{Host: "x.example.org"}},
		{name: "host:port overrides port", status: 200, body: `{"ip":"9.8.7.6:25599","port":25565}`, want: Candidate{Host: "9.8.7.6", Port: 25599}},
		{name: "no address", status: 200, body: `{"online":false}`, wantErr: ErrNoAddress},
		{name: "bad port", status: 200, body: `{"ip":"1.2.3.4","port":"abc"}`, wantErr: ErrInvalidPort},
		{name: "server error", status: 502, body: `{}`, wantErr: ErrProviderStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewHTTPProvider(models.ProviderConfig{Name: "test", URL: srv.URL + "/2/{name}"}, srv.Client())

			got, err := p.Lookup(context.Background(), "example.com")
			assert.Equal(t, "/2/example.com", gotPath)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPProviderMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(models.ProviderConfig{URL: srv.URL}, srv.Client())

	_, err := p.Lookup(context.Background(), "example.com")
	require.Error(t, err)
}

func TestHTTPProviderFeedsResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"203.0.113.9","port":25565}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(models.ProviderConfig{Name: "local", URL: srv.URL + "/{name}"}, srv.Client())
	r := New([]Provider{p}, nil, 25565, 0, logger.NewTestLogger())

	got, err := r.Resolve(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, ep("203.0.113.9", 25565), got)
}
