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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/carverauto/blockscan/pkg/models"
)

const (
	namePlaceholder = "{name}"
	maxProviderBody = 1 << 20
	providerAccept  = "application/json"
	providerAgent   = "blockscan"
)

// HTTPProvider queries a JSON lookup service such as api.mcsrvstat.us.
type HTTPProvider struct {
	name     string
	template string
	client   *http.Client
}

// NewHTTPProvider creates a provider from its configuration. A nil client
// selects http.DefaultClient; per-call timeouts come from the context.
func NewHTTPProvider(cfg models.ProviderConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}

	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}

	return &HTTPProvider{
		name:     name,
		template: cfg.URL,
		client:   client,
	}
}

// Name implements Provider.
func (p *HTTPProvider) Name() string {
	return p.name
}

// URL returns the request URL for target.
func (p *HTTPProvider) URL(target string) string {
	escaped := url.PathEscape(target)

	if strings.Contains(p.template, namePlaceholder) {
		return strings.ReplaceAll(p.template, namePlaceholder, escaped)
	}

	return strings.TrimRight(p.template, "/") + "/" + escaped
}

type providerResponse struct {
	IP       string          `json:"ip"`
	Hostname string          `json:"hostname"`
	Address  string          `json:"address"`
	Domain   string          `json:"domain"`
	Port     json.RawMessage `json:"port"`
}

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, target string) (Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(target), http.NoBody)
	if err != nil {
		return Candidate{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", providerAccept)
	req.Header.Set("User-Agent", providerAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Candidate{}, fmt.Errorf("%s: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Candidate{}, fmt.Errorf("%w: %s: %d", ErrProviderStatus, p.name, resp.StatusCode)
	}

	var body providerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderBody)).Decode(&body); err != nil {
		return Candidate{}, fmt.Errorf("%s: decode response: %w", p.name, err)
	}

	return body.candidate()
}

func (r *providerResponse) candidate() (Candidate, error) {
	host := firstNonEmpty(r.IP, r.Hostname, r.Address, r.Domain)
	if host == "" {
		return Candidate{}, ErrNoAddress
	}

	port, err := parsePort(r.Port)
	if err != nil {
		return Candidate{}, err
	}

	// "host:port" in the address field overrides the port field.
	if strings.Count(host, ":") == 1 && !strings.Contains(host, "[") {
		h, p, _ := strings.Cut(host, ":")
		if n, err := strconv.ParseUint(p, 10, 16); err == nil && n != 0 {
			host, port = h, uint16(n)
		}
	}

	return Candidate{Host: host, Port: port}, nil
}

func parsePort(raw json.RawMessage) (uint16, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var (
		num uint64
		err error
	)

	var s string
	if json.Unmarshal(raw, &s) == nil {
		num, err = strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	} else {
		num, err = strconv.ParseUint(string(raw), 10, 16)
	}

	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPort, raw)
	}

	return uint16(num), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
