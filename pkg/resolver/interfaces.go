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
	"net/netip"
)

//go:generate mockgen -destination=mock_resolver.go -package=resolver github.com/carverauto/blockscan/pkg/resolver Provider,HostResolver

// Candidate is a provider's answer. Port is zero when the provider did not
// report one.
type Candidate struct {
	Host string
	Port uint16
}

// Provider looks a target up through an external service.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, target string) (Candidate, error)
}

// HostResolver turns a hostname into one IPv4 address.
type HostResolver interface {
	LookupIPv4(ctx context.Context, host string) (netip.Addr, error)
}
