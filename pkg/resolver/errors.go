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

import "errors"

var (
	ErrResolveFailure  = errors.New("no resolution strategy produced an endpoint")
	ErrIPv6Unsupported = errors.New("IPv6 targets are not supported")
	ErrNoAddress       = errors.New("provider returned no address")
	ErrProviderStatus  = errors.New("provider returned an unexpected status")
	ErrNoIPv4Record    = errors.New("no IPv4 address found")
	ErrInvalidPort     = errors.New("invalid port")
	ErrNoDNSServers    = errors.New("no DNS servers configured")
	ErrDNSFailure      = errors.New("DNS query failed")
)
