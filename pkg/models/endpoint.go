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

package models

import (
	"net/netip"
	"strconv"
)

// DefaultPort is the port assumed for queue entries that do not carry one.
const DefaultPort uint16 = 25565

// Endpoint is a resolved IPv4 address and TCP port.
type Endpoint struct {
	Addr netip.Addr `json:"address"`
	Port uint16     `json:"port"`
}

// NewEndpoint builds an Endpoint, unmapping IPv4-in-IPv6 addresses.
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{Addr: addr.Unmap(), Port: port}
}

// String returns the "address:port" form used as the persistence key.
func (e Endpoint) String() string {
	return e.Addr.String() + ":" + strconv.Itoa(int(e.Port))
}

// AddrPort converts the endpoint for use with net dialers.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

// IsValid reports whether the endpoint holds an IPv4 address and a non-zero port.
func (e Endpoint) IsValid() bool {
	return e.Addr.Is4() && e.Port != 0
}
