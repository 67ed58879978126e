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

package results

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/maxminddb-golang"
)

// GeoInfo is the enrichment attached to a record.
type GeoInfo struct {
	Country string
	ASN     uint
	ASOrg   string
}

// GeoLookup resolves an address to GeoInfo.
type GeoLookup interface {
	Lookup(addr netip.Addr) (GeoInfo, bool)
}

// geoRecord decodes either a Country or an ASN database.
type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	ASN   uint   `maxminddb:"autonomous_system_number"`
	ASOrg string `maxminddb:"autonomous_system_organization"`
}

// GeoIP reads a MaxMind database.
type GeoIP struct {
	reader *maxminddb.Reader
}

// OpenGeoIP opens the database at path.
func OpenGeoIP(path string) (*GeoIP, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}

	return &GeoIP{reader: reader}, nil
}

// GeoIPFromBytes loads a database already in memory.
func GeoIPFromBytes(data []byte) (*GeoIP, error) {
	reader, err := maxminddb.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("load geoip database: %w", err)
	}

	return &GeoIP{reader: reader}, nil
}

// Lookup implements GeoLookup.
func (g *GeoIP) Lookup(addr netip.Addr) (GeoInfo, bool) {
	var rec geoRecord

	if err := g.reader.Lookup(net.IP(addr.AsSlice()), &rec); err != nil {
		return GeoInfo{}, false
	}

	info := GeoInfo{Country: rec.Country.ISOCode, ASN: rec.ASN, ASOrg: rec.ASOrg}
	if info == (GeoInfo{}) {
		return GeoInfo{}, false
	}

	return info, true
}

// Close releases the database.
func (g *GeoIP) Close() error {
	return g.reader.Close()
}
