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
	"fmt"
	"time"
)

// ServerRecord is the document upserted for every discovered endpoint,
// keyed by Endpoint.String().
type ServerRecord struct {
	Address       string    `json:"address"`
	Port          uint16    `json:"port"`
	Description   string    `json:"description"`
	Version       string    `json:"version"`
	ProtocolID    int       `json:"protocol_id"`
	PlayersOnline int       `json:"players_online"`
	PlayersMax    int       `json:"players_max"`
	Players       string    `json:"players"`
	Country       string    `json:"country,omitempty"`
	ASN           uint      `json:"asn,omitempty"`
	ASOrg         string    `json:"as_org,omitempty"`
	ScanID        string    `json:"scan_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewServerRecord builds the persisted document for a probe outcome.
func NewServerRecord(outcome ProbeOutcome, scanID string, now time.Time) ServerRecord {
	d := outcome.Descriptor

	version := d.VersionName
	if version == "" {
		version = "Unknown"
	}

	return ServerRecord{
		Address:       outcome.Endpoint.Addr.String(),
		Port:          outcome.Endpoint.Port,
		Description:   d.Banner,
		Version:       version,
		ProtocolID:    d.ProtocolID,
		PlayersOnline: d.PlayersOnline,
		PlayersMax:    d.PlayersMax,
		Players:       fmt.Sprintf("%d/%d", d.PlayersOnline, d.PlayersMax),
		ScanID:        scanID,
		Timestamp:     now.UTC(),
	}
}
