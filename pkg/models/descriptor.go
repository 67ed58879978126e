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
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Banner is the free-form description a server advertises. The wire form is
// either a JSON string or a text component object whose "extra" array nests
// further components; Text and Extra hold the structured case.
type Banner struct {
	Text       string   `json:"text,omitempty"`
	Extra      []Banner `json:"extra,omitempty"`
	structured bool
}

// PlainBanner returns a banner holding a bare string.
func PlainBanner(text string) Banner {
	return Banner{Text: text}
}

// StructuredBanner returns a banner node with nested parts.
func StructuredBanner(text string, children ...Banner) Banner {
	return Banner{Text: text, Extra: children, structured: true}
}

// IsStructured reports whether the banner was a component object on the wire.
func (b Banner) IsStructured() bool {
	return b.structured
}

// Flatten concatenates every text part depth-first, in order.
func (b Banner) Flatten() string {
	var sb strings.Builder

	b.flattenInto(&sb)

	return sb.String()
}

func (b Banner) flattenInto(sb *strings.Builder) {
	sb.WriteString(b.Text)

	for _, child := range b.Extra {
		child.flattenInto(sb)
	}
}

// UnmarshalJSON accepts a string, a component object, an array of
// components, or any other scalar (kept as its literal text). The input is
// decoded once and the banner is built in a single walk of the result.
func (b *Banner) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	*b = bannerFrom(v)

	return nil
}

func bannerFrom(v any) Banner {
	switch node := v.(type) {
	case nil:
		return Banner{}
	case string:
		return PlainBanner(node)
	case json.Number:
		return PlainBanner(node.String())
	case bool:
		return PlainBanner(strconv.FormatBool(node))
	case []any:
		return StructuredBanner("", bannerList(node)...)
	case map[string]any:
		var children []Banner

		switch extra := node["extra"].(type) {
		case nil:
		case []any:
			children = bannerList(extra)
		default:
			children = []Banner{bannerFrom(extra)}
		}

		return StructuredBanner(bannerFrom(node["text"]).Flatten(), children...)
	default:
		return Banner{}
	}
}

func bannerList(items []any) []Banner {
	out := make([]Banner, 0, len(items))
	for _, item := range items {
		out = append(out, bannerFrom(item))
	}

	return out
}

// MarshalJSON writes plain banners back as strings.
func (b Banner) MarshalJSON() ([]byte, error) {
	if !b.structured {
		return json.Marshal(b.Text)
	}

	type node Banner

	return json.Marshal(node(b))
}

// Count is a player or protocol number as servers report it. Numbers,
// fractional numbers and numeric strings are accepted; any other value
// reads as zero rather than failing the document.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	*c = 0

	var raw any

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil {
		return err
	}

	var num json.Number

	switch v := raw.(type) {
	case json.Number:
		num = v
	case string:
		num = json.Number(strings.TrimSpace(v))
	default:
		return nil
	}

	if n, err := num.Int64(); err == nil {
		*c = clampCount(float64(n))
	} else if f, err := num.Float64(); err == nil {
		*c = clampCount(f)
	}

	return nil
}

func clampCount(f float64) Count {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	default:
		return Count(f)
	}
}

// StatusResponse is the JSON document returned by a status request. Only
// the keys the scanner reads are declared; everything else is ignored.
type StatusResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol Count  `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    Count `json:"max"`
		Online Count `json:"online"`
	} `json:"players"`
	Description Banner `json:"description"`
}

// ServiceDescriptor is the normalized view of a status response.
type ServiceDescriptor struct {
	VersionName   string `json:"version"`
	ProtocolID    int    `json:"protocol_id"`
	PlayersOnline int    `json:"players_online"`
	PlayersMax    int    `json:"players_max"`
	Banner        string `json:"description"`
}

// Descriptor normalizes the response.
func (r *StatusResponse) Descriptor() ServiceDescriptor {
	return ServiceDescriptor{
		VersionName:   r.Version.Name,
		ProtocolID:    int(r.Version.Protocol),
		PlayersOnline: int(r.Players.Online),
		PlayersMax:    int(r.Players.Max),
		Banner:        r.Description.Flatten(),
	}
}

// ProbeOutcome pairs an endpoint with the descriptor it answered with.
type ProbeOutcome struct {
	Endpoint   Endpoint
	Descriptor ServiceDescriptor
	RespTime   time.Duration
}
