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

package statusproto

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/carverauto/blockscan/pkg/models"
)

const (
	// DefaultProtocolVersion is the protocol number sent in the handshake.
	DefaultProtocolVersion = 47

	// MaxPacketLength is the largest frame accepted from a peer (a three byte varint).
	MaxPacketLength = 1<<21 - 1

	handshakePacketID = 0x00
	statusPacketID    = 0x00
	nextStateStatus   = 1
)

// Frame prefixes payload with its varint length.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, VarIntLen(uint32(len(payload)))+len(payload))
	out = AppendVarInt(out, uint32(len(payload)))

	return append(out, payload...)
}

// HandshakePayload builds the unframed handshake body:
// id, protocol version, host string, big-endian port, next state.
func HandshakePayload(protocolVersion uint32, host string, port uint16) []byte {
	buf := make([]byte, 0, 16+len(host))
	buf = AppendVarInt(buf, handshakePacketID)
	buf = AppendVarInt(buf, protocolVersion)
	buf = AppendVarInt(buf, uint32(len(host)))
	buf = append(buf, host...)
	buf = binary.BigEndian.AppendUint16(buf, port)

	return AppendVarInt(buf, nextStateStatus)
}

// StatusRequestPayload builds the unframed status request body.
func StatusRequestPayload() []byte {
	return AppendVarInt(nil, statusPacketID)
}

// WriteHandshake writes the framed handshake packet.
func WriteHandshake(w io.Writer, protocolVersion uint32, host string, port uint16) error {
	if _, err := w.Write(Frame(HandshakePayload(protocolVersion, host, port))); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	return nil
}

// WriteStatusRequest writes the framed status request packet.
func WriteStatusRequest(w io.Writer) error {
	if _, err := w.Write(Frame(StatusRequestPayload())); err != nil {
		return fmt.Errorf("write status request: %w", err)
	}

	return nil
}

// ReadStatusJSON reads a status response frame and returns the raw JSON
// document. The packet id is read and discarded.
func ReadStatusJSON(r *bufio.Reader) ([]byte, error) {
	total, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read packet length: %w", err)
	}

	if total == 0 || total > MaxPacketLength {
		return nil, fmt.Errorf("%w: packet length %d", ErrOversized, total)
	}

	if _, err = ReadVarInt(r); err != nil {
		return nil, fmt.Errorf("read packet id: %w", err)
	}

	size, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read json length: %w", err)
	}

	if size > total {
		return nil, fmt.Errorf("%w: json length %d exceeds packet length %d", ErrOversized, size, total)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: json body", ErrTruncated)
		}

		return nil, fmt.Errorf("read json body: %w", err)
	}

	return data, nil
}

// ReadStatusResponse reads and decodes a status response.
func ReadStatusResponse(r *bufio.Reader) (*models.StatusResponse, error) {
	data, err := ReadStatusJSON(r)
	if err != nil {
		return nil, err
	}

	var resp models.StatusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode status json: %w", ErrProtocol, err)
	}

	return &resp, nil
}
