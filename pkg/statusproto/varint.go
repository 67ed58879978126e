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

// Package statusproto implements the handshake and status exchange used to
// query a server for its status document: variable-width integers,
// length-prefixed packets and the status response reader.
package statusproto

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrProtocol is the root of every framing or decoding failure.
	ErrProtocol = errors.New("protocol error")
	// ErrVarIntTooBig is returned when a varint runs past five bytes.
	ErrVarIntTooBig = fmt.Errorf("%w: varint too big", ErrProtocol)
	// ErrTruncated is returned when the peer closes before a frame is complete.
	ErrTruncated = fmt.Errorf("%w: truncated frame", ErrProtocol)
	// ErrOversized is returned when a declared length exceeds the frame limits.
	ErrOversized = fmt.Errorf("%w: oversized frame", ErrProtocol)
)

const (
	// MaxVarIntLen is the longest encoding of a 32-bit value.
	MaxVarIntLen = 5

	segmentBits  = 0x7f
	continueBit  = 0x80
	bitsPerGroup = 7
)

// AppendVarInt appends the varint encoding of v to buf.
func AppendVarInt(buf []byte, v uint32) []byte {
	for {
		b := byte(v & segmentBits)
		v >>= bitsPerGroup

		if v == 0 {
			return append(buf, b)
		}

		buf = append(buf, b|continueBit)
	}
}

// VarIntLen returns the number of bytes AppendVarInt would write for v.
func VarIntLen(v uint32) int {
	n := 1
	for v >= continueBit {
		v >>= bitsPerGroup
		n++
	}

	return n
}

// WriteVarInt writes the varint encoding of v to w.
func WriteVarInt(w io.Writer, v uint32) error {
	var scratch [MaxVarIntLen]byte

	_, err := w.Write(AppendVarInt(scratch[:0], v))

	return err
}

// ReadVarInt reads one varint, a byte at a time. A stream that ends inside
// the varint yields ErrTruncated; more than five bytes yields ErrVarIntTooBig.
func ReadVarInt(r io.ByteReader) (uint32, error) {
	var result uint32

	for i := 0; ; i++ {
		if i == MaxVarIntLen {
			return 0, ErrVarIntTooBig
		}

		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrTruncated
			}

			return 0, err
		}

		result |= uint32(b&segmentBits) << (bitsPerGroup * i)

		if b&continueBit == 0 {
			return result, nil
		}
	}
}
