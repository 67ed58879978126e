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
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 16383, 16384, 2097151, math.MaxInt32, math.MaxUint32}

	for _, v := range values {
		encoded := AppendVarInt(nil, v)
		assert.LessOrEqual(t, len(encoded), MaxVarIntLen, "value %d", v)
		assert.Equal(t, VarIntLen(v), len(encoded), "value %d", v)

		decoded, err := ReadVarInt(bytes.NewReader(encoded))
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, decoded)
	}
}

func TestVarIntKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer

		require.NoError(t, WriteVarInt(&buf, tt.value))
		assert.Equal(t, tt.want, buf.Bytes(), "value %d", tt.value)
	}
}

func TestReadVarIntTooBig(t *testing.T) {
	r := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})

	_, err := ReadVarInt(r)
	require.ErrorIs(t, err, ErrVarIntTooBig)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestReadVarIntTruncated(t *testing.T) {
	_, err := ReadVarInt(bufio.NewReader(bytes.NewReader([]byte{0x80, 0x80})))
	require.ErrorIs(t, err, ErrTruncated)

	_, err = ReadVarInt(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrTruncated)
}
