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

package scan

import (
	"fmt"
	"iter"
	"net/netip"

	"go4.org/netipx"
)

const (
	// BlockBits is the prefix length of the block scanned around an anchor.
	BlockBits = 21
	// BlockSize is the number of usable host addresses in a block.
	BlockSize = 1<<(32-BlockBits) - 2
)

// AddressBlock is the /21 containing an anchor address, minus its network
// and broadcast addresses. It is a value type: iterating it twice yields the
// same sequence.
type AddressBlock struct {
	prefix netip.Prefix
	first  netip.Addr
	last   netip.Addr
}

// ExpandBlock returns the block containing anchor. The anchor does not need
// to be the network address.
func ExpandBlock(anchor netip.Addr) (AddressBlock, error) {
	anchor = anchor.Unmap()
	if !anchor.Is4() {
		return AddressBlock{}, fmt.Errorf("%w: %s", ErrNotIPv4, anchor)
	}

	prefix := netip.PrefixFrom(anchor, BlockBits).Masked()
	r := netipx.RangeOfPrefix(prefix)

	return AddressBlock{
		prefix: prefix,
		first:  r.From().Next(),
		last:   r.To().Prev(),
	}, nil
}

// Prefix returns the network prefix of the block.
func (b AddressBlock) Prefix() netip.Prefix {
	return b.prefix
}

// Len returns the number of host addresses in the block.
func (b AddressBlock) Len() int {
	if !b.prefix.IsValid() {
		return 0
	}

	return BlockSize
}

// Contains reports whether addr is one of the block's host addresses.
func (b AddressBlock) Contains(addr netip.Addr) bool {
	if !b.prefix.IsValid() {
		return false
	}

	return netipx.IPRangeFrom(b.first, b.last).Contains(addr.Unmap())
}

// All yields every host address in ascending order.
func (b AddressBlock) All() iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		if !b.prefix.IsValid() {
			return
		}

		for addr := b.first; addr.Compare(b.last) <= 0; addr = addr.Next() {
			if !yield(addr) {
				return
			}
		}
	}
}

// Addrs materializes All.
func (b AddressBlock) Addrs() []netip.Addr {
	out := make([]netip.Addr, 0, b.Len())
	for addr := range b.All() {
		out = append(out, addr)
	}

	return out
}
