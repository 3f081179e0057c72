// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package msgpack

import "golang.org/x/exp/slices"

// minHeapCapacity is the floor applied to the initial heap capacity
// when the caller supplies a hint but no stock storage.
const minHeapCapacity = 32

// flatbuf is the stock-first, geometrically-growing buffer shared by
// the decoder's tags/values arrays and depth stack, and by the
// encoder's output buffer.
//
// Stock storage (caller-owned, e.g. stack-allocated by the caller's
// caller) is used in place until its capacity is exhausted. The first
// append past that capacity promotes to a freshly allocated buffer
// 1.5x the size of whatever came before; every following overflow grows
// the same way. Stock storage is never written beyond its capacity
// and is never handed back to any allocator: once Go
// slice growth has to outgrow it, the old backing array is simply
// dropped and left to the caller. Stock storage is never freed here.
type flatbuf[T any] struct {
	buf      []T
	hadStock bool
	promoted bool
}

func newFlatbuf[T any](stock []T, hintOrStockCap int) flatbuf[T] {
	if stock != nil {
		return flatbuf[T]{buf: stock[:0], hadStock: true}
	}
	c := hintOrStockCap
	if c < minHeapCapacity {
		c = minHeapCapacity
	}
	return flatbuf[T]{buf: make([]T, 0, c)}
}

// ensure guarantees room for n more elements past the current length,
// growing geometrically (1.5x) and promoting off stock storage on
// first overflow.
func (f *flatbuf[T]) ensure(n int) {
	need := len(f.buf) + n
	if need <= cap(f.buf) {
		return
	}
	target := cap(f.buf) + cap(f.buf)/2
	if target < need {
		target = need
	}
	f.buf = slices.Grow(f.buf, target-len(f.buf))
	if f.hadStock {
		f.promoted = true
	}
}

func (f *flatbuf[T]) push(v T) {
	f.ensure(1)
	f.buf = append(f.buf, v)
}

func (f *flatbuf[T]) len() int { return len(f.buf) }

func (f *flatbuf[T]) pop() T {
	n := len(f.buf) - 1
	v := f.buf[n]
	f.buf = f.buf[:n]
	return v
}

// samePointer reports whether the returned storage is still the
// caller's stock storage, i.e. whether it is the same pointer as what
// the caller passed in because no growth has occurred yet.
func (f *flatbuf[T]) samePointer() bool { return f.hadStock && !f.promoted }
