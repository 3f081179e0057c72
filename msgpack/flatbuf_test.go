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

import "testing"

func TestFlatbufSamePointerWithUnexhaustedStock(t *testing.T) {
	stock := make([]byte, 0, 4)
	f := newFlatbuf(stock, 0)
	f.push('a')
	f.push('b')
	if !f.samePointer() {
		t.Fatalf("expected samePointer after pushes within stock capacity")
	}
}

func TestFlatbufSamePointerFalseAfterPromotion(t *testing.T) {
	stock := make([]byte, 0, 1)
	f := newFlatbuf(stock, 0)
	f.push('a')
	if !f.samePointer() {
		t.Fatalf("expected samePointer before any overflow")
	}
	f.push('b') // overflows the 1-byte stock capacity
	if f.samePointer() {
		t.Fatalf("expected samePointer to be false once the buffer promotes off stock")
	}
}

func TestFlatbufSamePointerWithoutStock(t *testing.T) {
	f := newFlatbuf[byte](nil, 8)
	f.push('a')
	if f.samePointer() {
		t.Fatalf("expected samePointer to be false when no stock buffer was supplied")
	}
}
