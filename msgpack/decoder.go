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

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when a length prefix or payload would read
// past the end of the input.
var ErrTruncated = errors.New("msgpack: truncated input")

// ErrReserved is returned when the decoder encounters the reserved byte
// 0xc1, which is not a valid MessagePack type tag.
var ErrReserved = errors.New("msgpack: reserved byte 0xc1")

// noPatch is the sentinel "no open container" value threaded through
// the xoff field of whatever container is currently open; see Decode.
const noPatch = ^uint32(0)

// Decode flattens a MessagePack document into parallel tags/values
// arrays, in preorder. Every Array/Map slot's Value.Off() is the
// sibling-skip distance to the slot following its last descendant.
//
// stockTags and stockValues, if non-nil, are used in place until their
// capacity is exhausted, at which point Decode transparently promotes
// to freshly allocated slices (see flatbuf); hintOrStockCap names their
// capacity when they are provided, or the initial heap capacity
// (floored at 32) when they are not.
//
// On success the returned slices are owned by the caller. On failure
// Decode returns a non-nil error and no usable arrays; it never
// touches stockTags/stockValues's contents in a way the caller needs to
// unwind.
func Decode(input []byte, hintOrStockCap int, stockTags []Tag, stockValues []Value) ([]Tag, []Value, error) {
	tags := newFlatbuf(stockTags, hintOrStockCap)
	values := newFlatbuf(stockValues, hintOrStockCap)
	var stack flatbuf[uint32]

	todo := 1 // the implicit top-level "one element"
	patch := noPatch
	cursor := 0

	for {
		// Mirrors the reference's `while (todo-- == 0) { ... }`:
		// every pass consumes one outstanding sibling slot; when the
		// count was already at zero, the container (or the virtual
		// top level) it belongs to has just been completed.
		todo--
		for todo < 0 {
			if stack.len() == 0 {
				n := tags.len()
				return tags.buf[:n], values.buf[:n], nil
			}
			todo = int(stack.pop())
			fixIdx := patch
			patch = values.buf[fixIdx].Off()
			values.buf[fixIdx] = values.buf[fixIdx].withOff(uint32(tags.len()) - fixIdx)
			todo--
		}

		if cursor >= len(input) {
			return nil, nil, ErrTruncated
		}

		tag, value, newCursor, err := decodeOne(input, cursor)
		if err != nil {
			return nil, nil, err
		}

		switch tag {
		case Array, Map:
			descendants := int(value.Len())
			if tag == Map {
				descendants *= 2
			}
			tags.push(tag)
			values.push(value.withOff(patch))
			patch = uint32(tags.len() - 1)
			stack.push(uint32(todo))
			todo = descendants
			cursor = newCursor
		default:
			tags.push(tag)
			values.push(value)
			cursor = newCursor
		}
	}
}

// decodeOne reads a single MessagePack element (scalar, or container
// header) starting at input[cursor]. For Array/Map it returns xlen as
// Value.Len(); the caller is responsible for the sibling-skip chaining.
// For Str/Bin/Ext it returns the payload already accounted for in
// newCursor, with Value holding (xlen, bank-end-relative xoff).
func decodeOne(input []byte, cursor int) (Tag, Value, int, error) {
	b := input[cursor]
	switch {
	case b < 0x80: // positive fixint
		return LongInt, ValueInt(int64(b)), cursor + 1, nil
	case b >= 0xe0: // negative fixint
		return LongInt, ValueInt(int64(int8(b))), cursor + 1, nil
	case b >= 0x90 && b <= 0x9f: // fixarray
		return Array, ValueLenOff(uint32(b&0x0f), 0), cursor + 1, nil
	case b >= 0x80 && b <= 0x8f: // fixmap
		return Map, ValueLenOff(uint32(b&0x0f), 0), cursor + 1, nil
	case b >= 0xa0 && b <= 0xbf: // fixstr
		return decodeBytes(Str, input, cursor+1, int(b&0x1f))
	}

	switch b {
	case 0xc0:
		return Nil, Value{}, cursor + 1, nil
	case 0xc1:
		return 0, Value{}, 0, ErrReserved
	case 0xc2:
		return False, Value{}, cursor + 1, nil
	case 0xc3:
		return True, Value{}, cursor + 1, nil
	case 0xc4: // bin 8
		n, ok := readUint8Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Bin, input, cursor+2, n)
	case 0xc5: // bin 16
		n, ok := readUint16Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Bin, input, cursor+3, n)
	case 0xc6: // bin 32
		n, ok := readUint32Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Bin, input, cursor+5, n)
	case 0xc7: // ext 8
		n, ok := readUint8Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Ext, input, cursor+2, n+1)
	case 0xc8: // ext 16
		n, ok := readUint16Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Ext, input, cursor+3, n+1)
	case 0xc9: // ext 32
		n, ok := readUint32Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Ext, input, cursor+5, n+1)
	case 0xca: // float 32
		if cursor+5 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		bits := binary.BigEndian.Uint32(input[cursor+1:])
		return Float32, ValueFloat(float64(math.Float32frombits(bits))), cursor + 5, nil
	case 0xcb: // float 64
		if cursor+9 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		bits := binary.BigEndian.Uint64(input[cursor+1:])
		return Float64, ValueFloat(math.Float64frombits(bits)), cursor + 9, nil
	case 0xcc: // uint 8
		if cursor+2 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(input[cursor+1])), cursor + 2, nil
	case 0xcd: // uint 16
		if cursor+3 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(binary.BigEndian.Uint16(input[cursor+1:]))), cursor + 3, nil
	case 0xce: // uint 32
		if cursor+5 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(binary.BigEndian.Uint32(input[cursor+1:]))), cursor + 5, nil
	case 0xcf: // uint 64
		if cursor+9 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		v := binary.BigEndian.Uint64(input[cursor+1:])
		if v > uint64(1<<63-1) {
			return UlongInt, ValueUint(v), cursor + 9, nil
		}
		return LongInt, ValueInt(int64(v)), cursor + 9, nil
	case 0xd0: // int 8
		if cursor+2 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(int8(input[cursor+1]))), cursor + 2, nil
	case 0xd1: // int 16
		if cursor+3 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(int16(binary.BigEndian.Uint16(input[cursor+1:])))), cursor + 3, nil
	case 0xd2: // int 32
		if cursor+5 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(int32(binary.BigEndian.Uint32(input[cursor+1:])))), cursor + 5, nil
	case 0xd3: // int 64
		if cursor+9 > len(input) {
			return 0, Value{}, 0, ErrTruncated
		}
		return LongInt, ValueInt(int64(binary.BigEndian.Uint64(input[cursor+1:]))), cursor + 9, nil
	case 0xd4: // fixext 1
		return decodeBytes(Ext, input, cursor+1, 2)
	case 0xd5: // fixext 2
		return decodeBytes(Ext, input, cursor+1, 3)
	case 0xd6: // fixext 4
		return decodeBytes(Ext, input, cursor+1, 5)
	case 0xd7: // fixext 8
		return decodeBytes(Ext, input, cursor+1, 9)
	case 0xd8: // fixext 16
		return decodeBytes(Ext, input, cursor+1, 17)
	case 0xd9: // str 8
		n, ok := readUint8Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Str, input, cursor+2, n)
	case 0xda: // str 16
		n, ok := readUint16Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Str, input, cursor+3, n)
	case 0xdb: // str 32
		n, ok := readUint32Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return decodeBytes(Str, input, cursor+5, n)
	case 0xdc: // array 16
		n, ok := readUint16Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return Array, ValueLenOff(uint32(n), 0), cursor + 3, nil
	case 0xdd: // array 32
		n, ok := readUint32Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return Array, ValueLenOff(uint32(n), 0), cursor + 5, nil
	case 0xde: // map 16
		n, ok := readUint16Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return Map, ValueLenOff(uint32(n), 0), cursor + 3, nil
	case 0xdf: // map 32
		n, ok := readUint32Len(input, cursor+1)
		if !ok {
			return 0, Value{}, 0, ErrTruncated
		}
		return Map, ValueLenOff(uint32(n), 0), cursor + 5, nil
	}
	// unreachable: every byte value is covered by the two switches above
	return 0, Value{}, 0, fmt.Errorf("msgpack: unclassified byte 0x%02x", b)
}

// decodeBytes records a Str/Bin/Ext payload of n bytes starting at
// input[start] and returns the cursor past it. xoff is stored as the
// distance from the end of input to the start of the payload, the
// bank-end-relative convention described on Value.Off.
func decodeBytes(tag Tag, input []byte, start, n int) (Tag, Value, int, error) {
	end := start + n
	if end > len(input) {
		return 0, Value{}, 0, ErrTruncated
	}
	xoff := len(input) - start
	return tag, ValueLenOff(uint32(n), uint32(xoff)), end, nil
}

func readUint8Len(input []byte, off int) (int, bool) {
	if off+1 > len(input) {
		return 0, false
	}
	return int(input[off]), true
}

func readUint16Len(input []byte, off int) (int, bool) {
	if off+2 > len(input) {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(input[off:])), true
}

func readUint32Len(input []byte, off int) (int, bool) {
	if off+4 > len(input) {
		return 0, false
	}
	return int(binary.BigEndian.Uint32(input[off:])), true
}
