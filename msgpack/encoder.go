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

// ErrUnknownTag is returned when Encode finds a Tag outside the set
// defined by this package.
var ErrUnknownTag = errors.New("msgpack: unknown tag")

// headerRoom bounds the size of one element's encoding apart from its
// payload (the largest is 1 opcode + 8 bytes for a 64-bit scalar); the
// encoder keeps at least this many free bytes available before encoding
// any element.
const headerRoom = 10

// Encode re-emits MessagePack from a (tags, values) pair produced by
// Decode (or hand-constructed following the same invariants), pulling
// variable-length payloads from bank1 by default and from bank2 for any
// element tagged CopyCmd.
//
// Every integer and every length header is written in the shortest wire
// form that represents it; the signedness of the source tag (LongInt vs
// UlongInt) does not affect the chosen wire form for non-negative
// values. Float32 and Float64 are always written as float 32 and float
// 64 respectively.
//
// stockOut, if non-nil, is used in place as long as it has headerRoom
// free bytes before each element (plus room for that element's
// payload); otherwise Encode transparently promotes to a freshly
// allocated buffer, like Decode's stockTags/stockValues.
func Encode(tags []Tag, values []Value, bank1, bank2 []byte, hintOrStockCap int, stockOut []byte) ([]byte, error) {
	if len(tags) != len(values) {
		return nil, fmt.Errorf("msgpack: tags/values length mismatch (%d != %d)", len(tags), len(values))
	}
	out := newFlatbuf(stockOut, hintOrStockCap)

	for i, tag := range tags {
		out.ensure(headerRoom)
		v := values[i]

		switch tag {
		case Nil:
			out.push(0xc0)
		case False:
			out.push(0xc2)
		case True:
			out.push(0xc3)
		case LongInt, UlongInt:
			encodeInt(&out, tag, v)
		case Float32:
			encodeFloat32(&out, v)
		case Float64:
			encodeFloat64(&out, v)
		case Str:
			encodeStrHeader(&out, v.Len())
			copyPayload(&out, bank1, v)
		case Bin:
			encodeBinHeader(&out, v.Len())
			copyPayload(&out, bank1, v)
		case Ext:
			encodeExtHeader(&out, v.Len())
			copyPayload(&out, bank1, v)
		case Array:
			encodeContainerHeader(&out, 0x90, 0xdc, 0xdd, v.Len())
		case Map:
			encodeContainerHeader(&out, 0x80, 0xde, 0xdf, v.Len())
		case CopyCmd:
			// One-shot bank switch: CopyCmd carries its own (xlen, xoff)
			// and splices those raw bytes from bank2 with no header of
			// its own, then the next payload-bearing element is back to
			// reading from bank1 (see DESIGN.md).
			copyPayload(&out, bank2, v)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
		}
	}

	return out.buf, nil
}

// copyPayload copies v.Len() bytes from the data bank "from", located
// at the bank-end-relative offset v.Off(), onto the end of out.
func copyPayload(out *flatbuf[byte], from []byte, v Value) {
	n := int(v.Len())
	out.ensure(n)
	start := len(from) - int(v.Off())
	out.buf = append(out.buf, from[start:start+n]...)
}

func encodeInt(out *flatbuf[byte], tag Tag, v Value) {
	uval := v.Uint()
	if tag == LongInt && uval > uint64(math.MaxInt64) {
		// negative value: two's-complement reinterpretation, shortest
		// signed form.
		ival := v.Int()
		switch {
		case ival >= -32:
			out.push(byte(ival))
		case ival >= math.MinInt8:
			out.push(0xd0)
			out.push(byte(ival))
		case ival >= math.MinInt16:
			out.push(0xd1)
			appendUint16(out, uint16(ival))
		case ival >= math.MinInt32:
			out.push(0xd2)
			appendUint32(out, uint32(ival))
		default:
			out.push(0xd3)
			appendUint64(out, uint64(ival))
		}
		return
	}
	switch {
	case uval <= 0x7f:
		out.push(byte(uval))
	case uval <= math.MaxUint8:
		out.push(0xcc)
		out.push(byte(uval))
	case uval <= math.MaxUint16:
		out.push(0xcd)
		appendUint16(out, uint16(uval))
	case uval <= math.MaxUint32:
		out.push(0xce)
		appendUint32(out, uint32(uval))
	default:
		out.push(0xcf)
		appendUint64(out, uval)
	}
}

func encodeFloat32(out *flatbuf[byte], v Value) {
	out.push(0xca)
	appendUint32(out, math.Float32bits(float32(v.Float())))
}

func encodeFloat64(out *flatbuf[byte], v Value) {
	out.push(0xcb)
	appendUint64(out, math.Float64bits(v.Float()))
}

func encodeStrHeader(out *flatbuf[byte], n uint32) {
	switch {
	case n <= 31:
		out.push(0xa0 | byte(n))
	case n <= math.MaxUint8:
		out.push(0xd9)
		out.push(byte(n))
	case n <= math.MaxUint16:
		out.push(0xda)
		appendUint16(out, uint16(n))
	default:
		out.push(0xdb)
		appendUint32(out, n)
	}
}

func encodeBinHeader(out *flatbuf[byte], n uint32) {
	switch {
	case n <= math.MaxUint8:
		out.push(0xc4)
		out.push(byte(n))
	case n <= math.MaxUint16:
		out.push(0xc5)
		appendUint16(out, uint16(n))
	default:
		out.push(0xc6)
		appendUint32(out, n)
	}
}

// fixextOpcode maps a fixext's total (subtype+data) length to its
// opcode, or 0 if xlen doesn't correspond to a fixext width.
func fixextOpcode(xlen uint32) byte {
	switch xlen {
	case 2:
		return 0xd4
	case 3:
		return 0xd5
	case 5:
		return 0xd6
	case 9:
		return 0xd7 // reference C miscodes this as 0xd5; see DESIGN.md
	case 17:
		return 0xd8
	default:
		return 0
	}
}

func encodeExtHeader(out *flatbuf[byte], xlen uint32) {
	if op := fixextOpcode(xlen); op != 0 {
		out.push(op)
		return
	}
	n := xlen - 1 // wire length field excludes the subtype byte
	switch {
	case n <= math.MaxUint8:
		out.push(0xc7)
		out.push(byte(n))
	case n <= math.MaxUint16:
		out.push(0xc8)
		appendUint16(out, uint16(n))
	default:
		out.push(0xc9)
		appendUint32(out, n)
	}
}

func encodeContainerHeader(out *flatbuf[byte], fixBase byte, op16, op32 byte, n uint32) {
	switch {
	case n <= 15:
		out.push(fixBase | byte(n))
	case n <= math.MaxUint16:
		out.push(op16)
		appendUint16(out, uint16(n))
	default:
		out.push(op32)
		appendUint32(out, n)
	}
}

func appendUint16(out *flatbuf[byte], v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	out.buf = append(out.buf, b[:]...)
}

func appendUint32(out *flatbuf[byte], v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	out.buf = append(out.buf, b[:]...)
}

func appendUint64(out *flatbuf[byte], v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	out.buf = append(out.buf, b[:]...)
}
