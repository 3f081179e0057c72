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
	"errors"
	"testing"
)

func TestDecodeEmptyInput(t *testing.T) {
	_, _, err := Decode(nil, 0, nil, nil)
	if err == nil {
		t.Fatalf("expected underflow error on empty input, got nil")
	}
}

func TestDecodeReserved(t *testing.T) {
	_, _, err := Decode([]byte{0xc1}, 0, nil, nil)
	if !errors.Is(err, ErrReserved) {
		t.Fatalf("expected ErrReserved, got %v", err)
	}
}

func TestDecodeNil(t *testing.T) {
	tags, values, err := Decode([]byte{0xc0}, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if len(tags) != 1 || tags[0] != Nil {
		t.Fatalf("expected [Nil], got %v", tags)
	}
	_ = values
}

func TestDecodeFixarrayOfOne(t *testing.T) {
	tags, values, err := Decode([]byte{0x91, 0x01}, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if len(tags) != 2 || tags[0] != Array || tags[1] != LongInt {
		t.Fatalf("expected [Array LongInt], got %v", tags)
	}
	if values[0].Len() != 1 || values[0].Off() != 2 {
		t.Fatalf("expected array {xlen:1 xoff:2}, got {%d %d}", values[0].Len(), values[0].Off())
	}
	if values[1].Int() != 1 {
		t.Fatalf("expected element value 1, got %d", values[1].Int())
	}
}

func TestDecodeFixmap(t *testing.T) {
	// {"a":1,"b":2}
	in := []byte{0x82, 0xa1, 0x61, 0x01, 0xa1, 0x62, 0x02}
	tags, values, err := Decode(in, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	want := []Tag{Map, Str, LongInt, Str, LongInt}
	if len(tags) != len(want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tags)
		}
	}
	if values[0].Len() != 2 || values[0].Off() != 5 {
		t.Fatalf("expected map {xlen:2 xoff:5}, got {%d %d}", values[0].Len(), values[0].Off())
	}
}

func TestDecodeUint64Max(t *testing.T) {
	in := []byte{0xcf, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	tags, values, err := Decode(in, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if len(tags) != 1 || tags[0] != UlongInt {
		t.Fatalf("expected [UlongInt], got %v", tags)
	}
	if values[0].Uint() != ^uint64(0) {
		t.Fatalf("expected uval 2^64-1, got %d", values[0].Uint())
	}
}

func TestDecodeTrailingBytesAreNotAnError(t *testing.T) {
	in := []byte{0xc0, 0xc0, 0xc0}
	tags, _, err := Decode(in, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if len(tags) != 1 || tags[0] != Nil {
		t.Fatalf("expected decode to stop after the first top-level element, got %v", tags)
	}
}

func TestDecodeNestedContainersCloseInOrder(t *testing.T) {
	// [[1,2],3] -> Array(xlen2) Array(xlen2) Long Long Long
	in := []byte{0x92, 0x92, 0x01, 0x02, 0x03}
	tags, values, err := Decode(in, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	want := []Tag{Array, Array, LongInt, LongInt, LongInt}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tags)
		}
	}
	// outer array spans the whole document
	if off := values[0].Off(); int(off) != len(tags) {
		t.Fatalf("outer array sibling-skip should reach end of document, got xoff=%d", off)
	}
	// inner array covers exactly its two elements
	if off := values[1].Off(); off != 3 {
		t.Fatalf("inner array sibling-skip should be 3, got %d", off)
	}
}

func TestDecodeUnderflow(t *testing.T) {
	cases := [][]byte{
		{0x91},             // fixarray with missing element
		{0xa1},              // fixstr with missing payload byte
		{0xcc},              // uint 8 with missing byte
		{0xd9, 0x05, 0x61}, // str 8 claiming 5 bytes, only 1 present
	}
	for _, in := range cases {
		if _, _, err := Decode(in, 0, nil, nil); !errors.Is(err, ErrTruncated) {
			t.Errorf("input % 02x: expected ErrTruncated, got %v", in, err)
		}
	}
}

func TestDecodeFixextLengthsIncludeSubtype(t *testing.T) {
	// fixext1: opcode + 1 subtype byte + 1 data byte
	in := []byte{0xd4, 0x01, 0xaa}
	tags, values, err := Decode(in, 0, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if tags[0] != Ext || values[0].Len() != 2 {
		t.Fatalf("expected Ext{xlen:2}, got %v{xlen:%d}", tags[0], values[0].Len())
	}
}

func TestDecodeWithStockStorage(t *testing.T) {
	stockTags := make([]Tag, 0, 4)
	stockValues := make([]Value, 0, 4)
	tags, values, err := Decode([]byte{0xc0}, 0, stockTags, stockValues)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if &tags[0] != &stockTags[:1][0] {
		t.Fatalf("expected Decode to write into the stock tags array")
	}
	if &values[0] != &stockValues[:1][0] {
		t.Fatalf("expected Decode to write into the stock values array")
	}
}

func TestDecodeStockStoragePromotesOnOverflow(t *testing.T) {
	stockTags := make([]Tag, 0, 1)
	stockValues := make([]Value, 0, 1)
	// fixarray of two elements: 3 slots total (Array, LongInt, LongInt),
	// overflowing a 1-slot stock buffer partway through the document.
	in := []byte{0x92, 0x01, 0x02}
	tags, values, err := Decode(in, 0, stockTags, stockValues)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if len(tags) != 3 || tags[0] != Array || tags[1] != LongInt || tags[2] != LongInt {
		t.Fatalf("expected [Array LongInt LongInt], got %v", tags)
	}
	if &tags[0] == &stockTags[:1][0] {
		t.Fatalf("expected Decode to promote off the 1-slot stock tags array")
	}
	if &values[0] == &stockValues[:1][0] {
		t.Fatalf("expected Decode to promote off the 1-slot stock values array")
	}
}
