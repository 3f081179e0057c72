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

// Package msgpack implements a two-phase MessagePack codec that flattens
// a document into a pair of parallel arrays instead of a tree of nested
// values.
//
// Decode walks a MessagePack byte slice once and emits a preorder
// sequence of (Tag, Value) pairs: containers occupy a single slot and
// carry a sibling-skip offset to the slot following their last
// descendant, so a caller can splice, reorder, or rewrite elements
// without recursing into nested arrays or maps. Encode walks such a
// pair of arrays once and re-emits MessagePack, choosing the shortest
// wire form for every integer and length header and pulling
// variable-length payloads out of
// one of two caller-supplied data banks.
//
// The package deliberately says nothing about what edits a caller makes
// between decoding and encoding, about schemas, or about transport: it
// is a pure codec over byte buffers and the two parallel arrays.
package msgpack
