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

// Command msgpackflat flattens MessagePack documents into their tag/value
// array form and prints the result, or (with -e) decodes MessagePack and
// immediately re-encodes it back to MessagePack.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fzipp/msgpackflat/msgpack"
)

func main() {
	roundtrip := flag.Bool("e", false, "decode then re-encode, writing canonicalized MessagePack instead of a flat dump")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}

	o := bufio.NewWriter(os.Stdout)
	defer o.Flush()

	for _, arg := range args {
		if err := run(o, arg, *roundtrip); err != nil {
			fmt.Fprintf(os.Stderr, "input %s: %s\n", arg, err)
			os.Exit(1)
		}
	}
}

func run(o io.Writer, arg string, roundtrip bool) error {
	var in *os.File
	if arg == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(arg)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	if roundtrip {
		return canonicalize(o, raw)
	}
	return flatten(o, raw)
}

// canonicalize decodes raw and re-encodes it, writing the result to o.
// This exercises both Decode and Encode end to end and has the side
// effect of normalizing every integer to its shortest wire form and
// collapsing the signed/unsigned integer distinction.
func canonicalize(o io.Writer, raw []byte) error {
	tags, values, err := msgpack.Decode(raw, 0, nil, nil)
	if err != nil {
		return err
	}
	out, err := msgpack.Encode(tags, values, raw, nil, 0, nil)
	if err != nil {
		return err
	}
	_, err = o.Write(out)
	return err
}

// flatten decodes raw MessagePack and prints one line per flattened
// (tag, value) slot, in the same preorder Decode produces.
func flatten(o io.Writer, raw []byte) error {
	tags, values, err := msgpack.Decode(raw, 0, nil, nil)
	if err != nil {
		return err
	}
	for i, tag := range tags {
		v := values[i]
		switch tag {
		case msgpack.Nil, msgpack.False, msgpack.True:
			fmt.Fprintf(o, "%d: %s\n", i, tag)
		case msgpack.LongInt:
			fmt.Fprintf(o, "%d: %s %d\n", i, tag, v.Int())
		case msgpack.UlongInt:
			fmt.Fprintf(o, "%d: %s %d\n", i, tag, v.Uint())
		case msgpack.Float32, msgpack.Float64:
			fmt.Fprintf(o, "%d: %s %v\n", i, tag, v.Float())
		case msgpack.Str, msgpack.Bin, msgpack.Ext:
			fmt.Fprintf(o, "%d: %s xlen=%d xoff=%d\n", i, tag, v.Len(), v.Off())
		case msgpack.Array, msgpack.Map:
			fmt.Fprintf(o, "%d: %s xlen=%d xoff(skip)=%d\n", i, tag, v.Len(), v.Off())
		default:
			fmt.Fprintf(o, "%d: %s\n", i, tag)
		}
	}
	return nil
}
