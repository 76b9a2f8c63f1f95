// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxHeaderBytes bounds the header scan of untrusted input.
const maxHeaderBytes = 64 << 10

// property is one scalar column of an element.
type property struct {
	name   string
	typ    string
	size   int
	offset int
}

// element is a block of fixed-size rows.
type element struct {
	name    string
	count   int
	props   []property
	rowSize int
	byName  map[string]int
}

var typeSizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

func newElement(name string, count int, typ string, names ...string) *element {
	e := &element{name: name, count: count}
	for _, n := range names {
		e.add(n, typ)
	}
	return e
}

func (e *element) add(name, typ string) {
	size := typeSizes[typ]
	if e.byName == nil {
		e.byName = make(map[string]int)
	}
	e.byName[name] = len(e.props)
	e.props = append(e.props, property{name: name, typ: typ, size: size, offset: e.rowSize})
	e.rowSize += size
}

// index returns the column of name, or -1.
func (e *element) index(name string) int {
	if i, ok := e.byName[name]; ok {
		return i
	}
	return -1
}

func (e *element) has(names ...string) bool {
	for _, n := range names {
		if e.index(n) < 0 {
			return false
		}
	}
	return true
}

// value decodes column i of row as a float64.
func (e *element) value(row []byte, i int) float64 {
	p := &e.props[i]
	b := row[p.offset : p.offset+p.size]
	switch p.typ {
	case "char", "int8":
		return float64(int8(b[0]))
	case "uchar", "uint8":
		return float64(b[0])
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(b))
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(b))
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

// word decodes column i of row as a uint32. Only 32-bit integer columns
// hold packed words.
func (e *element) word(row []byte, i int) uint32 {
	p := &e.props[i]
	return binary.LittleEndian.Uint32(row[p.offset : p.offset+4])
}

// writeHeader writes the ASCII header for elems.
func writeHeader(w io.Writer, format Format, elems ...*element) error {
	var sb strings.Builder
	sb.WriteString("ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(&sb, "comment splat_format %s\n", format)
	for _, e := range elems {
		fmt.Fprintf(&sb, "element %s %d\n", e.name, e.count)
		for _, p := range e.props {
			fmt.Fprintf(&sb, "property %s %s\n", p.typ, p.name)
		}
	}
	sb.WriteString("end_header\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// readHeader parses the header up to and including end_header.
func readHeader(r *bufio.Reader) ([]*element, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, fmt.Errorf("%w: missing ply magic", ErrFormat)
	}

	var elems []*element
	binaryLE := false
	read := len(line)
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		read += len(line)
		if read > maxHeaderBytes {
			return nil, fmt.Errorf("%w: header too large", ErrFormat)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "binary_little_endian" {
				return nil, fmt.Errorf("%w: only binary_little_endian is supported", ErrFormat)
			}
			binaryLE = true
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrFormat, strings.TrimSpace(line))
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad element count %q", ErrFormat, fields[2])
			}
			elems = append(elems, &element{name: fields[1], count: n})
		case "property":
			if len(elems) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrFormat)
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: unsupported property %q", ErrFormat, strings.TrimSpace(line))
			}
			if _, ok := typeSizes[fields[1]]; !ok {
				return nil, fmt.Errorf("%w: unknown property type %q", ErrFormat, fields[1])
			}
			elems[len(elems)-1].add(fields[2], fields[1])
		case "end_header":
			if !binaryLE {
				return nil, fmt.Errorf("%w: missing format line", ErrFormat)
			}
			return elems, nil
		default:
			return nil, fmt.Errorf("%w: unexpected header line %q", ErrFormat, strings.TrimSpace(line))
		}
	}
}
