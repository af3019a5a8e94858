// Package snapshot implements the wire-level primitives spec.md §6.2
// names for the snapshot deserializer: fixed-width little-endian
// integers, a 5-byte unsigned32 varint, and the 1-indexed back-reference
// table a two-pass (ReadNodes/ReadEdges) cluster walk populates.
//
// The cluster format itself — which class of object each cluster
// describes, and the byte layout of its fields — is explicitly out of
// this core's scope (spec.md §1: "treated as an opaque producer of
// roots"). This package therefore stops at the primitives and the
// Cluster contract; a concrete set of per-kind clusters belongs to the
// interpreter that owns the object model those clusters populate.
//
// Grounded on original_source/src/vm/snapshot.h's Deserializer for the
// primitive readers and the back-ref bookkeeping.
package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/nimbusvm/nimbusvm/internal/heap"
)

// Deserializer reads primitive values from a snapshot buffer and tracks
// the back-reference table clusters register nodes into as they're
// read, per snapshot.h's RegisterBackRef/ReadBackRef/BackRef. Index 0
// is reserved (back-refs are 1-indexed); ReadBackRef on an unregistered
// index panics, matching the source's ASSERT-guarded contract.
type Deserializer struct {
	data   []byte
	cursor int

	backRefs []heap.Ref
}

// NewDeserializer wraps data, a read-only snapshot buffer, for
// sequential decoding starting at offset 0.
func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{data: data, backRefs: make([]heap.Ref, 1)}
}

// Position returns the current read offset, for error messages.
func (d *Deserializer) Position() int { return d.cursor }

func (d *Deserializer) require(n int) {
	if d.cursor+n > len(d.data) {
		panic(fmt.Errorf("snapshot: truncated at offset %d, need %d more bytes", d.cursor, n))
	}
}

// ReadUint8 reads one byte.
func (d *Deserializer) ReadUint8() uint8 {
	d.require(1)
	v := d.data[d.cursor]
	d.cursor++
	return v
}

// ReadUint16 reads two little-endian bytes.
func (d *Deserializer) ReadUint16() uint16 {
	d.require(2)
	v := binary.LittleEndian.Uint16(d.data[d.cursor:])
	d.cursor += 2
	return v
}

// ReadUint32 reads four little-endian bytes.
func (d *Deserializer) ReadUint32() uint32 {
	d.require(4)
	v := binary.LittleEndian.Uint32(d.data[d.cursor:])
	d.cursor += 4
	return v
}

// ReadInt32 reads four little-endian bytes as a signed value.
func (d *Deserializer) ReadInt32() int32 { return int32(d.ReadUint32()) }

// ReadInt64 reads eight little-endian bytes as a signed value.
func (d *Deserializer) ReadInt64() int64 {
	d.require(8)
	v := binary.LittleEndian.Uint64(d.data[d.cursor:])
	d.cursor += 8
	return int64(v)
}

// ReadUnsigned32 decodes spec.md §6.2's 5-byte variable-length
// encoding: 7 payload bits per byte, low-to-high, continuation in the
// top bit, no zigzag (the value is never negative). Matches
// snapshot.h's Deserializer::ReadUnsigned32 shape (5 bytes covers a
// full uint32 at 7 bits/byte).
func (d *Deserializer) ReadUnsigned32() uint32 {
	var v uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b := d.ReadUint8()
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v
		}
		shift += 7
	}
	panic(fmt.Errorf("snapshot: unsigned32 varint at offset %d did not terminate within 5 bytes", d.cursor))
}

// NextBackRef returns the index the next RegisterBackRef call will use.
func (d *Deserializer) NextBackRef() int { return len(d.backRefs) }

// RegisterBackRef appends r to the back-reference table and returns its
// index, per snapshot.h's RegisterBackRef. Called once per node during
// a cluster's ReadNodes pass, in the same order nodes were written.
func (d *Deserializer) RegisterBackRef(r heap.Ref) int {
	d.backRefs = append(d.backRefs, r)
	return len(d.backRefs) - 1
}

// BackRef resolves a previously registered index. i must be in
// [1, NextBackRef()), matching snapshot.h's ASSERT bounds.
func (d *Deserializer) BackRef(i int) heap.Ref {
	if i <= 0 || i >= len(d.backRefs) {
		panic(fmt.Errorf("snapshot: back-ref index %d out of range [1, %d)", i, len(d.backRefs)))
	}
	return d.backRefs[i]
}

// ReadBackRef reads an unsigned32 index and resolves it immediately,
// per snapshot.h's Deserializer::ReadBackRef.
func (d *Deserializer) ReadBackRef() heap.Ref {
	return d.BackRef(int(d.ReadUnsigned32()))
}

// Cluster reads one class of object across the snapshot's two
// passes: ReadNodes allocates every node in the cluster, registering
// each as it goes (so later clusters' edges can back-reference them),
// and ReadEdges fills cross-references into already-allocated nodes.
// Per snapshot.h's abstract Cluster; concrete clusters (regular
// object, array, byte-string, ...) are supplied by the interpreter,
// not this package.
type Cluster interface {
	ReadNodes(d *Deserializer, h *heap.Heap) error
	ReadEdges(d *Deserializer, h *heap.Heap) error
}

// Deserialize drives the two-pass algorithm spec.md §6.2 describes:
// every cluster's ReadNodes runs first (in order), then every
// cluster's ReadEdges (in the same order), then the root list —
// a ReadUnsigned32 count followed by that many back-ref indices — is
// read and resolved. Matches the source's "num roots" trailer pattern
// used by Deserializer::Deserialize for the object store's root set.
func Deserialize(h *heap.Heap, data []byte, clusters []Cluster) (roots []heap.Ref, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	d := NewDeserializer(data)
	for _, c := range clusters {
		if err := c.ReadNodes(d, h); err != nil {
			return nil, err
		}
	}
	for _, c := range clusters {
		if err := c.ReadEdges(d, h); err != nil {
			return nil, err
		}
	}

	n := d.ReadUnsigned32()
	roots = make([]heap.Ref, n)
	for i := range roots {
		roots[i] = d.ReadBackRef()
	}
	return roots, nil
}
