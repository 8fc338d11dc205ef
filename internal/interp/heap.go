// Package interp executes the subset of LLVM IR that the code generator
// emits, over a simulated term heap. It exists to check generated matchers
// behaviourally: which action is called with which fields, and when the
// match gets stuck.
package interp

import (
	"fmt"

	"github.com/funvibe/matchgen/internal/config"
)

// Object is a heap block: a header word holding the tag, then the fields.
type Object struct {
	Header uint64
	Fields []uint64
}

// Tag returns the tag stored in the header.
func (o *Object) Tag() uint32 {
	return uint32(o.Header)
}

// Heap allocates blocks at 8-aligned addresses, so a block address never
// has the immediate bit set.
type Heap struct {
	objects map[uint64]*Object
	next    uint64
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{objects: make(map[uint64]*Object), next: 0x1000}
}

// Alloc allocates a block with the given tag and field words and returns
// its address.
func (h *Heap) Alloc(tag uint32, fields ...uint64) uint64 {
	addr := h.next
	h.objects[addr] = &Object{Header: uint64(tag), Fields: append([]uint64(nil), fields...)}
	h.next += 8 * uint64(2+len(fields))
	return addr
}

// Immediate returns the word of an immediate term with the given tag.
func (h *Heap) Immediate(tag uint32) uint64 {
	return uint64(tag)<<config.ImmediateTagShift | config.ImmediateBit
}

// Object returns the block at addr.
func (h *Heap) Object(addr uint64) (*Object, error) {
	if addr&config.ImmediateBit != 0 {
		return nil, fmt.Errorf("interp: dereferencing immediate %#x", addr)
	}
	o, ok := h.objects[addr]
	if !ok {
		return nil, fmt.Errorf("interp: no block at %#x", addr)
	}
	return o, nil
}
