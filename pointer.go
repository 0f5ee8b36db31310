// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical

import "fmt"

// Pointer words classify by their low two bits.
const (
	ptrStruct = 0
	ptrList   = 1
	ptrFar    = 2
	ptrCap    = 3
)

// SpecialPointer is the distinguished non-null encoding of an empty struct
// pointer: type 0, offset -1, zero data and pointer sections. It exists so
// a live empty struct never collides with the all-zero null word.
const SpecialPointer = uint64(1)<<32 - 4

// elementBits maps list element kinds 0..5 to their bit widths. Kind 6 is
// a pointer list and kind 7 a composite list; neither has a fixed width.
var elementBits = [6]int{0, 1, 8, 16, 32, 64}

// bitField extracts bits [first, last] (inclusive) of w.
func bitField(w uint64, first, last uint) uint64 {
	return w >> first & (1<<(last-first+1) - 1)
}

// signedOffset decodes bits 2..31 of a struct or list pointer as a
// two's-complement 30-bit word offset.
func signedOffset(w uint64) int {
	return int(int32(uint32(w)) >> 2)
}

// listBodyWords returns the storage length in words of a primitive list.
// Computed in 64 bits: a 29-bit element count times a bit width can exceed
// int on 32-bit hosts.
func listBodyWords(kind, size int) int64 {
	return (int64(size)*int64(elementBits[kind]) + 63) / 64
}

// view is the closed sum of decoded pointer targets. Each variant knows how
// to emit itself plus all descendants into a writer slot.
type view interface {
	emit(w *writer, slot, depth int) error
}

type nullView struct{}

type structView struct {
	dataLen, ptrLen int
	ref             cursor // first data word
}

type structListView struct {
	dataLen, ptrLen int // per member
	size            int
	ref             cursor // first member, one word past the tag
}

type intListView struct {
	kind, size int
	ref        cursor
}

type pointerListView struct {
	size int
	ref  cursor
}

type capabilityView struct {
	index uint32
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrMalformedPointer)...)
}

// follow decodes the pointer word under c into a typed view. depth bounds
// far-pointer chains; each hop consumes one level.
func follow(c cursor, depth int) (view, error) {
	if depth <= 0 {
		return nil, malformedf("pointer depth bound exceeded")
	}
	if !c.in() {
		return nil, malformedf("pointer at segment %d offset %d out of bounds", c.seg, c.off)
	}
	w := c.word()
	if w == 0 {
		return nullView{}, nil
	}

	switch w & 3 {
	case ptrStruct:
		dataLen := int(bitField(w, 32, 47))
		ptrLen := int(bitField(w, 48, 63))
		ref := c.at(signedOffset(w) + 1)
		if !ref.spans(int64(dataLen + ptrLen)) {
			return nil, malformedf("struct of %d+%d words at segment %d offset %d out of bounds",
				dataLen, ptrLen, ref.seg, ref.off)
		}
		return structView{dataLen, ptrLen, ref}, nil

	case ptrList:
		kind := int(bitField(w, 32, 34))
		size := int(bitField(w, 35, 63))
		ref := c.at(signedOffset(w) + 1)
		switch {
		case kind < 6:
			if !ref.spans(listBodyWords(kind, size)) {
				return nil, malformedf("list of %d elements of kind %d at segment %d offset %d out of bounds",
					size, kind, ref.seg, ref.off)
			}
			return intListView{kind, size, ref}, nil
		case kind == 6:
			if !ref.spans(int64(size)) {
				return nil, malformedf("pointer list of %d elements at segment %d offset %d out of bounds",
					size, ref.seg, ref.off)
			}
			return pointerListView{size, ref}, nil
		default: // composite
			if !ref.in() {
				return nil, malformedf("composite tag at segment %d offset %d out of bounds", ref.seg, ref.off)
			}
			tag := ref.word()
			n := int(bitField(tag, 2, 31))
			dataLen := int(bitField(tag, 32, 47))
			ptrLen := int(bitField(tag, 48, 63))
			if int64(dataLen+ptrLen)*int64(n) != int64(size) {
				return nil, malformedf("composite tag declares %d members of %d words, pointer says %d body words",
					n, dataLen+ptrLen, size)
			}
			body := ref.at(1)
			if !body.spans(int64(size)) {
				return nil, malformedf("composite body of %d words at segment %d offset %d out of bounds",
					size, body.seg, body.off)
			}
			return structListView{dataLen, ptrLen, n, body}, nil
		}

	case ptrFar:
		return followFar(c, w, depth)

	default: // ptrCap
		if bitField(w, 2, 31) != 0 {
			return nil, malformedf("capability pointer has reserved bits set")
		}
		return capabilityView{uint32(w >> 32)}, nil
	}
}

// followFar resolves a far pointer, possibly through a two-word double-far
// landing pad.
func followFar(c cursor, w uint64, depth int) (view, error) {
	pad := cursor{msg: c.msg, seg: int(w >> 32), off: int(bitField(w, 3, 31))}
	if bitField(w, 2, 2) == 0 {
		// The landing pad holds an ordinary pointer; follow it from there.
		return follow(pad, depth-1)
	}

	// Double-far: pad word 0 is a one-hop far pointer naming the real
	// target position; pad word 1 carries the content descriptors and is
	// re-homed onto that position.
	if !pad.spans(2) {
		return nil, malformedf("double-far pad at segment %d offset %d out of bounds", pad.seg, pad.off)
	}
	w0 := pad.word()
	if w0&3 != ptrFar || bitField(w0, 2, 2) != 0 {
		return nil, malformedf("double-far pad must start with a one-word far pointer")
	}
	target := cursor{msg: c.msg, seg: int(w0 >> 32), off: int(bitField(w0, 3, 31))}
	w1 := pad.at(1).word()
	if w1 == 0 {
		// The all-zero word is null no matter where it sits.
		return nullView{}, nil
	}

	switch w1 & 3 {
	case ptrStruct:
		if signedOffset(w1) != 0 {
			return nil, malformedf("double-far content pointer does not land adjacent to its pad")
		}
		dataLen := int(bitField(w1, 32, 47))
		ptrLen := int(bitField(w1, 48, 63))
		if !target.spans(int64(dataLen + ptrLen)) {
			return nil, malformedf("struct of %d+%d words at segment %d offset %d out of bounds",
				dataLen, ptrLen, target.seg, target.off)
		}
		return structView{dataLen, ptrLen, target}, nil

	case ptrList:
		if signedOffset(w1) != 0 {
			return nil, malformedf("double-far content pointer does not land adjacent to its pad")
		}
		kind := int(bitField(w1, 32, 34))
		size := int(bitField(w1, 35, 63))
		switch {
		case kind < 6:
			if !target.spans(listBodyWords(kind, size)) {
				return nil, malformedf("list of %d elements of kind %d at segment %d offset %d out of bounds",
					size, kind, target.seg, target.off)
			}
			return intListView{kind, size, target}, nil
		case kind == 6:
			if !target.spans(int64(size)) {
				return nil, malformedf("pointer list of %d elements at segment %d offset %d out of bounds",
					size, target.seg, target.off)
			}
			return pointerListView{size, target}, nil
		default:
			// The composite tag word sits at the real target, where the
			// pad-adjacency check cannot see it. Positioning would be
			// unverifiable, so these messages are rejected outright.
			return nil, malformedf("double-far pointer to a composite list is not supported")
		}

	case ptrFar:
		return nil, malformedf("double-far pad content may not be another far pointer")

	default: // ptrCap
		if bitField(w1, 2, 31) != 0 {
			return nil, malformedf("capability pointer has reserved bits set")
		}
		return capabilityView{uint32(w1 >> 32)}, nil
	}
}
