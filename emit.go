// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical

// writer is the canonicalizer's output: a single append-only segment.
// Positions returned by extend stay valid across later appends, so an
// emitter can hand child slots out before the segment stops growing.
type writer struct {
	seg                Segment
	zeroAlwaysMinusOne bool
}

// extend appends n zero words and returns the index of the first.
func (w *writer) extend(n int) int {
	start := len(w.seg)
	w.seg = append(w.seg, make(Segment, n)...)
	return start
}

func (w *writer) set(i int, v uint64) {
	w.seg[i] = v
}

// setPointer writes the pointer for a payload at index target into slot.
// data carries the type tag and descriptor bits; the offset field is
// derived from the slot/target distance. An empty struct pointer (data == 0)
// is replaced by SpecialPointer: always under the zero-always-minus-one
// policy, even when its natural encoding would be non-zero; otherwise only
// when the empty payload sits immediately after the slot and the natural
// encoding would be the all-zero null word.
func (w *writer) setPointer(slot int, data uint64, target int) {
	if data == 0 && (w.zeroAlwaysMinusOne || target == slot+1) {
		w.seg[slot] = SpecialPointer
		return
	}
	w.seg[slot] = data | uint64(target-slot-1)<<2
}

func (v nullView) emit(*writer, int, int) error {
	// The slot keeps the zero it was initialized with.
	return nil
}

// minDataLen is the trimmed data width: one past the last non-zero data word.
func (v structView) minDataLen() int {
	m := 0
	for i := 0; i < v.dataLen; i++ {
		if v.ref.at(i).word() != 0 {
			m = i + 1
		}
	}
	return m
}

// minPtrLen is the trimmed pointer width: one past the last non-null pointer.
func (v structView) minPtrLen() int {
	m := 0
	for i := 0; i < v.ptrLen; i++ {
		if v.ref.at(v.dataLen+i).word() != 0 {
			m = i + 1
		}
	}
	return m
}

func (v structView) emit(w *writer, slot, depth int) error {
	dataLen := v.minDataLen()
	ptrLen := v.minPtrLen()
	data := uint64(ptrStruct) | uint64(dataLen)<<32 | uint64(ptrLen)<<48
	start := w.extend(dataLen + ptrLen)
	w.setPointer(slot, data, start)
	return v.encodeBody(w, start, dataLen, ptrLen, depth)
}

// encodeBody lays out a struct body at start with the given trimmed widths:
// data words copied verbatim, pointer words re-emitted recursively. Shared
// between standalone structs and composite-list members, whose widths are
// trimmed list-wide rather than per member.
func (v structView) encodeBody(w *writer, start, dataLen, ptrLen, depth int) error {
	if depth <= 0 {
		return malformedf("pointer depth bound exceeded")
	}
	for i := 0; i < dataLen; i++ {
		w.set(start+i, v.ref.at(i).word())
	}
	for i := 0; i < ptrLen; i++ {
		child, err := follow(v.ref.at(v.dataLen+i), depth-1)
		if err != nil {
			return err
		}
		if err := child.emit(w, start+dataLen+i, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func (v structListView) member(i int) structView {
	return structView{v.dataLen, v.ptrLen, v.ref.at(i * (v.dataLen + v.ptrLen))}
}

func (v structListView) emit(w *writer, slot, depth int) error {
	// Widths are trimmed list-wide: every member gets the maximum of the
	// per-member minima so the layout stays fixed.
	dataLen, ptrLen := 0, 0
	for i := 0; i < v.size; i++ {
		m := v.member(i)
		if n := m.minDataLen(); n > dataLen {
			dataLen = n
		}
		if n := m.minPtrLen(); n > ptrLen {
			ptrLen = n
		}
	}
	body := (dataLen + ptrLen) * v.size
	data := uint64(ptrList) | 7<<32 | uint64(body)<<35
	tag := w.extend(1 + body)
	w.setPointer(slot, data, tag)
	// A non-empty list always has a non-zero tag: the member count sits in
	// the offset field. The empty list's all-zero tag is permitted.
	w.set(tag, uint64(v.size)<<2|uint64(dataLen)<<32|uint64(ptrLen)<<48)
	for i := 0; i < v.size; i++ {
		if err := v.member(i).encodeBody(w, tag+1+i*(dataLen+ptrLen), dataLen, ptrLen, depth); err != nil {
			return err
		}
	}
	return nil
}

func (v intListView) emit(w *writer, slot, _ int) error {
	bits := int64(v.size) * int64(elementBits[v.kind])
	whole := int(bits >> 6)
	data := uint64(ptrList) | uint64(v.kind)<<32 | uint64(v.size)<<35
	start := w.extend(whole)
	w.setPointer(slot, data, start)
	for i := 0; i < whole; i++ {
		w.set(start+i, v.ref.at(i).word())
	}
	if tail := uint(bits & 63); tail != 0 {
		// Canonical form forbids trailing garbage: only the live bits of
		// the final partial word survive.
		t := w.extend(1)
		w.set(t, v.ref.at(whole).word()&(1<<tail-1))
	}
	return nil
}

func (v pointerListView) emit(w *writer, slot, depth int) error {
	if depth <= 0 {
		return malformedf("pointer depth bound exceeded")
	}
	start := w.extend(v.size)
	w.setPointer(slot, uint64(ptrList)|6<<32|uint64(v.size)<<35, start)
	for i := 0; i < v.size; i++ {
		child, err := follow(v.ref.at(i), depth-1)
		if err != nil {
			return err
		}
		if err := child.emit(w, start+i, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func (v capabilityView) emit(w *writer, slot, _ int) error {
	// Value-only: the capability index rides in the pointer word itself.
	w.set(slot, uint64(ptrCap)|uint64(v.index)<<32)
	return nil
}
