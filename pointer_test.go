// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical_test

import (
	"errors"
	"testing"

	canonical "github.com/bucko909/capnp-canonicalize"
)

func wantMalformed(t *testing.T, msg canonical.Message, opts ...canonical.Option) {
	t.Helper()
	if _, err := canonical.Canonicalize(msg, opts...); !errors.Is(err, canonical.ErrMalformedPointer) {
		t.Fatalf("err=%v want ErrMalformedPointer", err)
	}
}

func TestFollow_StructOutOfBounds(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{structPtr(5, 1, 0)}})
}

func TestFollow_ListOutOfBounds(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{listPtr(0, 5, 4)}})
	wantMalformed(t, canonical.Message{canonical.Segment{listPtr(0, 6, 1)}})
}

func TestFollow_NegativeOffsetBeforeSegment(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{structPtr(-3, 1, 0)}})
}

func TestFollow_CompositeTagSizeMismatch(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{
		listPtr(0, 7, 5),
		1<<2 | 2<<32 | 1<<48, // tag: one member of 3 words, pointer says 5
		0, 0, 0, 0, 0,
	}})
}

func TestFollow_CapabilityReservedBits(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{capPtr(7) | 1<<2}})
}

func TestFollow_FarToMissingSegment(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{farPtr(false, 0, 3)}})
}

func TestFollow_DoubleFarPadOutOfBounds(t *testing.T) {
	wantMalformed(t, canonical.Message{
		canonical.Segment{farPtr(true, 0, 1)},
		canonical.Segment{farPtr(false, 0, 0)}, // only one pad word
	})
}

func TestFollow_DoubleFarPadNotFar(t *testing.T) {
	wantMalformed(t, canonical.Message{
		canonical.Segment{farPtr(true, 0, 1)},
		canonical.Segment{structPtr(0, 1, 0), 0},
	})
}

func TestFollow_DoubleFarPadContentIsFar(t *testing.T) {
	wantMalformed(t, canonical.Message{
		canonical.Segment{farPtr(true, 0, 1)},
		canonical.Segment{farPtr(false, 0, 2), farPtr(false, 0, 2)},
		canonical.Segment{0},
	})
}

func TestFollow_DoubleFarContentOffsetNotAdjacent(t *testing.T) {
	wantMalformed(t, canonical.Message{
		canonical.Segment{farPtr(true, 0, 1)},
		canonical.Segment{farPtr(false, 0, 2), structPtr(1, 1, 0)},
		canonical.Segment{42, 0},
	})
}

func TestFollow_DoubleFarToCompositeListRejected(t *testing.T) {
	// The composite tag word sits at the far target, so the pad-adjacency
	// diagnostic cannot be checked; these inputs are rejected outright.
	wantMalformed(t, canonical.Message{
		canonical.Segment{farPtr(true, 0, 1)},
		canonical.Segment{farPtr(false, 0, 2), listPtr(0, 7, 3)},
		canonical.Segment{1<<2 | 2<<32 | 1<<48, 5, 0, 0},
	})
}

func TestFollow_DoubleFarNullContent(t *testing.T) {
	// An all-zero content word decodes to Null regardless of position.
	msg := canonical.Message{
		canonical.Segment{farPtr(true, 0, 1)},
		canonical.Segment{farPtr(false, 0, 2), 0},
		canonical.Segment{0},
	}
	out := mustCanonical(t, msg)
	wantWords(t, out, canonical.Segment{0})
}

func TestFollow_CycleHitsDepthBound(t *testing.T) {
	// Two struct pointers that resolve to each other's payloads.
	wantMalformed(t, canonical.Message{canonical.Segment{
		structPtr(0, 0, 1),
		structPtr(-2, 0, 1),
	}}, canonical.WithMaxDepth(16))
}

func TestFollow_DeepNestingWithinBound(t *testing.T) {
	// A chain of single-pointer structs: depth 8 under a bound of 64. The
	// innermost struct holds only a null pointer, so it trims to zero size
	// and its slot takes the distinguished empty-struct encoding.
	seg := canonical.Segment{}
	for i := 0; i < 8; i++ {
		seg = append(seg, structPtr(0, 0, 1))
	}
	seg = append(seg, 0)
	want := append(canonical.Segment{}, seg[:7]...)
	want = append(want, canonical.SpecialPointer)
	out := mustCanonical(t, canonical.Message{seg})
	wantWords(t, out, want)
}

func TestCanonicalize_NoSegments(t *testing.T) {
	if _, err := canonical.Canonicalize(canonical.Message{}); !errors.Is(err, canonical.ErrFraming) {
		t.Fatalf("err=%v want ErrFraming", err)
	}
}

func TestCanonicalize_EmptyRootSegment(t *testing.T) {
	wantMalformed(t, canonical.Message{canonical.Segment{}})
}
