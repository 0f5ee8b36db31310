// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package canonical re-serializes segment-oriented, capability-based binary
// messages into their canonical form: a single segment in which every value
// sits in fixed pre-order traversal position, trimmed to its minimum
// meaningful width, with no padding and no representational freedom. Two
// semantically equal messages canonicalize to byte-identical output, which
// makes the result suitable for hashing, signing, and equality testing.
//
// Semantics and design:
//   - Schema-blind: the engine walks the pointer/word structure only. It
//     never interprets field names or types, and capabilities pass through
//     as opaque table indices.
//   - Three layers: a framing codec for the segment table (DecodeSegments,
//     EncodeSegments, Decoder), a pointer-following reader over the decoded
//     segments, and an append-only single-segment canonicalizer
//     (Canonicalize). Relay combines all three for stream processing.
//   - Non-blocking first: iox.ErrWouldBlock and iox.ErrMore are surfaced as
//     control-flow signals (re-exposed as canonical.ErrWouldBlock /
//     canonical.ErrMore); in-flight messages resume on the next call.
//
// Canonical output guarantees: exactly one segment; all pointers forward,
// intra-segment, and offset-minimal; no far pointers; struct widths trimmed
// to the last live word; partial-word list tails masked to their live bits;
// no emitted non-null pointer word equal to zero (see SpecialPointer).
package canonical

import "fmt"

// Canonicalize re-serializes a decoded message into its canonical
// single-segment form. The input is only read; the result is freshly
// allocated and always has exactly one segment.
func Canonicalize(msg Message, opts ...Option) (Message, error) {
	return canonicalize(msg, applyOptions(opts))
}

func canonicalize(msg Message, o Options) (Message, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("message has no segments: %w", ErrFraming)
	}
	root, err := follow(cursor{msg: msg}, o.MaxDepth)
	if err != nil {
		return nil, err
	}
	// One zero word reserves the root pointer slot; a null root leaves it.
	w := &writer{seg: make(Segment, 1), zeroAlwaysMinusOne: o.ZeroAlwaysMinusOne}
	if err := root.emit(w, 0, o.MaxDepth); err != nil {
		return nil, err
	}
	return Message{w.seg}, nil
}

// CanonicalizeBytes decodes one framed message from raw, canonicalizes it,
// and returns the framed canonical bytes.
func CanonicalizeBytes(raw []byte, opts ...Option) ([]byte, error) {
	msg, err := DecodeSegments(raw)
	if err != nil {
		return nil, err
	}
	out, err := Canonicalize(msg, opts...)
	if err != nil {
		return nil, err
	}
	return EncodeSegments(out), nil
}
