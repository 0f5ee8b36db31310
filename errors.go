// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrInvalidArgument reports an invalid configuration or nil reader/writer.
	ErrInvalidArgument = errors.New("canonical: invalid argument")

	// ErrTooLong reports that a message exceeds the configured read limit.
	ErrTooLong = errors.New("canonical: message too long")

	// ErrFraming reports a segment table inconsistent with the underlying
	// bytes: trailing data, a short read after the count was consumed, or a
	// header whose declared sizes overflow.
	ErrFraming = errors.New("canonical: invalid message framing")

	// ErrMalformedPointer reports a pointer word that cannot be followed:
	// reserved bits set, an out-of-bounds target, a composite tag that
	// disagrees with its list pointer, a bad double-far landing pad, or a
	// reference graph deeper than the configured bound.
	ErrMalformedPointer = errors.New("canonical: malformed pointer")
)

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly.
var (
	// ErrWouldBlock means “no further progress without waiting”.
	//
	// It is an expected, non-failure control-flow signal for non-blocking I/O.
	// Any returned byte count (n) still represents real progress.
	//
	// Caller action: stop the current attempt and retry later (after readiness/event),
	// or configure RetryDelay to emulate cooperative blocking on top of a non-blocking transport.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means “this completion is usable and more completions will follow”.
	//
	// It is not io.EOF and not “try later”. The operation remains active and additional
	// data/results are expected from the same ongoing operation.
	//
	// Caller action: process the returned bytes/result, then call again to obtain the next chunk.
	ErrMore = iox.ErrMore
)
