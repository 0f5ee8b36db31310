// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical

import (
	"io"
	"runtime"
	"time"
)

// Relay drains framed messages from a source, canonicalizes each, and
// writes the framed canonical form to a destination.
//
// Semantics:
//   - One call to RelayOnce processes at most one logical message.
//   - Two-phase state machine per message:
//     1) Read a whole framed message from src via the Decoder (non-blocking;
//     may park with partial progress and ErrWouldBlock or ErrMore).
//     2) Canonicalize and write the result as one framed message to dst
//     (non-blocking; may park with partial progress and ErrWouldBlock
//     or ErrMore).
//   - Returns (n, nil) when a whole canonical message has reached dst.
//   - Returns io.EOF when src ends cleanly at a message boundary.
//
// Retry rule: on ErrWouldBlock or ErrMore, the caller must retry RelayOnce
// on the SAME Relay instance to complete the in-flight message; the
// read/write progress lives in internal state.
//
// Errors are fatal per message and the canonicalizer makes no attempt to
// recover inside one: Run stops at the first failure.
type Relay struct {
	dec *Decoder
	wr  io.Writer
	o   Options

	// pending framed output for the in-flight message
	out    []byte
	outOff int
}

// NewRelay returns a Relay from r to w.
func NewRelay(r io.Reader, w io.Writer, opts ...Option) *Relay {
	o := applyOptions(opts)
	return &Relay{dec: NewDecoder(r, opts...), wr: w, o: o}
}

func (rl *Relay) waitOnceOnWouldBlock() bool {
	if rl.o.RetryDelay < 0 {
		return false
	}
	if rl.o.RetryDelay == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(rl.o.RetryDelay)
	return true
}

func (rl *Relay) writeOnce(p []byte) (n int, err error) {
	for {
		n, err = rl.wr.Write(p)
		// Guard against broken Writers that violate the io.Writer contract by
		// returning (0, nil) on a non-empty buffer.
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrShortWrite
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !rl.waitOnceOnWouldBlock() {
			return n, err
		}
	}
}

// drain writes the pending output, tracking progress for resumption.
func (rl *Relay) drain() (int, error) {
	written := 0
	for rl.outOff < len(rl.out) {
		n, err := rl.writeOnce(rl.out[rl.outOff:])
		rl.outOff += n
		written += n
		if rl.outOff == len(rl.out) {
			break
		}
		if err != nil {
			return written, err
		}
	}
	rl.out = nil
	rl.outOff = 0
	return written, nil
}

// RelayOnce processes at most one message and returns the number of output
// bytes written during this call.
func (rl *Relay) RelayOnce() (int, error) {
	if rl.wr == nil {
		return 0, ErrInvalidArgument
	}

	// Finish the write phase of an in-flight message first.
	if rl.out != nil {
		return rl.drain()
	}

	msg, err := rl.dec.Next()
	if err != nil {
		return 0, err
	}
	out, err := canonicalize(msg, rl.o)
	if err != nil {
		return 0, err
	}
	rl.out = EncodeSegments(out)
	rl.outOff = 0
	return rl.drain()
}

// Run relays messages until the source is drained (returns nil) or the
// first error. ErrWouldBlock and ErrMore propagate to the caller in
// Nonblock mode. With WithBlock or WithRetryDelay, a read or write that
// reports ErrWouldBlock without transferring any bytes is retried below
// Run; ErrWouldBlock after partial progress, and ErrMore, are still
// returned to the caller.
func (rl *Relay) Run() error {
	for {
		_, err := rl.RelayOnce()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
