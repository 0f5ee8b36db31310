// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"time"

	"github.com/bucko909/capnp-canonicalize/internal/bo"
)

// Wire format: a 32-bit little-endian segment count minus one, then one
// 32-bit length (in words) per segment, then a 32-bit zero pad iff the
// header holds an odd number of 32-bit values, then every segment's words
// as little-endian 64-bit integers.

const wordBytes = 8

// maxWords is the largest total word count whose byte length fits in int.
const maxWords = math.MaxInt / wordBytes

// headerBytes returns the byte length of the framing header (count,
// lengths, pad) for segCount segments. The header is always a whole
// number of words.
func headerBytes(segCount int64) int64 {
	return (segCount + 2) / 2 * wordBytes
}

// DecodeSegments decodes a whole framed message from buf. The consumed
// length must equal len(buf) exactly. The returned segments may alias buf's
// storage on little-endian hosts; callers must not modify buf while the
// message is in use.
func DecodeSegments(buf []byte) (Message, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("segment count truncated: %w", ErrFraming)
	}
	segCount := int64(binary.LittleEndian.Uint32(buf)) + 1
	hdr := headerBytes(segCount)
	if int64(len(buf)) < hdr {
		return nil, fmt.Errorf("segment table truncated: %w", ErrFraming)
	}
	total := int64(0)
	lengths := make([]int, segCount)
	for i := int64(0); i < segCount; i++ {
		n := int64(binary.LittleEndian.Uint32(buf[4+4*i:]))
		lengths[i] = int(n)
		total += n
		if total > (int64(len(buf))-hdr)/wordBytes {
			return nil, fmt.Errorf("segment table declares more words than the %d-byte message holds: %w",
				len(buf), ErrFraming)
		}
	}
	if int64(len(buf)) != hdr+total*wordBytes {
		return nil, fmt.Errorf("message is %d bytes, segment table declares %d: %w",
			len(buf), hdr+total*wordBytes, ErrFraming)
	}
	msg := make(Message, segCount)
	off := hdr
	for i, n := range lengths {
		msg[i] = decodeWords(buf[off : off+int64(n)*wordBytes])
		off += int64(n) * wordBytes
	}
	return msg, nil
}

// EncodeSegments frames msg for the wire, the inverse of DecodeSegments.
func EncodeSegments(msg Message) []byte {
	buf := make([]byte, 0, headerBytes(int64(len(msg)))+int64(msg.Words())*wordBytes)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(msg)-1))
	for _, seg := range msg {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(seg)))
	}
	if (1+len(msg))%2 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, 0)
	}
	for _, seg := range msg {
		for _, w := range seg {
			buf = binary.LittleEndian.AppendUint64(buf, w)
		}
	}
	return buf
}

// decodeWords converts a little-endian payload into words. On native
// little-endian hosts with aligned input this reinterprets in place.
func decodeWords(b []byte) Segment {
	if words, ok := bo.WordView(b); ok {
		return words
	}
	seg := make(Segment, len(b)/wordBytes)
	for i := range seg {
		seg[i] = binary.LittleEndian.Uint64(b[i*wordBytes:])
	}
	return seg
}

// Decoder iterates framed messages on a byte stream.
//
// A zero-byte read at the 4-byte count boundary ends the stream cleanly
// with io.EOF. Any other short read is a framing error: once a count has
// been consumed the rest of the message must follow.
//
// In Nonblock mode, partial progress may be parked with ErrWouldBlock; the
// caller must call Next again on the same Decoder to resume the in-flight
// message.
type Decoder struct {
	rd         io.Reader
	readLimit  int64
	retryDelay time.Duration

	// in-flight message state
	phase      decodePhase
	count      [4]byte
	countOff   int
	table      []byte
	tableOff   int
	payload    []byte
	payloadOff int
	lengths    []int
}

type decodePhase uint8

const (
	phaseCount decodePhase = iota
	phaseTable
	phasePayload
)

// NewDecoder returns a Decoder reading framed messages from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	o := applyOptions(opts)
	return &Decoder{rd: r, readLimit: int64(o.ReadLimit), retryDelay: o.RetryDelay}
}

func (d *Decoder) reset() {
	d.phase = phaseCount
	d.countOff = 0
	d.table = nil
	d.tableOff = 0
	d.payload = nil
	d.payloadOff = 0
	d.lengths = nil
}

func (d *Decoder) waitOnceOnWouldBlock() bool {
	// returns whether the caller should retry
	if d.retryDelay < 0 {
		return false
	}
	if d.retryDelay == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(d.retryDelay)
	return true
}

func (d *Decoder) readOnce(p []byte) (n int, err error) {
	for {
		n, err = d.rd.Read(p)
		// Guard against broken Readers that violate the io.Reader contract by
		// returning (0, nil) on a non-empty buffer. Without this, the decode
		// state machine can spin indefinitely.
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrNoProgress
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !d.waitOnceOnWouldBlock() {
			return n, err
		}
	}
}

// fill reads until buf is full, tracking progress through *off so that a
// parked ErrWouldBlock can resume where it stopped.
func (d *Decoder) fill(buf []byte, off *int) error {
	for *off < len(buf) {
		n, err := d.readOnce(buf[*off:])
		*off += n
		if *off == len(buf) {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Next decodes and returns the next message. It returns io.EOF when the
// stream ends cleanly at a message boundary.
func (d *Decoder) Next() (Message, error) {
	if d.rd == nil {
		return nil, ErrInvalidArgument
	}

	if d.phase == phaseCount {
		if err := d.fill(d.count[:], &d.countOff); err != nil {
			if err == io.EOF {
				if d.countOff == 0 {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("segment count truncated: %w", ErrFraming)
			}
			return nil, err
		}
		segCount := int64(binary.LittleEndian.Uint32(d.count[:])) + 1
		hdrWords := headerBytes(segCount) / wordBytes
		if d.readLimit > 0 && hdrWords > d.readLimit {
			d.reset()
			return nil, ErrTooLong
		}
		d.table = make([]byte, headerBytes(segCount)-4)
		d.phase = phaseTable
	}

	if d.phase == phaseTable {
		if err := d.fill(d.table, &d.tableOff); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("segment table truncated: %w", ErrFraming)
			}
			return nil, err
		}
		segCount := int64(binary.LittleEndian.Uint32(d.count[:])) + 1
		total := int64(0)
		d.lengths = make([]int, segCount)
		for i := int64(0); i < segCount; i++ {
			n := int64(binary.LittleEndian.Uint32(d.table[4*i:]))
			d.lengths[i] = int(n)
			total += n
			if total > maxWords {
				d.reset()
				return nil, fmt.Errorf("segment table declares more than %d words: %w", maxWords, ErrFraming)
			}
		}
		if d.readLimit > 0 && headerBytes(segCount)/wordBytes+total > d.readLimit {
			d.reset()
			return nil, ErrTooLong
		}
		d.payload = make([]byte, total*wordBytes)
		d.phase = phasePayload
	}

	if err := d.fill(d.payload, &d.payloadOff); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("segment payload truncated: %w", ErrFraming)
		}
		return nil, err
	}

	msg := make(Message, len(d.lengths))
	off := 0
	for i, n := range d.lengths {
		msg[i] = decodeWords(d.payload[off : off+n*wordBytes])
		off += n * wordBytes
	}
	d.reset()
	return msg, nil
}
