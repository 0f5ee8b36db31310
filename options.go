// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canonical

import "time"

// Options configures decoding and canonicalization behavior.
type Options struct {
	// ZeroAlwaysMinusOne selects the zero-slot encoding policy. When true
	// (the default), every zero-size struct pointer is emitted with offset
	// -1 (SpecialPointer). When false, offset -1 is used only when the
	// naively computed pointer word would collide with the all-zero null
	// encoding, i.e. when the empty payload lands immediately after the slot.
	ZeroAlwaysMinusOne bool

	// MaxDepth bounds pointer-following recursion (far-pointer chains and
	// the emit descent). Reference graphs deeper than this are reported as
	// malformed. Zero selects DefaultMaxDepth.
	MaxDepth int

	// ReadLimit caps the total message size in words (segment table
	// included). Zero means no limit.
	ReadLimit int

	// RetryDelay controls how the decoder handles iox.ErrWouldBlock from the underlying transport:
	//   - negative: nonblock, return ErrWouldBlock immediately
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	RetryDelay time.Duration
}

// DefaultMaxDepth is the pointer recursion bound used when MaxDepth is zero.
const DefaultMaxDepth = 64

var defaultOptions = Options{
	ZeroAlwaysMinusOne: true,
	MaxDepth:           DefaultMaxDepth,
	ReadLimit:          0,
	RetryDelay:         -1, // default: nonblock
}

type Option func(*Options)

func applyOptions(opts []Option) Options {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// WithZeroAlwaysMinusOne selects the zero-slot encoding policy for empty
// struct pointers. See Options.ZeroAlwaysMinusOne.
func WithZeroAlwaysMinusOne(on bool) Option {
	return func(o *Options) { o.ZeroAlwaysMinusOne = on }
}

// WithMaxDepth bounds pointer recursion. Values <= 0 select DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(o *Options) { o.MaxDepth = depth }
}

// WithReadLimit caps the maximum allowed message size in words. Zero means no limit.
func WithReadLimit(limit int) Option {
	return func(o *Options) { o.ReadLimit = limit }
}

// WithRetryDelay sets the retry/wait policy used when the underlying transport returns iox.ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on iox.ErrWouldBlock.
func WithBlock() Option {
	return func(o *Options) { o.RetryDelay = 0 }
}

// WithNonblock forces non-blocking behavior (return iox.ErrWouldBlock immediately).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}
