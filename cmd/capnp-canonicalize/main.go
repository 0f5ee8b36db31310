// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command capnp-canonicalize reads unpacked framed messages from standard
// input and writes their canonical forms to standard output.
package main

import (
	"fmt"
	"os"

	canonical "github.com/bucko909/capnp-canonicalize"
)

const usage = `Usage: %s [--zero-always-minus-one=false]

Read non-packed capnp messages from stdin, and output canonical forms.

--zero-always-minus-one    When encoding a zero-size struct pointer,
                           always use offset -1 (default)
`

func main() {
	opts := []canonical.Option{canonical.WithBlock()}
	switch {
	case len(os.Args) == 1:
	case len(os.Args) == 2 && os.Args[1] == "--zero-always-minus-one=false":
		opts = append(opts, canonical.WithZeroAlwaysMinusOne(false))
	default:
		fmt.Printf(usage, os.Args[0])
		os.Exit(0)
	}
	if err := canonical.NewRelay(os.Stdin, os.Stdout, opts...).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
