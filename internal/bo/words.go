// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bo

import (
	"encoding/binary"
	"unsafe"
)

// WordView reinterprets b as little-endian 64-bit words without copying.
// ok is false when the host byte order is not little-endian or b is not
// 8-byte aligned; callers must then fall back to a portable decode loop.
// len(b) must be a multiple of 8.
func WordView(b []byte) (words []uint64, ok bool) {
	if len(b) == 0 {
		return nil, true
	}
	if Native() != binary.LittleEndian {
		return nil, false
	}
	if uintptr(unsafe.Pointer(&b[0]))&7 != 0 {
		return nil, false
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8), true
}
