// Package interlace applies the TV scanline effect to packed pixel buffers:
// even rows are kept, odd rows are blanked to black.
package interlace

import (
	"math"
	"unsafe"
)

// Apply writes the interlaced version of src into dst. Both buffers hold
// height rows of width*bpp bytes with no padding between rows.
//
// src and dst may be the same slice or overlap in any way; each output row
// is computed from the original content of its source row. Apply does
// nothing if either buffer is nil or too short, or if any dimension is zero.
func Apply(src []byte, width, height, bpp int, dst []byte) {
	if src == nil || dst == nil || width <= 0 || height <= 0 || bpp <= 0 {
		return
	}

	if width > math.MaxInt/bpp {
		return
	}
	stride := width * bpp
	// dividing instead of multiplying keeps huge dimensions from wrapping
	if len(src)/stride < height || len(dst)/stride < height {
		return
	}

	srcBase := uintptr(unsafe.Pointer(unsafe.SliceData(src)))
	dstBase := uintptr(unsafe.Pointer(unsafe.SliceData(dst)))
	inPlace := srcBase == dstBase

	// Writing to a higher address walks rows from the bottom up so that no
	// source row is overwritten before it has been read.
	reverse := dstBase > srcBase

	for i := 0; i < height; i++ {
		row := i
		if reverse {
			row = height - 1 - i
		}
		off := row * stride
		out := dst[off : off+stride]

		switch {
		case row%2 == 1:
			if reverse {
				for j := len(out) - 1; j >= 0; j-- {
					out[j] = 0
				}
			} else {
				clear(out)
			}
		case !inPlace:
			// copy has memmove semantics for overlapping ranges
			copy(out, src[off:off+stride])
		}
	}
}
