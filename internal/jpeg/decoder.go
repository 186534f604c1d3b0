package jpeg

/*
#cgo pkg-config: libjpeg
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <jpeglib.h>
#include <setjmp.h>

#define MAX_ROWS_PER_READ 16

typedef struct {
    struct jpeg_error_mgr pub;
    jmp_buf               jmpbuf;
    char                  msg[JMSG_LENGTH_MAX];
} decode_err_mgr;

static void decode_error_exit(j_common_ptr cinfo) {
    decode_err_mgr *e = (decode_err_mgr *)cinfo->err;
    (*(cinfo->err->format_message))(cinfo, e->msg);
    longjmp(e->jmpbuf, 1);
}

// jpeg_decoder owns the decompressor and a C copy of the compressed input,
// so no Go memory is retained by libjpeg between calls.
typedef struct {
    struct jpeg_decompress_struct cinfo;
    decode_err_mgr                jerr;
    unsigned char                *src;
    unsigned long                 src_size;
} jpeg_decoder;

static jpeg_decoder *decoder_new(const unsigned char *buf, unsigned long buf_size) {
    jpeg_decoder *d = (jpeg_decoder *)calloc(1, sizeof(jpeg_decoder));
    if (d == NULL) return NULL;

    d->src = (unsigned char *)malloc(buf_size);
    if (d->src == NULL) {
        free(d);
        return NULL;
    }
    memcpy(d->src, buf, buf_size);
    d->src_size = buf_size;

    d->cinfo.err = jpeg_std_error(&d->jerr.pub);
    d->jerr.pub.error_exit = decode_error_exit;

    if (setjmp(d->jerr.jmpbuf)) {
        jpeg_destroy_decompress(&d->cinfo);
        free(d->src);
        free(d);
        return NULL;
    }

    jpeg_create_decompress(&d->cinfo);
    jpeg_save_markers(&d->cinfo, JPEG_APP0+2, 0xFFFF); // APP2 for ICC
    jpeg_mem_src(&d->cinfo, d->src, d->src_size);
    return d;
}

static const char *decoder_error(jpeg_decoder *d) {
    return d->jerr.msg;
}

static int decoder_read_header(jpeg_decoder *d, int *width, int *height,
                               int *num_components, int *color_space, int *progressive) {
    if (setjmp(d->jerr.jmpbuf)) {
        return -1;
    }

    if (jpeg_read_header(&d->cinfo, TRUE) != JPEG_HEADER_OK) {
        strncpy(d->jerr.msg, "no image in JPEG stream", sizeof(d->jerr.msg)-1);
        return -1;
    }

    *width = d->cinfo.image_width;
    *height = d->cinfo.image_height;
    *num_components = d->cinfo.num_components;
    *color_space = d->cinfo.jpeg_color_space;
    *progressive = d->cinfo.progressive_mode ? 1 : 0;
    return 0;
}

static jpeg_saved_marker_ptr decoder_markers(jpeg_decoder *d) {
    return d->cinfo.marker_list;
}

static int decoder_start(jpeg_decoder *d, int *width, int *height, int *components) {
    if (setjmp(d->jerr.jmpbuf)) {
        return -1;
    }

    // Force RGB output
    d->cinfo.out_color_space = JCS_RGB;

    jpeg_start_decompress(&d->cinfo);

    *width = d->cinfo.output_width;
    *height = d->cinfo.output_height;
    *components = d->cinfo.out_color_components;
    return 0;
}

static int decoder_read_rows(jpeg_decoder *d, unsigned char *dst, int stride, int max_rows, int *rows) {
    JSAMPROW row_ptrs[MAX_ROWS_PER_READ];
    *rows = 0;

    if (setjmp(d->jerr.jmpbuf)) {
        return -1;
    }

    int want = d->cinfo.rec_outbuf_height;
    int remaining = (int)(d->cinfo.output_height - d->cinfo.output_scanline);
    if (want > remaining) want = remaining;
    if (want > max_rows) want = max_rows;
    if (want > MAX_ROWS_PER_READ) want = MAX_ROWS_PER_READ;
    if (want <= 0) return 0;

    for (int i = 0; i < want; i++) {
        row_ptrs[i] = dst + (size_t)i * stride;
    }
    *rows = (int)jpeg_read_scanlines(&d->cinfo, row_ptrs, (JDIMENSION)want);
    return 0;
}

static int decoder_finish(jpeg_decoder *d) {
    if (setjmp(d->jerr.jmpbuf)) {
        return -1;
    }

    // finish_decompress rejects a short read, so a stopped stream is aborted instead
    if (d->cinfo.output_scanline < d->cinfo.output_height) {
        jpeg_abort_decompress(&d->cinfo);
        return 0;
    }
    jpeg_finish_decompress(&d->cinfo);
    return 0;
}

static void decoder_destroy(jpeg_decoder *d) {
    jpeg_destroy_decompress(&d->cinfo);
    free(d->src);
    free(d);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

// LibjpegVersion returns the JPEG library version.
func LibjpegVersion() int {
	return int(C.JPEG_LIB_VERSION)
}

// Header describes the decompressed output of a started Decoder.
type Header struct {
	Width      int
	Height     int
	Components int // bytes per output pixel, 3 for RGB
}

// Decoder streams RGB scanlines out of a JPEG held in memory.
// A Decoder must be closed; Close is safe to call more than once.
type Decoder struct {
	d       *C.jpeg_decoder
	info    *ImageInfo
	iccErr  error
	started bool
}

// NewDecoder prepares a decompressor for data. The bytes are copied, so the
// caller may reuse data immediately.
func NewDecoder(data []byte) (*Decoder, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data too short for JPEG")
	}

	d := C.decoder_new((*C.uchar)(unsafe.Pointer(&data[0])), C.ulong(len(data)))
	if d == nil {
		return nil, errors.New("libjpeg: cannot create decompressor")
	}

	dec := &Decoder{d: d}
	runtime.SetFinalizer(dec, (*Decoder).Close)
	return dec, nil
}

func (dec *Decoder) lastError() string {
	return C.GoString(C.decoder_error(dec.d))
}

// ReadHeader parses the stream header and any embedded ICC profile without
// decoding pixels. Repeated calls return the cached result. A malformed ICC
// chunk set does not fail the header; ICC is nil and GetInfo reports it.
func (dec *Decoder) ReadHeader() (*ImageInfo, error) {
	if dec.d == nil {
		return nil, errors.New("decoder is closed")
	}
	if dec.info != nil {
		return dec.info, nil
	}

	var width, height, comps, cs, progressive C.int
	if C.decoder_read_header(dec.d, &width, &height, &comps, &cs, &progressive) != 0 {
		return nil, fmt.Errorf("libjpeg header: %s", dec.lastError())
	}

	// Collect APP2 marker data into Go slices
	var app2Markers [][]byte
	for m := C.decoder_markers(dec.d); m != nil; m = m.next {
		if int(m.marker) == C.JPEG_APP0+2 && m.data_length > 0 {
			app2Markers = append(app2Markers, C.GoBytes(unsafe.Pointer(m.data), C.int(m.data_length)))
		}
	}

	icc, err := ExtractICC(app2Markers)
	if err != nil {
		icc, dec.iccErr = nil, fmt.Errorf("extracting ICC: %w", err)
	}

	dec.info = &ImageInfo{
		Width:         int(width),
		Height:        int(height),
		NumComponents: int(comps),
		ColorSpace:    colorSpaceName(int(cs)),
		Progressive:   progressive != 0,
		ICC:           icc,
	}
	return dec.info, nil
}

// Start requests RGB output and begins decompression. The returned header
// reports what the codec will actually produce; callers must check
// Components before reading rows.
func (dec *Decoder) Start() (Header, error) {
	if _, err := dec.ReadHeader(); err != nil {
		return Header{}, err
	}
	if dec.started {
		return Header{}, errors.New("decompression already started")
	}

	var width, height, comps C.int
	if C.decoder_start(dec.d, &width, &height, &comps) != 0 {
		return Header{}, fmt.Errorf("libjpeg start: %s", dec.lastError())
	}
	dec.started = true

	return Header{
		Width:      int(width),
		Height:     int(height),
		Components: int(comps),
	}, nil
}

// ReadScanlines decodes the next rows into dst, which holds rows of stride
// bytes back to back. It returns the number of rows produced; zero means the
// codec made no progress.
func (dec *Decoder) ReadScanlines(dst []byte, stride int) (int, error) {
	if !dec.started {
		return 0, errors.New("decompression not started")
	}
	if stride <= 0 || len(dst) < stride {
		return 0, fmt.Errorf("destination holds %d bytes, need at least one %d-byte row", len(dst), stride)
	}

	var rows C.int
	res := C.decoder_read_rows(
		dec.d,
		(*C.uchar)(unsafe.Pointer(&dst[0])),
		C.int(stride),
		C.int(len(dst)/stride),
		&rows,
	)
	if res != 0 {
		return 0, fmt.Errorf("libjpeg decode: %s", dec.lastError())
	}
	return int(rows), nil
}

// Finish completes decompression. A stream that stopped early is aborted
// rather than treated as an error.
func (dec *Decoder) Finish() error {
	if !dec.started {
		return errors.New("decompression not started")
	}
	if C.decoder_finish(dec.d) != 0 {
		return fmt.Errorf("libjpeg finish: %s", dec.lastError())
	}
	dec.started = false
	return nil
}

// ICC returns the embedded ICC profile, nil if absent or the header has not
// been read.
func (dec *Decoder) ICC() []byte {
	if dec.info == nil {
		return nil
	}
	return dec.info.ICC
}

// Close releases libjpeg resources.
func (dec *Decoder) Close() {
	if dec.d != nil {
		C.decoder_destroy(dec.d)
		dec.d = nil
	}
	dec.started = false
}
