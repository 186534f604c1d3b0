package jpeg

/*
#cgo pkg-config: libjpeg
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <jpeglib.h>
#include <setjmp.h>

typedef struct {
    struct jpeg_error_mgr pub;
    jmp_buf               jmpbuf;
    char                  msg[JMSG_LENGTH_MAX];
} encode_err_mgr;

static void encode_error_exit(j_common_ptr cinfo) {
    encode_err_mgr *e = (encode_err_mgr *)cinfo->err;
    (*(cinfo->err->format_message))(cinfo, e->msg);
    longjmp(e->jmpbuf, 1);
}

// jpeg_encoder compresses into a libjpeg-managed memory buffer.
typedef struct {
    struct jpeg_compress_struct cinfo;
    encode_err_mgr              jerr;
    unsigned char              *buf;
    unsigned long               size;
} jpeg_encoder;

static jpeg_encoder *encoder_new(void) {
    jpeg_encoder *e = (jpeg_encoder *)calloc(1, sizeof(jpeg_encoder));
    if (e == NULL) return NULL;

    e->cinfo.err = jpeg_std_error(&e->jerr.pub);
    e->jerr.pub.error_exit = encode_error_exit;

    if (setjmp(e->jerr.jmpbuf)) {
        jpeg_destroy_compress(&e->cinfo);
        free(e);
        return NULL;
    }

    jpeg_create_compress(&e->cinfo);
    jpeg_mem_dest(&e->cinfo, &e->buf, &e->size);
    return e;
}

static const char *encoder_error(jpeg_encoder *e) {
    return e->jerr.msg;
}

static int encoder_start(jpeg_encoder *e, int width, int height, int quality) {
    if (setjmp(e->jerr.jmpbuf)) {
        return -1;
    }

    e->cinfo.image_width = width;
    e->cinfo.image_height = height;
    e->cinfo.input_components = 3;
    e->cinfo.in_color_space = JCS_RGB;

    jpeg_set_defaults(&e->cinfo);
    jpeg_set_quality(&e->cinfo, quality, TRUE); // force baseline tables

    // No chroma subsampling
    for (int i = 0; i < e->cinfo.num_components; i++) {
        e->cinfo.comp_info[i].h_samp_factor = 1;
        e->cinfo.comp_info[i].v_samp_factor = 1;
    }

    jpeg_start_compress(&e->cinfo, TRUE); // write all tables
    return 0;
}

static int encoder_write_marker(jpeg_encoder *e, int marker, const unsigned char *data, unsigned int len) {
    if (setjmp(e->jerr.jmpbuf)) {
        return -1;
    }
    jpeg_write_marker(&e->cinfo, marker, data, len);
    return 0;
}

static int encoder_write_row(jpeg_encoder *e, const unsigned char *src, int *rows) {
    *rows = 0;
    if (setjmp(e->jerr.jmpbuf)) {
        return -1;
    }
    if (e->cinfo.next_scanline >= e->cinfo.image_height) {
        return 0;
    }
    JSAMPROW row = (JSAMPROW)src;
    *rows = (int)jpeg_write_scanlines(&e->cinfo, &row, 1);
    return 0;
}

static int encoder_finish(jpeg_encoder *e) {
    if (setjmp(e->jerr.jmpbuf)) {
        return -1;
    }
    jpeg_finish_compress(&e->cinfo);
    return 0;
}

static unsigned char *encoder_output(jpeg_encoder *e, unsigned long *size) {
    *size = e->size;
    return e->buf;
}

static void encoder_destroy(jpeg_encoder *e) {
    jpeg_destroy_compress(&e->cinfo);
    free(e->buf);
    free(e);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

// DefaultQuality is the quality used when EncoderOptions.Quality is zero.
const DefaultQuality = 100

// EncoderOptions controls RGB JPEG encoding.
type EncoderOptions struct {
	Quality int    // 1-100, default 100
	ICC     []byte // ICC profile to embed (can be nil)
}

// Encoder compresses RGB scanlines into a baseline JPEG held in memory.
// An Encoder must be closed; Close is safe to call more than once.
type Encoder struct {
	e      *C.jpeg_encoder
	width  int
	height int
	next   int
}

// NewEncoder starts a baseline RGB compressor for a width x height image.
// All tables are written and every component is sampled 1x1.
func NewEncoder(width, height int, opts EncoderOptions) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	quality := opts.Quality
	if quality == 0 {
		quality = DefaultQuality
	}
	quality = min(max(quality, 1), 100)

	e := C.encoder_new()
	if e == nil {
		return nil, errors.New("libjpeg: cannot create compressor")
	}

	enc := &Encoder{e: e, width: width, height: height}
	runtime.SetFinalizer(enc, (*Encoder).Close)

	if C.encoder_start(e, C.int(width), C.int(height), C.int(quality)) != 0 {
		err := fmt.Errorf("libjpeg encode start: %s", enc.lastError())
		enc.Close()
		return nil, err
	}

	if len(opts.ICC) > 0 {
		chunks, err := ChunkICC(opts.ICC)
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("chunking ICC: %w", err)
		}
		for _, chunk := range chunks {
			res := C.encoder_write_marker(e, C.JPEG_APP0+2,
				(*C.uchar)(unsafe.Pointer(&chunk[0])), C.uint(len(chunk)))
			if res != 0 {
				err := fmt.Errorf("libjpeg write ICC marker: %s", enc.lastError())
				enc.Close()
				return nil, err
			}
		}
	}

	return enc, nil
}

func (enc *Encoder) lastError() string {
	return C.GoString(C.encoder_error(enc.e))
}

// WriteScanlines compresses the next row from src, which must hold at least
// one stride-byte row. It returns the number of rows consumed; zero means
// the codec made no progress.
func (enc *Encoder) WriteScanlines(src []byte, stride int) (int, error) {
	if enc.e == nil {
		return 0, errors.New("encoder is closed")
	}
	if stride != enc.width*3 || len(src) < stride {
		return 0, fmt.Errorf("source holds %d bytes, need one %d-byte RGB row", len(src), enc.width*3)
	}

	var rows C.int
	if C.encoder_write_row(enc.e, (*C.uchar)(unsafe.Pointer(&src[0])), &rows) != 0 {
		return 0, fmt.Errorf("libjpeg encode: %s", enc.lastError())
	}
	enc.next += int(rows)
	return int(rows), nil
}

// Finish flushes the stream and returns the complete JPEG.
func (enc *Encoder) Finish() ([]byte, error) {
	if enc.e == nil {
		return nil, errors.New("encoder is closed")
	}
	if enc.next < enc.height {
		return nil, fmt.Errorf("only %d of %d rows written", enc.next, enc.height)
	}
	if C.encoder_finish(enc.e) != 0 {
		return nil, fmt.Errorf("libjpeg finish: %s", enc.lastError())
	}

	var size C.ulong
	buf := C.encoder_output(enc.e, &size)
	return C.GoBytes(unsafe.Pointer(buf), C.int(size)), nil
}

// Close releases libjpeg resources, including the output buffer.
func (enc *Encoder) Close() {
	if enc.e != nil {
		C.encoder_destroy(enc.e)
		enc.e = nil
	}
}

// EncodeRGB compresses a whole RGB image, len(pixels) == width*height*3.
func EncodeRGB(pixels []byte, width, height int, opts EncoderOptions) ([]byte, error) {
	expectedSize := width * height * 3
	if len(pixels) != expectedSize {
		return nil, fmt.Errorf("expected %d RGB bytes, got %d", expectedSize, len(pixels))
	}

	enc, err := NewEncoder(width, height, opts)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	stride := width * 3
	for off := 0; off < len(pixels); {
		n, err := enc.WriteScanlines(pixels[off:], stride)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		off += n * stride
	}
	return enc.Finish()
}
