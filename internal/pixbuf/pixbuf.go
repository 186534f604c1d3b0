// Package pixbuf holds decoded 24-bit RGB images in a single packed buffer
// and converts them to and from JPEG files.
package pixbuf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/davesmith10/tvinterlace/internal/jpeg"
)

// RGBBytesPerPixel is the only pixel layout a Buffer holds.
const RGBBytesPerPixel = 3

// SaveQuality is the JPEG quality used by Save.
const SaveQuality = 100

// Buffer owns the pixels of one decoded image. Rows are stored top to
// bottom, each Width()*BytesPerPixel() bytes, with no padding.
//
// The zero value is an empty image. Load replaces the contents wholesale;
// a Buffer is not safe for concurrent use.
type Buffer struct {
	width  int
	height int
	bpp    int
	pixels []byte
	icc    []byte
}

// Width returns the number of pixel columns, 0 if empty.
func (b *Buffer) Width() int { return b.width }

// Height returns the number of pixel rows, 0 if empty.
func (b *Buffer) Height() int { return b.height }

// BytesPerPixel returns 3 for a loaded RGB image, 0 if empty.
func (b *Buffer) BytesPerPixel() int { return b.bpp }

// Stride returns the byte distance between the starts of consecutive rows.
func (b *Buffer) Stride() int { return b.width * b.bpp }

// Empty reports whether the buffer holds no image.
func (b *Buffer) Empty() bool { return b.pixels == nil }

// Pixels returns the modifiable pixel data, nil if empty. The slice aliases
// the buffer's storage and is only valid until the next Load.
func (b *Buffer) Pixels() []byte { return b.pixels }

// ICC returns a copy of the ICC profile read with the image, nil if none.
func (b *Buffer) ICC() []byte { return bytes.Clone(b.icc) }

// Image returns a read-only image.Image view of the pixels, nil if empty.
// The view reflects later in-place changes to Pixels.
func (b *Buffer) Image() image.Image {
	if b.Empty() {
		return nil
	}
	return rgbView{pix: b.pixels, width: b.width, height: b.height}
}

func (b *Buffer) reset() {
	*b = Buffer{}
}

// Load decodes the JPEG file at path into b, replacing anything b held.
// The image must decode to non-empty 3-byte RGB; grayscale and YCbCr
// sources are converted by the codec. On any failure b is left empty.
func (b *Buffer) Load(path string) error {
	b.reset()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	dec, err := jpeg.NewDecoder(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	defer dec.Close()

	hdr, err := dec.Start()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Components != RGBBytesPerPixel {
		return fmt.Errorf("decoding %s: unsupported %dx%d image with %d bytes per pixel",
			path, hdr.Width, hdr.Height, hdr.Components)
	}

	stride := hdr.Width * hdr.Components
	pixels := make([]byte, stride*hdr.Height)

	// Rows the codec never produces stay zero.
	for off := 0; off < len(pixels); {
		n, err := dec.ReadScanlines(pixels[off:], stride)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		if n == 0 {
			break
		}
		off += n * stride
	}

	if err := dec.Finish(); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	*b = Buffer{
		width:  hdr.Width,
		height: hdr.Height,
		bpp:    hdr.Components,
		pixels: pixels,
		icc:    dec.ICC(),
	}
	return nil
}

// Save encodes the image to path as a quality-100 baseline JPEG with all
// tables embedded, plus the ICC profile from Load if there was one.
//
// Nothing is written when b is empty. The JPEG is built in memory and
// moved into place with a rename, so a failed Save never leaves a
// truncated file at path.
func (b *Buffer) Save(path string) error {
	if b.Empty() || b.width == 0 || b.height == 0 || b.bpp != RGBBytesPerPixel {
		return errors.New("no RGB image to save")
	}

	enc, err := jpeg.NewEncoder(b.width, b.height, jpeg.EncoderOptions{
		Quality: SaveQuality,
		ICC:     b.icc,
	})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	defer enc.Close()

	stride := b.Stride()
	for off := 0; off < len(b.pixels); {
		n, err := enc.WriteScanlines(b.pixels[off:], stride)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		if n == 0 {
			break
		}
		off += n * stride
	}

	data, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	return writeFileAtomic(path, data, 0644)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path once it is complete.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = f.Chmod(perm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// rgbView exposes packed RGB bytes as an opaque image.Image.
type rgbView struct {
	pix    []byte
	width  int
	height int
}

func (v rgbView) ColorModel() color.Model { return color.RGBAModel }

func (v rgbView) Bounds() image.Rectangle { return image.Rect(0, 0, v.width, v.height) }

func (v rgbView) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= v.width || y >= v.height {
		return color.RGBA{}
	}
	i := (y*v.width + x) * RGBBytesPerPixel
	return color.RGBA{R: v.pix[i], G: v.pix[i+1], B: v.pix[i+2], A: 0xFF}
}
