package jpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient returns a width x height RGB image with smooth horizontal and
// vertical ramps, which survive quality-100 compression nearly unchanged.
func gradient(width, height int) []byte {
	pixels := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			pixels[i] = byte(x * 255 / max(width-1, 1))
			pixels[i+1] = byte(y * 255 / max(height-1, 1))
			pixels[i+2] = 128
		}
	}
	return pixels
}

func TestEncodeRGBSynthetic(t *testing.T) {
	width, height := 16, 8
	data, err := EncodeRGB(gradient(width, height), width, height, EncoderOptions{})
	require.NoError(t, err)

	// SOI and EOI markers
	require.GreaterOrEqual(t, len(data), 4)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "bad FFD8 magic")
	assert.Equal(t, []byte{0xFF, 0xD9}, data[len(data)-2:], "missing FFD9 EOI")

	info, err := GetInfo(data)
	require.NoError(t, err)
	assert.Equal(t, width, info.Width)
	assert.Equal(t, height, info.Height)
	assert.Equal(t, 3, info.NumComponents)
	assert.Equal(t, "YCbCr", info.ColorSpace)
	assert.False(t, info.Progressive)
	assert.Nil(t, info.ICC)
}

func TestEncodeRGBRejectsShortBuffer(t *testing.T) {
	_, err := EncodeRGB(make([]byte, 10), 4, 4, EncoderOptions{})
	assert.Error(t, err)
}

func TestNewEncoderRejectsEmptyImage(t *testing.T) {
	for _, dims := range [][2]int{{0, 4}, {4, 0}, {-1, 1}} {
		enc, err := NewEncoder(dims[0], dims[1], EncoderOptions{})
		assert.Error(t, err, "%dx%d", dims[0], dims[1])
		assert.Nil(t, enc)
	}
}

func TestEncoderFinishRequiresAllRows(t *testing.T) {
	enc, err := NewEncoder(2, 2, EncoderOptions{})
	require.NoError(t, err)
	defer enc.Close()

	n, err := enc.WriteScanlines(make([]byte, 6), 6)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = enc.Finish()
	assert.Error(t, err)
}

func TestEncoderCloseIsIdempotent(t *testing.T) {
	enc, err := NewEncoder(1, 1, EncoderOptions{})
	require.NoError(t, err)
	enc.Close()
	enc.Close()

	_, err = enc.WriteScanlines(make([]byte, 3), 3)
	assert.Error(t, err)
	_, err = enc.Finish()
	assert.Error(t, err)
}

func TestEncodeEmbedsICC(t *testing.T) {
	profile := make([]byte, 3*maxChunkDataSize/2) // spans two APP2 chunks
	for i := range profile {
		profile[i] = byte(i * 7)
	}

	data, err := EncodeRGB(gradient(8, 8), 8, 8, EncoderOptions{ICC: profile})
	require.NoError(t, err)

	info, err := GetInfo(data)
	require.NoError(t, err)
	assert.Equal(t, profile, info.ICC)
}
