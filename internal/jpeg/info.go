package jpeg

import (
	"fmt"
)

// colorSpaceName returns a string for libjpeg's J_COLOR_SPACE.
func colorSpaceName(cs int) string {
	switch cs {
	case 0:
		return "Unknown"
	case 1:
		return "Grayscale"
	case 2:
		return "RGB"
	case 3:
		return "YCbCr"
	case 4:
		return "CMYK"
	case 5:
		return "YCCK"
	default:
		return fmt.Sprintf("J_COLOR_SPACE(%d)", cs)
	}
}

// ImageInfo contains metadata about a JPEG file.
type ImageInfo struct {
	Width         int
	Height        int
	NumComponents int
	ColorSpace    string
	Progressive   bool
	ICC           []byte // extracted ICC profile, nil if absent
}

// GetInfo reads JPEG metadata and extracts any ICC profile without fully decoding the image.
func GetInfo(data []byte) (*ImageInfo, error) {
	dec, err := NewDecoder(data)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	info, err := dec.ReadHeader()
	if err != nil {
		return nil, err
	}
	if dec.iccErr != nil {
		return nil, dec.iccErr
	}
	return info, nil
}
