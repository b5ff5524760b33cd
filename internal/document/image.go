package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// MaxVisionDimension bounds the longest image edge sent to the vision API.
// High-DPI scans of letter pages render far larger than the model needs.
const MaxVisionDimension = 2048

// PrepareForVision decodes an image, downscales it when its longest edge
// exceeds MaxVisionDimension, and re-encodes it as PNG.
func PrepareForVision(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}

	if longest > MaxVisionDimension {
		scale := float64(MaxVisionDimension) / float64(longest)
		dw := int(float64(w) * scale)
		dh := int(float64(h) * scale)
		if dw < 1 {
			dw = 1
		}
		if dh < 1 {
			dh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGDataURL wraps PNG bytes in a base64 data URL for the vision API.
func PNGDataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
