package preview

import (
	"bytes"
	"encoding/base64"

	"github.com/disintegration/imaging"

	// register webp decoding for imaging.Decode
	_ "golang.org/x/image/webp"
)

// MaxDimension bounds the longest side of a generated preview in pixels.
const MaxDimension = 512

// Decoder turns raw artifact bytes into a renderable, bounded preview.
type Decoder struct{}

// Decode verifies the payload is a real image, downscales it so neither side
// exceeds MaxDimension, and returns the result as a data URI. WebP inputs are
// re-encoded as PNG since the preview only needs to stay renderable, not keep
// the source container.
func (Decoder) Decode(contentType string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	format, outType := encodingFor(contentType)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return "", err
	}
	return DataURI(outType, buf.Bytes()), nil
}

// DataURI wraps raw bytes into a base64 data URI for direct rendering.
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func encodingFor(contentType string) (imaging.Format, string) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, "image/jpeg"
	default:
		return imaging.PNG, "image/png"
	}
}
