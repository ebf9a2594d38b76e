package sheet

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ericlevine/zxinggo"
	"github.com/ericlevine/zxinggo/qrcode"
)

// EncodeQR renders text as a QR symbol of roughly size x size pixels. The
// writer pads to the next module boundary, so the result may be slightly
// larger.
func EncodeQR(text string, size int) (image.Image, error) {
	matrix, err := qrcode.NewWriter().Encode(text, zxinggo.FormatQRCode, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", text, err)
	}

	img := image.NewGray(image.Rect(0, 0, matrix.Width(), matrix.Height()))
	for y := 0; y < matrix.Height(); y++ {
		for x := 0; x < matrix.Width(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img, nil
}
