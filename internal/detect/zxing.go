package detect

import (
	"image"

	zxinggo "github.com/ericlevine/zxinggo"
	"github.com/ericlevine/zxinggo/binarizer"
	"github.com/ericlevine/zxinggo/multi/qrcode"
)

// ZXingDetector decodes QR codes with the pure-Go zxing port. It tries the
// fast global-histogram binarizer first and falls back to the hybrid
// (locally adaptive) binarizer, which copes better with uneven lighting on
// handheld cards.
type ZXingDetector struct {
	reader    *qrcode.QRCodeMultiReader
	tryHarder bool
}

// NewZXingDetector creates a detector. tryHarder trades latency for better
// recall on blurry or tilted codes.
func NewZXingDetector(tryHarder bool) *ZXingDetector {
	return &ZXingDetector{
		reader:    qrcode.NewQRCodeMultiReader(),
		tryHarder: tryHarder,
	}
}

// Detect implements Detector. Decode failures of any kind yield an empty
// slice, never an error: a frame with no readable code is a normal outcome.
func (d *ZXingDetector) Detect(img image.Image) []Observation {
	if img == nil {
		return nil
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil
	}

	source := zxinggo.NewImageLuminanceSource(img)
	opts := &zxinggo.DecodeOptions{TryHarder: d.tryHarder}

	bitmaps := []*zxinggo.BinaryBitmap{
		zxinggo.NewBinaryBitmap(binarizer.NewGlobalHistogram(source)),
		zxinggo.NewBinaryBitmap(binarizer.NewHybrid(source)),
	}

	var observations []Observation
	seen := map[string]bool{}
	for _, bitmap := range bitmaps {
		results, err := d.reader.DecodeMultiple(bitmap, opts)
		if err != nil {
			continue
		}
		for _, r := range results {
			if r.Text == "" || seen[r.Text] {
				continue
			}
			seen[r.Text] = true
			points := make([]Point, len(r.Points))
			for i, p := range r.Points {
				points[i] = Point{X: float64(p.X), Y: float64(p.Y)}
			}
			observations = append(observations, NewObservation(r.Text, points))
		}
		if len(observations) > 0 {
			// The second binarizer only runs when the first found nothing;
			// re-running it would just re-decode the same codes.
			break
		}
	}
	return observations
}
