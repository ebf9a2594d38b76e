// Package camera acquires frames from a capture device.
package camera

import (
	"image"
	"time"
)

// Frame is one captured image with its acquisition timestamp.
type Frame struct {
	Image *image.RGBA
	Stamp time.Time
}

// Width returns the frame width in pixels, or 0 for an empty frame.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels, or 0 for an empty frame.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// FrameSource produces frames from a capture device. Read blocks until the
// next frame is available. Read failures are transient: callers are expected
// to back off and retry rather than give up.
type FrameSource interface {
	Read() (Frame, error)
	Close() error
}

// Mirror returns a horizontally flipped copy of img, so that left in the
// image matches left in front of the camera.
func Mirror(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetRGBA(x, y, img.RGBAAt(b.Max.X-1-(x-b.Min.X), y))
		}
	}
	return out
}
