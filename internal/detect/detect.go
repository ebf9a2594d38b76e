// Package detect locates and decodes QR codes in camera frames and reduces
// raw per-frame detections to one candidate per deck side.
package detect

import "image"

// Point is a 2D location in frame pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Observation is a single decoded code in a frame: its text, the localized
// boundary polygon (usually four corners, but detectors may report three),
// the polygon center, and its area, used to rank overlapping detections.
// Observations are produced fresh each detection cycle and never mutated.
type Observation struct {
	Text   string
	Points []Point
	Center Point
	Area   float64
}

// Detector decodes all visible codes in a frame. Implementations must not
// fail on malformed or empty input: they return an empty slice instead.
type Detector interface {
	Detect(img image.Image) []Observation
}

// NewObservation builds an Observation from a decoded text and its boundary
// polygon, deriving the center and area.
func NewObservation(text string, points []Point) Observation {
	return Observation{
		Text:   text,
		Points: points,
		Center: centroid(points),
		Area:   polygonArea(points),
	}
}

func centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n}
}

// polygonArea computes the absolute area of a polygon via the shoelace
// formula. Degenerate polygons (fewer than 3 vertices) have zero area.
func polygonArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	var sum float64
	for i, p := range points {
		q := points[(i+1)%len(points)]
		sum += p.X*q.Y - q.X*p.Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// Translate returns a copy of the observation shifted by (dx, dy). Used to
// map ROI-local coordinates back into full-frame space.
func (o Observation) Translate(dx, dy float64) Observation {
	points := make([]Point, len(o.Points))
	for i, p := range o.Points {
		points[i] = Point{X: p.X + dx, Y: p.Y + dy}
	}
	return Observation{
		Text:   o.Text,
		Points: points,
		Center: Point{X: o.Center.X + dx, Y: o.Center.Y + dy},
		Area:   o.Area,
	}
}

// ClampROI restricts roi to the frame bounds. The returned bool is false
// when the clamped region is degenerate (zero or negative size), in which
// case the caller should fall back to the full frame.
func ClampROI(roi image.Rectangle, bounds image.Rectangle) (image.Rectangle, bool) {
	r := roi.Canon().Intersect(bounds)
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return image.Rectangle{}, false
	}
	return r, true
}
