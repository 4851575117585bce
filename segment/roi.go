package segment

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidROI is returned when a region of interest is unordered or lies
// outside of the frame
var ErrInvalidROI = errors.New("invalid region of interest")

// ROI is the region of interest (x1, y1, x2, y2) in full frame coordinates.
// The zero ROI means the full frame.
type ROI struct {
	X1, Y1, X2, Y2 int
}

// FullFrame returns the ROI covering a whole frame of the given size
func FullFrame(width, height int) ROI {
	return ROI{X1: 0, Y1: 0, X2: width, Y2: height}
}

// IsZero reports if the ROI has not been set
func (r ROI) IsZero() bool {
	return r == ROI{}
}

// Width of the ROI
func (r ROI) Width() int {
	return r.X2 - r.X1
}

// Height of the ROI
func (r ROI) Height() int {
	return r.Y2 - r.Y1
}

// Rect returns the ROI as an image.Rectangle
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Resolve returns the ROI to use for a frame of the given size, the zero ROI
// resolving to the full frame
func (r ROI) Resolve(width, height int) ROI {
	if r.IsZero() {
		return FullFrame(width, height)
	}
	return r
}

// Validate checks the ROI is ordered and inside a frame of the given size
func (r ROI) Validate(width, height int) error {

	if r.X1 > r.X2 || r.Y1 > r.Y2 {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d) is not ordered", ErrInvalidROI,
			r.X1, r.Y1, r.X2, r.Y2)
	}

	if r.X1 < 0 || r.Y1 < 0 || r.X2 > width || r.Y2 > height {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d) outside of %dx%d frame", ErrInvalidROI,
			r.X1, r.Y1, r.X2, r.Y2, width, height)
	}

	return nil
}

// Box is the bounding box of the tracked object relative to the ROI
type Box struct {
	X, Y, Width, Height int
}

// Center returns the center point of the box
func (b Box) Center() (x, y float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Rect returns the box as an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// InFrame converts the ROI relative box into full frame coordinates
func (b Box) InFrame(roi ROI) image.Rectangle {
	return b.Rect().Add(image.Pt(roi.X1, roi.Y1))
}
