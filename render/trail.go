package render

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	LineColor     color.RGBA
	LineThickness int
	// CircleColor is used for the midpoint circle on the current box
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineColor:     TrailColor,
		LineThickness: 1,
		CircleColor:   BoxColor,
		CircleRadius:  3,
	}
}

// Trail draws the history of box centres as a line.  Points are relative to
// the ROI whose origin is given by offset.
func Trail(img *gocv.Mat, points []image.Point, offset image.Point, style TrailStyle) {

	if len(points) < 2 {
		return
	}

	for i := 1; i < len(points); i++ {
		// draw line segment of trail
		gocv.Line(img, points[i-1].Add(offset), points[i].Add(offset),
			style.LineColor, style.LineThickness)
	}

	// draw center point circle on current box
	gocv.Circle(img, points[len(points)-1].Add(offset), style.CircleRadius,
		style.CircleColor, -1)
}
