// Package render draws tracking overlays onto display frames.
package render

import (
	"fmt"
	"github.com/BenCrafterRED/colortracker/segment"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// BoxStyle defines the parameters used for rendering the ROI and object box
type BoxStyle struct {
	ROIColor      color.RGBA
	BoxColor      color.RGBA
	LineThickness int
	// ShowLabel draws the box position and size above the box
	ShowLabel bool
}

// DefaultBoxStyle returns default box style settings
func DefaultBoxStyle() BoxStyle {
	return BoxStyle{
		ROIColor:      ROIColor,
		BoxColor:      BoxColor,
		LineThickness: 2,
		ShowLabel:     true,
	}
}

// ROI draws the outline of the region of interest
func ROI(img *gocv.Mat, roi segment.ROI, clr color.RGBA, lineThickness int) {
	gocv.Rectangle(img, roi.Rect(), clr, lineThickness)
}

// Box draws the bounding box of the tracked object.  The box is relative to
// roi and is offset by the ROI origin.
func Box(img *gocv.Mat, box segment.Box, roi segment.ROI, font Font, style BoxStyle) {

	rect := box.InFrame(roi)
	gocv.Rectangle(img, rect, style.BoxColor, style.LineThickness)

	if !style.ShowLabel {
		return
	}

	text := fmt.Sprintf("%d,%d %dx%d", rect.Min.X, rect.Min.Y, box.Width, box.Height)
	font.draw(img, font.newLabel(text, rect, style.BoxColor, style.LineThickness))
}

// Overlay draws the ROI and, when the object was found, its bounding box for
// a segmentation result
func Overlay(img *gocv.Mat, res segment.Result, font Font, style BoxStyle) {

	roi := res.ROI.Resolve(img.Cols(), img.Rows())

	// the full frame outline is not worth drawing
	if roi != segment.FullFrame(img.Cols(), img.Rows()) {
		ROI(img, roi, style.ROIColor, style.LineThickness)
	}

	if res.Found {
		Box(img, res.Box, roi, font, style)
	}
}

// Crosshair marks a point such as a calibration reference or a predicted
// position
func Crosshair(img *gocv.Mat, pt image.Point, size int, clr color.RGBA, lineThickness int) {
	gocv.Line(img, image.Pt(pt.X-size, pt.Y), image.Pt(pt.X+size, pt.Y), clr, lineThickness)
	gocv.Line(img, image.Pt(pt.X, pt.Y-size), image.Pt(pt.X, pt.Y+size), clr, lineThickness)
}
