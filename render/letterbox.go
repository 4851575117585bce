package render

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Letterbox fits display frames into the fixed size of the MJPEG viewer
// keeping their aspect, and maps viewer clicks back onto the frame
type Letterbox struct {
	frame  image.Point
	viewer image.Point
	// content is the area of the viewer covered by the scaled frame, the
	// rest is padding
	content image.Rectangle
	scale   float64
	scaled  gocv.Mat
}

// NewLetterbox returns a Letterbox for frames of frameWidth x frameHeight
// shown in a viewer of viewerWidth x viewerHeight
func NewLetterbox(frameWidth, frameHeight, viewerWidth, viewerHeight int) *Letterbox {

	scale := min(float64(viewerWidth)/float64(frameWidth),
		float64(viewerHeight)/float64(frameHeight))

	viewer := image.Pt(viewerWidth, viewerHeight)
	size := image.Pt(int(float64(frameWidth)*scale), int(float64(frameHeight)*scale))

	// the dimension that fits exactly is never rounded down
	if float64(viewerWidth)/float64(frameWidth) == scale {
		size.X = viewerWidth
	} else {
		size.Y = viewerHeight
	}

	offset := viewer.Sub(size).Div(2)

	return &Letterbox{
		frame:   image.Pt(frameWidth, frameHeight),
		viewer:  viewer,
		content: image.Rectangle{Min: offset, Max: offset.Add(size)},
		scale:   scale,
		scaled:  gocv.NewMat(),
	}
}

// Close frees the scaling buffer
func (l *Letterbox) Close() error {
	return l.scaled.Close()
}

// Resize writes frame scaled into the viewer size to dest, padding the
// uncovered area with clr
func (l *Letterbox) Resize(frame gocv.Mat, dest *gocv.Mat, clr color.RGBA) {

	if l.frame == l.viewer {
		frame.CopyTo(dest)
		return
	}

	gocv.Resize(frame, &l.scaled, l.content.Size(), 0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(l.scaled, dest,
		l.content.Min.Y, l.viewer.Y-l.content.Max.Y,
		l.content.Min.X, l.viewer.X-l.content.Max.X,
		gocv.BorderConstant, clr)
}

// ToFrame maps a point in viewer coordinates back into frame coordinates.
// Points on the padding are clamped onto the frame edge.
func (l *Letterbox) ToFrame(pt image.Point) image.Point {

	x := int(float64(pt.X-l.content.Min.X) / l.scale)
	y := int(float64(pt.Y-l.content.Min.Y) / l.scale)

	return image.Pt(clamp(x, 0, l.frame.X), clamp(y, 0, l.frame.Y))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
