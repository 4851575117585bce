package render

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// boxLabel is a precalculated text label with its background box
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// newLabel calculates the label of text placed above a rectangle, aligned
// to it according to the font alignment
func (f Font) newLabel(text string, rect image.Rectangle, clr color.RGBA,
	lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)

	// calculate the alignment of text label
	var centerX int

	switch f.Alignment {
	case Center:
		centerX = (rect.Min.X + rect.Max.X) / 2

	case Right:
		centerX = rect.Max.X - (textSize.X / 2) - f.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = rect.Min.X + (textSize.X / 2) + f.LeftPad - (lineThickness / 2)
	}

	top := rect.Min.Y

	// flip below the rectangle when there is no room above
	if top-textSize.Y-f.TopPad-f.BottomPad < 0 {
		top = rect.Max.Y + textSize.Y + f.TopPad + f.BottomPad
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-f.LeftPad,
			top-textSize.Y-f.TopPad-f.BottomPad,
			centerX+textSize.X/2+f.RightPad, top),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, top-f.BottomPad),
	}
}

// draw renders the label background and text
func (f Font) draw(img *gocv.Mat, l boxLabel) {
	gocv.Rectangle(img, l.rect, l.clr, -1)
	gocv.PutTextWithParams(img, l.text, l.textPos, f.Face, f.Scale, f.Color,
		f.Thickness, f.LineType, false)
}
