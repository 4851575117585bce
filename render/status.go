package render

import (
	"gocv.io/x/gocv"
	"image"
)

// Status draws lines of text stacked in the top left corner of the image
func Status(img *gocv.Mat, lines []string, font Font) {

	y := 0

	for _, text := range lines {
		size := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)
		height := size.Y + font.TopPad + font.BottomPad

		l := boxLabel{
			rect:    image.Rect(0, y, size.X+font.LeftPad+font.RightPad, y+height),
			clr:     LabelColor,
			text:    text,
			textPos: image.Pt(font.LeftPad, y+height-font.BottomPad),
		}

		font.draw(img, l)
		y += height
	}
}
