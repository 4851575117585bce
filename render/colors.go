package render

import (
	"golang.org/x/image/colornames"
	"image/color"
)

var (
	// ROIColor outlines the region of interest
	ROIColor = colornames.Red
	// BoxColor outlines the tracked object
	BoxColor = colornames.Lime
	// TrailColor is used for the line following the object centre
	TrailColor = colornames.Yellow
	// EstimateColor marks the predicted position of a lost object
	EstimateColor = colornames.Magenta
	// LabelColor is the background of text labels
	LabelColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}

	Black = colornames.Black
	White = colornames.White
)

