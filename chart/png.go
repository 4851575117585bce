// Package chart renders kinematic series as a static PNG figure or an
// interactive HTML page.
package chart

import (
	"errors"
	"fmt"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"image/color"
	"io"
	"os"
)

// DefaultFigure is the file name the figure is written to at session end
const DefaultFigure = "figure.png"

// maxRows is the number of subplots stacked in one column before another
// column is started
const maxRows = 3

// ErrNoKinds is returned when no series has been selected for plotting
var ErrNoKinds = errors.New("no series selected")

// lineColors cycles through the subplots
var lineColors = []color.RGBA{
	colornames.Steelblue,
	colornames.Darkorange,
	colornames.Seagreen,
	colornames.Crimson,
	colornames.Mediumpurple,
	colornames.Saddlebrown,
}

// Options define the figure size and resolution
type Options struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
	// LineWidth of each series
	LineWidth vg.Length
}

// DefaultOptions returns a 12x9 inch figure at 400 DPI
func DefaultOptions() Options {
	return Options{
		Width:     12 * vg.Inch,
		Height:    9 * vg.Inch,
		DPI:       400,
		LineWidth: vg.Points(1),
	}
}

// GridSize returns the subplot grid for n plots, filling up to three rows
// before adding a column
func GridSize(n int) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	rows = min(n, maxRows)
	cols = (n + maxRows - 1) / maxRows
	return rows, cols
}

// newPlot builds the subplot of one series
func newPlot(s *kinematics.Series, kind kinematics.Kind, lineWidth vg.Length,
	c color.Color) (*plot.Plot, error) {

	x, y, err := s.XY(kind)

	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = kind.Title()
	p.X.Label.Text = kind.XLabel()
	p.Y.Label.Text = kind.YLabel(s.Unit)
	p.Add(plotter.NewGrid())

	if len(x) == 0 {
		return p, nil
	}

	pts := make(plotter.XYs, len(x))

	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}

	line, err := plotter.NewLine(pts)

	if err != nil {
		return nil, fmt.Errorf("error creating %s line: %w", kind, err)
	}

	line.Width = lineWidth
	line.Color = c
	p.Add(line)

	return p, nil
}

// WritePNG renders the selected series as a grid of subplots and writes the
// figure as PNG to w.  Plots fill the grid row by row.
func WritePNG(w io.Writer, s *kinematics.Series, kinds []kinematics.Kind, opts Options) error {

	if len(kinds) == 0 {
		return ErrNoKinds
	}

	rows, cols := GridSize(len(kinds))
	plots := make([][]*plot.Plot, rows)

	for j := range plots {
		plots[j] = make([]*plot.Plot, cols)
	}

	for i, kind := range kinds {
		p, err := newPlot(s, kind, opts.LineWidth, lineColors[i%len(lineColors)])

		if err != nil {
			return err
		}

		plots[i/cols][i%cols] = p
	}

	// unused grid cells still need a plot to align against
	for j := range plots {
		for i := range plots[j] {
			if plots[j][i] == nil {
				blank := plot.New()
				blank.HideAxes()
				plots[j][i] = blank
			}
		}
	}

	img := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(plots, tiles, dc)

	for i := range kinds {
		plots[i/cols][i%cols].Draw(canvases[i/cols][i%cols])
	}

	png := vgimg.PngCanvas{Canvas: img}

	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("error writing PNG: %w", err)
	}

	return nil
}

// SaveFigure writes the PNG figure to path
func SaveFigure(path string, s *kinematics.Series, kinds []kinematics.Kind, opts Options) error {

	f, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("error creating figure file: %w", err)
	}

	if err := WritePNG(f, s, kinds, opts); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
