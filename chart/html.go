package chart

import (
	"fmt"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"io"
)

// lineChart builds the interactive chart of one series
func lineChart(s *kinematics.Series, kind kinematics.Kind) (*charts.Line, error) {

	x, y, err := s.XY(kind)

	if err != nil {
		return nil, err
	}

	data := make([]opts.LineData, len(x))

	for i := range x {
		data[i] = opts.LineData{Value: []interface{}{x[i], y[i]}}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: kind.Title(), Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: kind.Title(), Subtitle: fmt.Sprintf("%d points, sigma=%g", len(x), s.Sigma)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: kind.XLabel(), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: kind.YLabel(s.Unit), NameLocation: "middle", NameGap: 40}),
	)
	line.AddSeries(kind.String(), data)

	return line, nil
}

// WriteHTML renders the selected series as a page of interactive line charts
func WriteHTML(w io.Writer, s *kinematics.Series, kinds []kinematics.Kind) error {

	if len(kinds) == 0 {
		return ErrNoKinds
	}

	page := components.NewPage()

	for _, kind := range kinds {
		line, err := lineChart(s, kind)

		if err != nil {
			return err
		}

		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("error rendering HTML: %w", err)
	}

	return nil
}
