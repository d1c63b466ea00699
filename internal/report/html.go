package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML writes a self-contained echarts page plotting scheduled and
// actual offsets (ms) against sample index.
func WriteHTML(w io.Writer, points []Point) error {
	x := make([]string, len(points))
	scheduled := make([]opts.LineData, len(points))
	actual := make([]opts.LineData, len(points))
	lag := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = strconv.Itoa(p.Index)
		scheduled[i] = opts.LineData{Value: ms(p.Scheduled)}
		actual[i] = opts.LineData{Value: ms(p.Actual)}
		lag[i] = opts.LineData{Value: ms(p.Lag())}
	}

	heading, sub := title(points)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: heading, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: heading, Subtitle: sub}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "offset (ms)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("scheduled", scheduled).
		AddSeries("actual", actual).
		AddSeries("lag", lag)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render timing chart: %w", err)
	}
	return nil
}

func writeHTMLFile(path string, points []Point) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer closeWith(f, &err)
	return WriteHTML(f, points)
}
