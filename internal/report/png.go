package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WritePNG saves a chart of per-sample lag (ms) to path.
func WritePNG(path string, points []Point) error {
	heading, sub := title(points)
	p := plot.New()
	p.Title.Text = heading + "\n" + sub
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Lag (ms)"
	p.Legend.Top = true

	pts := make(plotter.XYs, len(points))
	for i, pt := range points {
		pts[i] = plotter.XY{X: float64(pt.Index), Y: ms(pt.Lag())}
	}
	if len(pts) > 0 {
		l, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("lag line: %w", err)
		}
		l.Width = vg.Points(1)
		p.Add(l, plotter.NewGrid())
		p.Legend.Add("lag", l)
	}

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
