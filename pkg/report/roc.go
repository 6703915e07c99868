package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/mchmarny/vascular/pkg/metrics"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoCurves is returned when there is nothing to plot.
var ErrNoCurves = errors.New("no roc curves to plot")

var curveColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// PlotROC builds the ROC chart: one line per class curve plus the chance diagonal.
func PlotROC(s *metrics.Summary, opt Options) (*plot.Plot, error) {
	if s == nil || len(s.ROC) == 0 {
		return nil, ErrNoCurves
	}

	p := plot.New()
	p.Title.Text = "ROC"
	if s.AUC != nil {
		p.Title.Text = fmt.Sprintf("ROC (macro AUC %.*f)", opt.Precision, *s.AUC)
	}
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, fmt.Errorf("creating chance line: %w", err)
	}
	chance.Color = color.Gray{Y: 160}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)

	for i, c := range s.ROC {
		pts := make(plotter.XYs, len(c.FPR))
		for j := range c.FPR {
			pts[j].X = c.FPR[j]
			pts[j].Y = c.TPR[j]
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("creating roc line for class %d: %w", c.Class, err)
		}
		l.Color = curveColors[i%len(curveColors)]
		l.LineStyle.Width = vg.Points(2)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("%s (AUC %.*f)", opt.ClassName(c.Class), opt.Precision, c.AUC), l)
	}
	p.Legend.Top = false
	p.Legend.Left = false

	return p, nil
}

// WriteROC renders the ROC chart as PNG.
func WriteROC(w io.Writer, s *metrics.Summary, opt Options) error {
	p, err := PlotROC(s, opt)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 4.5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering roc plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing roc plot: %w", err)
	}
	return nil
}
