package main

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotLearningCurve saves a plot of the training returns by episode and
// the mean evaluation return by evaluation to filename
func plotLearningCurve(filename string, returns []float64,
	evalReturns [][]float64) error {
	p := plot.New()
	p.Title.Text = "Learning Curve"
	p.X.Label.Text = "Episode / Evaluation"
	p.Y.Label.Text = "Return"

	pts := make(plotter.XYs, len(returns))
	for i := range returns {
		pts[i].X = float64(i + 1)
		pts[i].Y = returns[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plotLearningCurve: %v", err)
	}
	p.Add(line)
	p.Legend.Add("Train", line)

	if len(evalReturns) > 0 {
		evalPts := make(plotter.XYs, len(evalReturns))
		for i, r := range evalReturns {
			evalPts[i].X = float64(i + 1)
			evalPts[i].Y = stat.Mean(r, nil)
		}
		evalLine, err := plotter.NewLine(evalPts)
		if err != nil {
			return fmt.Errorf("plotLearningCurve: %v", err)
		}
		evalLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(evalLine)
		p.Legend.Add("Eval", evalLine)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("plotLearningCurve: %v", err)
	}
	return nil
}
