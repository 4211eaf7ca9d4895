// Copyright (C) 2024 Robert Koehler
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package render

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Writes a spectrum line plot, optionally overlaying the fitted curve
func WriteSpectrumPlot(fileName, title string, wavelengths, intensities, fitted []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = "Intensity (a.u.)"

	data := make(plotter.XYs, len(wavelengths))
	for i := range wavelengths {
		data[i].X, data[i].Y = wavelengths[i], intensities[i]
	}
	dataLine, err := plotter.NewLine(data)
	if err != nil {
		return err
	}
	p.Add(dataLine)
	p.Legend.Add("data", dataLine)

	if fitted != nil {
		if len(fitted) != len(wavelengths) {
			return fmt.Errorf("fitted curve has %d samples, axis has %d", len(fitted), len(wavelengths))
		}
		curve := make(plotter.XYs, len(wavelengths))
		for i := range wavelengths {
			curve[i].X, curve[i].Y = wavelengths[i], fitted[i]
		}
		fitLine, err := plotter.NewLine(curve)
		if err != nil {
			return err
		}
		fitLine.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
		p.Add(fitLine)
		p.Legend.Add("fit", fitLine)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}

// A square correlation matrix as a plotter grid; NaN entries stay unplotted
type correlationGrid struct {
	matrix [][]float64
}

func (g correlationGrid) Dims() (c, r int)   { return len(g.matrix), len(g.matrix) }
func (g correlationGrid) Z(c, r int) float64 { return g.matrix[r][c] }
func (g correlationGrid) X(c int) float64    { return float64(c) }
func (g correlationGrid) Y(r int) float64    { return float64(r) }

// A fixed color list satisfying gonum/plot's palette.Palette
type rampPalette []color.Color

func (p rampPalette) Colors() []color.Color { return p }

func newRampPalette(n int) rampPalette {
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = rampColor(float64(i) / float64(n-1))
	}
	return colors
}

// Writes a pair plot over the given columns: scatter panels for each column
// pair, histograms on the diagonal. NaN entries are excluded pairwise, like
// the correlation matrix. Columns with no valid entries get an empty panel.
func WritePairPlot(fileName string, names []string, columns [][]float64) error {
	if len(names) != len(columns) {
		return fmt.Errorf("%d names for %d columns", len(names), len(columns))
	}
	n := len(columns)
	plots := make([][]*plot.Plot, n)
	for row := 0; row < n; row++ {
		plots[row] = make([]*plot.Plot, n)
		for col := 0; col < n; col++ {
			p := plot.New()
			if row == n-1 {
				p.X.Label.Text = names[col]
			}
			if col == 0 {
				p.Y.Label.Text = names[row]
			}
			if row == col {
				if err := addHistogram(p, columns[col]); err != nil {
					return err
				}
			} else {
				if err := addScatter(p, columns[col], columns[row]); err != nil {
					return err
				}
			}
			plots[row][col] = p
		}
	}

	const panel = 2.5 * vg.Inch
	img := vgimg.New(vg.Length(n)*panel, vg.Length(n)*panel)
	dc := draw.New(img)
	canvases := plot.Align(plots, draw.Tiles{Rows: n, Cols: n}, dc)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			plots[row][col].Draw(canvases[row][col])
		}
	}

	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	_, err = png.WriteTo(f)
	return err
}

func addHistogram(p *plot.Plot, column []float64) error {
	values := make(plotter.Values, 0, len(column))
	for _, v := range column {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	h, err := plotter.NewHist(values, 16)
	if err != nil {
		return err
	}
	p.Add(h)
	return nil
}

func addScatter(p *plot.Plot, xs, ys []float64) error {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.Radius = vg.Points(1.5)
	p.Add(s)
	return nil
}

// Writes the pairwise correlation matrix as a heatmap with nominal axis
// labels. The color scale is pinned to [-1, 1]; NaN entries are left blank,
// matching plotter.HeatMap's NaN handling.
func WriteCorrelationPlot(fileName string, names []string, matrix [][]float64) error {
	if len(names) != len(matrix) {
		return fmt.Errorf("%d names for a %d x %d correlation matrix", len(names), len(matrix), len(matrix))
	}
	p := plot.New()
	p.Title.Text = "Parameter correlation"

	hm := plotter.NewHeatMap(correlationGrid{matrix: matrix}, newRampPalette(64))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)
	p.NominalX(names...)
	p.NominalY(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -0.9

	return p.Save(6*vg.Inch, 6*vg.Inch, fileName)
}
