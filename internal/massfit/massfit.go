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

// Package massfit applies the fit engine independently to every pixel of a
// spatial dataset and aggregates the outcomes into per-parameter maps,
// summary moments and a correlation matrix. A failed fit at one pixel is
// recorded as a NaN sentinel row and never aborts the run.
package massfit

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/rkoehler/specmap/internal/fit"
	"github.com/rkoehler/specmap/internal/hsi"
	"github.com/rkoehler/specmap/internal/stats"
)

// Per-pixel results of a mass fit. Rows is position-stable: row i belongs to
// pixel i of the dataset in row-major grid order, failed fits keeping their
// position as all-NaN sentinel rows so the grid shape survives for map
// reconstruction.
type Table struct {
	Model     fit.Model
	GridSize  int
	Columns   []string     // fit parameters, derived quantities, redchi2, empirical statistics
	Rows      [][]float64  // one row per pixel, NaN sentinels on failure
	Results   []fit.Result // raw per-pixel fit outcomes
	NumFailed int
}

// Summary moments of one table column across the successfully fitted pixels
type ColumnSummary struct {
	Name      string
	Mean      float64
	StdDev    float64
	NumFailed int
}

// Fits every pixel of the dataset independently, in parallel up to
// c.MaxThreads workers. Pixels share no fit state; the output ordering is
// position-stable regardless of scheduling. Only invalid inputs (bad window)
// abort the run; per-pixel fit failures are recorded and counted.
func MassFit(ds *hsi.Dataset, model fit.Model, w hsi.Window, initial fit.Params, c *Context) (*Table, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	paramNames := model.ParamNames()
	if paramNames == nil {
		return nil, fmt.Errorf("unknown lineshape model %d", int(model))
	}

	columns := append([]string{}, paramNames...)
	columns = append(columns, model.DerivedNames()...)
	columns = append(columns, "redchi2", "integrated_intensity", "weighted_mean", "fwhm_empirical")

	numPixels := ds.NumPixels()
	tbl := &Table{
		Model:    model,
		GridSize: ds.GridSize(),
		Columns:  columns,
		Rows:     make([][]float64, numPixels),
		Results:  make([]fit.Result, numPixels),
	}

	progressStep := numPixels / 10
	if progressStep < 1 {
		progressStep = 1
	}
	var done int64
	sem := make(chan bool, c.MaxThreads)
	for i := 0; i < numPixels; i++ {
		sem <- true
		go func(i int) {
			defer func() { <-sem }()
			res := fit.Fit(ds.Wavelengths, ds.Spectrum(i), model, w, initial)
			tbl.Results[i] = res
			tbl.Rows[i] = tableRow(tbl, ds, i, res, w)
			if d := atomic.AddInt64(&done, 1); d%int64(progressStep) == 0 {
				fmt.Fprintf(c.Log, "Fitted %d of %d pixels\n", d, numPixels)
			}
		}(i)
	}
	for i := 0; i < cap(sem); i++ { // wait for workers to finish
		sem <- true
	}

	for _, res := range tbl.Results {
		if !res.Success {
			tbl.NumFailed++
		}
	}
	return tbl, nil
}

// Assembles the table row for one pixel. Fit-derived cells are NaN sentinels
// on failure; the empirical statistics columns are filled either way.
func tableRow(tbl *Table, ds *hsi.Dataset, pixel int, res fit.Result, w hsi.Window) []float64 {
	row := make([]float64, len(tbl.Columns))
	for i := range row {
		row[i] = math.NaN()
	}
	col := 0
	if res.Success {
		for _, name := range tbl.Model.ParamNames() {
			row[col] = res.Params[name].Value
			col++
		}
		for _, name := range tbl.Model.DerivedNames() {
			row[col] = res.Derived[name]
			col++
		}
		row[col] = res.RedChi2
		col++
	} else {
		col = len(tbl.Model.ParamNames()) + len(tbl.Model.DerivedNames()) + 1
	}
	in := ds.Spectrum(pixel)
	row[col] = stats.IntegratedIntensity(ds.Wavelengths, in, w)
	row[col+1] = stats.WeightedMeanWavelength(ds.Wavelengths, in, w)
	row[col+2] = stats.FWHM(ds.Wavelengths, in, w)
	return row
}

// Returns the values of the named column in pixel order
func (t *Table) Column(name string) ([]float64, error) {
	for i, col := range t.Columns {
		if col == name {
			values := make([]float64, len(t.Rows))
			for j, row := range t.Rows {
				values[j] = row[i]
			}
			return values, nil
		}
	}
	return nil, fmt.Errorf("no column %q in mass fit table", name)
}

// Reconstructs the N x N spatial map of the named column. Failed pixels stay
// NaN at their grid position.
func (t *Table) Map(name string) ([][]float64, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return stats.ReshapeToGrid(values)
}

// Computes NaN-aware summary moments per column across all pixels. The NumFailed
// count surfaces per-pixel fit failures so overall fit quality can be judged.
func (t *Table) Summary() []ColumnSummary {
	summaries := make([]ColumnSummary, len(t.Columns))
	for i, name := range t.Columns {
		values, _ := t.Column(name)
		mean, stdDev, numInvalid := stats.Moments(values)
		summaries[i] = ColumnSummary{Name: name, Mean: mean, StdDev: stdDev, NumFailed: numInvalid}
	}
	return summaries
}

// Computes the pairwise Pearson correlation matrix across all table columns,
// excluding NaN sentinel entries from each pairwise computation.
func (t *Table) Correlation() [][]float64 {
	columns := make([][]float64, len(t.Columns))
	for i, name := range t.Columns {
		columns[i], _ = t.Column(name)
	}
	return stats.CorrelationMatrix(columns)
}

// Writes the table as CSV with a pixel row/column prefix per record
func (t *Table) WriteCSV(w io.Writer) {
	fmt.Fprintf(w, "row,col")
	for _, name := range t.Columns {
		fmt.Fprintf(w, ",%s", name)
	}
	fmt.Fprintln(w)
	for i, row := range t.Rows {
		fmt.Fprintf(w, "%d,%d", i/t.GridSize, i%t.GridSize)
		for _, v := range row {
			fmt.Fprintf(w, ",%g", v)
		}
		fmt.Fprintln(w)
	}
}
