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

// Package ops wires the core engines into the three analysis workflows:
// per-pixel statistics maps, a single fit of the averaged spectrum, and the
// per-pixel mass fit. Both the CLI and the REST server drive these.
package ops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rkoehler/specmap/internal/fit"
	"github.com/rkoehler/specmap/internal/hsi"
	"github.com/rkoehler/specmap/internal/massfit"
	"github.com/rkoehler/specmap/internal/render"
	"github.com/rkoehler/specmap/internal/stats"
)

// Upscaled pixel edge length of exported map PNGs
const mapCellSize = 24

// Settings for one analysis run. An explicit value object passed into every
// entry point; no package-level configuration state.
type Settings struct {
	OutputDir     string             `json:"outputDir"`
	Window        hsi.Window         `json:"window"`
	Model         string             `json:"model"`
	InitialParams map[string]float64 `json:"initialParams,omitempty"`
	ShowPlots     bool               `json:"showPlots"` // also write the extra figures (fit overlay, pair plot); maps, CSV and correlation are always exported
}

func (s *Settings) model() (fit.Model, error) { return fit.ParseModel(s.Model) }

func (s *Settings) ensureOutputDir() error {
	if s.OutputDir == "" {
		return nil
	}
	return os.MkdirAll(s.OutputDir, 0755)
}

func (s *Settings) outPath(name string) string { return filepath.Join(s.OutputDir, name) }

// The basic workflow: per-pixel integrated intensity, weighted mean emission
// wavelength and empirical FWHM maps, their moments and correlation matrix.
func RunStats(ds *hsi.Dataset, sample string, s *Settings, log io.Writer) error {
	if err := s.Window.Validate(); err != nil {
		return err
	}
	if err := s.ensureOutputDir(); err != nil {
		return err
	}

	names := []string{"integrated_intensity", "weighted_mean", "fwhm"}
	columns := make([][]float64, len(names))
	for i := range columns {
		columns[i] = make([]float64, ds.NumPixels())
	}
	for p := 0; p < ds.NumPixels(); p++ {
		in := ds.Spectrum(p)
		columns[0][p] = stats.IntegratedIntensity(ds.Wavelengths, in, s.Window)
		columns[1][p] = stats.WeightedMeanWavelength(ds.Wavelengths, in, s.Window)
		columns[2][p] = stats.FWHM(ds.Wavelengths, in, s.Window)
	}

	for i, name := range names {
		grid, err := stats.ReshapeToGrid(columns[i])
		if err != nil {
			return err
		}
		mean, stdDev, numInvalid := stats.Moments(columns[i])
		fmt.Fprintf(log, "%s: mean=%.4f std=%.4f invalid=%d\n", name, mean, stdDev, numInvalid)
		if err := render.WriteMapPNG(s.outPath(sample+"_"+name+"_map.png"), grid, mapCellSize); err != nil {
			return err
		}
	}

	if err := writeColumnsCSV(s.outPath(sample+"_stats.csv"), ds.GridSize(), names, columns); err != nil {
		return err
	}
	corr := stats.CorrelationMatrix(columns)
	if err := render.WriteCorrelationPlot(s.outPath(sample+"_stats_correlation.png"), names, corr); err != nil {
		return err
	}
	if s.ShowPlots {
		if err := render.WritePairPlot(s.outPath(sample+"_pair_plot.png"), names, columns); err != nil {
			return err
		}
	}
	return nil
}

// The single-fit workflow: fit the chosen lineshape to the spatially averaged
// spectrum and report parameters with standard errors.
func RunFit(ds *hsi.Dataset, sample string, s *Settings, log io.Writer) (fit.Result, error) {
	model, err := s.model()
	if err != nil {
		return fit.Result{}, err
	}
	if err := s.ensureOutputDir(); err != nil {
		return fit.Result{}, err
	}

	avg := ds.AverageSpectrum()
	res := fit.Fit(ds.Wavelengths, avg, model, s.Window, s.InitialParams)
	if !res.Success {
		fmt.Fprintf(log, "Fit of averaged spectrum failed: %s\n", res.Reason)
		return res, nil
	}

	fmt.Fprintf(log, "Fit of averaged spectrum (%s model, %d samples, redchi2 %.4g):\n",
		model, res.NumPoints, res.RedChi2)
	for _, name := range model.ParamNames() {
		e := res.Params[name]
		fmt.Fprintf(log, "  %-10s %12.4f +/- %.4f\n", name, e.Value, e.Stderr)
	}
	for _, name := range model.DerivedNames() {
		fmt.Fprintf(log, "  %-10s %12.4f\n", name, res.Derived[name])
	}

	if s.ShowPlots {
		fitted := make([]float64, len(ds.Wavelengths))
		values := res.ParamValues()
		for i, wl := range ds.Wavelengths {
			fitted[i] = model.Eval(wl, values)
		}
		err := render.WriteSpectrumPlot(s.outPath(sample+"_average_spectrum_fit.png"),
			sample+" (avg)", ds.Wavelengths, avg, fitted)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// The mass-fit workflow: independent per-pixel fits, parameter maps, summary
// moments and the parameter correlation matrix.
func RunMassFit(ds *hsi.Dataset, sample string, s *Settings, c *massfit.Context) (*massfit.Table, error) {
	model, err := s.model()
	if err != nil {
		return nil, err
	}
	if err := s.ensureOutputDir(); err != nil {
		return nil, err
	}

	tbl, err := massfit.MassFit(ds, model, s.Window, s.InitialParams, c)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.Log, "Mass fit complete: %d pixels, %d failed\n", ds.NumPixels(), tbl.NumFailed)

	f, err := os.Create(s.outPath(sample + "_massfit_results.csv"))
	if err != nil {
		return nil, err
	}
	tbl.WriteCSV(f)
	if err := f.Close(); err != nil {
		return nil, err
	}

	summaries := tbl.Summary()
	for _, summary := range summaries {
		fmt.Fprintf(c.Log, "%s: mean=%.4f std=%.4f failed=%d\n",
			summary.Name, summary.Mean, summary.StdDev, summary.NumFailed)
	}
	if err := writeSummaryCSV(s.outPath(sample+"_massfit_summary.csv"), summaries); err != nil {
		return nil, err
	}
	for _, name := range tbl.Columns {
		grid, err := tbl.Map(name)
		if err != nil {
			return nil, err
		}
		if err := render.WriteMapPNG(s.outPath(sample+"_"+name+"_map.png"), grid, mapCellSize); err != nil {
			return nil, err
		}
	}
	if err := render.WriteCorrelationPlot(s.outPath(sample+"_param_correlation.png"),
		tbl.Columns, tbl.Correlation()); err != nil {
		return nil, err
	}
	return tbl, nil
}

// Writes the per-column summary moments as CSV
func writeSummaryCSV(fileName string, summaries []massfit.ColumnSummary) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintln(f, "column,mean,std,failed")
	for _, s := range summaries {
		fmt.Fprintf(f, "%s,%g,%g,%d\n", s.Name, s.Mean, s.StdDev, s.NumFailed)
	}
	return nil
}

// Writes per-pixel columns as CSV with a row/col grid prefix
func writeColumnsCSV(fileName string, gridSize int, names []string, columns [][]float64) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(f, "row,col")
	for _, name := range names {
		fmt.Fprintf(f, ",%s", name)
	}
	fmt.Fprintln(f)
	for p := 0; p < len(columns[0]); p++ {
		fmt.Fprintf(f, "%d,%d", p/gridSize, p%gridSize)
		for _, column := range columns {
			fmt.Fprintf(f, ",%g", column[p])
		}
		fmt.Fprintln(f)
	}
	return nil
}
