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

package ops

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rkoehler/specmap/internal/fit"
	"github.com/rkoehler/specmap/internal/hsi"
	"github.com/rkoehler/specmap/internal/massfit"
	"github.com/rkoehler/specmap/internal/simulate"
)

func testDataset(t *testing.T) *hsi.Dataset {
	t.Helper()
	ds, err := simulate.Generate(simulate.Config{
		GridSize:      3,
		WavelengthMin: 400,
		WavelengthMax: 800,
		StepSize:      2,
		Model:         fit.Single,
		Params:        []float64{100, 550, 10},
		NoiseSigma:    0.01,
		Seed:          7,
	})
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	return ds
}

func testSettings(dir string) *Settings {
	return &Settings{
		OutputDir: dir,
		Window:    hsi.Window{Min: 450, Max: 650},
		Model:     "single",
		ShowPlots: true,
	}
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected output %s: %s", path, err)
	}
}

func TestRunStats(t *testing.T) {
	dir := t.TempDir()
	ds := testDataset(t)
	var log strings.Builder
	if err := RunStats(ds, "sample", testSettings(dir), &log); err != nil {
		t.Fatalf("RunStats: %s", err)
	}
	mustExist(t, filepath.Join(dir, "sample_stats.csv"))
	mustExist(t, filepath.Join(dir, "sample_integrated_intensity_map.png"))
	mustExist(t, filepath.Join(dir, "sample_weighted_mean_map.png"))
	mustExist(t, filepath.Join(dir, "sample_fwhm_map.png"))
	mustExist(t, filepath.Join(dir, "sample_stats_correlation.png"))
	mustExist(t, filepath.Join(dir, "sample_pair_plot.png"))
	if !strings.Contains(log.String(), "weighted_mean: mean=") {
		t.Errorf("log output lacks the weighted mean moments: %q", log.String())
	}
}

func TestRunStatsAlwaysExportsCorrelation(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	s.ShowPlots = false
	if err := RunStats(testDataset(t), "sample", s, io.Discard); err != nil {
		t.Fatalf("RunStats: %s", err)
	}
	mustExist(t, filepath.Join(dir, "sample_stats_correlation.png"))
	if _, err := os.Stat(filepath.Join(dir, "sample_pair_plot.png")); err == nil {
		t.Error("pair plot written although plot figures are off")
	}
}

func TestRunFit(t *testing.T) {
	dir := t.TempDir()
	ds := testDataset(t)
	var log strings.Builder
	res, err := RunFit(ds, "sample", testSettings(dir), &log)
	if err != nil {
		t.Fatalf("RunFit: %s", err)
	}
	if !res.Success {
		t.Fatalf("fit of averaged spectrum failed: %s", res.Reason)
	}
	if got := res.Params["center"].Value; math.Abs(got-550) > 1 {
		t.Errorf("fitted center %g, want near 550", got)
	}
	mustExist(t, filepath.Join(dir, "sample_average_spectrum_fit.png"))
	if !strings.Contains(log.String(), "center") {
		t.Errorf("log output lacks the parameter listing: %q", log.String())
	}
}

func TestRunFitUnknownModel(t *testing.T) {
	s := testSettings(t.TempDir())
	s.Model = "lorentzian"
	if _, err := RunFit(testDataset(t), "sample", s, io.Discard); err == nil {
		t.Error("RunFit accepted an unknown model name")
	}
}

func TestRunMassFit(t *testing.T) {
	dir := t.TempDir()
	ds := testDataset(t)
	c := &massfit.Context{Log: io.Discard, MemoryMB: 1024, MaxThreads: 2}
	tbl, err := RunMassFit(ds, "sample", testSettings(dir), c)
	if err != nil {
		t.Fatalf("RunMassFit: %s", err)
	}
	if tbl.NumFailed != 0 {
		t.Errorf("%d of %d clean synthetic pixels failed to fit", tbl.NumFailed, ds.NumPixels())
	}
	mustExist(t, filepath.Join(dir, "sample_massfit_results.csv"))
	mustExist(t, filepath.Join(dir, "sample_massfit_summary.csv"))
	mustExist(t, filepath.Join(dir, "sample_amplitude_map.png"))
	mustExist(t, filepath.Join(dir, "sample_redchi2_map.png"))
	mustExist(t, filepath.Join(dir, "sample_param_correlation.png"))

	// correlation export does not depend on the plot toggle
	dir = t.TempDir()
	s := testSettings(dir)
	s.ShowPlots = false
	if _, err := RunMassFit(ds, "sample", s, c); err != nil {
		t.Fatalf("RunMassFit: %s", err)
	}
	mustExist(t, filepath.Join(dir, "sample_param_correlation.png"))
}
