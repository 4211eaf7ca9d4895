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
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteMapPNG(t *testing.T) {
	grid := [][]float64{
		{1, 2, 3},
		{4, math.NaN(), 6},
		{7, 8, 9},
	}
	path := filepath.Join(t.TempDir(), "map.png")
	if err := WriteMapPNG(path, grid, 8); err != nil {
		t.Fatalf("WriteMapPNG: %s", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	b := img.Bounds()
	if b.Dx() != 24 || b.Dy() != 24 {
		t.Errorf("image is %dx%d, want 24x24 for a 3x3 grid at cell size 8", b.Dx(), b.Dy())
	}
}

func TestWriteMapPNGAllNaN(t *testing.T) {
	grid := [][]float64{
		{math.NaN(), math.NaN()},
		{math.NaN(), math.NaN()},
	}
	path := filepath.Join(t.TempDir(), "nan.png")
	if err := WriteMapPNG(path, grid, 4); err != nil {
		t.Fatalf("WriteMapPNG on an all-NaN grid: %s", err)
	}
}

func TestWriteSpectrumPlot(t *testing.T) {
	wl := make([]float64, 101)
	in := make([]float64, 101)
	fitted := make([]float64, 101)
	for i := range wl {
		wl[i] = 500 + float64(i)
		in[i] = math.Exp(-float64(i-50) * float64(i-50) / 200)
		fitted[i] = in[i]
	}
	path := filepath.Join(t.TempDir(), "spectrum.png")
	if err := WriteSpectrumPlot(path, "test sample", wl, in, fitted); err != nil {
		t.Fatalf("WriteSpectrumPlot: %s", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("plot file missing or empty: %v", err)
	}

	// nil fit overlay draws the data line only
	path = filepath.Join(t.TempDir(), "data_only.png")
	if err := WriteSpectrumPlot(path, "test sample", wl, in, nil); err != nil {
		t.Fatalf("WriteSpectrumPlot without overlay: %s", err)
	}
}

func TestWritePairPlot(t *testing.T) {
	names := []string{"a", "b", "c"}
	columns := [][]float64{
		{1, 2, 3, 4, math.NaN()},
		{2, 4, 6, 8, 10},
		{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()},
	}
	path := filepath.Join(t.TempDir(), "pair.png")
	if err := WritePairPlot(path, names, columns); err != nil {
		t.Fatalf("WritePairPlot: %s", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("decode: %s", err)
	}

	if err := WritePairPlot(path, []string{"a"}, columns); err == nil {
		t.Error("WritePairPlot accepted mismatched names and columns")
	}
}

func TestWriteCorrelationPlot(t *testing.T) {
	names := []string{"a", "b", "c"}
	corr := [][]float64{
		{1, 0.5, math.NaN()},
		{0.5, 1, -0.25},
		{math.NaN(), -0.25, 1},
	}
	path := filepath.Join(t.TempDir(), "correlation.png")
	if err := WriteCorrelationPlot(path, names, corr); err != nil {
		t.Fatalf("WriteCorrelationPlot: %s", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("plot file missing or empty: %v", err)
	}
}
