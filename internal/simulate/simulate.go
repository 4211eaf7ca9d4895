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

// Package simulate generates synthetic hyperspectral datasets for demos and
// tests: a square grid of noisy lineshape spectra on a common axis.
package simulate

import (
	"fmt"
	"io"
	"math"

	"github.com/valyala/fastrand"

	"github.com/rkoehler/specmap/internal/fit"
	"github.com/rkoehler/specmap/internal/hsi"
)

// Settings for a synthetic dataset
type Config struct {
	GridSize      int     `json:"gridSize"`      // edge length N of the N x N grid
	WavelengthMin float64 `json:"wavelengthMin"` // axis start in nm
	WavelengthMax float64 `json:"wavelengthMax"` // axis end in nm
	StepSize      float64 `json:"stepSize"`      // axis sampling step in nm
	Model         fit.Model
	Params        []float64 // raw model parameters, ordered as Model.ParamNames()
	NoiseSigma    float64   // standard deviation of additive Gaussian noise
	Seed          uint32    // RNG seed for reproducible grids
}

// Generates a synthetic grid of spectra from the configured lineshape plus
// Gaussian noise. Pixel peak amplitudes are modulated across the grid so the
// resulting parameter maps show spatial structure.
func Generate(cfg Config) (*hsi.Dataset, error) {
	if cfg.GridSize < 1 {
		return nil, fmt.Errorf("grid size %d must be positive", cfg.GridSize)
	}
	if cfg.StepSize <= 0 || cfg.WavelengthMax <= cfg.WavelengthMin {
		return nil, fmt.Errorf("invalid axis %g..%g step %g", cfg.WavelengthMin, cfg.WavelengthMax, cfg.StepSize)
	}
	if len(cfg.Params) != len(cfg.Model.ParamNames()) {
		return nil, fmt.Errorf("model %s needs %d parameters, got %d",
			cfg.Model, len(cfg.Model.ParamNames()), len(cfg.Params))
	}

	numSamples := int((cfg.WavelengthMax-cfg.WavelengthMin)/cfg.StepSize) + 1
	wavelengths := make([]float64, numSamples)
	for i := range wavelengths {
		wavelengths[i] = cfg.WavelengthMin + float64(i)*cfg.StepSize
	}

	rng := fastrand.RNG{}
	rng.Seed(cfg.Seed)
	n := cfg.GridSize
	intensities := make([][]float64, n*n)
	for p := range intensities {
		// radial amplitude falloff from the grid center
		dx := float64(p%n) - float64(n-1)/2
		dy := float64(p/n) - float64(n-1)/2
		scale := 1 / (1 + 0.1*(dx*dx+dy*dy))

		in := make([]float64, numSamples)
		for i, wl := range wavelengths {
			in[i] = scale*cfg.Model.Eval(wl, cfg.Params) + cfg.NoiseSigma*normal(&rng)
		}
		intensities[p] = in
	}
	return hsi.NewDataset(wavelengths, intensities)
}

// Writes the dataset as a tab-delimited export table, one wavelength per row
// and one intensity column per pixel, the shape the loader consumes.
func WriteTable(w io.Writer, ds *hsi.Dataset) error {
	for i, wl := range ds.Wavelengths {
		if _, err := fmt.Fprintf(w, "%g", wl); err != nil {
			return err
		}
		for p := 0; p < ds.NumPixels(); p++ {
			if _, err := fmt.Fprintf(w, "\t%g", ds.Intensities[p][i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// Standard normal deviate via Box-Muller from two fastrand uniforms
func normal(rng *fastrand.RNG) float64 {
	u1 := (float64(rng.Uint32()) + 1) / (float64(math.MaxUint32) + 2) // in (0,1)
	u2 := (float64(rng.Uint32()) + 1) / (float64(math.MaxUint32) + 2)
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
