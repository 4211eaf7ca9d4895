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

// Package hsi holds the hyperspectral imaging data model: a spatial grid of
// per-pixel emission spectra sharing one wavelength axis, and the wavelength
// window used to restrict statistics and fits to a sub-range.
package hsi

import (
	"fmt"
	"math"
)

// A wavelength window in nanometers, restricting where statistics and fits
// are computed. Min must be strictly below Max.
type Window struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (w Window) Validate() error {
	if math.IsNaN(w.Min) || math.IsNaN(w.Max) || w.Min >= w.Max {
		return fmt.Errorf("invalid wavelength window [%g, %g]: min must be below max", w.Min, w.Max)
	}
	return nil
}

// Returns the half-open index range [lo,hi) of axis samples inside the window.
// The axis must be ascending. hi==lo when the window does not overlap the axis.
func (w Window) ClipIndices(wavelengths []float64) (lo, hi int) {
	lo = 0
	for lo < len(wavelengths) && wavelengths[lo] < w.Min {
		lo++
	}
	hi = lo
	for hi < len(wavelengths) && wavelengths[hi] <= w.Max {
		hi++
	}
	return lo, hi
}

// A ShapeError reports data whose geometry cannot form a valid spatial grid,
// e.g. a pixel count which is not a perfect square, or mismatched axis
// lengths. ShapeErrors are fatal and abort the whole run.
type ShapeError struct {
	msg string
}

func (e *ShapeError) Error() string { return e.msg }

func NewShapeError(format string, args ...interface{}) *ShapeError {
	return &ShapeError{msg: fmt.Sprintf(format, args...)}
}

// A Dataset is a square grid of pixels, each owning one emission spectrum over
// the shared wavelength axis. Intensities is indexed [pixel][sample], pixels
// in row-major grid order. Immutable once built.
type Dataset struct {
	Wavelengths []float64   // shared axis, strictly ascending, len>=2
	Intensities [][]float64 // one row per pixel, each len(Wavelengths) long
	gridSize    int         // edge length of the square pixel grid
}

// Builds a dataset from a shared axis and per-pixel intensity rows, validating
// the grid geometry. Returns a *ShapeError when no valid grid can be formed.
func NewDataset(wavelengths []float64, intensities [][]float64) (*Dataset, error) {
	if len(wavelengths) < 2 {
		return nil, NewShapeError("wavelength axis has %d samples, need at least 2", len(wavelengths))
	}
	for i := 1; i < len(wavelengths); i++ {
		if !(wavelengths[i] > wavelengths[i-1]) {
			return nil, NewShapeError("wavelength axis not strictly ascending at sample %d: %g after %g",
				i, wavelengths[i], wavelengths[i-1])
		}
	}
	if len(intensities) == 0 {
		return nil, NewShapeError("dataset has no pixels")
	}
	for i, in := range intensities {
		if len(in) != len(wavelengths) {
			return nil, NewShapeError("pixel %d has %d samples, axis has %d", i, len(in), len(wavelengths))
		}
	}
	side := int(math.Sqrt(float64(len(intensities))))
	if side*side != len(intensities) {
		return nil, NewShapeError("pixel count %d is not a perfect square", len(intensities))
	}
	return &Dataset{Wavelengths: wavelengths, Intensities: intensities, gridSize: side}, nil
}

func (d *Dataset) NumPixels() int { return len(d.Intensities) }

// Edge length N of the N x N pixel grid
func (d *Dataset) GridSize() int { return d.gridSize }

// Returns the spectrum of the pixel at the given row-major index
func (d *Dataset) Spectrum(pixel int) []float64 { return d.Intensities[pixel] }

// Returns the spatially averaged spectrum over all pixels
func (d *Dataset) AverageSpectrum() []float64 {
	avg := make([]float64, len(d.Wavelengths))
	for _, in := range d.Intensities {
		for i, v := range in {
			avg[i] += v
		}
	}
	scale := 1 / float64(len(d.Intensities))
	for i := range avg {
		avg[i] *= scale
	}
	return avg
}
