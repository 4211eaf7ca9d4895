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

// Package stats computes per-pixel spectral statistics: integrated intensity,
// intensity-weighted mean wavelength and the empirical full width at half
// maximum, all restricted to a wavelength window. Degenerate inputs yield NaN
// rather than errors, so one pathological pixel never aborts a batch.
package stats

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/rkoehler/specmap/internal/hsi"
)

// Intensity sums below this threshold count as a flat spectrum
const degenerateIntensitySum = 1e-12

// Integrates intensity over the wavelengths inside the window using the
// trapezoidal rule. Returns NaN when the window does not overlap the axis.
func IntegratedIntensity(wavelengths, intensities []float64, w hsi.Window) float64 {
	lo, hi := w.ClipIndices(wavelengths)
	if hi-lo < 1 {
		return math.NaN()
	}
	if hi-lo == 1 {
		return 0 // single sample, zero-width trapezoid
	}
	return integrate.Trapezoidal(wavelengths[lo:hi], intensities[lo:hi])
}

// Computes the intensity-weighted mean wavelength sum(lambda*I)/sum(I) inside
// the window. Returns NaN when the window does not overlap the axis, or when
// the total intensity vanishes.
func WeightedMeanWavelength(wavelengths, intensities []float64, w hsi.Window) float64 {
	lo, hi := w.ClipIndices(wavelengths)
	if hi-lo < 1 {
		return math.NaN()
	}
	sumWI, sumI := 0.0, 0.0
	for i := lo; i < hi; i++ {
		sumWI += wavelengths[i] * intensities[i]
		sumI += intensities[i]
	}
	if math.Abs(sumI) < degenerateIntensitySum {
		return math.NaN()
	}
	return sumWI / sumI
}

// Computes the full width at half maximum of the empirical spectrum inside the
// window. The peak is located in-window; the two half-maximum crossings are
// found by linear interpolation between the samples straddling half max on
// each side. Returns NaN when the window holds fewer than 3 samples, or when
// either crossing is missing (e.g. peak at the window boundary).
func FWHM(wavelengths, intensities []float64, w hsi.Window) float64 {
	lo, hi := w.ClipIndices(wavelengths)
	if hi-lo < 3 {
		return math.NaN()
	}
	wl, in := wavelengths[lo:hi], intensities[lo:hi]

	peak := 0
	for i := 1; i < len(in); i++ {
		if in[i] > in[peak] {
			peak = i
		}
	}
	if in[peak] <= 0 {
		return math.NaN()
	}
	half := in[peak] / 2

	left := math.NaN()
	for i := peak; i > 0; i-- {
		if in[i-1] < half && in[i] >= half {
			left = crossing(wl[i-1], in[i-1], wl[i], in[i], half)
			break
		}
	}
	right := math.NaN()
	for i := peak; i < len(in)-1; i++ {
		if in[i] >= half && in[i+1] < half {
			right = crossing(wl[i], in[i], wl[i+1], in[i+1], half)
			break
		}
	}
	if math.IsNaN(left) || math.IsNaN(right) {
		return math.NaN()
	}
	return right - left
}

// Linear interpolation of the wavelength where intensity crosses the level
func crossing(x0, y0, x1, y1, level float64) float64 {
	if y1 == y0 {
		return x0
	}
	return x0 + (x1-x0)*(level-y0)/(y1-y0)
}

// Reshapes a flat per-pixel array into its N x N spatial grid, row-major.
// Returns a *hsi.ShapeError when the length is not a perfect square.
func ReshapeToGrid(flat []float64) ([][]float64, error) {
	side := int(math.Sqrt(float64(len(flat))))
	if side*side != len(flat) || side == 0 {
		return nil, hsi.NewShapeError("array length %d is not a perfect square", len(flat))
	}
	grid := make([][]float64, side)
	for y := 0; y < side; y++ {
		grid[y] = flat[y*side : (y+1)*side]
	}
	return grid, nil
}

// Planck constant times speed of light in eV*nm
const HC = 1239.84198

// Converts an intensity-per-wavelength spectrum into an intensity-per-energy
// spectrum via E=hc/lambda, applying the Jacobian factor lambda^2/hc so the
// integrated area is preserved. Output is ascending in energy.
func EnergyJacobianTransform(wavelengths, intensities []float64, hc float64) (energy, intensityE []float64) {
	n := len(wavelengths)
	energy = make([]float64, n)
	intensityE = make([]float64, n)
	// ascending wavelength maps to descending energy, so fill reversed
	for i, wl := range wavelengths {
		energy[n-1-i] = hc / wl
		intensityE[n-1-i] = intensities[i] * wl * wl / hc
	}
	return energy, intensityE
}

// NaN-aware mean and population standard deviation over the valid entries of
// values, plus the count of NaN sentinels. Mean and std are NaN when no valid
// entries exist.
func Moments(values []float64) (mean, stdDev float64, numInvalid int) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) {
			numInvalid++
		} else {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN(), math.NaN(), numInvalid
	}
	return stat.Mean(valid, nil), stat.PopStdDev(valid, nil), numInvalid
}

// Computes the pairwise Pearson correlation matrix across the given columns.
// Each pairwise coefficient uses only the rows where both columns are valid;
// NaN sentinels are excluded, not zero-imputed. The result is symmetric with
// unit diagonal; entries with fewer than two complete pairs are NaN.
func CorrelationMatrix(columns [][]float64) [][]float64 {
	n := len(columns)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := pairwiseCorrelation(columns[i], columns[j])
			m[i][j], m[j][i] = r, r
		}
	}
	return m
}

func pairwiseCorrelation(a, b []float64) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}
