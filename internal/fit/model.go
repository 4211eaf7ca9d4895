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

// Package fit provides the closed-form emission lineshape models and the
// bounded nonlinear least-squares engine that fits them to a spectrum.
package fit

import (
	"fmt"
	"math"
	"strings"
)

// An emission lineshape model. One of Single, Double or Asymmetric.
type Model int

const (
	Single     Model = iota // one Gaussian: A*exp(-(x-mu)^2/2sigma^2)
	Double                  // sum of two independent Gaussians
	Asymmetric              // Gaussian with independent low/high-side widths
)

func (m Model) String() string {
	switch m {
	case Single:
		return "single"
	case Double:
		return "double"
	case Asymmetric:
		return "asymmetric"
	}
	return fmt.Sprintf("model(%d)", int(m))
}

func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return Single, nil
	case "double":
		return Double, nil
	case "asymmetric", "asym":
		return Asymmetric, nil
	}
	return 0, fmt.Errorf("unknown lineshape model %q, expected single, double or asymmetric", s)
}

// Ratio between the FWHM and the standard deviation of a Gaussian, 2*sqrt(2*ln 2)
const FWHMSigmaRatio = 2.3548200450309493

func SigmaToFWHM(sigma float64) float64 { return sigma * FWHMSigmaRatio }
func FWHMToSigma(fwhm float64) float64  { return fwhm / FWHMSigmaRatio }

var (
	singleParamNames     = []string{"amplitude", "center", "sigma"}
	doubleParamNames     = []string{"amp1", "cen1", "sigma1", "amp2", "cen2", "sigma2"}
	asymmetricParamNames = []string{"amp", "cen", "fwhm_low", "fwhm_high"}
)

// Returns the ordered raw fit parameter names of the model
func (m Model) ParamNames() []string {
	switch m {
	case Single:
		return singleParamNames
	case Double:
		return doubleParamNames
	case Asymmetric:
		return asymmetricParamNames
	}
	return nil
}

// Returns the names of the derived physical quantities reported on success
func (m Model) DerivedNames() []string {
	switch m {
	case Single:
		return []string{"fwhm", "peak_center"}
	case Double:
		return []string{"fwhm1", "fwhm2", "peak_center"}
	case Asymmetric:
		return []string{"fwhm", "peak_center"}
	}
	return nil
}

// Evaluates the model at x for the given raw parameter vector,
// ordered as in ParamNames
func (m Model) Eval(x float64, p []float64) float64 {
	switch m {
	case Single:
		return gaussian(x, p[0], p[1], p[2])
	case Double:
		return gaussian(x, p[0], p[1], p[2]) + gaussian(x, p[3], p[4], p[5])
	case Asymmetric:
		sigma := FWHMToSigma(p[2])
		if x >= p[1] {
			sigma = FWHMToSigma(p[3])
		}
		return gaussian(x, p[0], p[1], sigma)
	}
	return math.NaN()
}

func gaussian(x, amplitude, center, sigma float64) float64 {
	d := (x - center) / sigma
	return amplitude * math.Exp(-0.5*d*d)
}

// Lower and upper bounds per raw parameter: amplitudes non-negative, widths
// strictly positive, centers confined to the window-restricted data range so
// a component cannot wander out of the fitted window.
func (m Model) bounds(x []float64) (lo, hi []float64) {
	n := len(m.ParamNames())
	lo = make([]float64, n)
	hi = make([]float64, n)
	for i := range hi {
		hi[i] = math.Inf(1)
	}
	xMin, xMax := x[0], x[len(x)-1]
	switch m {
	case Single:
		lo[2] = minWidth
		lo[1], hi[1] = xMin, xMax
	case Double:
		lo[2], lo[5] = minWidth, minWidth
		lo[1], hi[1] = xMin, xMax
		lo[4], hi[4] = xMin, xMax
	case Asymmetric:
		lo[2], lo[3] = minWidth, minWidth
		lo[1], hi[1] = xMin, xMax
	}
	return lo, hi
}

// Smallest admissible width parameter, keeps sigma strictly positive
const minWidth = 1e-9

// Derives heuristic initial guesses from the window-restricted data: peak
// amplitude from max(y), center from argmax(y), width as a fraction of the
// window width. The double model starts its second component on the largest
// sample outside the primary peak's neighborhood, so two separated peaks each
// seed their own component and the start never collapses onto one peak.
func (m Model) guess(x, y []float64) []float64 {
	maxY, argMax := y[0], 0
	for i, v := range y {
		if v > maxY {
			maxY, argMax = v, i
		}
	}
	span := x[len(x)-1] - x[0]
	center := x[argMax]

	switch m {
	case Single:
		return []float64{maxY, center, span / 10}
	case Double:
		cen2, amp2 := secondaryPeak(x, y, argMax, span/10)
		return []float64{maxY, center, span / 20, amp2, cen2, span / 20}
	case Asymmetric:
		return []float64{maxY, center, SigmaToFWHM(span / 10), SigmaToFWHM(span / 10)}
	}
	return nil
}

// Locates the largest sample more than exclusion away from the primary peak.
// Deterministic: ties resolve to the lowest index. Falls back to the primary
// peak position at half amplitude when every sample is excluded.
func secondaryPeak(x, y []float64, argMax int, exclusion float64) (cen, amp float64) {
	best := -1
	for i, v := range y {
		if math.Abs(x[i]-x[argMax]) <= exclusion {
			continue
		}
		if best < 0 || v > y[best] {
			best = i
		}
	}
	if best < 0 {
		return x[argMax], y[argMax] / 2
	}
	return x[best], y[best]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Maps the raw fitted parameters to the reported physical quantities, ordered
// as in DerivedNames. The asymmetric total FWHM is the half-sum of the two
// one-sided full widths, i.e. the width of the composite curve at half maximum.
func (m Model) derive(p []float64) []float64 {
	switch m {
	case Single:
		return []float64{SigmaToFWHM(p[2]), p[1]}
	case Double:
		center := p[1]
		if p[3] > p[0] {
			center = p[4]
		}
		return []float64{SigmaToFWHM(p[2]), SigmaToFWHM(p[5]), center}
	case Asymmetric:
		return []float64{(p[2] + p[3]) / 2, p[1]}
	}
	return nil
}
