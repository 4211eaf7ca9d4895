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

package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/rkoehler/specmap/internal/hsi"
)

// Optional user-supplied initial parameter values, keyed by raw parameter name
type Params map[string]float64

// A fitted parameter value with its standard error. Stderr is NaN when the
// covariance estimate is singular or unavailable.
type Estimate struct {
	Value  float64 `json:"value"`
	Stderr float64 `json:"stderr"`
}

// The outcome of fitting one spectrum. On success, Params maps each raw
// parameter name to its estimate, Derived holds the reported physical
// quantities (total FWHM, peak center), and RedChi2 is the reduced chi-square
// of the fit. On failure only Model and Reason are meaningful; a failed result
// is never partially populated.
type Result struct {
	Model     Model               `json:"model"`
	Success   bool                `json:"success"`
	Reason    string              `json:"reason,omitempty"`
	Params    map[string]Estimate `json:"params,omitempty"`
	Derived   map[string]float64  `json:"derived,omitempty"`
	RedChi2   float64             `json:"redChi2"`
	NumPoints int                 `json:"numPoints"`
}

func failure(model Model, format string, args ...interface{}) Result {
	return Result{Model: model, Success: false, Reason: fmt.Sprintf(format, args...)}
}

// Objective value returned while the simplex is outside the parameter bounds.
// Grows with the violation so the optimizer is steered back inside.
const boundsPenalty = 1e30

// Fits the given lineshape model to one spectrum, restricted to the window,
// using bounded nonlinear least squares. Initial values are taken from the
// model's guess heuristics on the restricted data, overridden by any values in
// initial. All numerical failure modes, including panics inside the optimizer,
// are captured into a failed Result; Fit never propagates them.
func Fit(wavelengths, intensities []float64, model Model, w hsi.Window, initial Params) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(model, "numerical panic during fit: %v", r)
		}
	}()

	names := model.ParamNames()
	if names == nil {
		return failure(model, "unknown model %d", int(model))
	}
	if err := w.Validate(); err != nil {
		return failure(model, "%s", err.Error())
	}
	iLo, iHi := w.ClipIndices(wavelengths)
	x, y := wavelengths[iLo:iHi], intensities[iLo:iHi]
	if len(x) <= len(names) {
		return failure(model, "window [%g, %g] contains %d samples, need more than the %d parameters",
			w.Min, w.Max, len(x), len(names))
	}
	maxY := y[0]
	for _, v := range y {
		if v > maxY {
			maxY = v
		}
	}
	if maxY <= 0 {
		return failure(model, "degenerate data: no positive intensity in window [%g, %g]", w.Min, w.Max)
	}

	lo, hi := model.bounds(x)
	x0 := model.guess(x, y)
	for i, name := range names {
		if v, ok := initial[name]; ok {
			x0[i] = v
		}
		x0[i] = clamp(x0[i], lo[i], hi[i])
	}

	ssrFcn := func(p []float64) float64 {
		ssr := 0.0
		for i, xi := range x {
			d := model.Eval(xi, p) - y[i]
			ssr += d * d
		}
		return ssr
	}
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			violation := 0.0
			for i := range p {
				if p[i] < lo[i] {
					violation += lo[i] - p[i]
				} else if p[i] > hi[i] {
					violation += p[i] - hi[i]
				}
			}
			if violation > 0 {
				return boundsPenalty * (1 + violation)
			}
			return ssrFcn(p)
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return failure(model, "optimizer did not converge: %s", err.Error())
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) || result.F >= boundsPenalty {
		return failure(model, "optimizer diverged with objective %g", result.F)
	}

	p := result.X
	for i := range p { // project out infinitesimal boundary overshoot
		p[i] = clamp(p[i], lo[i], hi[i])
	}
	ssr := ssrFcn(p)
	n, np := len(x), len(p)
	redChi2 := math.NaN()
	if n > np {
		redChi2 = ssr / float64(n-np)
	}

	stderrs := standardErrors(model, x, y, p, ssr)
	params := make(map[string]Estimate, np)
	for i, name := range names {
		params[name] = Estimate{Value: p[i], Stderr: stderrs[i]}
	}
	derivedNames, derivedValues := model.DerivedNames(), model.derive(p)
	derived := make(map[string]float64, len(derivedNames))
	for i, name := range derivedNames {
		derived[name] = derivedValues[i]
	}

	return Result{
		Model:     model,
		Success:   true,
		Params:    params,
		Derived:   derived,
		RedChi2:   redChi2,
		NumPoints: n,
	}
}

// Returns the fitted raw parameter values ordered as Model.ParamNames(),
// or nil for a failed result
func (r *Result) ParamValues() []float64 {
	if !r.Success {
		return nil
	}
	names := r.Model.ParamNames()
	values := make([]float64, len(names))
	for i, name := range names {
		values[i] = r.Params[name].Value
	}
	return values
}

// Estimates parameter standard errors from the covariance s^2 (J^T J)^-1,
// with J the finite-difference Jacobian of the residuals at the optimum.
// Returns NaN for every parameter when the normal matrix is singular.
func standardErrors(model Model, x, y, p []float64, ssr float64) []float64 {
	n, np := len(x), len(p)
	stderrs := make([]float64, np)
	for i := range stderrs {
		stderrs[i] = math.NaN()
	}
	if n <= np {
		return stderrs
	}

	jac := mat.NewDense(n, np, nil)
	fd.Jacobian(jac, func(dst, q []float64) {
		for i, xi := range x {
			dst[i] = model.Eval(xi, q) - y[i]
		}
	}, p, nil)

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	var cov mat.Dense
	if err := cov.Inverse(&jtj); err != nil {
		return stderrs // singular normal matrix
	}
	s2 := ssr / float64(n-np)
	for i := range stderrs {
		if d := cov.At(i, i); d >= 0 {
			stderrs[i] = math.Sqrt(s2 * d)
		}
	}
	return stderrs
}
