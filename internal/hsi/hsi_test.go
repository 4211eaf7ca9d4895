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

package hsi

import (
	"errors"
	"strings"
	"testing"
)

func TestWindowValidate(t *testing.T) {
	cases := []struct {
		w  Window
		ok bool
	}{
		{Window{450, 650}, true},
		{Window{650, 450}, false},
		{Window{500, 500}, false},
	}
	for _, c := range cases {
		err := c.w.Validate()
		if (err == nil) != c.ok {
			t.Errorf("Validate(%v): got err=%v, want ok=%v", c.w, err, c.ok)
		}
	}
}

func TestWindowClipIndices(t *testing.T) {
	axis := []float64{400, 450, 500, 550, 600, 650, 700}
	cases := []struct {
		w      Window
		lo, hi int
	}{
		{Window{450, 650}, 1, 6}, // inclusive on both window edges
		{Window{449, 651}, 1, 6},
		{Window{400, 700}, 0, 7},
		{Window{0, 1000}, 0, 7},
		{Window{710, 900}, 7, 7}, // no overlap above
		{Window{100, 390}, 0, 0}, // no overlap below
		{Window{460, 540}, 2, 3},
	}
	for _, c := range cases {
		lo, hi := c.w.ClipIndices(axis)
		if lo != c.lo || hi != c.hi {
			t.Errorf("ClipIndices(%v)=(%d,%d), want (%d,%d)", c.w, lo, hi, c.lo, c.hi)
		}
	}
}

func TestNewDatasetShapeErrors(t *testing.T) {
	wl := []float64{400, 500, 600}
	good := [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {0, 1, 2}}
	if _, err := NewDataset(wl, good); err != nil {
		t.Fatalf("valid 2x2 dataset rejected: %s", err)
	}

	cases := []struct {
		name string
		wl   []float64
		in   [][]float64
	}{
		{"short axis", []float64{400}, [][]float64{{1}}},
		{"descending axis", []float64{400, 390, 600}, good},
		{"duplicate axis sample", []float64{400, 400, 600}, good},
		{"no pixels", wl, [][]float64{}},
		{"ragged row", wl, [][]float64{{1, 2, 3}, {4, 5}, {7, 8, 9}, {0, 1, 2}}},
		{"non-square pixel count", wl, good[:3]},
	}
	for _, c := range cases {
		_, err := NewDataset(c.wl, c.in)
		if err == nil {
			t.Errorf("%s: accepted", c.name)
			continue
		}
		var se *ShapeError
		if !errors.As(err, &se) {
			t.Errorf("%s: error %T is not a *ShapeError", c.name, err)
		}
	}
}

func TestReadTabDelimited(t *testing.T) {
	input := "# exported map\n" +
		"400\t1\t2\t3\t4\n" +
		"\n" +
		"500\t5\t6\t7\t8\n" +
		"600\t9\t10\t11\t12\n"
	ds, err := Read(strings.NewReader(input), "test")
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	if ds.NumPixels() != 4 || ds.GridSize() != 2 {
		t.Fatalf("got %d pixels, grid %d, want 4 pixels on a 2x2 grid", ds.NumPixels(), ds.GridSize())
	}
	if len(ds.Wavelengths) != 3 || ds.Wavelengths[1] != 500 {
		t.Errorf("axis %v, want [400 500 600]", ds.Wavelengths)
	}
	// column i of the table becomes pixel i
	if sp := ds.Spectrum(2); sp[0] != 3 || sp[1] != 7 || sp[2] != 11 {
		t.Errorf("pixel 2 spectrum %v, want [3 7 11]", sp)
	}
}

func TestReadCommaDelimited(t *testing.T) {
	input := "400, 1, 2, 3, 4\n500, 5, 6, 7, 8\n"
	ds, err := Read(strings.NewReader(input), "test")
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	if ds.Spectrum(0)[1] != 5 {
		t.Errorf("pixel 0 spectrum %v, want [1 5]", ds.Spectrum(0))
	}
}

func TestReadErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"comments only", "# a\n# b\n"},
		{"single column", "400\n500\n"},
		{"ragged columns", "400 1 2 3 4\n500 5 6\n"},
		{"bad wavelength", "abc 1 2 3 4\n"},
		{"bad intensity", "400 1 x 3 4\n"},
	}
	for _, c := range cases {
		if _, err := Read(strings.NewReader(c.input), c.name); err == nil {
			t.Errorf("%s: accepted", c.name)
		}
	}
}

func TestAverageSpectrum(t *testing.T) {
	wl := []float64{400, 500}
	ds, err := NewDataset(wl, [][]float64{{0, 4}, {2, 0}, {4, 4}, {2, 0}})
	if err != nil {
		t.Fatalf("NewDataset: %s", err)
	}
	avg := ds.AverageSpectrum()
	if avg[0] != 2 || avg[1] != 2 {
		t.Errorf("average spectrum %v, want [2 2]", avg)
	}
}
