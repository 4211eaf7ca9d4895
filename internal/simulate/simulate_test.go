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

package simulate

import (
	"math"
	"strings"
	"testing"

	"github.com/rkoehler/specmap/internal/fit"
	"github.com/rkoehler/specmap/internal/hsi"
)

func testConfig() Config {
	return Config{
		GridSize:      4,
		WavelengthMin: 450,
		WavelengthMax: 650,
		StepSize:      1,
		Model:         fit.Single,
		Params:        []float64{100, 550, 10},
		NoiseSigma:    0.05,
		Seed:          42,
	}
}

func TestGenerateShape(t *testing.T) {
	ds, err := Generate(testConfig())
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	if ds.GridSize() != 4 || ds.NumPixels() != 16 {
		t.Errorf("got %d pixels on grid %d, want 16 on 4", ds.NumPixels(), ds.GridSize())
	}
	if len(ds.Wavelengths) != 201 {
		t.Errorf("axis has %d samples, want 201", len(ds.Wavelengths))
	}
	if ds.Wavelengths[0] != 450 || ds.Wavelengths[200] != 650 {
		t.Errorf("axis spans %g..%g, want 450..650", ds.Wavelengths[0], ds.Wavelengths[200])
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(testConfig())
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	b, err := Generate(testConfig())
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	for p := 0; p < a.NumPixels(); p++ {
		for i := range a.Wavelengths {
			if a.Intensities[p][i] != b.Intensities[p][i] {
				t.Fatalf("pixel %d sample %d differs between equal seeds: %g vs %g",
					p, i, a.Intensities[p][i], b.Intensities[p][i])
			}
		}
	}

	cfg := testConfig()
	cfg.Seed = 43
	c, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	identical := true
	for i := range a.Wavelengths {
		if a.Intensities[0][i] != c.Intensities[0][i] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("different seeds produced an identical pixel 0 spectrum")
	}
}

func TestGenerateRadialFalloff(t *testing.T) {
	cfg := testConfig()
	cfg.GridSize = 5
	cfg.NoiseSigma = 0
	ds, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	peak := func(p int) float64 {
		max := math.Inf(-1)
		for _, v := range ds.Spectrum(p) {
			if v > max {
				max = v
			}
		}
		return max
	}
	center := peak(2*5 + 2)
	corner := peak(0)
	if !(center > corner) {
		t.Errorf("center peak %g not above corner peak %g", center, corner)
	}
	if math.Abs(center-100) > 1e-9 {
		t.Errorf("center pixel peak %g, want the full amplitude 100", center)
	}
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero grid", func(c *Config) { c.GridSize = 0 }},
		{"zero step", func(c *Config) { c.StepSize = 0 }},
		{"inverted axis", func(c *Config) { c.WavelengthMin, c.WavelengthMax = 650, 450 }},
		{"wrong param count", func(c *Config) { c.Params = []float64{100, 550} }},
	}
	for _, c := range cases {
		cfg := testConfig()
		c.mod(&cfg)
		if _, err := Generate(cfg); err == nil {
			t.Errorf("%s: accepted", c.name)
		}
	}
}

func TestWriteTableRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.GridSize = 2
	ds, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	var sb strings.Builder
	if err := WriteTable(&sb, ds); err != nil {
		t.Fatalf("WriteTable: %s", err)
	}
	got, err := hsi.Read(strings.NewReader(sb.String()), "roundtrip")
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	if got.NumPixels() != ds.NumPixels() || len(got.Wavelengths) != len(ds.Wavelengths) {
		t.Fatalf("round trip shape %d pixels x %d samples, want %d x %d",
			got.NumPixels(), len(got.Wavelengths), ds.NumPixels(), len(ds.Wavelengths))
	}
	for p := 0; p < ds.NumPixels(); p++ {
		for i := range ds.Wavelengths {
			rel := math.Abs(got.Intensities[p][i]-ds.Intensities[p][i]) /
				math.Max(math.Abs(ds.Intensities[p][i]), 1e-12)
			if rel > 1e-9 {
				t.Fatalf("pixel %d sample %d: %g read back as %g",
					p, i, ds.Intensities[p][i], got.Intensities[p][i])
			}
		}
	}
}
