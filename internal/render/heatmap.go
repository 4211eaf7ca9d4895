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

// Package render turns the core's grid-shaped float arrays and fit results
// into images, plots and CSV files. It is a pure consumer of the core's data
// contract: NaN cells mark failed pixels and are rendered neutrally.
package render

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/rkoehler/specmap/internal/stats"
)

// Keypoints of the perceptual color ramp used for spatial maps
var rampKeys = []colorful.Color{
	{R: 0.267, G: 0.005, B: 0.329},
	{R: 0.254, G: 0.265, B: 0.530},
	{R: 0.164, G: 0.471, B: 0.558},
	{R: 0.128, G: 0.567, B: 0.551},
	{R: 0.135, G: 0.659, B: 0.518},
	{R: 0.478, G: 0.821, B: 0.318},
	{R: 0.993, G: 0.906, B: 0.144},
}

// Color of NaN cells (failed pixels) in map renderings
var nanGray = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Interpolates the ramp at t in [0,1], blending in Luv space
func rampColor(t float64) color.Color {
	if t <= 0 {
		return rampKeys[0].Clamped()
	}
	if t >= 1 {
		return rampKeys[len(rampKeys)-1].Clamped()
	}
	scaled := t * float64(len(rampKeys)-1)
	i := int(scaled)
	return rampKeys[i].BlendLuv(rampKeys[i+1], scaled-float64(i)).Clamped()
}

// Writes an N x N map as a PNG heatmap, upscaling each cell to cellSize x
// cellSize pixels. The value range is the robust mean +/- 2 sigma over the
// valid cells, after the original map exports; NaN cells render gray.
// Row 0 is drawn at the bottom.
func WriteMapPNG(fileName string, grid [][]float64, cellSize int) error {
	if cellSize < 1 {
		cellSize = 1
	}
	n := len(grid)
	flat := make([]float64, 0, n*n)
	for _, row := range grid {
		flat = append(flat, row...)
	}
	mean, stdDev, _ := stats.Moments(flat)
	vMin, vMax := mean-2*stdDev, mean+2*stdDev
	if math.IsNaN(vMin) || vMax-vMin < 1e-30 {
		vMin, vMax = 0, 1
	}

	img := image.NewRGBA(image.Rect(0, 0, n*cellSize, n*cellSize))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := grid[y][x]
			var c color.Color
			if math.IsNaN(v) {
				c = nanGray
			} else {
				c = rampColor((v - vMin) / (vMax - vMin))
			}
			fillCell(img, x*cellSize, (n-1-y)*cellSize, cellSize, c)
		}
	}

	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func fillCell(img *image.RGBA, x0, y0, size int, c color.Color) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.Set(x, y, c)
		}
	}
}
