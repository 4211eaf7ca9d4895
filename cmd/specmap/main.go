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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rkoehler/specmap/internal/fit"
	"github.com/rkoehler/specmap/internal/hsi"
	"github.com/rkoehler/specmap/internal/massfit"
	"github.com/rkoehler/specmap/internal/ops"
	"github.com/rkoehler/specmap/internal/rest"
	"github.com/rkoehler/specmap/internal/simulate"
)

const version = "0.1.0"

var out    = flag.String("out", "specmap_out", "base `directory` for analysis outputs")
var logF   = flag.String("log", "", "also save log output to `file`")
var wMin   = flag.Float64("wmin", 450.0, "wavelength window minimum in nm")
var wMax   = flag.Float64("wmax", 650.0, "wavelength window maximum in nm")
var model  = flag.String("model", "single", "lineshape model, one of single, double, asymmetric")
var params = flag.String("params", "", "initial fit parameters as JSON, e.g. `{\"amplitude\":1,\"center\":550,\"sigma\":20}`")
var plots  = flag.Bool("plots", false, "also write plot figures (fit overlays, correlation matrix)")

var simSize  = flag.Int("simSize", 16, "simulate: edge length of the square pixel grid")
var simNoise = flag.Float64("simNoise", 0.05, "simulate: standard deviation of additive Gaussian noise")
var simSeed  = flag.Uint("simSeed", 42, "simulate: random seed")
var simStep  = flag.Float64("simStep", 1.0, "simulate: wavelength sampling step in nm")

func main() {
	logWriter := io.Writer(os.Stdout)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Specmap processes hyperspectral emission maps into derived
scalar maps and fitted lineshape parameters.

Usage: %s [-flag value] (stats|fit|massfit|simulate|serve) (data.txt)

Commands:
  stats    Compute per-pixel statistics maps from the given export table
  fit      Fit the chosen lineshape to the spatially averaged spectrum
  massfit  Fit the chosen lineshape to every pixel independently
  simulate Write a synthetic export table for testing
  serve    Start the REST API server
  version  Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Log to file in addition to stdout, if selected
	if *logF != "" {
		f, err := os.Create(*logF)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to open logfile '%s': %s\n", *logF, err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		logWriter = io.MultiWriter(os.Stdout, f)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "stats":
		err = runWorkflow(args, logWriter, func(ds *hsi.Dataset, sample string, s *ops.Settings) error {
			return ops.RunStats(ds, sample, s, logWriter)
		})

	case "fit":
		err = runWorkflow(args, logWriter, func(ds *hsi.Dataset, sample string, s *ops.Settings) error {
			_, err := ops.RunFit(ds, sample, s, logWriter)
			return err
		})

	case "massfit":
		err = runWorkflow(args, logWriter, func(ds *hsi.Dataset, sample string, s *ops.Settings) error {
			ctx := massfit.NewContext(logWriter)
			fmt.Fprintf(logWriter, "Mass fitting with up to %d threads, %d MiB physical memory\n",
				ctx.MaxThreads, ctx.MemoryMB)
			_, err := ops.RunMassFit(ds, sample, s, ctx)
			return err
		})

	case "simulate":
		err = cmdSimulate(args[1:], logWriter)

	case "serve":
		rest.Serve()

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))
}

// Loads the data file named by the command arguments into a dataset, prepares
// the timestamped export directory and settings, and runs the workflow on it.
func runWorkflow(args []string, logWriter io.Writer, workflow func(*hsi.Dataset, string, *ops.Settings) error) error {
	if len(args) < 2 {
		return fmt.Errorf("command %s needs a data file argument", args[0])
	}
	fileName := args[1]

	settings, err := parseSettings()
	if err != nil {
		return err
	}
	ds, err := hsi.Load(fileName)
	if err != nil {
		return err
	}
	sample := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	stamp := time.Now().Format("20060102_150405")
	settings.OutputDir = filepath.Join(*out, fmt.Sprintf("%s_%s_%s", sample, args[0], stamp))

	fmt.Fprintf(logWriter, "Processing '%s': %d x %d pixel grid, %d wavelength samples -> outputs in %s\n",
		fileName, ds.GridSize(), ds.GridSize(), len(ds.Wavelengths), settings.OutputDir)
	return workflow(ds, sample, settings)
}

// Parses the flag surface into the settings value object for one run
func parseSettings() (*ops.Settings, error) {
	settings := &ops.Settings{
		Window:    hsi.Window{Min: *wMin, Max: *wMax},
		Model:     *model,
		ShowPlots: *plots,
	}
	if err := settings.Window.Validate(); err != nil {
		return nil, err
	}
	if _, err := fit.ParseModel(settings.Model); err != nil {
		return nil, err
	}
	if *params != "" {
		if err := json.Unmarshal([]byte(*params), &settings.InitialParams); err != nil {
			return nil, fmt.Errorf("bad -params JSON: %s", err.Error())
		}
	}
	return settings, nil
}

// Writes a synthetic export table for the chosen model into the output directory
func cmdSimulate(args []string, logWriter io.Writer) error {
	m, err := fit.ParseModel(*model)
	if err != nil {
		return err
	}

	center := (*wMin + *wMax) / 2
	span := *wMax - *wMin
	var p []float64
	switch m {
	case fit.Single:
		p = []float64{100, center, span / 12}
	case fit.Double:
		p = []float64{80, center - span/8, span / 16, 50, center + span/8, span / 12}
	case fit.Asymmetric:
		p = []float64{100, center, fit.SigmaToFWHM(span / 16), fit.SigmaToFWHM(span / 10)}
	}
	if *params != "" {
		var overrides map[string]float64
		if err := json.Unmarshal([]byte(*params), &overrides); err != nil {
			return fmt.Errorf("bad -params JSON: %s", err.Error())
		}
		for i, name := range m.ParamNames() {
			if v, ok := overrides[name]; ok {
				p[i] = v
			}
		}
	}

	ds, err := simulate.Generate(simulate.Config{
		GridSize:      *simSize,
		WavelengthMin: *wMin - span/2, // sample beyond the window on both sides
		WavelengthMax: *wMax + span/2,
		StepSize:      *simStep,
		Model:         m,
		Params:        p,
		NoiseSigma:    *simNoise,
		Seed:          uint32(*simSeed),
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0755); err != nil {
		return err
	}
	fileName := filepath.Join(*out, fmt.Sprintf("synthetic_%s_%dx%d.txt", m, *simSize, *simSize))
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := simulate.WriteTable(f, ds); err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Wrote %d x %d pixel synthetic %s grid with %d wavelength samples to %s\n",
		*simSize, *simSize, m, len(ds.Wavelengths), fileName)
	return nil
}
