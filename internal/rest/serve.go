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

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rkoehler/specmap/internal/hsi"
	"github.com/rkoehler/specmap/internal/massfit"
	"github.com/rkoehler/specmap/internal/ops"
)

func Serve() {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/stats", postStats)
			v1.POST("/fit", postFit)
			v1.POST("/massfit", postMassFit)
		}
	}
	r.Run() // listen and serve on 0.0.0.0:8080
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postArgs struct {
	FileName string        `json:"fileName"`
	Settings *ops.Settings `json:"settings"`
}

// Binds the request, switches the response to streaming plain text, and loads
// the dataset. Returns a nil dataset after reporting when the request cannot
// be served.
func bindAndLoad(c *gin.Context) (ds *hsi.Dataset, sample string, settings *ops.Settings, logWriter io.Writer) {
	var args postArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", nil, nil
	}
	if args.Settings == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing settings"})
		return nil, "", nil, nil
	}
	if !isPathAllowed(args.FileName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file name outside current directory tree"})
		return nil, "", nil, nil
	}

	logWriter = c.Writer
	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain")
	c.Writer.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return nil, "", nil, nil
	}

	ds, err := hsi.Load(args.FileName)
	if err != nil {
		fmt.Fprintf(logWriter, "Error loading %s: %s\n", args.FileName, err.Error())
		return nil, "", nil, nil
	}
	sample = strings.TrimSuffix(filepath.Base(args.FileName), filepath.Ext(args.FileName))
	fmt.Fprintf(logWriter, "Loaded %s: %d x %d pixel grid, %d wavelength samples\n",
		args.FileName, ds.GridSize(), ds.GridSize(), len(ds.Wavelengths))
	return ds, sample, args.Settings, logWriter
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) {
		return false
	}
	if strings.Contains(p, "..") {
		return false
	}
	return true
}

func postStats(c *gin.Context) {
	ds, sample, settings, logWriter := bindAndLoad(c)
	if ds == nil {
		return
	}
	if err := ops.RunStats(ds, sample, settings, logWriter); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	c.Writer.Flush()
}

func postFit(c *gin.Context) {
	ds, sample, settings, logWriter := bindAndLoad(c)
	if ds == nil {
		return
	}
	if _, err := ops.RunFit(ds, sample, settings, logWriter); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	c.Writer.Flush()
}

func postMassFit(c *gin.Context) {
	ds, sample, settings, logWriter := bindAndLoad(c)
	if ds == nil {
		return
	}
	ctx := massfit.NewContext(logWriter)
	if _, err := ops.RunMassFit(ds, sample, settings, ctx); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	c.Writer.Flush()
}
