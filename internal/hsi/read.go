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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Loads a dataset from a delimited instrument export table. Each row holds the
// wavelength in the first column and one intensity value per pixel in the
// remaining columns. Tab, comma and whitespace delimiters are accepted.
// Blank lines and lines starting with '#' are skipped.
func Load(fileName string) (ds *Dataset, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, fileName)
}

// Reads a delimited spectral table from r. The name is used in error messages only.
func Read(r io.Reader, name string) (ds *Dataset, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024) // rows can be wide for large grids

	wavelengths := []float64{}
	columns := [][]float64{} // columns[pixel][sample], filled row by row
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitRow(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s line %d: need at least wavelength and one intensity column, got %d fields",
				name, lineNum, len(fields))
		}
		if len(columns) == 0 {
			columns = make([][]float64, len(fields)-1)
		} else if len(fields)-1 != len(columns) {
			return nil, NewShapeError("%s line %d: %d intensity columns, previous rows had %d",
				name, lineNum, len(fields)-1, len(columns))
		}
		wl, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad wavelength %q: %s", name, lineNum, fields[0], err.Error())
		}
		wavelengths = append(wavelengths, wl)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad intensity %q in column %d: %s",
					name, lineNum, field, i+2, err.Error())
			}
			columns[i] = append(columns[i], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(wavelengths) == 0 {
		return nil, fmt.Errorf("%s: no data rows", name)
	}
	return NewDataset(wavelengths, columns)
}

// Splits a data row on tabs, commas or runs of spaces, whichever the export used
func splitRow(line string) []string {
	if strings.ContainsRune(line, ',') {
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		return fields
	}
	return strings.Fields(line)
}
