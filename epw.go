/*
Copyright © 2025 the fwg authors.
This file is part of fwg.

fwg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

fwg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with fwg.  If not, see <http://www.gnu.org/licenses/>.
*/

package fwg

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Location is the LOCATION header record of an EPW file.
type Location struct {
	City, State, Country string
	Source               string
	WMO                  string
	Latitude, Longitude  float64
	TimeZone             float64
	Elevation            float64
}

// ReadLocation reads the LOCATION record on the first line of the EPW
// file at path. It returns an error if the file is not an EPW file.
func ReadLocation(path string) (*Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return nil, fmt.Errorf("fwg: reading %s: %w", path, err)
		}
		return nil, fmt.Errorf("fwg: %s is empty", path)
	}
	return parseLocation(s.Text())
}

func parseLocation(line string) (*Location, error) {
	fields := strings.Split(strings.TrimPrefix(strings.TrimSpace(line), "\ufeff"), ",")
	if len(fields) < 10 || !strings.EqualFold(strings.TrimSpace(fields[0]), "LOCATION") {
		return nil, fmt.Errorf("fwg: not an EPW file: the first line is not a LOCATION record")
	}
	l := &Location{
		City:    strings.TrimSpace(fields[1]),
		State:   strings.TrimSpace(fields[2]),
		Country: strings.TrimSpace(fields[3]),
		Source:  strings.TrimSpace(fields[4]),
		WMO:     strings.TrimSpace(fields[5]),
	}
	for i, dst := range []*float64{&l.Latitude, &l.Longitude, &l.TimeZone, &l.Elevation} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[6+i]), 64)
		if err != nil {
			return nil, fmt.Errorf("fwg: invalid LOCATION field %d: %w", 6+i+1, err)
		}
		*dst = v
	}
	return l, nil
}
