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

package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dsanchez-garcia/fwg"
	"github.com/spf13/cast"
	"github.com/tealeg/xlsx"
)

// Plan is the detailed table of runs: the run cells after defaults, with
// the categories found in each run's files in "cat_<key>" columns.
type Plan struct {
	Columns []string
	Rows    []Row
}

func newPlan(tool *fwg.Tool, rows []Row, cats []map[string]map[string]bool, keys []string) *Plan {
	present := map[string]bool{ColEPWPaths: true, ColInputPattern: true, ColKeywordMapping: true}
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	var cols []string
	for _, c := range Columns(tool) {
		if present[c] {
			cols = append(cols, c)
			delete(present, c)
		}
	}
	cols = append(cols, sortedKeys(present)...)

	var catCols []string
	for _, k := range keys {
		catCols = append(catCols, CatPrefix+k)
	}
	pos := 1
	for i, c := range cols {
		if c == ColKeywordMapping {
			pos = i + 1
			break
		}
	}
	p := &Plan{Columns: append(append(append([]string{}, cols[:pos]...), catCols...), cols[pos:]...)}
	for i, r := range rows {
		pr := make(Row, len(r)+len(keys))
		for k, v := range r {
			pr[k] = v
		}
		for _, k := range keys {
			pr[CatPrefix+k] = sortedKeys(cats[i][k])
		}
		p.Rows = append(p.Rows, pr)
	}
	return p
}

// Records returns the plan as text cells, starting with the header.
func (p *Plan) Records() [][]string {
	o := [][]string{p.Columns}
	for _, r := range p.Rows {
		rec := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			rec[i] = FormatCell(r[c])
		}
		o = append(o, rec)
	}
	return o
}

// Write saves the plan to path, as a spreadsheet when path ends in ".xlsx"
// and as CSV otherwise. A written plan can be edited and loaded again
// with LoadRuns; its category columns are ignored.
func (p *Plan) Write(path string) error {
	return writeTable(path, p.Records())
}

// FormatCell renders a cell value as text. Lists are written as
// "[a, b]" and maps as JSON.
func FormatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	case fwg.KeywordMapping:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]string, map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// WriteTemplate writes an empty run table for tool to path.
func WriteTemplate(path string, tool *fwg.Tool) error {
	return writeTable(path, [][]string{Columns(tool)})
}

// LoadRuns reads a run table from a ".xlsx" or ".csv" file. The first row
// holds the column names. Empty rows are skipped, and empty cells are
// left out of each run.
func LoadRuns(path string) ([]Row, error) {
	recs, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("batch: %s has no header row", path)
	}
	header := make([]string, len(recs[0]))
	for i, h := range recs[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	var runs []Row
	for _, rec := range recs[1:] {
		r := make(Row)
		for i, v := range rec {
			if i >= len(header) || header[i] == "" || strings.HasPrefix(header[i], CatPrefix) {
				continue
			}
			if isEmpty(v) {
				continue
			}
			r[header[i]] = strings.TrimSpace(v)
		}
		if len(r) > 0 {
			runs = append(runs, r)
		}
	}
	return runs, nil
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

func writeTable(path string, recs [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}
	if isXLSX(path) {
		f := xlsx.NewFile()
		sheet, err := f.AddSheet("runs")
		if err != nil {
			return fmt.Errorf("batch: %w", err)
		}
		for _, rec := range recs {
			row := sheet.AddRow()
			for _, v := range rec {
				row.AddCell().SetString(v)
			}
		}
		if err := f.Save(path); err != nil {
			return fmt.Errorf("batch: writing %s: %w", path, err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(recs); err != nil {
		f.Close()
		return fmt.Errorf("batch: writing %s: %w", path, err)
	}
	return f.Close()
}

func readTable(path string) ([][]string, error) {
	if isXLSX(path) {
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("batch: opening %s: %w", path, err)
		}
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("batch: %s has no sheets", path)
		}
		var recs [][]string
		for _, row := range f.Sheets[0].Rows {
			rec := make([]string, len(row.Cells))
			for i, c := range row.Cells {
				rec[i] = c.Value
			}
			recs = append(recs, rec)
		}
		return recs, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("batch: reading %s: %w", path, err)
	}
	return recs, nil
}
