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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio/v2"
)

// ManifestName is the file in each output directory that records which
// source file each output came from.
const ManifestName = "fwg_manifest.toml"

// Manifest lists the outputs written to a directory.
type Manifest struct {
	Tool    string           `toml:"tool"`
	Updated time.Time        `toml:"updated"`
	Records []ManifestRecord `toml:"record"`
}

// ManifestRecord holds the outputs generated from one source file.
type ManifestRecord struct {
	Source     string            `toml:"source"`
	Categories map[string]string `toml:"categories"`
	Outputs    []string          `toml:"outputs"`
}

// ReadManifest reads the manifest in dir. A missing manifest is empty.
func ReadManifest(dir string) (*Manifest, error) {
	m := new(Manifest)
	path := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return m, nil
	}
	if _, err := toml.DecodeFile(path, m); err != nil {
		return nil, fmt.Errorf("fwg: reading manifest: %w", err)
	}
	return m, nil
}

// UpdateManifest adds records to the manifest in dir, replacing earlier
// records of the same source files. The file is replaced atomically.
func UpdateManifest(dir string, tool *Tool, now time.Time, records []ManifestRecord) error {
	m, err := ReadManifest(dir)
	if err != nil {
		return err
	}
	replaced := make(map[string]bool, len(records))
	for _, r := range records {
		replaced[r.Source] = true
	}
	var keep []ManifestRecord
	for _, r := range m.Records {
		if !replaced[r.Source] {
			keep = append(keep, r)
		}
	}
	m.Records = append(keep, records...)
	sort.SliceStable(m.Records, func(i, j int) bool { return m.Records[i].Source < m.Records[j].Source })
	m.Tool = tool.Name
	m.Updated = now.UTC()

	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(m); err != nil {
		return fmt.Errorf("fwg: encoding manifest: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, ManifestName), b.Bytes(), 0644); err != nil {
		return fmt.Errorf("fwg: writing manifest: %w", err)
	}
	return nil
}
