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

package hash

import "testing"

func TestHash(t *testing.T) {
	type run struct {
		EPW    []string
		Params map[string]interface{}
	}
	a := run{EPW: []string{"a.epw"}, Params: map[string]interface{}{"fwg_gcms": "CanESM5", "fwg_add_uhi": true}}
	b := run{EPW: []string{"a.epw"}, Params: map[string]interface{}{"fwg_add_uhi": true, "fwg_gcms": "CanESM5"}}
	c := run{EPW: []string{"a.epw"}, Params: map[string]interface{}{"fwg_add_uhi": false, "fwg_gcms": "CanESM5"}}

	if Hash(a) != Hash(b) {
		t.Error("map order should not change the hash")
	}
	if Hash(a) == Hash(c) {
		t.Error("different values should have different hashes")
	}
	if len(Hash(a)) != 32 {
		t.Errorf("hash %s should have 32 characters", Hash(a))
	}
	if s := Short(&a, 8); len(s) != 8 || s != Hash(&a)[:8] {
		t.Errorf("short hash %s", s)
	}
}
