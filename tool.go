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

// Package fwg automates morphing EnergyPlus weather (EPW) files with the
// FutureWeatherGenerator tool. It builds the tool's command lines, validates
// the inputs before the tool is run, and renames and organizes the generated
// files according to categories parsed from the input file names.
package fwg

import (
	"fmt"
	"strings"
)

// Version gives the version number.
const Version = "1.0.0"

// Tool describes one variant of the FutureWeatherGenerator program.
type Tool struct {
	// Name is the short name of the tool, e.g. "global".
	Name string

	// ClassPrefix is the Java package holding the Morph and UHI_Morph
	// entry points.
	ClassPrefix string

	// ModelArg is the name of the parameter holding the climate models,
	// "gcms" or "rcm_pairs".
	ModelArg string

	// ScenarioPlaceholder is the output pattern placeholder that holds the
	// scenario name, "ssp" or "rcp".
	ScenarioPlaceholder string

	// Models lists every climate model the tool accepts. It is also the
	// default selection when no models are given.
	Models []string

	Scenarios []string
	Years     []int

	// DefaultOutputDir and DefaultTempDir are used by Morph when
	// no directories are given.
	DefaultOutputDir string
	DefaultTempDir   string
}

// Global is the worldwide tool, driven by CMIP6 global climate models.
var Global = &Tool{
	Name:                "global",
	ClassPrefix:         "futureweathergenerator",
	ModelArg:            "gcms",
	ScenarioPlaceholder: "ssp",
	Models: []string{
		"BCC_CSM2_MR", "CanESM5", "CanESM5_1", "CanESM5_CanOE", "CAS_ESM2_0",
		"CMCC_ESM2", "CNRM_CM6_1", "CNRM_CM6_1_HR", "CNRM_ESM2_1", "EC_Earth3",
		"EC_Earth3_Veg", "EC_Earth3_Veg_LR", "FGOALS_g3", "GFDL_ESM4",
		"GISS_E2_1_G", "GISS_E2_1_H", "GISS_E2_2_G", "IPSL_CM6A_LR",
		"MIROC_ES2H", "MIROC_ES2L", "MIROC6", "MRI_ESM2_0", "UKESM1_0_LL",
	},
	Scenarios:        []string{"ssp126", "ssp245", "ssp370", "ssp585"},
	Years:            []int{2050, 2080},
	DefaultOutputDir: "./morphed_epws",
	DefaultTempDir:   "./morphing_temp_results",
}

// Europe is the European tool, driven by CORDEX GCM/RCM pairs.
var Europe = &Tool{
	Name:                "europe",
	ClassPrefix:         "futureweathergenerator_europe",
	ModelArg:            "rcm_pairs",
	ScenarioPlaceholder: "rcp",
	Models: []string{
		"CNRM_CERFACS_CNRM_CM5_CNRM_ALADIN63",
		"CNRM_CERFACS_CNRM_CM5_DMI_HIRHAM5",
		"CNRM_CERFACS_CNRM_CM5_KNMI_RACMO22E",
		"CNRM_CERFACS_CNRM_CM5_SMHI_RCA4",
		"ICHEC_EC_EARTH_CLMcom_CCLM4_8_17",
		"ICHEC_EC_EARTH_DMI_HIRHAM5",
		"ICHEC_EC_EARTH_KNMI_RACMO22E",
		"ICHEC_EC_EARTH_SMHI_RCA4",
		"IPSL_IPSL_CM5A_MR_IPSL_WRF381P",
		"IPSL_IPSL_CM5A_MR_SMHI_RCA4",
		"MOHC_HadGEM2_ES_CLMcom_CCLM4_8_17",
		"MOHC_HadGEM2_ES_DMI_HIRHAM5",
		"MOHC_HadGEM2_ES_KNMI_RACMO22E",
		"MOHC_HadGEM2_ES_SMHI_RCA4",
		"MPI_M_MPI_ESM_LR_CLMcom_CCLM4_8_17",
		"MPI_M_MPI_ESM_LR_MPI_CSC_REMO2009",
		"MPI_M_MPI_ESM_LR_SMHI_RCA4",
		"NCC_NorESM1_M_DMI_HIRHAM5",
		"NCC_NorESM1_M_SMHI_RCA4",
	},
	Scenarios:        []string{"rcp26", "rcp45", "rcp85"},
	Years:            []int{2050, 2080},
	DefaultOutputDir: "./morphed_epws_europe",
	DefaultTempDir:   "./morphing_temp_results_europe",
}

// Tools lists the available tools.
var Tools = []*Tool{Global, Europe}

// ToolByName returns the tool with the given name, ignoring case.
func ToolByName(name string) (*Tool, error) {
	for _, t := range Tools {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("fwg: invalid tool %q; valid options are 'global' and 'europe'", name)
}

// MorphClass returns the fully qualified Java class of the morphing entry point.
func (t *Tool) MorphClass() string { return t.ClassPrefix + ".Morph" }

// UHIClass returns the fully qualified Java class of the UHI-only entry point.
func (t *Tool) UHIClass() string { return t.ClassPrefix + ".UHI_Morph" }

// ModelParam is the batch column and config key holding the climate models,
// e.g. "fwg_gcms".
func (t *Tool) ModelParam() string { return "fwg_" + t.ModelArg }

// OtherModelParam is the model column of the other tool, which is never
// applicable to t.
func (t *Tool) OtherModelParam() string {
	if t.ModelArg == Global.ModelArg {
		return Europe.ModelParam()
	}
	return Global.ModelParam()
}

// IsModel reports whether m is one of the tool's models.
func (t *Tool) IsModel(m string) bool {
	for _, v := range t.Models {
		if v == m {
			return true
		}
	}
	return false
}

func (t *Tool) String() string { return t.Name }
