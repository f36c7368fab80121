/*
 * Copyright 2026 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lvm

import (
	"context"
	"encoding/json"
	"fmt"
)

const vgsTemplate = "vgs --reportformat json --units b --nosuffix --options vg_name,vg_extent_size,vg_extent_count,vg_free_count,pv_count $VG_NAME"

type vgsOutput struct {
	Report []vgsReport `json:"report"`
}

type vgsReport struct {
	VG []vgsVolumeGroup `json:"vg"`
}

type vgsVolumeGroup struct {
	Name        string `json:"vg_name"`
	ExtentSize  string `json:"vg_extent_size"`
	ExtentCount string `json:"vg_extent_count"`
	FreeCount   string `json:"vg_free_count"`
	PVCount     string `json:"pv_count"`
}

// VolumeGroup is the geometry of a volume group as reported by vgs.
type VolumeGroup struct {
	Name string

	// ExtentSize is in bytes.
	ExtentSize  int64
	ExtentCount int64
	FreeExtents int64
	PVCount     int
}

// GetVolumeGroup returns the named volume group, or an error wrapping
// ErrNotFound.
func (c *Client) GetVolumeGroup(ctx context.Context, vgName string) (*VolumeGroup, error) {
	if err := validateNames(vgName); err != nil {
		return nil, err
	}

	output, err := c.exec(ctx, vgsTemplate, map[string]string{"$VG_NAME": vgName})
	if err != nil {
		return nil, fmt.Errorf("could not list volume group %s: %w", vgName, err)
	}

	vgs, err := parseVgs(output)
	if err != nil {
		return nil, err
	}

	for _, vg := range vgs {
		if vg.Name == vgName {
			return vg, nil
		}
	}

	return nil, fmt.Errorf("volume group %s: %w", vgName, ErrNotFound)
}

func parseVgs(output string) ([]*VolumeGroup, error) {
	vgsOutput := vgsOutput{}

	if err := json.Unmarshal([]byte(output), &vgsOutput); err != nil {
		return nil, fmt.Errorf("could not parse vgs output: %w", err)
	}

	// If there are multiple reports, combine all the volume groups into a single list
	volumeGroups := []*VolumeGroup{}
	for _, report := range vgsOutput.Report {
		for _, raw := range report.VG {
			vg := &VolumeGroup{Name: raw.Name}

			var err error
			if vg.ExtentSize, err = parseInt("vg_extent_size", raw.ExtentSize); err != nil {
				return nil, err
			}
			if vg.ExtentCount, err = parseInt("vg_extent_count", raw.ExtentCount); err != nil {
				return nil, err
			}
			if vg.FreeExtents, err = parseInt("vg_free_count", raw.FreeCount); err != nil {
				return nil, err
			}
			pvCount, err := parseInt("pv_count", raw.PVCount)
			if err != nil {
				return nil, err
			}
			vg.PVCount = int(pvCount)

			volumeGroups = append(volumeGroups, vg)
		}
	}

	return volumeGroups, nil
}
