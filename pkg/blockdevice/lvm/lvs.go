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

// stripes and stripe_size are segment fields, so lvs prints one row per
// segment. The rows are folded back into one LogicalVolume per name.
const lvsTemplate = "lvs --reportformat json --units b --nosuffix --options lv_name,vg_name,lv_attr,lv_size,segtype,stripes,stripe_size $VG_NAME"

type lvsOutput struct {
	Report []lvsReport `json:"report"`
}

type lvsReport struct {
	LV []lvsLogicalVolume `json:"lv"`
}

type lvsLogicalVolume struct {
	Name       string `json:"lv_name"`
	VGName     string `json:"vg_name"`
	Attrs      string `json:"lv_attr"`
	Size       string `json:"lv_size"`
	SegType    string `json:"segtype"`
	Stripes    string `json:"stripes"`
	StripeSize string `json:"stripe_size"`
}

// LogicalVolume is a logical volume as reported by lvs.
type LogicalVolume struct {
	Name   string
	VGName string
	Attrs  string

	// Size is in bytes.
	Size    int64
	SegType string
	Stripes int
	// StripeSize is in bytes; zero for linear volumes.
	StripeSize int64
}

// Active reports whether the lv_attr state bit is 'a'.
func (lv *LogicalVolume) Active() bool {
	return len(lv.Attrs) > 4 && lv.Attrs[4] == 'a'
}

// Open reports whether the lv_attr device bit is 'o', i.e. something holds
// the device open.
func (lv *LogicalVolume) Open() bool {
	return len(lv.Attrs) > 5 && lv.Attrs[5] == 'o'
}

// ListLogicalVolumes lists the logical volumes in a volume group.
func (c *Client) ListLogicalVolumes(ctx context.Context, vgName string) ([]*LogicalVolume, error) {
	if err := validateNames(vgName); err != nil {
		return nil, err
	}

	output, err := c.exec(ctx, lvsTemplate, map[string]string{"$VG_NAME": vgName})
	if err != nil {
		return nil, fmt.Errorf("could not list logical volumes in %s: %w", vgName, err)
	}

	return parseLvs(output)
}

// GetLogicalVolume returns the named volume, or an error wrapping
// ErrNotFound when the volume group has no such volume.
func (c *Client) GetLogicalVolume(ctx context.Context, vgName, lvName string) (*LogicalVolume, error) {
	if err := validateNames(lvName); err != nil {
		return nil, err
	}

	lvs, err := c.ListLogicalVolumes(ctx, vgName)
	if err != nil {
		return nil, err
	}

	for _, lv := range lvs {
		if lv.Name == lvName && lv.VGName == vgName {
			return lv, nil
		}
	}

	return nil, fmt.Errorf("logical volume %s/%s: %w", vgName, lvName, ErrNotFound)
}

func parseLvs(output string) ([]*LogicalVolume, error) {
	lvsOutput := lvsOutput{}

	if err := json.Unmarshal([]byte(output), &lvsOutput); err != nil {
		return nil, fmt.Errorf("could not parse lvs output: %w", err)
	}

	logicalVolumes := []*LogicalVolume{}
	byName := map[string]*LogicalVolume{}

	for _, report := range lvsOutput.Report {
		for _, raw := range report.LV {
			key := raw.VGName + "/" + raw.Name
			if _, seen := byName[key]; seen {
				continue
			}

			lv := &LogicalVolume{
				Name:    raw.Name,
				VGName:  raw.VGName,
				Attrs:   raw.Attrs,
				SegType: raw.SegType,
			}

			var err error
			if lv.Size, err = parseInt("lv_size", raw.Size); err != nil {
				return nil, err
			}
			if lv.StripeSize, err = parseInt("stripe_size", raw.StripeSize); err != nil {
				return nil, err
			}
			stripes, err := parseInt("stripes", raw.Stripes)
			if err != nil {
				return nil, err
			}
			lv.Stripes = int(stripes)

			byName[key] = lv
			logicalVolumes = append(logicalVolumes, lv)
		}
	}

	return logicalVolumes, nil
}
