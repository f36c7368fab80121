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

package engine

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
)

// Prober reads the current state of a volume. It never mutates.
type Prober struct {
	Log    logr.Logger
	Device blockdevice.VolumeManager
}

// Probe returns the state of volumeGroup/name. A missing volume is
// Exists=false; a missing volume group or any query failure is
// ErrDeviceLayerUnavailable.
func (p *Prober) Probe(ctx context.Context, volumeGroup, name string) (CurrentState, error) {
	vg, err := p.Device.QueryVolumeGroup(ctx, volumeGroup)
	if err != nil {
		return CurrentState{}, fmt.Errorf("%w: %w", ErrDeviceLayerUnavailable, err)
	}

	current := CurrentState{
		ExtentSize:  vg.ExtentSize,
		ExtentCount: vg.ExtentCount,
		FreeExtents: vg.FreeExtents,
	}

	volume, err := p.Device.QueryVolume(ctx, blockdevice.VolumeID{VolumeGroup: volumeGroup, Name: name})
	if err != nil {
		return CurrentState{}, fmt.Errorf("%w: %w", ErrDeviceLayerUnavailable, err)
	}

	if volume == nil {
		p.Log.V(1).Info("Volume not found", "volumeGroup", volumeGroup, "name", name)
		return current, nil
	}

	current.Exists = true
	current.Size = volume.Size
	if vg.ExtentSize > 0 {
		current.Extents = volume.Size / vg.ExtentSize
	}
	current.StripeCount = volume.StripeCount
	current.StripeSize = volume.StripeSize
	current.VolumeType = volume.VolumeType
	current.AllocationPolicy = volume.AllocationPolicy

	return current, nil
}
