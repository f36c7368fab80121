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

package blockdevice

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	mount "k8s.io/mount-utils"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice/lvm"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

// DefaultMaxStripeCount is the lvm2 stripe limit.
const DefaultMaxStripeCount = 128

// Lvm drives Linux LVM2 through the lvm client.
type Lvm struct {
	Log    logr.Logger
	Client *lvm.Client

	// Mounter is consulted before destructive operations. Nil skips the
	// mount table check.
	Mounter mount.Interface

	MaxStripeCount int

	// WaitForDevice waits for the /dev/<vg>/<lv> node after a create.
	WaitForDevice bool
}

// Check that Lvm implements the VolumeManager interface
var _ VolumeManager = &Lvm{}

// NewLvm returns an Lvm that checks the host mount table.
func NewLvm(log logr.Logger, client *lvm.Client) *Lvm {
	return &Lvm{
		Log:            log,
		Client:         client,
		Mounter:        mount.New(""),
		MaxStripeCount: DefaultMaxStripeCount,
	}
}

func (l *Lvm) Capabilities() Capabilities {
	maxStripes := l.MaxStripeCount
	if maxStripes == 0 {
		maxStripes = DefaultMaxStripeCount
	}

	return Capabilities{
		Platform:       "linux",
		MaxStripeCount: maxStripes,
		VolumeType:     true,
		// lvm2 has --alloc, but not the maximum/minimum range policy.
		AllocationPolicy: false,
	}
}

func (l *Lvm) QueryVolumeGroup(ctx context.Context, vgName string) (*VolumeGroupState, error) {
	vg, err := l.Client.GetVolumeGroup(ctx, vgName)
	if err != nil {
		return nil, err
	}

	return &VolumeGroupState{
		Name:        vg.Name,
		ExtentSize:  vg.ExtentSize,
		ExtentCount: vg.ExtentCount,
		FreeExtents: vg.FreeExtents,
	}, nil
}

func (l *Lvm) QueryVolume(ctx context.Context, id VolumeID) (*VolumeState, error) {
	lv, err := l.getLogicalVolume(ctx, id)
	if err != nil || lv == nil {
		return nil, err
	}

	state := &VolumeState{
		ID:          id,
		Size:        lv.Size,
		StripeCount: lv.Stripes,
		StripeSize:  int(lv.StripeSize / quantity.KiB),
		VolumeType:  lv.SegType,
	}

	return state, nil
}

// getLogicalVolume returns nil, nil when the volume group exists but the
// volume does not.
func (l *Lvm) getLogicalVolume(ctx context.Context, id VolumeID) (*lvm.LogicalVolume, error) {
	lvs, err := l.Client.ListLogicalVolumes(ctx, id.VolumeGroup)
	if err != nil {
		return nil, err
	}

	for _, lv := range lvs {
		if lv.Name == id.Name && lv.VGName == id.VolumeGroup {
			return lv, nil
		}
	}

	return nil, nil
}

func (l *Lvm) CreateVolume(ctx context.Context, params CreateParams) error {
	opts := lvm.CreateOptions{
		Target: lvmTarget(params.Target),
		Type:   params.VolumeType,
	}

	if params.StripeCount > 0 {
		opts.Stripes = params.StripeCount
		opts.StripeSizeKiB = params.StripeSize
	}

	if err := l.Client.CreateLogicalVolume(ctx, params.ID.VolumeGroup, params.ID.Name, opts); err != nil {
		return err
	}

	l.Log.Info("Created logical volume", "volume", params.ID.String())

	if l.WaitForDevice {
		return lvm.WaitForDevice(ctx, params.ID.VolumeGroup, params.ID.Name)
	}

	return nil
}

func (l *Lvm) ExtendVolume(ctx context.Context, id VolumeID, target Target) error {
	if err := l.Client.ExtendLogicalVolume(ctx, id.VolumeGroup, id.Name, lvmTarget(target)); err != nil {
		return err
	}

	l.Log.Info("Extended logical volume", "volume", id.String())
	return nil
}

func (l *Lvm) ReduceVolume(ctx context.Context, id VolumeID, target Target) error {
	if err := l.checkNotBusy(ctx, id); err != nil {
		return err
	}

	if err := l.Client.ReduceLogicalVolume(ctx, id.VolumeGroup, id.Name, lvmTarget(target)); err != nil {
		return err
	}

	l.Log.Info("Reduced logical volume", "volume", id.String())
	return nil
}

func (l *Lvm) RemoveVolume(ctx context.Context, id VolumeID) error {
	if err := l.checkNotBusy(ctx, id); err != nil {
		return err
	}

	if err := l.Client.RemoveLogicalVolume(ctx, id.VolumeGroup, id.Name); err != nil {
		return err
	}

	l.Log.Info("Removed logical volume", "volume", id.String())
	return nil
}

// checkNotBusy fails with ErrInUse when the volume is mounted or held open.
func (l *Lvm) checkNotBusy(ctx context.Context, id VolumeID) error {
	if l.Mounter != nil {
		mounts, err := l.Mounter.List()
		if err != nil {
			return fmt.Errorf("could not list mounts: %w", err)
		}

		devicePath := lvm.DevicePath(id.VolumeGroup, id.Name)
		mapperPath := lvm.MapperPath(id.VolumeGroup, id.Name)
		for _, m := range mounts {
			if m.Device == devicePath || m.Device == mapperPath {
				return fmt.Errorf("%w: %s is mounted at %s", ErrInUse, id, m.Path)
			}
		}
	}

	lv, err := l.getLogicalVolume(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if lv != nil && lv.Open() {
		return fmt.Errorf("%w: %s is open", ErrInUse, id)
	}

	return nil
}

func lvmTarget(t Target) lvm.Target {
	switch {
	case t.Size != nil:
		return lvm.Target{Size: t.Size.String()}
	case t.Extents != nil:
		return lvm.Target{Extents: t.Extents.String()}
	case t.Bytes > 0:
		return lvm.Target{Size: fmt.Sprintf("%db", t.Bytes)}
	}

	return lvm.Target{}
}
