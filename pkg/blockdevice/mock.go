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
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

// Mock operation names, used as keys for injected errors.
const (
	MockOpQueryVolumeGroup = "QueryVolumeGroup"
	MockOpQueryVolume      = "QueryVolume"
	MockOpCreate           = "CreateVolume"
	MockOpExtend           = "ExtendVolume"
	MockOpReduce           = "ReduceVolume"
	MockOpRemove           = "RemoveVolume"
)

// MockExtentSize is the extent size of mock volume groups.
const MockExtentSize = 4 * quantity.MiB

// MockVolumeManager keeps volume groups and volumes in memory. Sizes are
// rounded to whole extents and free space is accounted for, so a volume
// converged through it reads back converged.
type MockVolumeManager struct {
	Log  logr.Logger
	Caps Capabilities

	mutex   sync.Mutex
	groups  map[string]*VolumeGroupState
	volumes map[VolumeID]*VolumeState
	errors  map[string]error
	calls   []string
}

// Check that Mock implements the VolumeManager interface
var _ VolumeManager = &MockVolumeManager{}

func NewMockVolumeManager(log logr.Logger) *MockVolumeManager {
	return &MockVolumeManager{
		Log: log,
		Caps: Capabilities{
			Platform:       "mock",
			MaxStripeCount: DefaultMaxStripeCount,
			VolumeType:     true,
		},
		groups:  map[string]*VolumeGroupState{},
		volumes: map[VolumeID]*VolumeState{},
		errors:  map[string]error{},
	}
}

// AddVolumeGroup adds an empty volume group of the given size in bytes.
func (m *MockVolumeManager) AddVolumeGroup(name string, bytes int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	extents := bytes / MockExtentSize
	m.groups[name] = &VolumeGroupState{
		Name:        name,
		ExtentSize:  MockExtentSize,
		ExtentCount: extents,
		FreeExtents: extents,
	}
}

// AddVolume places an existing volume, bypassing CreateVolume.
func (m *MockVolumeManager) AddVolume(state VolumeState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	vg, found := m.groups[state.ID.VolumeGroup]
	if !found {
		return fmt.Errorf("volume group %s: %w", state.ID.VolumeGroup, ErrNotFound)
	}

	extents := quantity.RoundUpToExtent(state.Size, vg.ExtentSize) / vg.ExtentSize
	if extents > vg.FreeExtents {
		return fmt.Errorf("%w: %d extents needed, but only %d available", ErrResourceExhausted, extents, vg.FreeExtents)
	}

	vg.FreeExtents -= extents
	state.Size = extents * vg.ExtentSize
	m.volumes[state.ID] = &state
	return nil
}

// SetError makes the named operation fail with err until cleared with nil.
func (m *MockVolumeManager) SetError(op string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err == nil {
		delete(m.errors, op)
		return
	}
	m.errors[op] = err
}

// Calls lists the mutating operations performed, in order.
func (m *MockVolumeManager) Calls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]string{}, m.calls...)
}

func (m *MockVolumeManager) Capabilities() Capabilities {
	return m.Caps
}

func (m *MockVolumeManager) QueryVolumeGroup(ctx context.Context, vgName string) (*VolumeGroupState, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.errors[MockOpQueryVolumeGroup]; err != nil {
		return nil, err
	}

	vg, found := m.groups[vgName]
	if !found {
		return nil, fmt.Errorf("volume group %s: %w", vgName, ErrNotFound)
	}

	copied := *vg
	return &copied, nil
}

func (m *MockVolumeManager) QueryVolume(ctx context.Context, id VolumeID) (*VolumeState, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.errors[MockOpQueryVolume]; err != nil {
		return nil, err
	}

	if _, found := m.groups[id.VolumeGroup]; !found {
		return nil, fmt.Errorf("volume group %s: %w", id.VolumeGroup, ErrNotFound)
	}

	volume, found := m.volumes[id]
	if !found {
		return nil, nil
	}

	copied := *volume
	return &copied, nil
}

func (m *MockVolumeManager) CreateVolume(ctx context.Context, params CreateParams) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls = append(m.calls, MockOpCreate+" "+params.ID.String())
	if err := m.errors[MockOpCreate]; err != nil {
		return err
	}

	vg, found := m.groups[params.ID.VolumeGroup]
	if !found {
		return fmt.Errorf("volume group %s: %w", params.ID.VolumeGroup, ErrNotFound)
	}

	if _, found := m.volumes[params.ID]; found {
		return fmt.Errorf("logical volume %s: %w", params.ID, ErrAlreadyExists)
	}

	extents, err := m.extentsFor(vg, nil, params.Target)
	if err != nil {
		return err
	}
	if params.Target.IsEmpty() {
		extents = vg.FreeExtents
	}
	extents = alignToStripes(extents, params.StripeCount, fillsFreeSpace(params.Target))

	if extents <= 0 || extents > vg.FreeExtents {
		return fmt.Errorf("%w: %d extents needed, but only %d available", ErrResourceExhausted, extents, vg.FreeExtents)
	}

	// lvm ignores the stripe size of a single stripe.
	stripeSize := params.StripeSize
	if params.StripeCount <= 1 {
		stripeSize = 0
	}

	vg.FreeExtents -= extents
	m.volumes[params.ID] = &VolumeState{
		ID:               params.ID,
		Size:             extents * vg.ExtentSize,
		StripeCount:      params.StripeCount,
		StripeSize:       stripeSize,
		VolumeType:       params.VolumeType,
		AllocationPolicy: params.AllocationPolicy,
	}

	m.Log.Info("Created mock logical volume", "volume", params.ID.String(), "extents", extents)
	return nil
}

func (m *MockVolumeManager) ExtendVolume(ctx context.Context, id VolumeID, target Target) error {
	return m.resize(MockOpExtend, id, target, true)
}

func (m *MockVolumeManager) ReduceVolume(ctx context.Context, id VolumeID, target Target) error {
	return m.resize(MockOpReduce, id, target, false)
}

func (m *MockVolumeManager) resize(op string, id VolumeID, target Target, grow bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls = append(m.calls, op+" "+id.String())
	if err := m.errors[op]; err != nil {
		return err
	}

	vg, found := m.groups[id.VolumeGroup]
	if !found {
		return fmt.Errorf("volume group %s: %w", id.VolumeGroup, ErrNotFound)
	}

	volume, found := m.volumes[id]
	if !found {
		return fmt.Errorf("logical volume %s: %w", id, ErrNotFound)
	}

	if target.IsEmpty() {
		return fmt.Errorf("%w: resize requires a size or extents", ErrInvalidInput)
	}

	extents, err := m.extentsFor(vg, volume, target)
	if err != nil {
		return err
	}
	extents = alignToStripes(extents, volume.StripeCount, fillsFreeSpace(target))

	current := volume.Size / vg.ExtentSize
	switch {
	case grow && extents <= current:
		return fmt.Errorf("%w: new size is not larger than %d extents", ErrInvalidInput, current)
	case !grow && extents >= current:
		return fmt.Errorf("%w: new size is not smaller than %d extents", ErrInvalidInput, current)
	case extents <= 0:
		return fmt.Errorf("%w: cannot reduce to zero extents", ErrInvalidInput)
	case extents-current > vg.FreeExtents:
		return fmt.Errorf("%w: %d extents needed, but only %d available", ErrResourceExhausted, extents-current, vg.FreeExtents)
	}

	vg.FreeExtents -= extents - current
	volume.Size = extents * vg.ExtentSize

	m.Log.Info("Resized mock logical volume", "volume", id.String(), "extents", extents)
	return nil
}

func (m *MockVolumeManager) RemoveVolume(ctx context.Context, id VolumeID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls = append(m.calls, MockOpRemove+" "+id.String())
	if err := m.errors[MockOpRemove]; err != nil {
		return err
	}

	volume, found := m.volumes[id]
	if !found {
		return fmt.Errorf("logical volume %s: %w", id, ErrNotFound)
	}

	if vg, found := m.groups[id.VolumeGroup]; found {
		vg.FreeExtents += volume.Size / vg.ExtentSize
	}
	delete(m.volumes, id)

	m.Log.Info("Removed mock logical volume", "volume", id.String())
	return nil
}

// extentsFor converts a target into an absolute extent count, the way
// lvcreate and lvextend would.
func (m *MockVolumeManager) extentsFor(vg *VolumeGroupState, volume *VolumeState, target Target) (int64, error) {
	switch {
	case target.Size != nil:
		bytes, err := target.Size.Bytes()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return quantity.RoundUpToExtent(bytes, vg.ExtentSize) / vg.ExtentSize, nil
	case target.Bytes > 0:
		return quantity.RoundUpToExtent(target.Bytes, vg.ExtentSize) / vg.ExtentSize, nil
	case target.Extents != nil:
		var total int64
		switch target.Extents.Basis {
		case quantity.BasisVG, quantity.BasisPVS:
			total = vg.ExtentCount
		case quantity.BasisFree:
			total = vg.FreeExtents
			if volume != nil {
				// lvextend takes %FREE on top of the current size.
				return volume.Size/vg.ExtentSize + target.Extents.Resolve(total), nil
			}
		case quantity.BasisOrigin:
			return 0, fmt.Errorf("%w: %%ORIGIN applies only to snapshots", ErrInvalidInput)
		}
		return target.Extents.Resolve(total), nil
	}

	return 0, nil
}

// alignToStripes rounds an extent count to a multiple of the stripe count,
// as lvm does for striped volumes. Requests for free space round down.
func alignToStripes(extents int64, stripes int, down bool) int64 {
	if stripes <= 1 {
		return extents
	}

	remainder := extents % int64(stripes)
	switch {
	case remainder == 0:
		return extents
	case down:
		return extents - remainder
	}
	return extents + int64(stripes) - remainder
}

func fillsFreeSpace(target Target) bool {
	return target.IsEmpty() || (target.Extents != nil && target.Extents.Basis == quantity.BasisFree)
}
