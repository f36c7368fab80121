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

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice/lvm"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

var (
	ErrNotFound          = lvm.ErrNotFound
	ErrAlreadyExists     = lvm.ErrAlreadyExists
	ErrInUse             = lvm.ErrInUse
	ErrResourceExhausted = lvm.ErrResourceExhausted
	ErrInvalidInput      = lvm.ErrInvalidInput

	// ErrUnavailable is returned when the storage subsystem cannot be
	// queried at all.
	ErrUnavailable = errors.New("device layer unavailable")
)

// VolumeID names a logical volume within its volume group.
type VolumeID struct {
	VolumeGroup string
	Name        string
}

func (id VolumeID) String() string {
	return id.VolumeGroup + "/" + id.Name
}

// Target is the requested size of a volume. At most one field is set. An
// empty Target at creation takes all free space.
type Target struct {
	Size    *quantity.Size
	Extents *quantity.Extents
	// Bytes is an already normalized size, used for resizes.
	Bytes int64
}

func (t Target) IsEmpty() bool {
	return t.Size == nil && t.Extents == nil && t.Bytes == 0
}

// CreateParams are the settings a volume is created with. Stripe layout,
// allocation policy and volume type cannot be changed afterwards.
type CreateParams struct {
	ID     VolumeID
	Target Target

	// StripeSize is in KiB.
	StripeSize  int
	StripeCount int

	AllocationPolicy string
	VolumeType       string
}

// VolumeState is a logical volume as the device layer reports it.
type VolumeState struct {
	ID VolumeID

	// Size is in bytes.
	Size        int64
	StripeCount int
	// StripeSize is in KiB, zero when unknown or linear.
	StripeSize int

	VolumeType       string
	AllocationPolicy string
}

// VolumeGroupState is the geometry used to normalize sizes.
type VolumeGroupState struct {
	Name string

	// ExtentSize is in bytes.
	ExtentSize  int64
	ExtentCount int64
	FreeExtents int64
}

// Capabilities describe which optional attributes a platform honours.
type Capabilities struct {
	Platform       string
	MaxStripeCount int

	VolumeType       bool
	AllocationPolicy bool
}

// VolumeManager is the device-layer capability the reconciliation engine
// drives. Each mutating call is a single device operation.
type VolumeManager interface {
	Capabilities() Capabilities

	// QueryVolumeGroup fails with ErrNotFound when the group does not exist.
	QueryVolumeGroup(ctx context.Context, vgName string) (*VolumeGroupState, error)

	// QueryVolume returns nil, nil when the volume does not exist.
	QueryVolume(ctx context.Context, id VolumeID) (*VolumeState, error)

	CreateVolume(ctx context.Context, params CreateParams) error
	ExtendVolume(ctx context.Context, id VolumeID, target Target) error
	ReduceVolume(ctx context.Context, id VolumeID, target Target) error
	RemoveVolume(ctx context.Context, id VolumeID) error
}
