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

// Package lvspec turns a raw logical volume record into a validated
// DesiredState. Every rule lives here so the invariants are enforced in one
// place, before the reconciliation engine touches the device layer.
package lvspec

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

// Ensure is the desired lifecycle state of a logical volume.
type Ensure string

const (
	// EnsurePresent creates the volume if missing and converges an explicit
	// size or extents target.
	EnsurePresent Ensure = "present"

	// EnsureAbsent removes the volume if it exists.
	EnsureAbsent Ensure = "absent"

	// EnsureExact behaves like EnsurePresent, and additionally treats an
	// unset size and extents as "fill the volume group" on every pass.
	EnsureExact Ensure = "exact"
)

// Allocation policies. These map to the inter-physical volume range policy
// on platforms that support it.
const (
	AllocationMaximum = "maximum"
	AllocationMinimum = "minimum"
)

// Field names used in InvalidSpecError.
const (
	FieldName             = "name"
	FieldVolumeGroup      = "volumeGroup"
	FieldSize             = "size"
	FieldInitialSize      = "initialSize"
	FieldExtents          = "extents"
	FieldStripeSize       = "stripeSize"
	FieldStripeCount      = "stripeCount"
	FieldAllocationPolicy = "allocationPolicy"
	FieldVolumeType       = "volumeType"
	FieldEnsure           = "ensure"
)

// VolumeTypePattern is the accepted form of a volume type, e.g. "linear",
// "raid1" or "thin-pool". The value reaches the lvcreate command line.
const VolumeTypePattern = `^[a-z][a-z0-9_-]*$`

var volumeTypeRegexp = regexp.MustCompile(VolumeTypePattern)

// Record is the raw, unvalidated request. Every value is kept as written;
// an empty string means the attribute was not given.
type Record struct {
	Name             string
	VolumeGroup      string
	Ensure           string
	Size             string
	InitialSize      string
	Extents          string
	StripeSize       string
	StripeCount      string
	AllocationPolicy string
	VolumeType       string
}

// Limits carries platform-reported bounds the validator needs.
type Limits struct {
	// MaxStripeCount is the largest stripe count the platform accepts.
	MaxStripeCount int
}

// DesiredState is a validated request. Optional attributes are nil or zero
// when unset.
type DesiredState struct {
	Name        string
	VolumeGroup string
	Ensure      Ensure

	Size        *quantity.Size
	Extents     *quantity.Extents
	InitialSize *quantity.Size

	// StripeSize is in KiB. Zero means unset.
	StripeSize int
	// StripeCount of zero means unset.
	StripeCount int

	AllocationPolicy string
	VolumeType       string
}

// InvalidSpecError reports the first field that failed validation.
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, a ...interface{}) error {
	return &InvalidSpecError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// Validate checks every field of rec and returns the typed DesiredState.
func Validate(rec Record, limits Limits) (DesiredState, error) {
	d := DesiredState{
		Name:             rec.Name,
		VolumeGroup:      rec.VolumeGroup,
		AllocationPolicy: rec.AllocationPolicy,
		VolumeType:       rec.VolumeType,
	}

	if err := validateName(rec.Name); err != nil {
		return DesiredState{}, err
	}

	if len(rec.VolumeGroup) == 0 {
		return DesiredState{}, invalid(FieldVolumeGroup, "a volume group is required")
	}

	switch Ensure(rec.Ensure) {
	case "", EnsurePresent:
		d.Ensure = EnsurePresent
	case EnsureAbsent, EnsureExact:
		d.Ensure = Ensure(rec.Ensure)
	default:
		return DesiredState{}, invalid(FieldEnsure, "%s is not one of present, absent, exact", rec.Ensure)
	}

	if len(rec.Size) != 0 {
		size, err := quantity.ParseSize(rec.Size)
		if err != nil {
			return DesiredState{}, invalid(FieldSize, "%s is not a valid logical volume size", rec.Size)
		}
		d.Size = &size
	}

	if len(rec.InitialSize) != 0 {
		size, err := quantity.ParseSize(rec.InitialSize)
		if err != nil {
			return DesiredState{}, invalid(FieldInitialSize, "%s is not a valid logical volume size", rec.InitialSize)
		}
		d.InitialSize = &size
	}

	if len(rec.Extents) != 0 {
		extents, err := quantity.ParseExtents(rec.Extents)
		if err != nil {
			return DesiredState{}, invalid(FieldExtents, "%s is not a valid logical volume extent", rec.Extents)
		}
		d.Extents = &extents
	}

	if len(rec.StripeSize) != 0 {
		stripeSize, err := quantity.ParseStripeSize(rec.StripeSize)
		if err != nil {
			return DesiredState{}, invalid(FieldStripeSize, "%s is not a valid number stripe size", rec.StripeSize)
		}
		d.StripeSize = stripeSize
	}

	if len(rec.StripeCount) != 0 {
		if d.StripeSize == 0 {
			return DesiredState{}, invalid(FieldStripeCount, "stripe count requires a stripe size")
		}

		count, err := strconv.Atoi(rec.StripeCount)
		if err != nil || count < 2 || count > limits.MaxStripeCount {
			return DesiredState{}, invalid(FieldStripeCount, "%s is not a valid number of physical volumes (2-%d)", rec.StripeCount, limits.MaxStripeCount)
		}
		d.StripeCount = count
	}

	if len(rec.AllocationPolicy) != 0 && rec.AllocationPolicy != AllocationMaximum && rec.AllocationPolicy != AllocationMinimum {
		return DesiredState{}, invalid(FieldAllocationPolicy, "%s is not a valid range", rec.AllocationPolicy)
	}

	if len(rec.VolumeType) != 0 && !volumeTypeRegexp.MatchString(rec.VolumeType) {
		return DesiredState{}, invalid(FieldVolumeType, "%q is not a valid volume type", rec.VolumeType)
	}

	if err := CheckInvariants(d); err != nil {
		return DesiredState{}, err
	}

	return d, nil
}

// CheckInvariants runs the cross-field rules over an already typed
// DesiredState. Validate calls it last; the engine calls it again for
// states that did not come through Validate.
func CheckInvariants(d DesiredState) error {
	if err := validateName(d.Name); err != nil {
		return err
	}

	if len(d.VolumeGroup) == 0 {
		return invalid(FieldVolumeGroup, "a volume group is required")
	}

	if d.Size != nil && d.Extents != nil {
		return invalid(FieldExtents, "size and extents are mutually exclusive")
	}

	if d.Extents != nil {
		if d.Extents.Count <= 0 {
			return invalid(FieldExtents, "%s must be positive", d.Extents)
		}
		if d.Extents.IsPercent() && d.Extents.Basis != quantity.BasisOrigin && d.Extents.Count > 100 {
			return invalid(FieldExtents, "%s exceeds 100%%", d.Extents)
		}
	}

	if d.StripeCount != 0 && d.StripeSize == 0 {
		return invalid(FieldStripeCount, "stripe count requires a stripe size")
	}

	if len(d.VolumeType) != 0 && !volumeTypeRegexp.MatchString(d.VolumeType) {
		return invalid(FieldVolumeType, "%q is not a valid volume type", d.VolumeType)
	}

	switch d.Ensure {
	case EnsurePresent, EnsureAbsent, EnsureExact:
	default:
		return invalid(FieldEnsure, "%q is not one of present, absent, exact", d.Ensure)
	}

	return nil
}

func validateName(name string) error {
	if len(name) == 0 {
		return invalid(FieldName, "a volume name is required")
	}

	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		return invalid(FieldName, "volume names must be entirely unqualified")
	}

	return nil
}

// CreationTarget returns the quantity used when creating the volume:
// InitialSize wins over Size, which wins over Extents. All nil means use
// all free space.
func (d DesiredState) CreationTarget() (*quantity.Size, *quantity.Extents) {
	if d.InitialSize != nil {
		return d.InitialSize, nil
	}

	if d.Size != nil {
		return d.Size, nil
	}

	return nil, d.Extents
}

// String renders the volume as vg/lv for logs.
func (d DesiredState) String() string {
	return d.VolumeGroup + "/" + d.Name
}
