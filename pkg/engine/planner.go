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
	"fmt"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

// NoOp reasons.
const (
	ReasonAlreadyAbsent    = "already absent"
	ReasonAlreadyConverged = "already converged"
	ReasonNoSizeRequested  = "no size requested"
	ReasonSizeNotEvaluated = "size not re-evaluated"
)

// Plan diffs desired against current and returns the actions that converge
// them. It does no I/O.
func Plan(desired lvspec.DesiredState, current CurrentState) ([]Action, error) {
	if desired.Size != nil && desired.Extents != nil {
		return nil, ErrConflictingSizeSpec
	}

	id := blockdevice.VolumeID{VolumeGroup: desired.VolumeGroup, Name: desired.Name}

	if desired.Ensure == lvspec.EnsureAbsent {
		if current.Exists {
			return []Action{{Kind: ActionRemove, ID: id}}, nil
		}
		return []Action{noOp(id, ReasonAlreadyAbsent, nil)}, nil
	}

	if !current.Exists {
		size, extents := desired.CreationTarget()
		return []Action{{
			Kind: ActionCreate,
			ID:   id,
			Create: &blockdevice.CreateParams{
				ID:               id,
				Target:           blockdevice.Target{Size: size, Extents: extents},
				StripeSize:       desired.StripeSize,
				StripeCount:      desired.StripeCount,
				AllocationPolicy: desired.AllocationPolicy,
				VolumeType:       desired.VolumeType,
			},
		}}, nil
	}

	diagnostics := creationOnlyDiagnostics(desired, current)

	target, reason, err := targetBytes(desired, current)
	if err != nil {
		return nil, err
	}
	if len(reason) != 0 {
		return []Action{noOp(id, reason, diagnostics)}, nil
	}

	switch {
	case target > current.Size:
		return []Action{resize(id, target, DirectionGrow, diagnostics)}, nil
	case target < current.Size:
		return []Action{resize(id, target, DirectionShrink, diagnostics)}, nil
	}

	return []Action{noOp(id, ReasonAlreadyConverged, diagnostics)}, nil
}

// allocationUnit is the granularity lvm sizes the volume in. A striped
// volume grows by one extent on every stripe.
func allocationUnit(current CurrentState) int64 {
	if current.StripeCount > 1 {
		return int64(current.StripeCount) * current.ExtentSize
	}
	return current.ExtentSize
}

// targetBytes normalizes the desired size of an existing volume to bytes,
// rounded up to a whole allocation unit. A non-empty reason means sizing is
// a no-op.
func targetBytes(desired lvspec.DesiredState, current CurrentState) (int64, string, error) {
	unit := allocationUnit(current)

	switch {
	case desired.Size != nil:
		bytes, err := desired.Size.Bytes()
		if err != nil {
			return 0, "", fmt.Errorf("size %s: %w", desired.Size, err)
		}
		return quantity.RoundUpToExtent(bytes, unit), "", nil

	case desired.Extents != nil:
		var extents int64
		switch desired.Extents.Basis {
		case quantity.BasisNone:
			extents = desired.Extents.Count
		case quantity.BasisVG, quantity.BasisPVS:
			extents = desired.Extents.Resolve(current.ExtentCount)
		default:
			// Relative to what is free now, or to a snapshot origin; neither
			// describes a fixed size for an existing volume.
			return 0, fmt.Sprintf("%s: extents %s are relative to %s", ReasonSizeNotEvaluated, desired.Extents, desired.Extents.Basis), nil
		}

		if extents <= 0 {
			return 0, fmt.Sprintf("%s: extents %s resolve to zero", ReasonSizeNotEvaluated, desired.Extents), nil
		}
		return quantity.RoundUpToExtent(extents*current.ExtentSize, unit), "", nil
	}

	if desired.Ensure == lvspec.EnsureExact && current.FreeExtents > 0 {
		// Filling the group rounds down; a partial stripe does not fit.
		total := (current.Extents + current.FreeExtents) * current.ExtentSize
		if unit > 0 {
			total -= total % unit
		}
		if total < current.Size {
			total = current.Size
		}
		return total, "", nil
	}

	return 0, ReasonNoSizeRequested, nil
}

// creationOnlyDiagnostics describes attributes that differ from the request
// but can only be set at creation.
func creationOnlyDiagnostics(desired lvspec.DesiredState, current CurrentState) []string {
	diagnostics := []string{}

	// lvm records no stripe size for a volume without stripes.
	striped := desired.StripeCount > 1 || current.StripeCount > 1
	if striped && desired.StripeSize != 0 && desired.StripeSize != current.StripeSize {
		diagnostics = append(diagnostics, fmt.Sprintf("stripe size is %dKiB, want %dKiB; stripe size is fixed at creation", current.StripeSize, desired.StripeSize))
	}

	if desired.StripeCount != 0 && desired.StripeCount != current.StripeCount {
		diagnostics = append(diagnostics, fmt.Sprintf("stripe count is %d, want %d; stripe count is fixed at creation", current.StripeCount, desired.StripeCount))
	}

	if len(desired.VolumeType) != 0 && len(current.VolumeType) != 0 && desired.VolumeType != current.VolumeType {
		diagnostics = append(diagnostics, fmt.Sprintf("volume type is %q, want %q; volume type is fixed at creation", current.VolumeType, desired.VolumeType))
	}

	if len(desired.AllocationPolicy) != 0 && len(current.AllocationPolicy) != 0 && desired.AllocationPolicy != current.AllocationPolicy {
		diagnostics = append(diagnostics, fmt.Sprintf("allocation policy is %q, want %q; allocation policy is fixed at creation", current.AllocationPolicy, desired.AllocationPolicy))
	}

	if len(diagnostics) == 0 {
		return nil
	}
	return diagnostics
}

func noOp(id blockdevice.VolumeID, reason string, diagnostics []string) Action {
	return Action{Kind: ActionNoOp, ID: id, Reason: reason, Diagnostics: diagnostics}
}

func resize(id blockdevice.VolumeID, target int64, direction Direction, diagnostics []string) Action {
	return Action{
		Kind:        ActionResize,
		ID:          id,
		Target:      blockdevice.Target{Bytes: target},
		Direction:   direction,
		Diagnostics: diagnostics,
	}
}
