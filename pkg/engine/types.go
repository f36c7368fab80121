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

// Package engine converges a logical volume to its desired state: probe the
// device layer, plan the single action that closes the gap, and execute it.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

var (
	// ErrConflictingSizeSpec is returned when both size and extents reach
	// the planner.
	ErrConflictingSizeSpec = errors.New("size and extents are both set")

	// ErrDeviceLayerUnavailable is returned when the storage subsystem
	// cannot be queried. No mutation happened, so the pass can be retried.
	ErrDeviceLayerUnavailable = errors.New("device layer unavailable")

	// ErrPreconditionViolated is returned when a DesiredState that breaks
	// an invariant is handed to the engine.
	ErrPreconditionViolated = errors.New("precondition violated")
)

// CurrentState is a read-only snapshot of a volume and its volume group.
type CurrentState struct {
	Exists bool

	// Size is in bytes.
	Size    int64
	Extents int64

	StripeCount int
	// StripeSize is in KiB, zero when unknown.
	StripeSize int

	VolumeType       string
	AllocationPolicy string

	// Volume group geometry. ExtentSize is in bytes.
	ExtentSize  int64
	ExtentCount int64
	FreeExtents int64
}

type ActionKind string

const (
	ActionCreate ActionKind = "Create"
	ActionResize ActionKind = "Resize"
	ActionRemove ActionKind = "Remove"
	ActionNoOp   ActionKind = "NoOp"
)

type Direction string

const (
	DirectionGrow   Direction = "grow"
	DirectionShrink Direction = "shrink"
)

// Action is one planned change. It has no effect until executed.
type Action struct {
	Kind ActionKind
	ID   blockdevice.VolumeID

	// Create is set for ActionCreate.
	Create *blockdevice.CreateParams

	// Target and Direction are set for ActionResize. Target.Bytes is
	// always a whole number of extents.
	Target    blockdevice.Target
	Direction Direction

	// Reason explains a NoOp.
	Reason      string
	Diagnostics []string
}

func (a Action) String() string {
	switch a.Kind {
	case ActionCreate:
		return fmt.Sprintf("Create(%s, %s)", a.ID, describeTarget(a.Create.Target))
	case ActionResize:
		return fmt.Sprintf("Resize(%s, %s, %s)", a.ID, describeTarget(a.Target), a.Direction)
	case ActionRemove:
		return fmt.Sprintf("Remove(%s)", a.ID)
	}

	return fmt.Sprintf("NoOp(%q)", a.Reason)
}

func describeTarget(t blockdevice.Target) string {
	switch {
	case t.Size != nil:
		return "size=" + t.Size.String()
	case t.Extents != nil:
		return "extents=" + t.Extents.String()
	case t.Bytes > 0:
		return "size=" + quantity.FormatBytes(t.Bytes)
	}

	return "extents=100%FREE"
}

type Status string

const (
	StatusApplied Status = "Applied"
	StatusSkipped Status = "Skipped"
	StatusFailed  Status = "Failed"
)

// Pipeline stages, reported on failed outcomes.
const (
	StageValidate = "validate"
	StageProbe    = "probe"
	StagePlan     = "plan"
	StageExecute  = "execute"
)

// Outcome is what happened to one action.
type Outcome struct {
	Status Status
	// Reason is the device error text verbatim for a failure, or why the
	// action was skipped.
	Reason string
	Stage  string
	Err    error

	Diagnostics []string
}

// Step pairs an action with its outcome.
type Step struct {
	Action  Action
	Outcome Outcome
}

// Result is the ordered record of one reconciliation pass.
type Result struct {
	PassID string
	ID     blockdevice.VolumeID

	// Observed is the state probed at the start of the pass. It is nil
	// when the pass failed before probing completed.
	Observed *CurrentState

	Steps []Step
}

// Failed reports whether any step failed.
func (r Result) Failed() bool {
	return r.Err() != nil
}

// Err returns the error of the first failed step.
func (r Result) Err() error {
	for _, step := range r.Steps {
		if step.Outcome.Status == StatusFailed {
			if step.Outcome.Err != nil {
				return step.Outcome.Err
			}
			return errors.New(step.Outcome.Reason)
		}
	}

	return nil
}

// Converged reports whether the pass needed no change.
func (r Result) Converged() bool {
	for _, step := range r.Steps {
		if step.Action.Kind != ActionNoOp || step.Outcome.Status != StatusSkipped {
			return false
		}
	}

	return true
}

func (r Result) String() string {
	steps := make([]string, 0, len(r.Steps))
	for _, step := range r.Steps {
		s := fmt.Sprintf("(%s, %s", step.Action, step.Outcome.Status)
		if step.Outcome.Status == StatusFailed {
			s += fmt.Sprintf("(%q)", step.Outcome.Reason)
		}
		steps = append(steps, s+")")
	}

	return "[" + strings.Join(steps, ", ") + "]"
}
