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
	"github.com/google/uuid"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
)

// Reasons for actions that were planned but not executed.
const (
	ReasonPlanOnly        = "plan only"
	ReasonPreviousFailure = "not attempted: a previous action failed"
	ReasonCancelled       = "not attempted: reconciliation cancelled"
)

// Reconciler runs validate, probe, plan and execute for one volume. It keeps
// no state between calls, so calling it again is always safe.
type Reconciler struct {
	Log    logr.Logger
	Device blockdevice.VolumeManager

	// PlanOnly plans without executing; mutating actions are Skipped.
	PlanOnly bool
}

func NewReconciler(log logr.Logger, device blockdevice.VolumeManager) *Reconciler {
	return &Reconciler{Log: log, Device: device}
}

// Reconcile validates rec against the device layer's limits and converges it.
func (r *Reconciler) Reconcile(ctx context.Context, rec lvspec.Record) Result {
	id := blockdevice.VolumeID{VolumeGroup: rec.VolumeGroup, Name: rec.Name}
	result, log := r.newResult(id)

	desired, err := lvspec.Validate(rec, lvspec.Limits{MaxStripeCount: r.Device.Capabilities().MaxStripeCount})
	if err != nil {
		return stageFailed(log, result, StageValidate, err)
	}

	return r.reconcile(ctx, log, result, desired)
}

// ReconcileDesired converges an already typed DesiredState. The invariants
// are checked again since the state may not have come through Validate.
func (r *Reconciler) ReconcileDesired(ctx context.Context, desired lvspec.DesiredState) Result {
	result, log := r.newResult(blockdevice.VolumeID{VolumeGroup: desired.VolumeGroup, Name: desired.Name})

	if err := lvspec.CheckInvariants(desired); err != nil {
		if desired.Size != nil && desired.Extents != nil {
			err = fmt.Errorf("%w: %w", ErrConflictingSizeSpec, err)
		}
		return stageFailed(log, result, StageValidate, fmt.Errorf("%w: %w", ErrPreconditionViolated, err))
	}

	return r.reconcile(ctx, log, result, desired)
}

func (r *Reconciler) newResult(id blockdevice.VolumeID) (Result, logr.Logger) {
	passID := uuid.NewString()[:8]
	return Result{PassID: passID, ID: id}, r.Log.WithValues("pass", passID, "volume", id.String())
}

func (r *Reconciler) reconcile(ctx context.Context, log logr.Logger, result Result, desired lvspec.DesiredState) Result {
	prober := Prober{Log: log, Device: r.Device}
	current, err := prober.Probe(ctx, desired.VolumeGroup, desired.Name)
	if err != nil {
		return stageFailed(log, result, StageProbe, err)
	}
	result.Observed = &current

	actions, err := Plan(desired, current)
	if err != nil {
		return stageFailed(log, result, StagePlan, err)
	}

	executor := Executor{Log: log, Device: r.Device}
	halted := ""
	for _, action := range actions {
		var outcome Outcome
		switch {
		case len(halted) != 0:
			outcome = Outcome{Status: StatusSkipped, Reason: halted}
		case ctx.Err() != nil:
			halted = ReasonCancelled
			outcome = Outcome{Status: StatusSkipped, Reason: halted, Err: ctx.Err()}
		case r.PlanOnly && action.Kind != ActionNoOp:
			outcome = Outcome{Status: StatusSkipped, Reason: ReasonPlanOnly, Diagnostics: action.Diagnostics}
		default:
			outcome = executor.Execute(ctx, action)
			if outcome.Status == StatusFailed {
				halted = ReasonPreviousFailure
			}
		}

		result.Steps = append(result.Steps, Step{Action: action, Outcome: outcome})
	}

	log.V(1).Info("Reconciled", "result", result.String())
	return result
}

// stageFailed records a failure before any action ran as a single NoOp step.
func stageFailed(log logr.Logger, result Result, stage string, err error) Result {
	log.Info("Reconciliation failed", "stage", stage, "error", err.Error())

	result.Steps = []Step{{
		Action:  Action{Kind: ActionNoOp, ID: result.ID, Reason: stage + " failed"},
		Outcome: Outcome{Status: StatusFailed, Reason: err.Error(), Stage: stage, Err: err},
	}}
	return result
}
