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

// Executor applies planned actions, one device call per action. It does not
// retry.
type Executor struct {
	Log    logr.Logger
	Device blockdevice.VolumeManager
}

// Execute applies action. A device call, once started, runs to completion
// even if ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, action Action) Outcome {
	if action.Kind == ActionNoOp {
		return Outcome{Status: StatusSkipped, Reason: action.Reason, Diagnostics: action.Diagnostics}
	}

	ctx = context.WithoutCancel(ctx)
	diagnostics := append([]string{}, action.Diagnostics...)

	var err error
	switch action.Kind {
	case ActionCreate:
		params, dropped := e.supportedParams(*action.Create)
		diagnostics = append(diagnostics, dropped...)
		err = e.Device.CreateVolume(ctx, params)
	case ActionResize:
		if action.Direction == DirectionShrink {
			err = e.Device.ReduceVolume(ctx, action.ID, action.Target)
		} else {
			err = e.Device.ExtendVolume(ctx, action.ID, action.Target)
		}
	case ActionRemove:
		err = e.Device.RemoveVolume(ctx, action.ID)
	default:
		err = fmt.Errorf("unknown action kind %q", action.Kind)
	}

	if len(diagnostics) == 0 {
		diagnostics = nil
	}

	if err != nil {
		e.Log.Info("Action failed", "action", action.String(), "error", err.Error())
		return Outcome{Status: StatusFailed, Reason: err.Error(), Stage: StageExecute, Err: err, Diagnostics: diagnostics}
	}

	e.Log.Info("Action applied", "action", action.String())
	return Outcome{Status: StatusApplied, Diagnostics: diagnostics}
}

// supportedParams drops platform-restricted attributes the device layer does
// not honour and describes what was dropped.
func (e *Executor) supportedParams(params blockdevice.CreateParams) (blockdevice.CreateParams, []string) {
	caps := e.Device.Capabilities()
	dropped := []string{}

	if len(params.VolumeType) != 0 && !caps.VolumeType {
		dropped = append(dropped, fmt.Sprintf("volume type %q is not supported on %s; ignored", params.VolumeType, caps.Platform))
		params.VolumeType = ""
	}

	if len(params.AllocationPolicy) != 0 && !caps.AllocationPolicy {
		dropped = append(dropped, fmt.Sprintf("allocation policy %q is not supported on %s; ignored", params.AllocationPolicy, caps.Platform))
		params.AllocationPolicy = ""
	}

	return params, dropped
}
