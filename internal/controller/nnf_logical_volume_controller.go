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

package controller

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kruntime "k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	nnfv1alpha1 "github.com/NearNodeFlash/nnf-lvm/api/v1alpha1"
	"github.com/NearNodeFlash/nnf-lvm/internal/controller/metrics"
	"github.com/NearNodeFlash/nnf-lvm/pkg/engine"
	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
)

// NnfLogicalVolumeReconciler converges the logical volumes described by
// NnfLogicalVolume resources in this node's namespace.
type NnfLogicalVolumeReconciler struct {
	client.Client
	Log    logr.Logger
	Scheme *kruntime.Scheme
	Engine *engine.Reconciler

	// NodeName is the namespace this reconciler owns.
	NodeName string

	// ResyncPeriod requeues converged volumes to catch drift. Zero
	// disables the resync. A pass that applied an action is always
	// requeued once to confirm it.
	ResyncPeriod time.Duration

	MaxConcurrentReconciles int
}

//+kubebuilder:rbac:groups=nnf.cray.hpe.com,resources=nnflogicalvolumes,verbs=get;list;watch
//+kubebuilder:rbac:groups=nnf.cray.hpe.com,resources=nnflogicalvolumes/status,verbs=get;update;patch

// Reconcile runs one reconciliation pass for the volume and records the
// outcome in its status. Deleting the resource leaves the volume in place;
// set ensure=absent to remove it.
func (r *NnfLogicalVolumeReconciler) Reconcile(ctx context.Context, req ctrl.Request) (res ctrl.Result, err error) {
	log := r.Log.WithValues("NnfLogicalVolume", req.NamespacedName)

	metrics.NnfLogicalVolumeReconcilesTotal.Inc()

	logicalVolume := &nnfv1alpha1.NnfLogicalVolume{}
	if err := r.Get(ctx, req.NamespacedName, logicalVolume); err != nil {
		// ignore not-found errors, since they can't be fixed by an immediate
		// requeue (we'll need to wait for a new notification), and we can get them
		// on deleted requests.
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	if !logicalVolume.GetDeletionTimestamp().IsZero() {
		return ctrl.Result{}, nil
	}

	result := r.Engine.Reconcile(ctx, logicalVolume.Spec.ToRecord())
	for _, step := range result.Steps {
		metrics.NnfLogicalVolumeActionsTotal.WithLabelValues(string(step.Action.Kind), string(step.Outcome.Status)).Inc()
		if step.Outcome.Status == engine.StatusFailed {
			metrics.NnfLogicalVolumeFailuresTotal.WithLabelValues(step.Outcome.Stage).Inc()
		}
	}

	setStatus(logicalVolume, result, metav1.Now())
	if err := r.Status().Update(ctx, logicalVolume); err != nil {
		if !apierrors.IsConflict(err) {
			return ctrl.Result{}, err
		}
		return ctrl.Result{Requeue: true}, nil
	}

	if err := result.Err(); err != nil {
		// A bad spec won't fix itself; wait for the next update.
		if isSpecError(err) {
			log.Info("Invalid logical volume spec", "error", err.Error())
			return ctrl.Result{}, nil
		}

		// Let the controller back off and retry.
		return ctrl.Result{}, err
	}

	// An applied action is confirmed by the next pass.
	if !result.Converged() {
		return ctrl.Result{Requeue: true}, nil
	}

	return ctrl.Result{RequeueAfter: r.ResyncPeriod}, nil
}

func isSpecError(err error) bool {
	invalid := &lvspec.InvalidSpecError{}
	return errors.As(err, &invalid) ||
		errors.Is(err, engine.ErrPreconditionViolated) ||
		errors.Is(err, engine.ErrConflictingSizeSpec)
}

// setStatus copies a reconciliation result into the resource status.
func setStatus(logicalVolume *nnfv1alpha1.NnfLogicalVolume, result engine.Result, now metav1.Time) {
	status := &logicalVolume.Status

	status.ObservedGeneration = logicalVolume.GetGeneration()
	status.PassID = result.PassID
	status.Converged = result.Converged()
	status.LastReconcileTime = &now

	if result.Observed != nil {
		status.Exists = result.Observed.Exists
		status.CurrentSize = result.Observed.Size
	}

	status.Actions = make([]nnfv1alpha1.NnfLogicalVolumeActionStatus, 0, len(result.Steps))
	for _, step := range result.Steps {
		status.Actions = append(status.Actions, nnfv1alpha1.NnfLogicalVolumeActionStatus{
			Action:      step.Action.String(),
			Outcome:     string(step.Outcome.Status),
			Reason:      step.Outcome.Reason,
			Stage:       step.Outcome.Stage,
			Diagnostics: step.Outcome.Diagnostics,
		})
	}

	condition := metav1.Condition{
		Type:               nnfv1alpha1.ConditionConverged,
		ObservedGeneration: logicalVolume.GetGeneration(),
	}

	switch {
	case result.Failed():
		condition.Status = metav1.ConditionFalse
		condition.Reason = "Failed"
		condition.Message = result.Err().Error()
	case result.Converged():
		condition.Status = metav1.ConditionTrue
		condition.Reason = "Converged"
		condition.Message = "no change needed"
	default:
		condition.Status = metav1.ConditionFalse
		condition.Reason = "Applied"
		condition.Message = result.String()
	}

	meta.SetStatusCondition(&status.Conditions, condition)
}

// SetupWithManager sets up the controller with the Manager.
func (r *NnfLogicalVolumeReconciler) SetupWithManager(mgr ctrl.Manager) error {
	maxReconciles := r.MaxConcurrentReconciles
	if maxReconciles < 1 {
		maxReconciles = 1
	}

	// Status updates don't change the generation, so they don't retrigger a
	// pass; drift is caught by the resync instead.
	inNodeNamespace := predicate.NewPredicateFuncs(func(object client.Object) bool {
		return object.GetNamespace() == r.NodeName
	})

	return ctrl.NewControllerManagedBy(mgr).
		WithOptions(controller.Options{MaxConcurrentReconciles: maxReconciles}).
		For(&nnfv1alpha1.NnfLogicalVolume{}, builder.WithPredicates(inNodeNamespace, predicate.GenerationChangedPredicate{})).
		Complete(r)
}
