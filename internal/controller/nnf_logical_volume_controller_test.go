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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	nnfv1alpha1 "github.com/NearNodeFlash/nnf-lvm/api/v1alpha1"
	"github.com/NearNodeFlash/nnf-lvm/internal/controller/metrics"
	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/engine"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

var _ = Describe("NnfLogicalVolume Controller", func() {
	const (
		nodeName = "rabbit-node-1"
		resync   = 5 * time.Minute
	)

	var (
		ctx        context.Context
		mock       *blockdevice.MockVolumeManager
		k8sClient  client.Client
		reconciler *NnfLogicalVolumeReconciler
		key        types.NamespacedName
	)

	newLogicalVolume := func(spec nnfv1alpha1.NnfLogicalVolumeSpec) *nnfv1alpha1.NnfLogicalVolume {
		return &nnfv1alpha1.NnfLogicalVolume{
			ObjectMeta: metav1.ObjectMeta{Name: key.Name, Namespace: key.Namespace, Generation: 1},
			Spec:       spec,
		}
	}

	setup := func(objects ...client.Object) {
		k8sClient = fake.NewClientBuilder().
			WithScheme(testScheme).
			WithStatusSubresource(&nnfv1alpha1.NnfLogicalVolume{}).
			WithObjects(objects...).
			Build()

		log := logf.Log.WithName("NnfLogicalVolume")
		reconciler = &NnfLogicalVolumeReconciler{
			Client:       k8sClient,
			Log:          log,
			Scheme:       testScheme,
			Engine:       engine.NewReconciler(log, mock),
			NodeName:     nodeName,
			ResyncPeriod: resync,
		}
	}

	reconcile := func() (ctrl.Result, error) {
		return reconciler.Reconcile(ctx, ctrl.Request{NamespacedName: key})
	}

	fetch := func() *nnfv1alpha1.NnfLogicalVolume {
		lv := &nnfv1alpha1.NnfLogicalVolume{}
		Expect(k8sClient.Get(ctx, key, lv)).To(Succeed())
		return lv
	}

	BeforeEach(func() {
		ctx = context.Background()
		mock = blockdevice.NewMockVolumeManager(logf.Log)
		mock.AddVolumeGroup("vg0", 100*quantity.GiB)
		key = types.NamespacedName{Name: "scratch", Namespace: nodeName}
	})

	It("creates the volume, then reports it converged", func() {
		setup(newLogicalVolume(nnfv1alpha1.NnfLogicalVolumeSpec{Name: "data", VolumeGroup: "vg0", Size: "10G"}))
		reconciles := testutil.ToFloat64(metrics.NnfLogicalVolumeReconcilesTotal)
		creates := testutil.ToFloat64(metrics.NnfLogicalVolumeActionsTotal.WithLabelValues("Create", "Applied"))

		res, err := reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ctrl.Result{Requeue: true}))

		lv := fetch()
		Expect(lv.Status.ObservedGeneration).To(Equal(int64(1)))
		Expect(lv.Status.Converged).To(BeFalse())
		Expect(lv.Status.Exists).To(BeFalse())
		Expect(lv.Status.PassID).NotTo(BeEmpty())
		Expect(lv.Status.LastReconcileTime).NotTo(BeNil())
		Expect(lv.Status.Actions).To(Equal([]nnfv1alpha1.NnfLogicalVolumeActionStatus{
			{Action: "Create(vg0/data, size=10G)", Outcome: "Applied"},
		}))
		Expect(meta.IsStatusConditionFalse(lv.Status.Conditions, nnfv1alpha1.ConditionConverged)).To(BeTrue())

		Expect(testutil.ToFloat64(metrics.NnfLogicalVolumeReconcilesTotal)).To(Equal(reconciles + 1))
		Expect(testutil.ToFloat64(metrics.NnfLogicalVolumeActionsTotal.WithLabelValues("Create", "Applied"))).To(Equal(creates + 1))

		res, err = reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ctrl.Result{RequeueAfter: resync}))

		lv = fetch()
		Expect(lv.Status.Converged).To(BeTrue())
		Expect(lv.Status.Exists).To(BeTrue())
		Expect(lv.Status.CurrentSize).To(Equal(10 * quantity.GiB))
		Expect(lv.Status.Actions[0].Outcome).To(Equal("Skipped"))
		Expect(lv.Status.Actions[0].Reason).To(Equal(engine.ReasonAlreadyConverged))
		Expect(meta.IsStatusConditionTrue(lv.Status.Conditions, nnfv1alpha1.ConditionConverged)).To(BeTrue())
	})

	It("confirms an applied pass even without a resync period", func() {
		setup(newLogicalVolume(nnfv1alpha1.NnfLogicalVolumeSpec{Name: "data", VolumeGroup: "vg0", Size: "10G"}))
		reconciler.ResyncPeriod = 0

		res, err := reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ctrl.Result{Requeue: true}))
		Expect(fetch().Status.Converged).To(BeFalse())

		res, err = reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ctrl.Result{}))
		Expect(fetch().Status.Converged).To(BeTrue())
	})

	It("returns device failures so the controller backs off", func() {
		Expect(mock.AddVolume(blockdevice.VolumeState{ID: blockdevice.VolumeID{VolumeGroup: "vg0", Name: "data"}, Size: quantity.GiB})).To(Succeed())
		mock.SetError(blockdevice.MockOpRemove, blockdevice.ErrInUse)
		setup(newLogicalVolume(nnfv1alpha1.NnfLogicalVolumeSpec{Name: "data", VolumeGroup: "vg0", Ensure: "absent"}))
		failures := testutil.ToFloat64(metrics.NnfLogicalVolumeFailuresTotal.WithLabelValues(engine.StageExecute))

		_, err := reconcile()
		Expect(err).To(MatchError(blockdevice.ErrInUse))

		lv := fetch()
		Expect(lv.Status.Actions).To(HaveLen(1))
		Expect(lv.Status.Actions[0].Action).To(Equal("Remove(vg0/data)"))
		Expect(lv.Status.Actions[0].Outcome).To(Equal("Failed"))
		Expect(lv.Status.Actions[0].Reason).To(Equal("volume busy"))
		Expect(lv.Status.Actions[0].Stage).To(Equal(engine.StageExecute))

		condition := meta.FindStatusCondition(lv.Status.Conditions, nnfv1alpha1.ConditionConverged)
		Expect(condition).NotTo(BeNil())
		Expect(condition.Reason).To(Equal("Failed"))
		Expect(condition.Message).To(Equal("volume busy"))

		Expect(testutil.ToFloat64(metrics.NnfLogicalVolumeFailuresTotal.WithLabelValues(engine.StageExecute))).To(Equal(failures + 1))
	})

	It("records an invalid spec without requeueing", func() {
		setup(newLogicalVolume(nnfv1alpha1.NnfLogicalVolumeSpec{Name: "data", VolumeGroup: "vg0", Size: "10X"}))

		res, err := reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ctrl.Result{}))

		lv := fetch()
		Expect(lv.Status.Actions[0].Stage).To(Equal(engine.StageValidate))
		Expect(lv.Status.Actions[0].Reason).To(Equal("invalid size: 10X is not a valid logical volume size"))
		Expect(mock.Calls()).To(BeEmpty())
	})

	It("ignores a resource that no longer exists", func() {
		setup()

		res, err := reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ctrl.Result{}))
	})

	It("leaves the volume alone while the resource is deleted", func() {
		lv := newLogicalVolume(nnfv1alpha1.NnfLogicalVolumeSpec{Name: "data", VolumeGroup: "vg0", Size: "1G"})
		now := metav1.Now()
		lv.DeletionTimestamp = &now
		lv.Finalizers = []string{"test.nnf.cray.hpe.com/hold"}
		setup(lv)

		_, err := reconcile()
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.Calls()).To(BeEmpty())
	})
})
