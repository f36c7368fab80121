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
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

var _ = Describe("Reconciler", func() {
	var (
		mock *blockdevice.MockVolumeManager
		r    *Reconciler
		ctx  context.Context
		id   blockdevice.VolumeID
	)

	BeforeEach(func() {
		mock = newMock()
		r = NewReconciler(logr.Discard(), mock)
		ctx = context.Background()
		id = blockdevice.VolumeID{VolumeGroup: "vg0", Name: "data"}
	})

	Describe("end to end", func() {
		It("creates a volume and then reports it converged", func() {
			rec := lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G", Ensure: "present"}

			result := r.Reconcile(ctx, rec)
			Expect(result.Steps).To(HaveLen(1))
			Expect(result.Steps[0].Action.String()).To(Equal("Create(vg0/data, size=10G)"))
			Expect(result.Steps[0].Outcome.Status).To(Equal(StatusApplied))
			Expect(result.Observed.Exists).To(BeFalse())

			state, err := mock.QueryVolume(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Size).To(Equal(10 * quantity.GiB))

			result = r.Reconcile(ctx, rec)
			Expect(kinds(result)).To(Equal([]ActionKind{ActionNoOp}))
			Expect(result.Converged()).To(BeTrue())
		})

		It("grows an existing volume", func() {
			Expect(mock.AddVolume(blockdevice.VolumeState{ID: id, Size: 10 * quantity.GiB})).To(Succeed())

			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "20G", Ensure: "present"})
			Expect(result.Steps).To(HaveLen(1))
			Expect(result.Steps[0].Action.Kind).To(Equal(ActionResize))
			Expect(result.Steps[0].Action.Direction).To(Equal(DirectionGrow))
			Expect(result.Steps[0].Action.Target.Bytes).To(Equal(20 * quantity.GiB))
			Expect(result.Steps[0].Outcome.Status).To(Equal(StatusApplied))
			Expect(mock.Calls()).To(Equal([]string{"ExtendVolume vg0/data"}))
		})

		It("reports a busy volume verbatim and attempts nothing else", func() {
			Expect(mock.AddVolume(blockdevice.VolumeState{ID: id, Size: 10 * quantity.GiB})).To(Succeed())
			mock.SetError(blockdevice.MockOpRemove, blockdevice.ErrInUse)

			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "absent"})
			Expect(result.Steps).To(HaveLen(1))
			Expect(result.Steps[0].Action.Kind).To(Equal(ActionRemove))
			Expect(result.Steps[0].Outcome.Status).To(Equal(StatusFailed))
			Expect(result.Steps[0].Outcome.Reason).To(Equal("volume busy"))
			Expect(result.Steps[0].Outcome.Stage).To(Equal(StageExecute))
			Expect(errors.Is(result.Err(), blockdevice.ErrInUse)).To(BeTrue())
			Expect(result.String()).To(Equal(`[(Remove(vg0/data), Failed("volume busy"))]`))
			Expect(mock.Calls()).To(Equal([]string{"RemoveVolume vg0/data"}))
		})
	})

	It("creates at the initial size and converges the size on the next pass", func() {
		rec := lvspec.Record{Name: "data", VolumeGroup: "vg0", InitialSize: "1G", Size: "3G"}

		result := r.Reconcile(ctx, rec)
		Expect(result.Steps[0].Action.String()).To(Equal("Create(vg0/data, size=1G)"))

		result = r.Reconcile(ctx, rec)
		Expect(result.Steps[0].Action.String()).To(Equal("Resize(vg0/data, size=3G, grow)"))

		Expect(r.Reconcile(ctx, rec).Converged()).To(BeTrue())
	})

	Describe("removal", func() {
		It("is idempotent", func() {
			Expect(mock.AddVolume(blockdevice.VolumeState{ID: id, Size: quantity.GiB})).To(Succeed())
			rec := lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "absent"}

			result := r.Reconcile(ctx, rec)
			Expect(kinds(result)).To(Equal([]ActionKind{ActionRemove}))
			Expect(statuses(result)).To(Equal([]Status{StatusApplied}))

			result = r.Reconcile(ctx, rec)
			Expect(kinds(result)).To(Equal([]ActionKind{ActionNoOp}))
			Expect(result.Steps[0].Outcome.Reason).To(Equal(ReasonAlreadyAbsent))
		})
	})

	Describe("idempotence", func() {
		records := []lvspec.Record{
			{Ensure: "present", Size: "10G"},
			{Ensure: "present", Size: "1023M"},
			{Ensure: "present", Extents: "2000"},
			{Ensure: "present", Extents: "30%VG"},
			{Ensure: "present", Extents: "25%FREE"},
			{Ensure: "present", InitialSize: "1G"},
			{Ensure: "present"},
			{Ensure: "exact"},
			{Ensure: "exact", Size: "6G"},
			{Ensure: "present", Size: "4G", StripeSize: "64", StripeCount: "2"},
			{Ensure: "present", Size: "10G", StripeSize: "64", StripeCount: "3"},
			{Ensure: "present", Size: "1G", StripeSize: "64", StripeCount: "3"},
			{Ensure: "present", Extents: "100", StripeSize: "64", StripeCount: "3"},
			{Ensure: "exact", StripeSize: "64", StripeCount: "3"},
			{Ensure: "present", Size: "4G", StripeSize: "64"},
			{Ensure: "absent"},
		}
		initial := []int64{0, 4 * quantity.MiB, 5 * quantity.GiB, 40 * quantity.GiB}

		for _, rec := range records {
			for _, size := range initial {
				rec, size := rec, size
				It(fmt.Sprintf("converges %+v from %s", rec, quantity.FormatBytes(size)), func() {
					if size > 0 {
						Expect(mock.AddVolume(blockdevice.VolumeState{ID: id, Size: size})).To(Succeed())
					}
					rec.Name = "data"
					rec.VolumeGroup = "vg0"

					first := r.Reconcile(ctx, rec)
					Expect(first.Failed()).To(BeFalse(), first.String())

					second := r.Reconcile(ctx, rec)
					Expect(second.Converged()).To(BeTrue(), second.String())
				})
			}
		}
	})

	Describe("striped volumes", func() {
		It("accepts the stripe rounding lvm applies", func() {
			rec := lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G", StripeSize: "64", StripeCount: "3"}

			first := r.Reconcile(ctx, rec)
			Expect(statuses(first)).To(Equal([]Status{StatusApplied}))

			second := r.Reconcile(ctx, rec)
			Expect(second.Observed.Size).To(Equal(2562 * blockdevice.MockExtentSize))
			Expect(kinds(second)).To(Equal([]ActionKind{ActionNoOp}))
			Expect(second.Steps[0].Outcome.Reason).To(Equal(ReasonAlreadyConverged))
			Expect(mock.Calls()).To(Equal([]string{"CreateVolume vg0/data"}))
		})

		It("settles a stripe size given without stripes", func() {
			rec := lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "4G", StripeSize: "64"}

			Expect(statuses(r.Reconcile(ctx, rec))).To(Equal([]Status{StatusApplied}))

			second := r.Reconcile(ctx, rec)
			Expect(second.Steps[0].Outcome.Reason).To(Equal(ReasonAlreadyConverged))
			Expect(second.Steps[0].Outcome.Diagnostics).To(BeEmpty())
		})
	})

	Describe("stage failures", func() {
		It("stops at validation without touching the device", func() {
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", StripeCount: "4"})
			Expect(result.Steps).To(HaveLen(1))
			Expect(result.Steps[0].Outcome.Status).To(Equal(StatusFailed))
			Expect(result.Steps[0].Outcome.Stage).To(Equal(StageValidate))

			invalid := &lvspec.InvalidSpecError{}
			Expect(errors.As(result.Err(), &invalid)).To(BeTrue())
			Expect(invalid.Field).To(Equal(lvspec.FieldStripeCount))
			Expect(result.Observed).To(BeNil())
			Expect(mock.Calls()).To(BeEmpty())
		})

		It("bounds the stripe count by the device layer", func() {
			mock.Caps.MaxStripeCount = 4
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", StripeSize: "64", StripeCount: "8"})
			Expect(result.Steps[0].Outcome.Reason).To(ContainSubstring("(2-4)"))
		})

		It("reports a missing volume group as unavailable", func() {
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg9"})
			Expect(result.Steps[0].Outcome.Stage).To(Equal(StageProbe))
			Expect(errors.Is(result.Err(), ErrDeviceLayerUnavailable)).To(BeTrue())
			Expect(errors.Is(result.Err(), blockdevice.ErrNotFound)).To(BeTrue())
		})

		It("reports a failed query as unavailable", func() {
			mock.SetError(blockdevice.MockOpQueryVolume, errors.New("lvs: transport endpoint is not connected"))
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0"})
			Expect(result.Steps[0].Outcome.Stage).To(Equal(StageProbe))
			Expect(errors.Is(result.Err(), ErrDeviceLayerUnavailable)).To(BeTrue())
			Expect(mock.Calls()).To(BeEmpty())
		})

		It("reports device rejections", func() {
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "1T"})
			Expect(statuses(result)).To(Equal([]Status{StatusFailed}))
			Expect(errors.Is(result.Err(), blockdevice.ErrResourceExhausted)).To(BeTrue())
		})
	})

	Describe("ReconcileDesired", func() {
		It("converges a typed state", func() {
			result := r.ReconcileDesired(ctx, mustValidate(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "1G"}))
			Expect(statuses(result)).To(Equal([]Status{StatusApplied}))
		})

		It("rejects a state that breaks an invariant", func() {
			result := r.ReconcileDesired(ctx, lvspec.DesiredState{Name: "a/b", VolumeGroup: "vg0", Ensure: lvspec.EnsurePresent})
			Expect(errors.Is(result.Err(), ErrPreconditionViolated)).To(BeTrue())
			Expect(mock.Calls()).To(BeEmpty())
		})

		It("rejects conflicting size and extents", func() {
			size, _ := quantity.ParseSize("1G")
			extents, _ := quantity.ParseExtents("10")
			result := r.ReconcileDesired(ctx, lvspec.DesiredState{Name: "data", VolumeGroup: "vg0", Ensure: lvspec.EnsurePresent, Size: &size, Extents: &extents})
			Expect(errors.Is(result.Err(), ErrPreconditionViolated)).To(BeTrue())
			Expect(errors.Is(result.Err(), ErrConflictingSizeSpec)).To(BeTrue())
		})
	})

	Describe("execution control", func() {
		It("plans without executing", func() {
			r.PlanOnly = true
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "1G"})
			Expect(kinds(result)).To(Equal([]ActionKind{ActionCreate}))
			Expect(result.Steps[0].Outcome.Status).To(Equal(StatusSkipped))
			Expect(result.Steps[0].Outcome.Reason).To(Equal(ReasonPlanOnly))
			Expect(mock.Calls()).To(BeEmpty())
		})

		It("does not start an action after cancellation", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			result := r.Reconcile(cancelled, lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "1G"})
			Expect(result.Steps[0].Outcome.Status).To(Equal(StatusSkipped))
			Expect(result.Steps[0].Outcome.Reason).To(Equal(ReasonCancelled))
			Expect(mock.Calls()).To(BeEmpty())
		})

		It("drops attributes the platform does not support", func() {
			result := r.Reconcile(ctx, lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "1G", AllocationPolicy: "minimum"})
			Expect(statuses(result)).To(Equal([]Status{StatusApplied}))
			Expect(result.Steps[0].Outcome.Diagnostics).To(ConsistOf(ContainSubstring(`allocation policy "minimum" is not supported on mock`)))

			state, _ := mock.QueryVolume(ctx, id)
			Expect(state.AllocationPolicy).To(BeEmpty())
		})
	})
})

var _ = Describe("Batch", func() {
	It("reconciles records in parallel and serializes the same volume", func() {
		mock := newMock()
		batch := &Batch{Reconciler: NewReconciler(logr.Discard(), mock), Concurrency: 4}

		records := []lvspec.Record{}
		for i := 0; i < 10; i++ {
			records = append(records, lvspec.Record{Name: fmt.Sprintf("lv%d", i), VolumeGroup: "vg0", Size: "1G"})
		}
		// Same volume twice: one creates, the other finds it converged.
		records = append(records, lvspec.Record{Name: "lv0", VolumeGroup: "vg0", Size: "1G"})
		records = append(records, lvspec.Record{Name: "bad/name", VolumeGroup: "vg0"})

		results := batch.Run(context.Background(), records)
		Expect(results).To(HaveLen(len(records)))

		for i, result := range results[:10] {
			Expect(result.ID.Name).To(Equal(fmt.Sprintf("lv%d", i)))
		}

		applied := 0
		for _, result := range []Result{results[0], results[10]} {
			Expect(result.Failed()).To(BeFalse())
			if result.Steps[0].Outcome.Status == StatusApplied {
				applied++
			}
		}
		Expect(applied).To(Equal(1))
		Expect(results[11].Failed()).To(BeTrue())

		vg, err := mock.QueryVolumeGroup(context.Background(), "vg0")
		Expect(err).NotTo(HaveOccurred())
		Expect(vg.FreeExtents).To(Equal(vg.ExtentCount - 10*256))
	})
})
