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
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

var _ = Describe("Plan", func() {
	const extentSize = 4 * quantity.MiB

	existing := func(size int64) CurrentState {
		return CurrentState{
			Exists:      true,
			Size:        size,
			Extents:     size / extentSize,
			ExtentSize:  extentSize,
			ExtentCount: vgSize / extentSize,
			FreeExtents: (vgSize - size) / extentSize,
		}
	}
	missing := CurrentState{ExtentSize: extentSize, ExtentCount: vgSize / extentSize, FreeExtents: vgSize / extentSize}

	planOne := func(rec lvspec.Record, current CurrentState) Action {
		actions, err := Plan(mustValidate(rec), current)
		Expect(err).NotTo(HaveOccurred())
		Expect(actions).To(HaveLen(1))
		return actions[0]
	}

	Describe("absence", func() {
		It("removes an existing volume", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "absent"}, existing(10*quantity.GiB))
			Expect(action.Kind).To(Equal(ActionRemove))
			Expect(action.ID).To(Equal(blockdevice.VolumeID{VolumeGroup: "vg0", Name: "data"}))
		})

		It("does nothing for a missing volume", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "absent"}, missing)
			Expect(action.Kind).To(Equal(ActionNoOp))
			Expect(action.Reason).To(Equal(ReasonAlreadyAbsent))
		})
	})

	Describe("creation", func() {
		It("creates with the requested size", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G"}, missing)
			Expect(action.Kind).To(Equal(ActionCreate))
			Expect(action.Create.ID).To(Equal(blockdevice.VolumeID{VolumeGroup: "vg0", Name: "data"}))
			Expect(action.Create.Target.Size.String()).To(Equal("10G"))
			Expect(action.String()).To(Equal("Create(vg0/data, size=10G)"))
		})

		It("prefers the initial size", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G", InitialSize: "1G"}, missing)
			Expect(action.Create.Target.Size.String()).To(Equal("1G"))
		})

		It("falls back to extents", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Extents: "50%VG"}, missing)
			Expect(action.Create.Target.Size).To(BeNil())
			Expect(action.Create.Target.Extents.String()).To(Equal("50%VG"))
		})

		It("takes all free space with no target", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0"}, missing)
			Expect(action.Create.Target.IsEmpty()).To(BeTrue())
			Expect(action.String()).To(Equal("Create(vg0/data, extents=100%FREE)"))
		})

		It("carries creation-only attributes", func() {
			action := planOne(lvspec.Record{
				Name: "data", VolumeGroup: "vg0", Size: "10G",
				StripeSize: "64", StripeCount: "4", AllocationPolicy: "maximum", VolumeType: "striped",
			}, missing)
			Expect(action.Create.StripeSize).To(Equal(64))
			Expect(action.Create.StripeCount).To(Equal(4))
			Expect(action.Create.AllocationPolicy).To(Equal("maximum"))
			Expect(action.Create.VolumeType).To(Equal("striped"))
		})
	})

	Describe("sizing an existing volume", func() {
		It("grows", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "20G"}, existing(10*quantity.GiB))
			Expect(action.Kind).To(Equal(ActionResize))
			Expect(action.Direction).To(Equal(DirectionGrow))
			Expect(action.Target.Bytes).To(Equal(20 * quantity.GiB))
			Expect(action.String()).To(Equal("Resize(vg0/data, size=20G, grow)"))
		})

		It("shrinks", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "5G"}, existing(10*quantity.GiB))
			Expect(action.Kind).To(Equal(ActionResize))
			Expect(action.Direction).To(Equal(DirectionShrink))
		})

		It("compares in a common unit", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10240M"}, existing(10*quantity.GiB))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))

			action = planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Extents: "2560"}, existing(10*quantity.GiB))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))
		})

		It("rounds the request up to a whole extent", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "8190K"}, existing(8*quantity.MiB))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))
		})

		It("resolves percentages of the volume group", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Extents: "50%VG"}, existing(10*quantity.GiB))
			Expect(action.Target.Bytes).To(Equal(50 * quantity.GiB))
		})

		It("does not re-evaluate percentages of free space", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Extents: "100%FREE"}, existing(10*quantity.GiB))
			Expect(action.Kind).To(Equal(ActionNoOp))
			Expect(action.Reason).To(HavePrefix(ReasonSizeNotEvaluated))
		})

		It("rounds a striped volume up to a whole stripe", func() {
			striped := func(extents int64) CurrentState {
				current := existing(extents * extentSize)
				current.StripeCount = 3
				current.StripeSize = 64
				return current
			}

			// 10G is 2560 extents; three stripes hold 2562.
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G", StripeSize: "64", StripeCount: "3"}, striped(2562))
			Expect(action.Kind).To(Equal(ActionNoOp))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))
			Expect(action.Diagnostics).To(BeNil())

			action = planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Extents: "2561"}, striped(2562))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))

			action = planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "11G"}, striped(2562))
			Expect(action.Direction).To(Equal(DirectionGrow))
			Expect(action.Target.Bytes).To(Equal(2817 * extentSize))
		})

		It("fills free space with whole stripes only", func() {
			current := existing(2562 * extentSize)
			current.StripeCount = 3

			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "exact"}, current)
			Expect(action.Direction).To(Equal(DirectionGrow))
			Expect(action.Target.Bytes).To(Equal(25599 * extentSize))

			current = existing(25599 * extentSize)
			current.StripeCount = 3
			Expect(current.FreeExtents).To(Equal(int64(1)))

			action = planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "exact"}, current)
			Expect(action.Kind).To(Equal(ActionNoOp))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))
		})

		It("leaves an unsized volume alone", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0"}, existing(10*quantity.GiB))
			Expect(action.Kind).To(Equal(ActionNoOp))
			Expect(action.Reason).To(Equal(ReasonNoSizeRequested))
		})

		It("grows an unsized exact volume into free space", func() {
			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "exact"}, existing(10*quantity.GiB))
			Expect(action.Kind).To(Equal(ActionResize))
			Expect(action.Target.Bytes).To(Equal(vgSize))

			action = planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Ensure: "exact"}, existing(vgSize))
			Expect(action.Reason).To(Equal(ReasonNoSizeRequested))
		})
	})

	Describe("creation-only attributes", func() {
		It("reports a stripe change without acting on it", func() {
			current := existing(10 * quantity.GiB)
			current.StripeCount = 2
			current.StripeSize = 64

			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G", StripeSize: "128", StripeCount: "2"}, current)
			Expect(action.Kind).To(Equal(ActionNoOp))
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))
			Expect(action.Diagnostics).To(ConsistOf(ContainSubstring("stripe size is 64KiB, want 128KiB")))
		})

		It("attaches diagnostics to a resize", func() {
			current := existing(10 * quantity.GiB)
			current.VolumeType = "linear"

			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "20G", VolumeType: "striped"}, current)
			Expect(action.Kind).To(Equal(ActionResize))
			Expect(action.Diagnostics).To(ConsistOf(ContainSubstring("volume type")))
		})

		It("ignores a stripe size on a volume without stripes", func() {
			current := existing(10 * quantity.GiB)
			current.StripeCount = 1

			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", Size: "10G", StripeSize: "64"}, current)
			Expect(action.Reason).To(Equal(ReasonAlreadyConverged))
			Expect(action.Diagnostics).To(BeNil())
		})

		It("is quiet when nothing diverges", func() {
			current := existing(10 * quantity.GiB)
			current.StripeCount = 2
			current.StripeSize = 64

			action := planOne(lvspec.Record{Name: "data", VolumeGroup: "vg0", StripeSize: "64", StripeCount: "2"}, current)
			Expect(action.Diagnostics).To(BeNil())
		})
	})

	It("fails fast on conflicting size and extents", func() {
		size, _ := quantity.ParseSize("10G")
		extents, _ := quantity.ParseExtents("100")
		desired := lvspec.DesiredState{Name: "data", VolumeGroup: "vg0", Ensure: lvspec.EnsurePresent, Size: &size, Extents: &extents}

		_, err := Plan(desired, missing)
		Expect(errors.Is(err, ErrConflictingSizeSpec)).To(BeTrue())
	})
})
