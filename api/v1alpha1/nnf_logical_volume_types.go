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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
)

const (
	// ConditionConverged is True when the last pass found nothing to change
	// or applied its action successfully.
	ConditionConverged = "Converged"
)

// NnfLogicalVolumeSpec defines the desired state of a logical volume on the
// node this resource's namespace names.
type NnfLogicalVolumeSpec struct {
	// Name of the logical volume, unqualified.
	// +kubebuilder:validation:Pattern:=`^[^/]+$`
	Name string `json:"name"`

	// VolumeGroup the logical volume is allocated from. It must already exist.
	// +kubebuilder:validation:MinLength:=1
	VolumeGroup string `json:"volumeGroup"`

	// Ensure is the desired lifecycle state. "exact" also grows an unsized
	// volume into free space on every pass.
	// +kubebuilder:validation:Enum=present;absent;exact
	// +kubebuilder:default:=present
	Ensure string `json:"ensure,omitempty"`

	// Size of the volume, with a unit suffix of K, M, G, T, P or E.
	// Mutually exclusive with Extents.
	// +kubebuilder:validation:Pattern:=`^[0-9]+[KMGTPEkmgtpe]$`
	Size string `json:"size,omitempty"`

	// InitialSize is used only when the volume is created.
	// +kubebuilder:validation:Pattern:=`^[0-9]+[KMGTPEkmgtpe]$`
	InitialSize string `json:"initialSize,omitempty"`

	// Extents is a count of extents, or a percentage of VG, PVS, FREE or
	// ORIGIN such as "50%VG". Mutually exclusive with Size.
	// +kubebuilder:validation:XIntOrString
	Extents *intstr.IntOrString `json:"extents,omitempty"`

	// StripeSize in KiB. Fixed at creation.
	// +kubebuilder:validation:XIntOrString
	StripeSize *intstr.IntOrString `json:"stripeSize,omitempty"`

	// StripeCount is the number of physical volumes to stripe across. It
	// requires StripeSize. Fixed at creation.
	// +kubebuilder:validation:XIntOrString
	StripeCount *intstr.IntOrString `json:"stripeCount,omitempty"`

	// AllocationPolicy is honoured only on platforms that support it.
	// +kubebuilder:validation:Enum=maximum;minimum
	AllocationPolicy string `json:"allocationPolicy,omitempty"`

	// VolumeType is passed through to the platform when supported.
	// +kubebuilder:validation:Pattern:=`^[a-z][a-z0-9_-]*$`
	VolumeType string `json:"volumeType,omitempty"`
}

// ToRecord converts the spec into the raw record the validator checks.
func (s *NnfLogicalVolumeSpec) ToRecord() lvspec.Record {
	return lvspec.Record{
		Name:             s.Name,
		VolumeGroup:      s.VolumeGroup,
		Ensure:           s.Ensure,
		Size:             s.Size,
		InitialSize:      s.InitialSize,
		Extents:          intOrStringValue(s.Extents),
		StripeSize:       intOrStringValue(s.StripeSize),
		StripeCount:      intOrStringValue(s.StripeCount),
		AllocationPolicy: s.AllocationPolicy,
		VolumeType:       s.VolumeType,
	}
}

func intOrStringValue(v *intstr.IntOrString) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// NnfLogicalVolumeActionStatus is one action of the last pass and its outcome.
type NnfLogicalVolumeActionStatus struct {
	// Action is a description such as "Resize(vg0/data, size=20G, grow)".
	Action string `json:"action"`

	// +kubebuilder:validation:Enum=Applied;Skipped;Failed
	Outcome string `json:"outcome"`

	// Reason carries the failure text verbatim, or why the action was skipped.
	Reason string `json:"reason,omitempty"`

	// Stage names the pipeline stage that failed.
	Stage string `json:"stage,omitempty"`

	// Diagnostics report creation-only attributes that differ from the
	// request and attributes the platform ignored.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NnfLogicalVolumeStatus defines the observed state of NnfLogicalVolume
type NnfLogicalVolumeStatus struct {
	// ObservedGeneration is the generation the last pass reconciled.
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// PassID identifies the last pass in the node's logs.
	PassID string `json:"passID,omitempty"`

	// Converged is true when the last pass needed no change.
	Converged bool `json:"converged"`

	// Exists reports whether the volume existed when last probed.
	Exists bool `json:"exists"`

	// CurrentSize in bytes, as last probed.
	CurrentSize int64 `json:"currentSize,omitempty"`

	Actions []NnfLogicalVolumeActionStatus `json:"actions,omitempty"`

	// LastReconcileTime is when the last pass finished.
	LastReconcileTime *metav1.Time `json:"lastReconcileTime,omitempty"`

	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="VG",type="string",JSONPath=".spec.volumeGroup"
// +kubebuilder:printcolumn:name="LV",type="string",JSONPath=".spec.name"
// +kubebuilder:printcolumn:name="ENSURE",type="string",JSONPath=".spec.ensure"
// +kubebuilder:printcolumn:name="CONVERGED",type="boolean",JSONPath=".status.converged"
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"

// NnfLogicalVolume is the Schema for the nnflogicalvolumes API
type NnfLogicalVolume struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   NnfLogicalVolumeSpec   `json:"spec,omitempty"`
	Status NnfLogicalVolumeStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// NnfLogicalVolumeList contains a list of NnfLogicalVolume
type NnfLogicalVolumeList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NnfLogicalVolume `json:"items"`
}

func init() {
	SchemeBuilder.Register(&NnfLogicalVolume{}, &NnfLogicalVolumeList{})
}
