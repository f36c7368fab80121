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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	NnfLogicalVolumeReconcilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nnf_logical_volume_reconciles_total",
			Help: "Number of total reconciles in nnf_logical_volume controller",
		},
	)

	NnfLogicalVolumeActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnf_logical_volume_actions_total",
			Help: "Number of planned logical volume actions by kind and outcome",
		},
		[]string{"action", "outcome"},
	)

	NnfLogicalVolumeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnf_logical_volume_failures_total",
			Help: "Number of failed logical volume reconciles by pipeline stage",
		},
		[]string{"stage"},
	)
)

func init() {
	metrics.Registry.MustRegister(NnfLogicalVolumeReconcilesTotal)
	metrics.Registry.MustRegister(NnfLogicalVolumeActionsTotal)
	metrics.Registry.MustRegister(NnfLogicalVolumeFailuresTotal)
}
