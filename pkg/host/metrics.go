/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
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

package host

import "github.com/prometheus/client_golang/prometheus"

var (
	stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostcore_state_transitions_total",
		Help: "Committed host state transitions by source and target state.",
	}, []string{"from", "to"})

	illegalTransitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostcore_illegal_state_transitions_total",
		Help: "Rejected host state transitions.",
	})

	liveHosts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hostcore_live_hosts",
		Help: "Hosts allocated and not yet destroyed.",
	})
)

func init() {
	prometheus.MustRegister(stateTransitions, illegalTransitions, liveHosts)
}
