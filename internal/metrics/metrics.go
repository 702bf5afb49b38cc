// Package metrics collects and exposes weft runtime observability data.
//
// # Invariants
//
//   - TotalInvocations == SuccessInvocations + FailedInvocations (maintained
//     by RecordInvocation).
//   - PersistedInvocations <= SuccessInvocations.
//   - ScheduledTasksFailed <= ScheduledTasksProcessed.
//
// RecordInvocation is called from the exec package on every verb call and
// must stay on the hot path's fast side: atomic increments only, no locks.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-process weft runtime counters.
type Metrics struct {
	TotalInvocations      atomic.Int64
	SuccessInvocations    atomic.Int64
	FailedInvocations     atomic.Int64
	PersistedInvocations  atomic.Int64
	TotalLatencyMs        atomic.Int64

	CapabilitiesMinted    atomic.Int64
	CapabilitiesDelegated atomic.Int64
	CapabilityDenials     atomic.Int64

	ScheduledTasksCreated   atomic.Int64
	ScheduledTasksProcessed atomic.Int64
	ScheduledTasksFailed    atomic.Int64
}

var defaultMetrics = &Metrics{}

// Default returns the process-wide Metrics instance.
func Default() *Metrics { return defaultMetrics }

// RecordInvocation records the outcome of a single verb invocation, both in
// the atomic in-process counters above and, when InitPrometheus has been
// called, in the Prometheus registry those counters mirror.
func (m *Metrics) RecordInvocation(success, persisted bool, dur time.Duration) {
	m.TotalInvocations.Add(1)
	m.TotalLatencyMs.Add(dur.Milliseconds())
	if success {
		m.SuccessInvocations.Add(1)
	} else {
		m.FailedInvocations.Add(1)
	}
	if persisted {
		m.PersistedInvocations.Add(1)
	}
	ObserveInvocation(success, float64(dur.Milliseconds()))
}

// RecordCapabilityDenial records a failed capability check on verb dispatch.
func (m *Metrics) RecordCapabilityDenial() {
	m.CapabilityDenials.Add(1)
	ObserveCapabilityDenial()
}

// RecordMint records a successful capability mint.
func (m *Metrics) RecordMint() {
	m.CapabilitiesMinted.Add(1)
	ObserveCapabilityMint()
}

// RecordDelegate records a successful capability delegation.
func (m *Metrics) RecordDelegate() {
	m.CapabilitiesDelegated.Add(1)
	ObserveCapabilityDelegate()
}

// RecordScheduledTask records the outcome of one processed scheduled task.
func (m *Metrics) RecordScheduledTask(success bool) {
	m.ScheduledTasksProcessed.Add(1)
	if !success {
		m.ScheduledTasksFailed.Add(1)
	}
	ObserveScheduledTask(success)
}

// RecordScheduled records the creation of a new scheduled task.
func (m *Metrics) RecordScheduled() {
	m.ScheduledTasksCreated.Add(1)
}
