package authcore

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID uint16

// Counter ids. New ids go before MetricIDCount; never reorder existing
// ones, dashboards key on the exported names.
const (
	MetricPermissionDenied MetricID = iota
	MetricRoleDenied
	MetricEnrollmentStarted
	MetricEnrollmentCompleted
	MetricEnrollmentFailed
	MetricUnenrolled
	MetricChallengeCreated
	MetricChallengeSuccess
	MetricChallengeFailure
	MetricBackupCodeUsed
	MetricBackupCodeFailed
	MetricBackupCodesRegenerated
	MetricSessionStarted
	MetricSessionExpired
	MetricSessionEnded
	MetricAuditLogWriteFailed

	// MetricIDCount is the number of defined metrics.
	MetricIDCount
)

// Metrics holds lock-free counters. A disabled instance turns every
// operation into a no-op so call sites stay unconditional.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// NewMetrics creates a Metrics instance per config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter. Unknown ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot deep-copies the counters. Safe to call concurrently with Inc.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
