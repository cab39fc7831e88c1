package authcore

import (
	"sync/atomic"
)

// MetricID defines a public type used by authcore APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricRegisterSuccess is an exported constant or variable used by the authentication service.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate is an exported constant or variable used by the authentication service.
	MetricRegisterDuplicate
	// MetricLoginSuccess is an exported constant or variable used by the authentication service.
	MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the authentication service.
	MetricLoginFailure
	// MetricLoginM2FAChallenge is an exported constant or variable used by the authentication service.
	MetricLoginM2FAChallenge
	// MetricRefreshSuccess is an exported constant or variable used by the authentication service.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the authentication service.
	MetricRefreshFailure
	// MetricLogout is an exported constant or variable used by the authentication service.
	MetricLogout
	// MetricLogoutAll is an exported constant or variable used by the authentication service.
	MetricLogoutAll
	// MetricSessionCreated is an exported constant or variable used by the authentication service.
	MetricSessionCreated
	// MetricSessionRevoked is an exported constant or variable used by the authentication service.
	MetricSessionRevoked
	// MetricPasswordChangeSuccess is an exported constant or variable used by the authentication service.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure is an exported constant or variable used by the authentication service.
	MetricPasswordChangeFailure
	// MetricPasswordResetRequest is an exported constant or variable used by the authentication service.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess is an exported constant or variable used by the authentication service.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure is an exported constant or variable used by the authentication service.
	MetricPasswordResetFailure
	// MetricVerificationRequest is an exported constant or variable used by the authentication service.
	MetricVerificationRequest
	// MetricVerificationSuccess is an exported constant or variable used by the authentication service.
	MetricVerificationSuccess
	// MetricVerificationFailure is an exported constant or variable used by the authentication service.
	MetricVerificationFailure
	// MetricEmailChangeRequest is an exported constant or variable used by the authentication service.
	MetricEmailChangeRequest
	// MetricEmailChangeSuccess is an exported constant or variable used by the authentication service.
	MetricEmailChangeSuccess
	// MetricM2FAChallengeIssued is an exported constant or variable used by the authentication service.
	MetricM2FAChallengeIssued
	// MetricM2FAVerifySuccess is an exported constant or variable used by the authentication service.
	MetricM2FAVerifySuccess
	// MetricM2FAVerifyFailure is an exported constant or variable used by the authentication service.
	MetricM2FAVerifyFailure
	// MetricM2FALockout is an exported constant or variable used by the authentication service.
	MetricM2FALockout
	// MetricOAuthLoginSuccess is an exported constant or variable used by the authentication service.
	MetricOAuthLoginSuccess
	// MetricOAuthLinkSuccess is an exported constant or variable used by the authentication service.
	MetricOAuthLinkSuccess
	// MetricOAuthFailure is an exported constant or variable used by the authentication service.
	MetricOAuthFailure
	// MetricAuthzAllowed is an exported constant or variable used by the authentication service.
	MetricAuthzAllowed
	// MetricAuthzDenied is an exported constant or variable used by the authentication service.
	MetricAuthzDenied
	// MetricRateLimitHit is an exported constant or variable used by the authentication service.
	MetricRateLimitHit
	// MetricEmailSent is an exported constant or variable used by the authentication service.
	MetricEmailSent
	// MetricEmailFailed is an exported constant or variable used by the authentication service.
	MetricEmailFailed
	// MetricAccountRestored is an exported constant or variable used by the authentication service.
	MetricAccountRestored
	// MetricAccountUnsuspended is an exported constant or variable used by the authentication service.
	MetricAccountUnsuspended
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by authcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the new metrics operation and its observable behavior.
//
// NewMetrics may return an error when input validation, dependency calls, or security checks fail.
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled describes the enabled operation and its observable behavior.
//
// Enabled may return an error when input validation, dependency calls, or security checks fail.
// Enabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
//
// Inc may return an error when input validation, dependency calls, or security checks fail.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value describes the value operation and its observable behavior.
//
// Value may return an error when input validation, dependency calls, or security checks fail.
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	return s
}
