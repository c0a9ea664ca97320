package provider

import "errors"

// Sentinel error kinds shared by every code-system provider.
var (
	// ErrFilterNotSupported is returned by Filter when a provider does not
	// understand a (property, op, value) triple; DoesFilter reports
	// support ahead of time.
	ErrFilterNotSupported = errors.New("provider: filter not supported")
	// ErrFilterLifecycle is an assertion: a filter-execution call arrived
	// outside the permitted state transitions.
	ErrFilterLifecycle = errors.New("provider: illegal filter lifecycle transition")
	// ErrFiltersNotClosed marks an expansion requested over a
	// grammar-based system whose value set cannot be enumerated.
	ErrFiltersNotClosed = errors.New("provider: filters not closed")
	// ErrSubsumptionUnsupported is returned by SubsumesTest on systems
	// without a hierarchy.
	ErrSubsumptionUnsupported = errors.New("provider: subsumption not supported")
	// ErrVersionMismatch is raised when a check-system-version rule fails.
	ErrVersionMismatch = errors.New("provider: version mismatch")
	// ErrOperationCancelled is returned when a long-running operation
	// observed its request's cancellation flag.
	ErrOperationCancelled = errors.New("provider: operation cancelled")
	// ErrTimeout marks a timed-out expansion; the accumulated partial
	// result carries a truncation marker rather than masquerading as
	// complete.
	ErrTimeout = errors.New("provider: timed out")
	// ErrFeatureUnsupported surfaces paths the source leaves unimplemented
	// rather than silently returning empty.
	ErrFeatureUnsupported = errors.New("provider: feature unsupported")
)
