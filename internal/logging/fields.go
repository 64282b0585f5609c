package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for queue item identifiers.
	FieldItemID = "item_id"
	// FieldScope is the standardized structured logging key for sync job scope keys.
	FieldScope = "scope"
	// FieldAttempts is the standardized structured logging key for upload attempt counts.
	FieldAttempts = "attempts"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator remediation hints.
	FieldErrorHint = "error_hint"
	// FieldOnline is the standardized structured logging key for connectivity state.
	FieldOnline = "online"
	// FieldPhase is the standardized structured logging key for sync job phases.
	FieldPhase = "phase"
	// FieldRequestID is the standardized structured logging key for IPC correlation identifiers.
	FieldRequestID = "request_id"
)
