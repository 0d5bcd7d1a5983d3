package domain

// WarningCode classifies advisory diagnostics.
type WarningCode string

const (
	WarnCaptureFieldMissing WarningCode = "capture_field_missing"
	WarnOutcomeMissing      WarningCode = "outcome_missing"
)

// Warning is a non-blocking diagnostic attached to a node.
type Warning struct {
	NodeID  string      `json:"node_id"`
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
