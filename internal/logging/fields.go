package logging

// Standardized attribute keys. Using the constants keeps log lines queryable
// across components.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldWorkerID  = "worker_id"
	FieldStatus    = "status"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)
