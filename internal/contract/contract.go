// Package contract defines the request/response envelope shared by the
// checkout saga and its collaborators: every step of a checkout is issued as a
// Task and answered with a tri-state result (success, failed or pending)
// carrying an opaque payload, structured errors and advisory follow-ups.
package contract

// Status is the terminal state of a task or of a whole checkout.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// ActionType classifies an advisory follow-up suggested by a collaborator.
type ActionType string

const (
	ActionAskCustomer    ActionType = "ASK_CUSTOMER"
	ActionCallService    ActionType = "CALL_SERVICE"
	ActionNotifyCustomer ActionType = "NOTIFY_CUSTOMER"
)

// ErrorDetail is a structured failure attached to a result. The orchestrator
// forwards these verbatim; only the coarse failure reason is derived from them.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NextAction suggests a follow-up (ask the customer, call another service,
// notify the customer). Purely advisory: the orchestrator never acts on it.
type NextAction struct {
	Type    ActionType     `json:"type"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Task is one request issued to a component. Immutable once constructed.
type Task struct {
	TaskID     string         `json:"task_id"`
	Type       string         `json:"type"`
	SessionID  string         `json:"session_id"`
	CustomerID string         `json:"customer_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// TaskResult is the response to one Task.
type TaskResult struct {
	TaskID      string         `json:"task_id"`
	Status      Status         `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	Errors      []ErrorDetail  `json:"errors,omitempty"`
	NextActions []NextAction   `json:"next_actions,omitempty"`
}

// Outcome is a TaskResult without the task identity: what a collaborator
// operation returns before the orchestrator files it into the saga log.
type Outcome struct {
	Status      Status         `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	Errors      []ErrorDetail  `json:"errors,omitempty"`
	NextActions []NextAction   `json:"next_actions,omitempty"`
}

// Success builds a successful outcome carrying payload.
func Success(payload map[string]any) Outcome {
	return Outcome{Status: StatusSuccess, Payload: payload}
}

// Pending builds an outcome for an operation awaiting out-of-band completion.
func Pending(payload map[string]any) Outcome {
	return Outcome{Status: StatusPending, Payload: payload}
}

// Failed builds a failed outcome from one or more error details.
func Failed(errs ...ErrorDetail) Outcome {
	return Outcome{Status: StatusFailed, Errors: errs}
}

// WithActions attaches advisory follow-ups to an outcome.
func (o Outcome) WithActions(actions ...NextAction) Outcome {
	o.NextActions = append(o.NextActions, actions...)
	return o
}
