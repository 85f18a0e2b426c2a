package contract

import "errors"

// Error codes raised by the ledger and saga layer. Collaborator-internal codes
// live with the collaborators that raise them.
const (
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidReservation   = "INVALID_RESERVATION"
	CodeDuplicateReservation = "DUPLICATE_RESERVATION"
	CodeMissingFields        = "MISSING_FIELDS"
	CodeStepTimeout          = "STEP_TIMEOUT"
	CodeInternal             = "INTERNAL"
)

// Error is a structured failure carrying a machine-readable code. It is the
// error type used across package boundaries so callers can branch on Code
// via errors.As instead of string matching.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Detail converts the error into the wire-shaped ErrorDetail.
func (e *Error) Detail() ErrorDetail {
	return ErrorDetail{Code: e.Code, Message: e.Message, Details: e.Details}
}

// AsDetail renders any error as an ErrorDetail, preserving the code of a
// *contract.Error and tagging everything else as internal.
func AsDetail(err error) ErrorDetail {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Detail()
	}
	return ErrorDetail{Code: CodeInternal, Message: err.Error()}
}
