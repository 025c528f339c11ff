// internal/types/errors.go
package types

import "fmt"

// GatewayError reports a calendar backend failure. Recoverable: the
// resolver retains the pending action so the user can retry.
type GatewayError struct {
	Op     string
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ExtractionError reports an intent-extraction failure. Recoverable: the
// turn surfaces a generic reply and history is left unchanged.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extraction: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError reports a supplied-but-invalid field value, e.g. an
// unparseable date. The resolver re-asks for that specific field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DispatchError reports that a notification could not be handed to the
// dispatcher. The scheduler retries the pair on the next tick.
type DispatchError struct {
	Reason string
}

func (e *DispatchError) Error() string { return "dispatch: " + e.Reason }
