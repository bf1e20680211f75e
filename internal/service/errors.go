package service

import "fmt"

// TransientServiceError describes a failed call to the analysis service that
// may succeed on a later attempt. It is logged and counted, never returned.
type TransientServiceError struct {
	Variant    string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *TransientServiceError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("analysis service timeout (variant %s): %v", e.Variant, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("analysis service unreachable (variant %s): %v", e.Variant, e.Err)
	default:
		return fmt.Sprintf("analysis service returned status %d (variant %s)", e.StatusCode, e.Variant)
	}
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// MalformedResponseError indicates a 200 response with no usable analysis
type MalformedResponseError struct {
	Variant string
	Reason  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed analysis response (variant %s): %s", e.Variant, e.Reason)
}
