package validator

import "fmt"

// errValidatorFailed is the sentinel every DenyError unwraps to.
var errValidatorFailed = fmt.Errorf("validator failed")

// DenyError wraps a deny decision with the validator name and reason, for
// hosts that want errors.Is/errors.As rather than a Decision value.
type DenyError struct {
	ValidatorName string
	Reason        string
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("validator %q denied call: %s", e.ValidatorName, e.Reason)
}

func (e *DenyError) Unwrap() error { return errValidatorFailed }
