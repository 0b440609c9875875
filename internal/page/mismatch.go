package page

import (
	"errors"
	"fmt"
)

// ErrMismatch matches every MismatchError.
var ErrMismatch = errors.New("page state mismatch")

// MismatchError reports a verification whose observed value differed from
// the expected one.
type MismatchError struct {
	What string
	Want any
	Got  any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: want %v, got %v", e.What, e.Want, e.Got)
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }

// Mismatch builds a MismatchError.
func Mismatch(what string, want, got any) error {
	return &MismatchError{What: what, Want: want, Got: got}
}
