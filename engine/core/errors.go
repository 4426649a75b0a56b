package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoMemoryType     = errors.New("no memory type satisfies the requested properties")
	ErrFenceTimeout     = errors.New("fence wait timed out")
	ErrInvalidBatches   = errors.New("invalid draw batches")
	ErrSwapchainStale   = errors.New("swapchain is out of date")
	ErrTooManyInstances = errors.New("instance count exceeds transform buffer capacity")
)

// FatalError marks a failure with no recovery path: primitive creation,
// memory type lookup, command recording or submission. The run loop stops
// on the first one it sees.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError. A nil err stays nil and an error that is
// already fatal is returned untouched.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether any error in err's chain is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
