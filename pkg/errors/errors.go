package errors

import "errors"

// Sentinels for domain errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrIllegalTransition marks a Process Store state-machine violation: the
	// caller asked for a transition that the current state does not permit.
	// This is a bug in the handler's understanding of where the Process
	// already is, not a sync failure — callers must not fold it into
	// handleError's fatal path.
	ErrIllegalTransition = errors.New("illegal process state transition")

	// ErrFatal names a fatal integration error. The Process Store's
	// HandleError does not inspect it: callers pass fatal=true explicitly
	// to move the Process to FAILED.
	ErrFatal = errors.New("fatal integration error")
)

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}
