package export

import "fmt"

// AuthError is fatal: the bearer token expired and a refresh attempt failed.
// It aborts the whole run.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// TransientError marks a failed page or list fetch. It aborts the current
// enumeration step only; whatever was collected before it stays usable.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// ItemError is isolated to a single message: it is counted and logged, and
// the run moves on to the next item.
type ItemError struct {
	MessageID string
	Err       error
}

func (e *ItemError) Error() string { return fmt.Sprintf("message %s: %v", e.MessageID, e.Err) }
func (e *ItemError) Unwrap() error { return e.Err }
