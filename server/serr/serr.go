// Package serr holds the build service's cause-carrying error type. A
// storage or transport failure usually has two identities at once: the
// concrete error the lower layer returned, and the category the caller
// checks for (dao.ErrNotFound, dao.ErrDecodingFailure, ...). Error keeps
// both, so errors.Is works against any of its causes without the layers
// having to flatten one into a string inside the other.
package serr

// Error is an error with a message and zero or more cause errors.
// Calling errors.Is on an Error with any one of its causes as the
// target reports true. Construct one with New.
type Error struct {
	msg   string
	cause []error
}

// New returns an Error carrying msg and the given causes. msg may be
// empty, in which case the Error reads as its first cause.
func New(msg string, causes ...error) Error {
	err := Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}

// Error returns e's message. If causes are present, the first cause's
// message is appended (or stands alone when e has no message of its
// own).
func (e Error) Error() string {
	if len(e.cause) == 0 {
		return e.msg
	}
	if e.msg == "" {
		return e.cause[0].Error()
	}
	return e.msg + ": " + e.cause[0].Error()
}

// Unwrap returns e's causes, or nil if it has none.
//
// This is for interaction with the errors API.
func (e Error) Unwrap() []error {
	if len(e.cause) == 0 {
		return nil
	}
	return e.cause
}

// Is reports whether any of e's causes is the target error.
//
// This is for interaction with the errors API.
func (e Error) Is(target error) bool {
	for i := range e.cause {
		if e.cause[i] == target {
			return true
		}
	}
	return false
}
