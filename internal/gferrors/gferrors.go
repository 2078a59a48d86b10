// Package gferrors holds the typed errors produced while loading,
// merging, and normalizing a grammar. All of them are returned only at
// build time; the code this build step eventually emits has no fallible
// paths of its own.
package gferrors

import "fmt"

// Kind identifies which of the build-time error conditions occurred.
type Kind int

const (
	KindUnknown Kind = iota
	KindParsing
	KindMissingEntrypoint
	KindMissingNonTerminal
	KindCycles
	KindMergeConflict
)

func (k Kind) String() string {
	switch k {
	case KindParsing:
		return "parsing error"
	case KindMissingEntrypoint:
		return "missing entrypoint"
	case KindMissingNonTerminal:
		return "missing non-terminal"
	case KindCycles:
		return "grammar contains cycles"
	case KindMergeConflict:
		return "merge conflict"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// buildError is the concrete type behind every error this package
// constructs. It is never referenced directly outside the package; all
// construction goes through the exported functions below.
type buildError struct {
	kind Kind
	msg  string
	wrap error
}

func (e *buildError) Error() string {
	if e.wrap != nil {
		return e.msg + ": " + e.wrap.Error()
	}
	return e.msg
}

func (e *buildError) Unwrap() error {
	return e.wrap
}

// Parsing returns an error indicating that the grammar file at path could
// not be parsed, with msg describing what about it was malformed.
func Parsing(path, msg string) error {
	return &buildError{
		kind: KindParsing,
		msg:  fmt.Sprintf("%s: %s", path, msg),
	}
}

// MissingEntrypoint returns an error indicating that the named start
// symbol has no rule defining it.
func MissingEntrypoint(name string) error {
	return &buildError{
		kind: KindMissingEntrypoint,
		msg:  fmt.Sprintf("no rule defines entrypoint %q", name),
	}
}

// MissingNonTerminal returns an error indicating that some rule's
// right-hand side refers to a non-terminal with no rule of its own.
func MissingNonTerminal(name string) error {
	return &buildError{
		kind: KindMissingNonTerminal,
		msg:  fmt.Sprintf("non-terminal %q is referenced but not defined", name),
	}
}

// Cycles returns an error indicating the cycle check in the normalizer
// found one or more non-terminals with no terminating derivation.
func Cycles() error {
	return &buildError{
		kind: KindCycles,
		msg:  "grammar contains a cycle with no terminating derivation",
	}
}

// MergeConflict returns an error indicating the same non-terminal name
// was defined by more than one of the merged grammar files.
func MergeConflict(name string) error {
	return &buildError{
		kind: KindMergeConflict,
		msg:  fmt.Sprintf("non-terminal %q is defined in more than one grammar file", name),
	}
}

// Wrap returns an error of the given kind that wraps cause, with msg
// prepended. Used where an error from a lower layer (e.g. os.Open) needs
// to be reported with a build-time Kind attached.
func Wrap(kind Kind, cause error, msg string) error {
	return &buildError{
		kind: kind,
		msg:  msg,
		wrap: cause,
	}
}

// KindOf reports the Kind of err if it (or something in its Unwrap chain)
// is one of this package's errors, and KindUnknown otherwise.
func KindOf(err error) Kind {
	for err != nil {
		if be, ok := err.(*buildError); ok {
			return be.kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
