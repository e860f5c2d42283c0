// Package crewerr defines the error kinds shared by the crew orchestration engine.
//
// Every typed error raised by the engine unwraps to exactly one of the kind
// sentinels below, so callers classify failures with errors.Is instead of
// matching concrete types.
package crewerr

import "errors"

var (
	// ErrConfiguration covers missing unit fields, scope conflicts, missing or
	// invalid external inputs and unknown units or tools.
	ErrConfiguration = errors.New("configuration error")

	// ErrGraph indicates the dependency graph is unusable (cycle detected).
	ErrGraph = errors.New("graph error")

	// ErrPathSafety indicates a resolved path escapes its sanctioned root.
	ErrPathSafety = errors.New("path safety error")

	// ErrTransientRemote is the rate-limit signal from a remote collaborator.
	ErrTransientRemote = errors.New("transient remote error")

	// ErrRemote is any other failure reported by a remote collaborator.
	ErrRemote = errors.New("remote error")

	// ErrCacheIO is a filesystem failure while reading or writing an artifact.
	ErrCacheIO = errors.New("cache io error")

	// ErrAborted is returned when a remote failure terminates the run because
	// exit-on-error is enabled.
	ErrAborted = errors.New("run aborted")
)

// Kind returns the kind sentinel err unwraps to, or nil if it has none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrPathSafety,
		ErrGraph,
		ErrConfiguration,
		ErrAborted,
		ErrCacheIO,
		ErrTransientRemote,
		ErrRemote,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsFatal reports whether err must abort the whole run regardless of the
// exit-on-error toggle.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPathSafety) || errors.Is(err, ErrGraph)
}

// Error is a message tagged with a kind. It is the plain building block used
// where a dedicated error type would carry no extra fields.
type Error struct {
	kind error
	msg  string
	err  error
}

// New returns an error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap returns an error of the given kind wrapping cause.
func Wrap(kind error, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, err: cause}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.err != nil {
		return []error{e.kind, e.err}
	}
	return []error{e.kind}
}
