package otd

import "fmt"

// StatusCode is one of the stable, never-renumbered return codes every
// public operation in this package reports through, mirroring the
// otd_error_code enum of the C ABI this runtime descends from.
type StatusCode int

const (
	StatusOK              StatusCode = 0
	StatusError           StatusCode = -1
	StatusMalloc          StatusCode = -2
	StatusArg             StatusCode = -3
	StatusBug             StatusCode = -4
	StatusScriptError     StatusCode = -5
	StatusDecodersDir     StatusCode = -6
	StatusTerminateRequest StatusCode = -7
)

// Error pairs a StatusCode with context. Callers that only need the code
// can type-assert or use errors.As; Error() always includes the string.
type Error struct {
	Code    StatusCode
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return Strerror(e.Code)
	}
	return fmt.Sprintf("%s: %s", Strerror(e.Code), e.Context)
}

// newErr builds an *Error, formatting Context like fmt.Sprintf when args
// are given.
func newErr(code StatusCode, format string, args ...any) *Error {
	if format == "" {
		return &Error{Code: code}
	}
	return &Error{Code: code, Context: fmt.Sprintf(format, args...)}
}

// Strerror returns a short, human-readable description of code, never
// empty. It never panics on unrecognized codes -- new codes may be added
// over time without breaking old callers.
func Strerror(code StatusCode) string {
	switch code {
	case StatusOK:
		return "no error"
	case StatusError:
		return "generic/unspecified error"
	case StatusMalloc:
		return "memory allocation error"
	case StatusArg:
		return "invalid argument"
	case StatusBug:
		return "internal error"
	case StatusScriptError:
		return "decoder script error"
	case StatusDecodersDir:
		return "decoders directory access error"
	case StatusTerminateRequest:
		return "termination requested"
	default:
		return "unknown error"
	}
}

// StrerrorName returns the symbolic constant name for code, e.g.
// "StatusArg" for StatusArg. Used by frontends that want to log the
// identifier rather than the prose description.
func StrerrorName(code StatusCode) string {
	switch code {
	case StatusOK:
		return "StatusOK"
	case StatusError:
		return "StatusError"
	case StatusMalloc:
		return "StatusMalloc"
	case StatusArg:
		return "StatusArg"
	case StatusBug:
		return "StatusBug"
	case StatusScriptError:
		return "StatusScriptError"
	case StatusDecodersDir:
		return "StatusDecodersDir"
	case StatusTerminateRequest:
		return "StatusTerminateRequest"
	default:
		return "unknown error code"
	}
}
