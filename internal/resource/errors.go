package resource

import (
	"errors"
	"fmt"
)

// Kind classifies a failed resource operation.
type Kind int

const (
	// KindNetwork covers transport failures and non-2xx responses.
	KindNetwork Kind = iota + 1
	// KindNotFound marks an empty result. Accessors never return it as an
	// error; it exists so callers can classify empty data uniformly.
	KindNotFound
	// KindConfiguration marks a malformed request, such as a missing path
	// parameter. It is a programming error, not a runtime fault.
	KindConfiguration
	// KindDecode marks a 2xx response whose body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ErrCanceled is returned when the caller withdrew interest before the
// response arrived. It is neither a success nor a failure; callers must not
// record it in shared state.
var ErrCanceled = errors.New("resource: request canceled")

// Error describes a failed resource operation.
type Error struct {
	Kind   Kind
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.URL, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a resource Error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

// KindOf returns the Kind carried by err, or 0 when err is not a resource Error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// IsCanceled reports whether err means the request was abandoned.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
