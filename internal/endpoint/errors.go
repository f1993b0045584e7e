package endpoint

import (
	"errors"
	"fmt"

	"github.com/meshwatch/meshwatch/pkg/types"
)

// ErrUnknownService is returned for a key with no configured descriptor.
var ErrUnknownService = errors.New("unknown service")

// Kind classifies a request failure.
type Kind int

const (
	// KindTransport means no response reached the client: DNS, refused
	// connection, timeout, cancelled context.
	KindTransport Kind = iota + 1
	// KindHTTP means a response arrived with a non-success status.
	KindHTTP
	// KindDecode means the response body was not the expected JSON.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the single failure value returned by Client. It carries the
// originating service and path for diagnosis.
type Error struct {
	Service    types.ServiceKey
	Path       string
	Kind       Kind
	StatusCode int // set for KindHTTP only
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("endpoint %s %s: unexpected status %d", e.Service, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("endpoint %s %s: %s: %v", e.Service, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
