package llm

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUpstreamRejected ErrorKind = "upstream_rejected"
	KindUnreachable      ErrorKind = "upstream_unreachable"
)

const (
	CauseTimeout   = "timeout"
	CauseCancelled = "cancelled"
	CauseNetwork   = "network"
)

var ErrMissingAPIKey = errors.New("completion api key is not configured")

// GatewayError describes a failed exchange with the completion API.
// StatusCode and Body are set for KindUpstreamRejected, Cause for KindUnreachable.
type GatewayError struct {
	Kind       ErrorKind
	Cause      string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	switch e.Kind {
	case KindUpstreamRejected:
		return fmt.Sprintf("completion api rejected request: status %d", e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("completion api unreachable (%s): %v", e.Cause, e.Err)
		}
		return fmt.Sprintf("completion api unreachable (%s)", e.Cause)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AsGatewayError reports whether err carries a *GatewayError and returns it.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

func (e *GatewayError) retryable() bool {
	switch e.Kind {
	case KindUnreachable:
		return e.Cause == CauseNetwork
	case KindUpstreamRejected:
		return e.StatusCode >= 500
	}
	return false
}
