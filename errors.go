package resilientclient

import "errors"

// Kind discriminates the closed set of failure kinds a call can terminate
// with. It is a tagged variant, not an open string: callers switch on it
// with errors.As against *Error and compare Kind values directly.
type Kind string

const (
	KindBodyParseFailed     Kind = "BODY_PARSE_FAILED"
	KindNetwork             Kind = "NETWORK"
	KindConnectionTimeout   Kind = "CONNECTION_TIMEOUT"
	KindReadTimeout         Kind = "READ_TIMEOUT"
	KindUserTimeout         Kind = "USER_TIMEOUT"
	KindBodyStream          Kind = "BODY_STREAM"
	KindRequestFilterFailed Kind = "REQUEST_FILTER_FAILED"
	KindResponseFilterFailed Kind = "RESPONSE_FILTER_FAILED"
	KindCircuitOpen         Kind = "CIRCUIT_OPEN"
	KindShouldRetryRejected Kind = "SHOULD_RETRY_REJECTED"
	KindMaxRetriesReached   Kind = "MAX_RETRIES_REACHED"
	KindInternalError       Kind = "INTERNAL_ERROR"
)

// Error is the single type every failure surfaced to a caller takes. It
// carries the original cause, a human message prefixed with the client
// name, the offending request when available, the partial response when
// one exists, timings observed before failure, and the retryErrors
// accumulated over the call so far.
type Error struct {
	Kind        Kind
	ClientName  string
	Cause       error
	Request     *RequestParams
	Response    *Response
	Timings     *Timings
	RetryErrors []*Error
}

// newError builds an Error, formatting Error() eagerly is unnecessary —
// Error() is computed on demand from the fields below.
func newError(clientName string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, ClientName: clientName, Cause: cause}
}

func (e *Error) withRequest(r *RequestParams) *Error {
	e.Request = r
	return e
}

func (e *Error) withResponse(r *Response) *Error {
	e.Response = r
	return e
}

func (e *Error) withTimings(t *Timings) *Error {
	e.Timings = t
	return e
}

func (e *Error) withRetryErrors(errs []*Error) *Error {
	e.RetryErrors = errs
	return e
}

// Error implements the error interface using the format
// "<client-name>: <type>. <original-message>", omitting the trailing
// ". <original-message>" separator entirely when there is no cause or
// the cause has no message.
func (e *Error) Error() string {
	prefix := e.ClientName + ": " + string(e.Kind)
	if e.Cause == nil {
		return prefix
	}
	if msg := e.Cause.Error(); msg != "" {
		return prefix + ". " + msg
	}
	return prefix
}

// Unwrap exposes the original cause to errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality by Kind, mirroring the corpus's own tagged-error
// comparison convention rather than pointer identity.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// asError extracts a *Error from an arbitrary error, wrapping anything
// else as INTERNAL_ERROR per the orchestrator's "unknown errors" rule.
func asError(clientName string, err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return newError(clientName, KindInternalError, err)
}
