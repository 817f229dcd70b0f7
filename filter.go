package resilientclient

import (
	"context"
	"strconv"
)

// RequestFilterFunc transforms RequestParams before the HTTP attempt. It
// may return a non-nil Response to short-circuit the attempt entirely,
// or a non-nil error (typed REQUEST_FILTER_FAILED by the pipeline runner)
// to reject the call outright.
type RequestFilterFunc func(ctx context.Context, params *RequestParams) (*RequestParams, *Response, error)

// ResponseFilterFunc transforms a Response after the HTTP attempt (or
// after a request-side short-circuit). An error return is typed
// RESPONSE_FILTER_FAILED by the pipeline runner and carries the raw
// Response it was given.
type ResponseFilterFunc func(ctx context.Context, resp *Response) (*Response, error)

// Filter exposes zero or one of a request transform and a response
// transform. Either accessor may return nil.
type Filter interface {
	RequestFunc() RequestFilterFunc
	ResponseFunc() ResponseFilterFunc
}

// FilterFunc adapts two nilable function values into a Filter, the way
// the corpus adapts classifier functions into named strategy types
// (see classifier.go's RetryClassifierFunc idiom) without requiring a
// caller to declare a named type for an ad-hoc filter.
type FilterFunc struct {
	Request  RequestFilterFunc
	Response ResponseFilterFunc
}

func (f FilterFunc) RequestFunc() RequestFilterFunc   { return f.Request }
func (f FilterFunc) ResponseFunc() ResponseFilterFunc { return f.Response }

// runFilterPipeline runs request filters in order until one returns a
// Response (short-circuit) or all have run;
// then filters whose request side participated unwind in reverse via
// their response transform.
//
// It returns either the final Response, after the response filters have
// run, or a typed *Error.
func runFilterPipeline(
	ctx context.Context,
	clientName string,
	filters []Filter,
	params *RequestParams,
	doAttempt func(context.Context, *RequestParams) (*Response, *Error),
) (*Response, *Error) {
	participated := 0
	var shortCircuit *Response

	for _, f := range filters {
		participated++
		reqFn := f.RequestFunc()
		if reqFn == nil {
			continue
		}
		newParams, resp, err := reqFn(ctx, params)
		if err != nil {
			return nil, newError(clientName, KindRequestFilterFailed, err).withRequest(params)
		}
		if resp != nil {
			shortCircuit = resp
			break
		}
		if newParams != nil {
			params = newParams
		}
	}

	var resp *Response
	var attemptErr *Error
	if shortCircuit != nil {
		resp = shortCircuit
	} else {
		resp, attemptErr = doAttempt(ctx, params)
		if attemptErr != nil {
			return nil, attemptErr
		}
	}

	for i := participated - 1; i >= 0; i-- {
		respFn := filters[i].ResponseFunc()
		if respFn == nil {
			continue
		}
		newResp, err := respFn(ctx, resp)
		if err != nil {
			return nil, newError(clientName, KindResponseFilterFailed, err).withResponse(resp)
		}
		resp = newResp
	}

	return resp, nil
}

// DefaultServerErrorFilter treats any response with status >= 500 as a
// failure. It is always installed first in the pipeline.
func DefaultServerErrorFilter() Filter {
	return FilterFunc{
		Response: func(_ context.Context, resp *Response) (*Response, error) {
			if resp.StatusCode >= 500 {
				return nil, statusFilterError(resp)
			}
			return resp, nil
		},
	}
}

// ClientErrorFilter treats any 4xx response as a failure. It is an
// optional pre-canned filter, not installed by default.
func ClientErrorFilter() Filter {
	return FilterFunc{
		Response: func(_ context.Context, resp *Response) (*Response, error) {
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, statusFilterError(resp)
			}
			return resp, nil
		},
	}
}

type statusError struct {
	statusCode int
}

func (e *statusError) Error() string {
	return "unexpected status code " + strconv.Itoa(e.statusCode)
}

func statusFilterError(resp *Response) error {
	return &statusError{statusCode: resp.StatusCode}
}
