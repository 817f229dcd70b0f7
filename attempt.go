package resilientclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// streamReadError wraps an error from a caller-supplied streaming
// request body so the attempt can classify it as BODY_STREAM regardless
// of how net/http itself chooses to wrap it.
type streamReadError struct {
	cause error
}

func (e *streamReadError) Error() string { return e.cause.Error() }
func (e *streamReadError) Unwrap() error { return e.cause }

type taggedStreamBody struct {
	io.Reader
}

func (b *taggedStreamBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	if err != nil && err != io.EOF {
		return n, &streamReadError{cause: err}
	}
	return n, err
}

// attemptDeps bundles the collaborators a single HTTP attempt needs,
// separated from ClientConfig so attempt() stays testable with a
// synthetic http.Client (see mock_transport.go).
type attemptDeps struct {
	clientName     string
	httpClient     *http.Client
	autoParseJSON  bool
	autoDecodeUTF8 bool
}

// attempt executes exactly one HTTP request and produces either a
// Response or one of {NETWORK, CONNECTION_TIMEOUT, READ_TIMEOUT,
// USER_TIMEOUT, BODY_STREAM}. It never retries.
func (d *attemptDeps) attempt(ctx context.Context, params *RequestParams) (*Response, *Error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if params.DropRequestAfter != nil {
		attemptCtx, cancel = context.WithTimeout(ctx, *params.DropRequestAfter)
		defer cancel()
	}

	timingEnabled := params.Timing != nil && *params.Timing
	var nt *networkTrace
	if timingEnabled || params.Span != nil {
		nt = newNetworkTrace()
		attemptCtx = nt.withClientTrace(attemptCtx, params.Span)
	}

	if params.Span != nil {
		params.Span.AddEvent("request start")
	}

	body, isStream := bodyReader(params.Body)
	if isStream {
		body = &taggedStreamBody{Reader: body}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, params.Method, params.url(), body)
	if err != nil {
		return nil, newError(d.clientName, KindNetwork, err).withRequest(params)
	}
	for k, vs := range params.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	finishTimings := func() *Timings {
		if !timingEnabled {
			return nil
		}
		nt.end = time.Now()
		return nt.timings()
	}

	httpResp, err := d.httpClient.Do(httpReq)
	if err != nil {
		kind := classifyAttemptError(err)
		return nil, newError(d.clientName, kind, err).withRequest(params).withTimings(finishTimings())
	}
	defer httpResp.Body.Close()

	if params.Span != nil {
		params.Span.AddEvent("response headers received")
	}

	respBody := io.ReadCloser(httpResp.Body)
	switch httpResp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, gerr := gzip.NewReader(respBody)
		if gerr != nil {
			return nil, newError(d.clientName, KindNetwork, gerr).withRequest(params)
		}
		respBody = gz
	case "deflate":
		respBody = flate.NewReader(respBody)
	}

	respBody = newWrappedBody(params.Span, respBody)

	raw, readErr := io.ReadAll(respBody)
	timings := finishTimings()
	respBody.Close()

	if readErr != nil {
		if params.Span != nil {
			params.Span.RecordError(readErr)
			params.Span.SetStatus(codes.Error, readErr.Error())
		}
		return nil, newError(d.clientName, KindNetwork, readErr).withRequest(params).withTimings(timings)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    map[string][]string(httpResp.Header),
		Request:    params,
		Timings:    timings,
	}

	decoded, decodeErr := decodeBody(d.clientName, raw, httpResp.Header.Get("Content-Type"), d.autoParseJSON, d.autoDecodeUTF8, resp)
	if decodeErr != nil {
		return nil, decodeErr.withRequest(params).withTimings(resp.Timings)
	}
	resp.Body = decoded

	return resp, nil
}

// classifyAttemptError maps a transport-level failure to the timeout
// taxonomy, adapted from the corpus's own httptrace-driven error
// classification (trace.go's classifyError).
func classifyAttemptError(err error) Kind {
	var sre *streamReadError
	if errors.As(err, &sre) {
		return KindBodyStream
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUserTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return KindConnectionTimeout
		}
		return KindReadTimeout
	}

	return KindNetwork
}
