package resilientclient

import (
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// wrappedBody wraps a response body to record a "body chunk" span event
// per Read, a "body end" event exactly once on EOF or Close, and errors
// on the span, adapted from the corpus's own response-body wrapper.
type wrappedBody struct {
	span   trace.Span
	body   io.ReadCloser
	read   atomic.Int64
	closed atomic.Bool
}

func newWrappedBody(span trace.Span, body io.ReadCloser) io.ReadCloser {
	if body == nil {
		return nil
	}
	return &wrappedBody{span: span, body: body}
}

func (w *wrappedBody) Read(p []byte) (int, error) {
	n, err := w.body.Read(p)
	if n > 0 {
		w.read.Add(int64(n))
		if w.span != nil {
			w.span.AddEvent("body chunk", trace.WithAttributes(attribute.Int64("bytes", int64(n))))
		}
	}
	switch err {
	case nil:
	case io.EOF:
		w.end()
	default:
		if w.span != nil {
			w.span.RecordError(err)
			w.span.SetStatus(codes.Error, err.Error())
		}
	}
	return n, err
}

func (w *wrappedBody) Close() error {
	w.end()
	if w.body != nil {
		return w.body.Close()
	}
	return nil
}

func (w *wrappedBody) end() {
	if w.closed.CompareAndSwap(false, true) && w.span != nil {
		w.span.AddEvent("body end", trace.WithAttributes(attribute.Int64("total_bytes", w.read.Load())))
	}
}
