package resilientclient

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// networkTrace captures the raw wall-clock timestamps of one attempt's
// network events, adapted from the corpus's httptrace wiring. elapsedMs
// converts a captured timestamp into "milliseconds since the attempt
// started", the unit Timings is defined in.
type networkTrace struct {
	start time.Time

	getConn       time.Time
	gotConn       time.Time
	connReused    bool
	dnsStart      time.Time
	dnsDone       time.Time
	connectStart  time.Time
	connectDone   time.Time
	tlsStart      time.Time
	tlsDone       time.Time
	firstResponse time.Time
	end           time.Time
}

func newNetworkTrace() *networkTrace {
	return &networkTrace{start: time.Now()}
}

// withClientTrace returns a context carrying an httptrace.ClientTrace
// that populates nt, and, when span is non-nil, emits network-timing
// events on the span as they occur.
func (nt *networkTrace) withClientTrace(ctx context.Context, span trace.Span) context.Context {
	ct := &httptrace.ClientTrace{
		GetConn: func(_ string) {
			nt.getConn = time.Now()
		},
		GotConn: func(info httptrace.GotConnInfo) {
			nt.gotConn = time.Now()
			nt.connReused = info.Reused
			if span != nil {
				span.AddEvent("socket assigned", trace.WithTimestamp(nt.gotConn))
			}
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			nt.dnsStart = time.Now()
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			nt.dnsDone = time.Now()
			if span != nil {
				span.AddEvent("dns resolved", trace.WithTimestamp(nt.dnsDone))
			}
		},
		ConnectStart: func(_, _ string) {
			nt.connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, err error) {
			nt.connectDone = time.Now()
			if span != nil && err == nil {
				span.AddEvent("tcp connected", trace.WithTimestamp(nt.connectDone))
			}
		},
		TLSHandshakeStart: func() {
			nt.tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			nt.tlsDone = time.Now()
			if span != nil && err == nil {
				span.AddEvent("tls connected", trace.WithTimestamp(nt.tlsDone))
			}
		},
		GotFirstResponseByte: func() {
			nt.firstResponse = time.Now()
			if span != nil {
				span.AddEvent("response headers", trace.WithTimestamp(nt.firstResponse))
			}
		},
	}
	return httptrace.WithClientTrace(ctx, ct)
}

func (nt *networkTrace) elapsedMs(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.Sub(nt.start).Milliseconds()
	return &ms
}

// timings converts the captured timestamps into a Timings value. When
// the connection was reused (keep-alive), lookup/connect/secureConnect
// collapse onto socket.
func (nt *networkTrace) timings() *Timings {
	socket := nt.elapsedMs(nt.getConn)
	t := &Timings{
		Socket:   socket,
		Response: nt.elapsedMs(nt.firstResponse),
		End:      nt.elapsedMs(nt.end),
	}
	if nt.connReused {
		t.Lookup = socket
		t.Connect = socket
		t.SecureConnect = socket
		return t
	}
	t.Lookup = nt.elapsedMs(nt.dnsDone)
	t.Connect = nt.elapsedMs(nt.connectDone)
	if !nt.tlsDone.IsZero() {
		t.SecureConnect = nt.elapsedMs(nt.tlsDone)
	}
	return t
}

func requestStartAttrs(method, url string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	}
}
