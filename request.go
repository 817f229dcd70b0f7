package resilientclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// RequestParams is the merged result of client defaults and per-call
// overrides. Hostname is never user-overridable: the orchestrator always
// forces it back to the client's own hostname after merging.
type RequestParams struct {
	Method   string
	Hostname string
	Port     int
	Scheme   string

	// Exactly one of Path or Pathname is authoritative: if both are set,
	// Path wins; otherwise Path is derived from Pathname plus the
	// serialised Query.
	Path     string
	Pathname string
	Query    url.Values

	Headers map[string][]string

	// Body is opaque: []byte, string, or io.Reader (a streaming body).
	Body any

	ConnectionTimeout   *time.Duration
	ReadTimeout         *time.Duration
	DropRequestAfter    *time.Duration
	DropAllRequestsAfter *time.Duration

	// Timing enables per-phase timing capture for this call, overriding
	// the client default when explicitly set (see SPEC_FULL.md §9 on
	// per-call vs client-level "timing").
	Timing *bool

	Span trace.Span
}

func (p *RequestParams) header(key string) (string, bool) {
	if p.Headers == nil {
		return "", false
	}
	vs, ok := p.Headers[http.CanonicalHeaderKey(key)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (p *RequestParams) setHeaderIfAbsent(key, value string) {
	if p.Headers == nil {
		p.Headers = make(map[string][]string)
	}
	k := http.CanonicalHeaderKey(key)
	if _, ok := p.Headers[k]; !ok {
		p.Headers[k] = []string{value}
	}
}

// resolvedPath returns the request's effective path, applying the
// Path-wins-over-Pathname invariant.
func (p *RequestParams) resolvedPath() string {
	if p.Path != "" {
		return p.Path
	}
	pathname := p.Pathname
	if pathname == "" {
		pathname = "/"
	}
	if len(p.Query) == 0 {
		return pathname
	}
	return pathname + "?" + p.Query.Encode()
}

// url builds the fully-qualified URL string for this request.
func (p *RequestParams) url() string {
	scheme := p.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := p.Hostname
	if p.Port != 0 && !isDefaultPort(scheme, p.Port) {
		host = host + ":" + strconv.Itoa(p.Port)
	}
	return scheme + "://" + host + p.resolvedPath()
}

func isDefaultPort(scheme string, port int) bool {
	return (scheme == "https" && port == 443) || (scheme == "http" && port == 80)
}

// bodyReader adapts Body into an io.Reader plus a flag reporting whether
// it is a genuine stream (so a read failure should be classified
// BODY_STREAM rather than NETWORK).
func bodyReader(body any) (io.Reader, bool) {
	switch b := body.(type) {
	case nil:
		return nil, false
	case []byte:
		return strings.NewReader(string(b)), false
	case string:
		return strings.NewReader(b), false
	case io.Reader:
		return b, true
	default:
		return nil, false
	}
}

// clone returns a copy of RequestParams with Headers and Query deep-copied
// (Body, Span and the pointer options stay shared), suitable for merging
// client defaults with per-call overrides without mutating either.
func (p RequestParams) clone() *RequestParams {
	c := p
	if p.Headers != nil {
		c.Headers = make(map[string][]string, len(p.Headers))
		for k, v := range p.Headers {
			vv := make([]string, len(v))
			copy(vv, v)
			c.Headers[k] = vv
		}
	}
	if p.Query != nil {
		c.Query = make(url.Values, len(p.Query))
		for k, v := range p.Query {
			vv := make([]string, len(v))
			copy(vv, v)
			c.Query[k] = vv
		}
	}
	return &c
}

type ctxKey int

const ctxKeyCorrelationID ctxKey = iota

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationID returns the per-call correlation id attached by the
// orchestrator, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyCorrelationID).(string)
	return id, ok
}
