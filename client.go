package resilientclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// Client is constructed once and serves many concurrent calls. It owns
// the breaker (or breaker factory), the retry policy, the filter
// pipeline, and the underlying *http.Transport that HTTP attempts share.
type Client struct {
	cfg *ClientConfig

	httpClient *http.Client
	transport  *http.Transport

	breaker       *CircuitBreaker
	breakerCtx    context.Context
	breakerCancel context.CancelFunc

	filters []Filter

	defaultPath  string
	defaultPort  int
	defaultQuery url.Values

	tracer trace.Tracer
	meter  metric.Meter
	m      *clientMetrics

	coalescer *coalescer
}

// NewClient constructs a Client for hostnameOrURL, which may be a bare
// hostname or a full URL string. When it is a URL string, scheme, host,
// port, path, and query are parsed into the default RequestParams,
// pathname defaulting to "/".
func NewClient(hostnameOrURL string, opts ...Option) (*Client, error) {
	hostname := hostnameOrURL
	var defaultScheme, defaultPath string
	var defaultQuery url.Values
	var defaultPort int

	if strings.Contains(hostnameOrURL, "://") {
		u, err := url.Parse(hostnameOrURL)
		if err != nil {
			return nil, newError("resilientclient", KindInternalError, err)
		}
		hostname = u.Hostname()
		defaultScheme = u.Scheme
		if u.Path == "" {
			defaultPath = "/"
		} else {
			defaultPath = u.Path
		}
		defaultQuery = u.Query()
		if p := u.Port(); p != "" {
			defaultPort, _ = strconv.Atoi(p)
		}
	}

	cfg, err := newClientConfig(hostname, opts...)
	if err != nil {
		return nil, err
	}
	if defaultScheme != "" {
		cfg.Scheme = defaultScheme
	}

	var transport *http.Transport
	var rt http.RoundTripper
	if cfg.mockTransport != nil {
		rt = cfg.mockTransport
	} else {
		transport = &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectionTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectionTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		}
		rt = transport
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: rt},
		transport:  transport,
		filters:    append([]Filter{DefaultServerErrorFilter()}, cfg.Filters...),
		coalescer:  &coalescer{},
	}

	if defaultPath != "" || defaultPort != 0 || len(defaultQuery) > 0 {
		c.defaultPath, c.defaultPort, c.defaultQuery = defaultPath, defaultPort, defaultQuery
	}

	c.breakerCtx, c.breakerCancel = context.WithCancel(context.Background())
	if cfg.BreakerFactory == nil {
		bcfg := cfg.Breaker
		bcfg.Name = cfg.Name
		bcfg.Registerer = cfg.Registerer
		bcfg.Logger = cfg.Logger
		bcfg.Disabled = cfg.NoBreaker
		c.breaker = NewCircuitBreaker(c.breakerCtx, bcfg)
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c.tracer = tp.Tracer("github.com/kroma-labs/resilientclient")

	mp := cfg.MeterProvider
	if mp == nil {
		mp = noopmetric.NewMeterProvider()
	}
	c.meter = mp.Meter("github.com/kroma-labs/resilientclient")
	c.m = newClientMetrics(c.meter)

	return c, nil
}

// Close stops background tasks (the breaker's rotation ticker). It does
// not close idle transport connections; callers that want that should
// call CloseIdleConnections separately.
func (c *Client) Close() {
	c.breakerCancel()
	if c.breaker != nil {
		c.breaker.Close()
	}
}

func (c *Client) CloseIdleConnections() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// mergeParams applies the call-level merge rules: hostname is always
// forced to the client's own, port defaults from scheme,
// accept:application/json is set unless overridden, and timing and
// dropRequestAfter inherit from the client unless explicitly set on the
// call.
func (c *Client) mergeParams(p *RequestParams) *RequestParams {
	merged := p.clone()
	merged.Hostname = c.cfg.Hostname
	if merged.Scheme == "" {
		merged.Scheme = c.cfg.Scheme
	}
	if merged.Pathname == "" && merged.Path == "" && c.defaultPath != "" {
		merged.Pathname = c.defaultPath
	}
	if len(merged.Query) == 0 && len(c.defaultQuery) > 0 {
		merged.Query = c.defaultQuery
	}
	if merged.Port == 0 {
		if c.defaultPort != 0 {
			merged.Port = c.defaultPort
		} else if merged.Scheme == "https" {
			merged.Port = 443
		} else {
			merged.Port = 80
		}
	}
	if merged.Method == "" {
		merged.Method = http.MethodGet
	}
	if _, ok := merged.header("Accept"); !ok {
		merged.setHeaderIfAbsent("Accept", "application/json")
	}
	if merged.Timing == nil {
		t := c.cfg.Timing
		merged.Timing = &t
	}
	if merged.DropRequestAfter == nil && c.cfg.DropRequestAfter != nil {
		merged.DropRequestAfter = c.cfg.DropRequestAfter
	}
	return merged
}

// Request is the library's single entry point: perform one logical
// request, transparently handling retries and circuit-breaking.
func (c *Client) Request(ctx context.Context, params RequestParams) (*Response, error) {
	merged := c.mergeParams(&params)

	id := uuid.NewString()
	ctx = withCorrelationID(ctx, id)

	if err := waitRateLimit(ctx, c.cfg.RateLimit); err != nil {
		return nil, newError(c.cfg.Name, KindUserTimeout, err).withRequest(merged)
	}

	if c.cfg.Coalesce {
		if key, ok := coalesceKey(merged); ok {
			resp, cerr := c.coalescer.do(key, func() (*Response, *Error) {
				return c.call(ctx, merged)
			})
			if cerr != nil {
				return nil, cerr
			}
			return resp, nil
		}
	}

	resp, cerr := c.call(ctx, merged)
	if cerr != nil {
		return nil, cerr
	}
	return resp, nil
}

func (c *Client) acquireBreaker() *CircuitBreaker {
	if c.cfg.BreakerFactory != nil {
		return c.cfg.BreakerFactory()
	}
	return c.breaker
}

// call runs the attempt loop: breaker gate, filter pipeline plus HTTP
// attempt, retry scheduling, and the global deadline.
func (c *Client) call(ctx context.Context, params *RequestParams) (*Response, *Error) {
	breaker := c.acquireBreaker()

	callCtx := ctx
	deadline := c.cfg.DropAllRequestsAfter
	if params.DropAllRequestsAfter != nil {
		deadline = params.DropAllRequestsAfter
	}
	var cancel context.CancelFunc
	if deadline != nil {
		callCtx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	schedule, genErr := GenerateSchedule(c.cfg.Retry)
	if genErr != nil {
		return nil, newError(c.cfg.Name, KindInternalError, genErr).withRequest(params)
	}

	var retryErrors []*Error
	attemptIdx := 0

	for {
		attemptIdx++

		select {
		case <-callCtx.Done():
			return nil, newError(c.cfg.Name, KindUserTimeout, callCtx.Err()).withRequest(params).withRetryErrors(retryErrors)
		default:
		}

		if breaker.IsOpen() {
			return nil, newError(c.cfg.Name, KindCircuitOpen, errCircuitOpen).withRequest(params).withRetryErrors(retryErrors)
		}

		o := breaker.Enroll()
		resp, attemptErr := c.runAttemptWithFilters(callCtx, params)

		if attemptErr == nil {
			o.Success()
			resp.RetryErrors = retryErrors
			return resp, nil
		}

		if isTimeoutKind(attemptErr.Kind) {
			o.Timeout()
		} else {
			o.Failure()
		}
		retryErrors = append(retryErrors, attemptErr)

		if callCtx.Err() != nil {
			return nil, newError(c.cfg.Name, KindUserTimeout, callCtx.Err()).withRequest(params).withRetryErrors(retryErrors)
		}

		// With retries disabled the raw typed error is surfaced unwrapped,
		// without consulting ShouldRetry.
		if c.cfg.Retry.Retries == 0 {
			return nil, attemptErr
		}

		if !c.cfg.ShouldRetry(attemptErr, params) {
			return nil, newError(c.cfg.Name, KindShouldRetryRejected, attemptErr).withRequest(params).withRetryErrors(retryErrors)
		}

		if attemptIdx-1 >= len(schedule) {
			if c.cfg.Retry.Retries > 0 {
				return nil, newError(c.cfg.Name, KindMaxRetriesReached, attemptErr).withRequest(params).withRetryErrors(retryErrors)
			}
			return nil, attemptErr
		}

		c.cfg.OnRetry(attemptIdx+1, attemptErr, params)

		timer := time.NewTimer(schedule[attemptIdx-1])
		select {
		case <-callCtx.Done():
			timer.Stop()
			return nil, newError(c.cfg.Name, KindUserTimeout, callCtx.Err()).withRequest(params).withRetryErrors(retryErrors)
		case <-timer.C:
		}
	}
}

func isTimeoutKind(k Kind) bool {
	return k == KindConnectionTimeout || k == KindReadTimeout || k == KindUserTimeout
}

// runAttemptWithFilters runs the filter pipeline and, unless
// short-circuited, the HTTP attempt, emitting an observability span when
// a TracerProvider is configured and the caller didn't already supply
// one.
func (c *Client) runAttemptWithFilters(ctx context.Context, params *RequestParams) (*Response, *Error) {
	deps := &attemptDeps{
		clientName:     c.cfg.Name,
		httpClient:     c.httpClientFor(params),
		autoParseJSON:  c.cfg.AutoParseJSON,
		autoDecodeUTF8: c.cfg.AutoDecodeUTF8,
	}

	ownsSpan := false
	if params.Span == nil {
		attemptCtx, span := c.tracer.Start(ctx, "resilientclient.attempt",
			trace.WithAttributes(requestStartAttrs(params.Method, params.url())...))
		ctx = attemptCtx
		params = params.clone()
		params.Span = span
		ownsSpan = true
		defer func() {
			if ownsSpan {
				span.End()
			}
		}()
	}

	start := time.Now()
	resp, err := runFilterPipeline(ctx, c.cfg.Name, c.filters, params, deps.attempt)
	c.m.observeAttempt(ctx, time.Since(start), err == nil)

	return resp, err
}

// httpClientFor returns the client's shared *http.Client, or a one-off
// client with a dedicated transport when the call overrides
// connectionTimeout/readTimeout — that override necessarily forfeits
// connection reuse for this one attempt.
func (c *Client) httpClientFor(params *RequestParams) *http.Client {
	if params.ConnectionTimeout == nil && params.ReadTimeout == nil {
		return c.httpClient
	}
	connTimeout := c.cfg.ConnectionTimeout
	if params.ConnectionTimeout != nil {
		connTimeout = *params.ConnectionTimeout
	}
	readTimeout := c.cfg.ReadTimeout
	if params.ReadTimeout != nil {
		readTimeout = *params.ReadTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: connTimeout}).DialContext,
			TLSHandshakeTimeout:   connTimeout,
			ResponseHeaderTimeout: readTimeout,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}
