package resilientclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var errInvalidHostname = errors.New("hostname must not be empty")

// ClientConfig is immutable once built by newClientConfig. It carries
// the hostname, filter list, retry policy, breaker policy, default
// request options, and feature flags.
type ClientConfig struct {
	Name     string
	Hostname string
	Scheme   string

	Filters []Filter

	Retry   RetryPolicy
	Breaker BreakerConfig
	// NoBreaker disables the circuit breaker entirely, substituting a
	// noop breaker that never opens.
	NoBreaker bool
	// BreakerFactory, when set, produces one breaker per call instead
	// of sharing a single client-lifetime breaker.
	BreakerFactory func() *CircuitBreaker

	ConnectionTimeout    time.Duration
	ReadTimeout          time.Duration
	DropRequestAfter     *time.Duration
	DropAllRequestsAfter *time.Duration

	AutoParseJSON  bool
	AutoDecodeUTF8 bool
	Timing         bool

	ShouldRetry func(err *Error, params *RequestParams) bool
	OnRetry     func(nextAttempt int, err *Error, params *RequestParams)

	Coalesce  bool
	RateLimit *rate.Limiter

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Registerer     prometheus.Registerer
	Logger         zerolog.Logger

	mockTransport *MockTransport
}

// Option mutates a ClientConfig during construction.
type Option func(*ClientConfig)

func WithName(name string) Option {
	return func(c *ClientConfig) { c.Name = name }
}

func WithFilter(f Filter) Option {
	return func(c *ClientConfig) { c.Filters = append(c.Filters, f) }
}

func WithClientErrorFilter() Option {
	return WithFilter(ClientErrorFilter())
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *ClientConfig) { c.Retry = p }
}

func WithBreakerConfig(cfg BreakerConfig) Option {
	return func(c *ClientConfig) { c.Breaker = cfg }
}

func WithBreakerFactory(f func() *CircuitBreaker) Option {
	return func(c *ClientConfig) { c.BreakerFactory = f }
}

func WithoutBreaker() Option {
	return func(c *ClientConfig) { c.NoBreaker = true }
}

func WithConnectionTimeout(d time.Duration) Option {
	return func(c *ClientConfig) { c.ConnectionTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *ClientConfig) { c.ReadTimeout = d }
}

func WithDropRequestAfter(d time.Duration) Option {
	return func(c *ClientConfig) { c.DropRequestAfter = &d }
}

func WithDropAllRequestsAfter(d time.Duration) Option {
	return func(c *ClientConfig) { c.DropAllRequestsAfter = &d }
}

func WithAutoParseJSON(v bool) Option {
	return func(c *ClientConfig) { c.AutoParseJSON = v }
}

func WithAutoDecodeUTF8(v bool) Option {
	return func(c *ClientConfig) { c.AutoDecodeUTF8 = v }
}

func WithTiming(v bool) Option {
	return func(c *ClientConfig) { c.Timing = v }
}

func WithShouldRetry(f func(err *Error, params *RequestParams) bool) Option {
	return func(c *ClientConfig) { c.ShouldRetry = f }
}

func WithOnRetry(f func(nextAttempt int, err *Error, params *RequestParams)) Option {
	return func(c *ClientConfig) { c.OnRetry = f }
}

// WithCoalesce enables in-flight de-duplication of identical concurrent
// idempotent calls.
func WithCoalesce(v bool) Option {
	return func(c *ClientConfig) { c.Coalesce = v }
}

// WithRateLimit installs a per-host admission gate that runs before the
// breaker gate.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *ClientConfig) { c.RateLimit = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *ClientConfig) { c.TracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *ClientConfig) { c.MeterProvider = mp }
}

func WithPrometheusRegisterer(r prometheus.Registerer) Option {
	return func(c *ClientConfig) { c.Registerer = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *ClientConfig) { c.Logger = l }
}

// newClientConfig applies the library's defaults, then opts, then
// validates the result.
func newClientConfig(hostname string, opts ...Option) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Name:              "resilientclient",
		Hostname:          hostname,
		Scheme:            "https",
		Retry:             DefaultRetryPolicy(),
		Breaker:           DefaultBreakerConfig(),
		ConnectionTimeout: 1000 * time.Millisecond,
		ReadTimeout:       2000 * time.Millisecond,
		AutoParseJSON:     true,
		AutoDecodeUTF8:    true,
		Timing:            false,
		ShouldRetry:       defaultShouldRetry,
		OnRetry:           func(int, *Error, *RequestParams) {},
		Logger:            defaultLogger(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Hostname == "" {
		return nil, errInvalidHostname
	}
	if cfg.Retry.MinTimeout > cfg.Retry.MaxTimeout {
		return nil, errMinGreaterThanMax
	}

	return cfg, nil
}

// defaultShouldRetry retries NETWORK, CONNECTION_TIMEOUT and READ_TIMEOUT
// failures and any response-filter failure (including the default 5xx
// filter's). Every other kind — USER_TIMEOUT, BODY_STREAM,
// BODY_PARSE_FAILED, request-filter failures and internal errors — is not
// retried. Same shape as the corpus's DefaultClassifier retry/no-retry split.
func defaultShouldRetry(err *Error, _ *RequestParams) bool {
	switch err.Kind {
	case KindNetwork, KindConnectionTimeout, KindReadTimeout, KindResponseFilterFailed:
		return true
	default:
		return false
	}
}
