// Package resilientclient is a resilient client library for calling
// HTTP services. For each configured upstream host it provides a single
// entry point that performs one logical request, transparently handling
// transient failures via a circuit breaker, a retry engine, a filter
// pipeline for request/response transformation, and fine-grained timing
// and timeout controls.
//
// # Quick start
//
//	client, err := resilientclient.NewClient("api.example.com",
//		resilientclient.WithRetryPolicy(resilientclient.RetryPolicy{
//			Retries: 3, Factor: 2, MinTimeout: 200 * time.Millisecond,
//			MaxTimeout: 2 * time.Second, Randomize: true,
//		}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Request(ctx, resilientclient.RequestParams{
//		Method:   http.MethodGet,
//		Pathname: "/v1/widgets",
//	})
//
// # Circuit breaker
//
// Each client owns one CircuitBreaker by default, sized by
// BreakerConfig's rolling window. Install a per-call factory with
// WithBreakerFactory, or disable breaking entirely with WithoutBreaker.
//
// # Observability
//
// When a TracerProvider is configured, each HTTP attempt gets a span
// with network-timing events; when a MeterProvider is configured,
// attempt duration and outcome are recorded as OTel instruments. Pass a
// prometheus.Registerer via WithPrometheusRegisterer to also expose the
// breaker's bucket counters and state as Prometheus series.
package resilientclient
