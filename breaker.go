package resilientclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// BreakerState is the breaker's logical state.
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Bucket aggregates outcomes for one slot of the rolling window.
type Bucket struct {
	Successes     uint64
	Failures      uint64
	Timeouts      uint64
	ShortCircuits uint64
}

func (b Bucket) total() uint64 {
	return b.Successes + b.Failures + b.Timeouts
}

func (b Bucket) errors() uint64 {
	return b.Failures + b.Timeouts
}

// Metrics is the snapshot handed to onCircuitOpen/onCircuitClose.
type Metrics struct {
	TotalCount      uint64
	ErrorCount      uint64
	ErrorPercentage float64
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	WindowDuration        time.Duration
	NumBuckets            int
	ErrorThreshold        float64 // percent, e.g. 50 for 50%
	VolumeThreshold       uint64
	WaitDurationInOpenState time.Duration
	TimeoutDuration       time.Duration

	OnCircuitOpen  func(Metrics)
	OnCircuitClose func(Metrics)

	// Name identifies this breaker's Prometheus series when Registerer
	// is set. Defaults to "default".
	Name       string
	Registerer prometheus.Registerer

	// Logger receives one event per OPEN/HALF_OPEN/CLOSED transition.
	// The zero value is a disabled logger, matching zerolog's own
	// convention for an unconfigured Logger.
	Logger zerolog.Logger

	// Disabled makes IsOpen always report false and suppresses state
	// transitions entirely — the "none" breaker option surfaced by
	// WithoutBreaker. Outcomes are still tallied into buckets so
	// metrics remain meaningful even with tripping disabled.
	Disabled bool
}

// DefaultBreakerConfig returns the library's out-of-the-box breaker
// tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		WindowDuration:          10 * time.Second,
		NumBuckets:              10,
		ErrorThreshold:          50,
		VolumeThreshold:         10,
		WaitDurationInOpenState: 5 * time.Second,
		TimeoutDuration:         2 * time.Second,
		OnCircuitOpen:           func(Metrics) {},
		OnCircuitClose:          func(Metrics) {},
		Logger:                  zerolog.Nop(),
	}
}

type forcedState struct {
	active   bool
	forced   BreakerState
	original BreakerState
}

// CircuitBreaker is a rolling-window failure detector with explicit
// OPEN/HALF_OPEN/CLOSED states.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	buckets  []Bucket
	current  int
	state    atomic.Int32
	forced   forcedState
	openedAt time.Time

	// halfOpenInFlight gates HALF_OPEN to a single in-flight probe on
	// the standalone Run surface; the orchestrator's own sequential
	// attempt loop never needs it.
	halfOpenInFlight atomic.Bool

	cancel context.CancelFunc

	metrics *breakerMetrics
}

// NewCircuitBreaker constructs a breaker and starts its bucket-rotation
// ticker under ctx. The ticker exits when ctx is cancelled — it never
// extends process lifetime on its own.
func NewCircuitBreaker(ctx context.Context, cfg BreakerConfig) *CircuitBreaker {
	if cfg.NumBuckets <= 0 {
		cfg.NumBuckets = 1
	}
	if cfg.OnCircuitOpen == nil {
		cfg.OnCircuitOpen = func(Metrics) {}
	}
	if cfg.OnCircuitClose == nil {
		cfg.OnCircuitClose = func(Metrics) {}
	}
	cb := &CircuitBreaker{
		cfg:     cfg,
		buckets: make([]Bucket, cfg.NumBuckets),
	}
	cb.state.Store(int32(StateClosed))

	if cfg.Registerer != nil {
		cb.metrics = newBreakerMetrics(cfg.Registerer, cfg.Name)
	}

	tickerCtx, cancel := context.WithCancel(ctx)
	cb.cancel = cancel
	if !cfg.Disabled {
		go cb.rotateLoop(tickerCtx)
	}

	return cb
}

// Close stops the breaker's background ticker.
func (cb *CircuitBreaker) Close() {
	cb.cancel()
}

func (cb *CircuitBreaker) rotateLoop(ctx context.Context) {
	interval := cb.cfg.WindowDuration / time.Duration(cb.cfg.NumBuckets)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cb.rotate()
		}
	}
}

func (cb *CircuitBreaker) rotate() {
	cb.mu.Lock()
	cb.current = (cb.current + 1) % len(cb.buckets)
	cb.buckets[cb.current] = Bucket{}
	cb.mu.Unlock()

	cb.maybeTransitionFromOpen()
}

func (cb *CircuitBreaker) maybeTransitionFromOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.forced.active {
		return
	}
	if BreakerState(cb.state.Load()) != StateOpen {
		return
	}
	if time.Since(cb.openedAt) >= cb.cfg.WaitDurationInOpenState {
		cb.state.Store(int32(StateHalfOpen))
		cb.setGauge()
		cb.cfg.Logger.Info().Str("breaker", cb.cfg.Name).Msg("circuit half-open")
	}
}

// IsOpen reports whether the breaker's current logical state is OPEN.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb.cfg.Disabled {
		return false
	}
	return BreakerState(cb.state.Load()) == StateOpen
}

func (cb *CircuitBreaker) State() BreakerState {
	return BreakerState(cb.state.Load())
}

// outcome is a sync.Once-guarded charge slip returned by Enroll, giving
// the "exactly one of success/failure/timeout, first signal wins"
// invariant a concrete implementation.
type outcome struct {
	cb      *CircuitBreaker
	once    sync.Once
	waitOpen time.Duration
}

// Enroll registers one command invocation against the breaker. The
// caller must eventually call exactly one of Success/Failure/Timeout on
// the returned outcome; subsequent calls are no-ops.
func (cb *CircuitBreaker) Enroll() *outcome {
	return &outcome{cb: cb}
}

func (o *outcome) Success() { o.once.Do(o.cb.chargeSuccess) }
func (o *outcome) Failure() { o.once.Do(o.cb.chargeFailure) }
func (o *outcome) Timeout() { o.once.Do(o.cb.chargeTimeout) }

func (cb *CircuitBreaker) chargeSuccess() {
	cb.mu.Lock()
	cb.buckets[cb.current].Successes++
	cb.mu.Unlock()
	if cb.metrics != nil {
		cb.metrics.successes.Inc()
	}
	cb.afterOutcome(true)
}

func (cb *CircuitBreaker) chargeFailure() {
	cb.mu.Lock()
	cb.buckets[cb.current].Failures++
	cb.mu.Unlock()
	if cb.metrics != nil {
		cb.metrics.failures.Inc()
	}
	cb.afterOutcome(false)
}

func (cb *CircuitBreaker) chargeTimeout() {
	cb.mu.Lock()
	cb.buckets[cb.current].Timeouts++
	cb.mu.Unlock()
	if cb.metrics != nil {
		cb.metrics.timeouts.Inc()
	}
	cb.afterOutcome(false)
}

func (cb *CircuitBreaker) chargeShortCircuit() {
	cb.mu.Lock()
	cb.buckets[cb.current].ShortCircuits++
	cb.mu.Unlock()
	if cb.metrics != nil {
		cb.metrics.shortCircuits.Inc()
	}
}

// afterOutcome applies the HALF_OPEN evaluation and the CLOSED tripping
// rule.
func (cb *CircuitBreaker) afterOutcome(success bool) {
	if cb.cfg.Disabled {
		return
	}

	cb.mu.Lock()

	if cb.forced.active {
		cb.mu.Unlock()
		return
	}

	switch BreakerState(cb.state.Load()) {
	case StateHalfOpen:
		if success {
			cb.state.Store(int32(StateClosed))
			cb.mu.Unlock()
			cb.setGauge()
			cb.cfg.Logger.Info().Str("breaker", cb.cfg.Name).Msg("circuit closed")
			cb.cfg.OnCircuitClose(cb.snapshotMetrics())
			return
		}
		cb.state.Store(int32(StateOpen))
		cb.openedAt = time.Now()
		cb.mu.Unlock()
		cb.setGauge()
		cb.cfg.Logger.Warn().Str("breaker", cb.cfg.Name).Msg("circuit re-opened from half-open")
		cb.cfg.OnCircuitOpen(cb.snapshotMetrics())
		return

	case StateClosed:
		m := cb.snapshotMetricsLocked()
		trip := m.TotalCount > cb.cfg.VolumeThreshold && m.ErrorPercentage > cb.cfg.ErrorThreshold
		if trip {
			cb.state.Store(int32(StateOpen))
			cb.openedAt = time.Now()
		}
		cb.mu.Unlock()
		if trip {
			cb.setGauge()
			cb.cfg.Logger.Warn().Str("breaker", cb.cfg.Name).
				Uint64("total", m.TotalCount).Float64("errorPct", m.ErrorPercentage).
				Msg("circuit opened")
			cb.cfg.OnCircuitOpen(m)
		}
		return

	default:
		cb.mu.Unlock()
	}
}

func (cb *CircuitBreaker) snapshotMetricsLocked() Metrics {
	var total, errs uint64
	for _, b := range cb.buckets {
		total += b.total()
		errs += b.errors()
	}
	pct := float64(0)
	if total > 0 {
		pct = float64(errs) / float64(total) * 100
	}
	return Metrics{TotalCount: total, ErrorCount: errs, ErrorPercentage: pct}
}

func (cb *CircuitBreaker) snapshotMetrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.snapshotMetricsLocked()
}

func (cb *CircuitBreaker) setGauge() {
	if cb.metrics != nil {
		cb.metrics.state.Set(float64(cb.State()))
	}
}

// ForceOpen snapshots the current logical state and forces the breaker
// open. While forced, outcomes are still tallied but never trigger
// transitions.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.forced.active {
		cb.forced.original = BreakerState(cb.state.Load())
	}
	cb.forced.active = true
	cb.forced.forced = StateOpen
	cb.state.Store(int32(StateOpen))
	cb.setGaugeLocked()
}

// ForceClose is the mirror of ForceOpen for CLOSED.
func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.forced.active {
		cb.forced.original = BreakerState(cb.state.Load())
	}
	cb.forced.active = true
	cb.forced.forced = StateClosed
	cb.state.Store(int32(StateClosed))
	cb.setGaugeLocked()
}

// Unforce restores the pre-force logical state captured by ForceOpen or
// ForceClose.
func (cb *CircuitBreaker) Unforce() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.forced.active {
		return
	}
	cb.state.Store(int32(cb.forced.original))
	cb.forced.active = false
	cb.setGaugeLocked()
}

func (cb *CircuitBreaker) setGaugeLocked() {
	if cb.metrics != nil {
		cb.metrics.state.Set(float64(BreakerState(cb.state.Load())))
	}
}

// Run executes fn under the breaker's supervision: a reusable,
// standalone surface for callers that want breaker protection without
// going through Client.Request. fn reports whether the invocation
// should count as a success; a non-nil error from fn is returned to the
// caller as-is after being charged as a failure.
//
// When the breaker is OPEN, or HALF_OPEN with a probe already in
// flight, the call is charged as a shortCircuit and, if fallback is
// non-nil, fallback runs in fn's place; otherwise Run returns
// errCircuitOpen. Pass a nil fallback to always reject on short-circuit.
func (cb *CircuitBreaker) Run(ctx context.Context, fn func(ctx context.Context) (bool, error), fallback func(ctx context.Context) (bool, error)) (bool, error) {
	if cb.IsOpen() {
		cb.chargeShortCircuit()
		if fallback != nil {
			return fallback(ctx)
		}
		return false, errCircuitOpen
	}

	if BreakerState(cb.state.Load()) == StateHalfOpen {
		if !cb.halfOpenInFlight.CompareAndSwap(false, true) {
			cb.chargeShortCircuit()
			if fallback != nil {
				return fallback(ctx)
			}
			return false, errCircuitOpen
		}
		defer cb.halfOpenInFlight.Store(false)
	}

	o := cb.Enroll()
	ok, err := fn(ctx)
	if err != nil || !ok {
		o.Failure()
		return ok, err
	}
	o.Success()
	return true, nil
}

var errCircuitOpen = errors.New("circuit breaker is open")
