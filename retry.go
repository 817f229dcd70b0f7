package resilientclient

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy configures the Retry Engine.
type RetryPolicy struct {
	Retries    int
	Factor     float64
	MinTimeout time.Duration
	MaxTimeout time.Duration
	Randomize  bool

	// Strategy, when set, replaces the default exponential schedule
	// formula with an arbitrary cenkalti/backoff/v5 strategy (e.g.
	// LinearBackOff, DecorrelatedJitterBackOff). It is materialized into
	// a schedule of length Retries (shorter if the strategy returns
	// backoff.Stop), each delay clamped to MaxTimeout when that is set,
	// before the attempt loop starts, so
	// the driver below always operates over a precomputed RetrySchedule
	// regardless of which strategy produced it.
	Strategy backoff.BackOff
}

// DefaultRetryPolicy is the library's out-of-the-box retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    0,
		Factor:     2,
		MinTimeout: 200 * time.Millisecond,
		MaxTimeout: 400 * time.Millisecond,
		Randomize:  true,
	}
}

var errMinGreaterThanMax = errors.New("minTimeout must be <= maxTimeout")

// RetrySchedule is an ascending sequence of delays, length equal to the
// configured retry count.
type RetrySchedule []time.Duration

// GenerateSchedule computes the retry delay schedule:
//
//	r    = randomize ? uniform[1,2) : 1
//	d_i  = min(maxTimeout, round(r * minTimeout * factor^i))
//
// then sorts ascending (sorting matters when factor < 1 or
// randomization inverts ordering).
func GenerateSchedule(p RetryPolicy) (RetrySchedule, error) {
	if p.MinTimeout > p.MaxTimeout {
		return nil, errMinGreaterThanMax
	}
	if p.Strategy != nil {
		return materializeStrategy(p.Strategy, p.Retries, p.MaxTimeout)
	}

	delays := make([]time.Duration, p.Retries)
	for i := 0; i < p.Retries; i++ {
		r := 1.0
		if p.Randomize {
			r = 1.0 + rand.Float64()
		}
		d := r * float64(p.MinTimeout) * math.Pow(p.Factor, float64(i))
		delay := time.Duration(math.Round(d))
		if delay > p.MaxTimeout {
			delay = p.MaxTimeout
		}
		delays[i] = delay
	}
	sort.Slice(delays, func(i, j int) bool { return delays[i] < delays[j] })
	return delays, nil
}

func materializeStrategy(b backoff.BackOff, retries int, maxTimeout time.Duration) (RetrySchedule, error) {
	delays := make([]time.Duration, 0, retries)
	for i := 0; i < retries; i++ {
		d := b.NextBackOff()
		if d == backoff.Stop {
			break
		}
		if maxTimeout > 0 && d > maxTimeout {
			d = maxTimeout
		}
		delays = append(delays, d)
	}
	return delays, nil
}

// Operation is the retry engine's standalone driver contract, exported
// for callers who want the exponential-backoff schedule applied to
// their own retry loop without going through Client.Request: it wraps
// fn with Attempt() and Retry(immediate?). fn receives the current
// 1-based attempt ordinal.
type Operation struct {
	schedule RetrySchedule
	fn       func(attemptOrdinal int) error

	attemptsSoFar int
	lastErr       error
}

// NewOperation builds a driver around fn using the given schedule, e.g.
// one produced by GenerateSchedule(policy).
func NewOperation(schedule RetrySchedule, fn func(attemptOrdinal int) error) *Operation {
	return &Operation{schedule: schedule, fn: fn}
}

// Attempt runs fn immediately with ordinal 1.
func (o *Operation) Attempt() error {
	o.attemptsSoFar = 1
	o.lastErr = o.fn(1)
	return o.lastErr
}

// Retry schedules the next attempt after delays[attemptsSoFar-1], or
// immediately if immediate is true, then runs it. It returns the new
// attempt ordinal and true, or (0, false) when the schedule is
// exhausted; the error from that attempt is available via Err().
func (o *Operation) Retry(immediate bool) (int, bool) {
	idx := o.attemptsSoFar - 1
	if idx < 0 || idx >= len(o.schedule) {
		return 0, false
	}
	if !immediate {
		time.Sleep(o.schedule[idx])
	}
	o.attemptsSoFar++
	o.lastErr = o.fn(o.attemptsSoFar)
	return o.attemptsSoFar, true
}

// Err returns the error from the most recent Attempt or Retry call.
func (o *Operation) Err() error {
	return o.lastErr
}
