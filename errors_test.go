package resilientclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageFormat(t *testing.T) {
	e := newError("widgets", KindNetwork, errors.New("connection refused"))
	assert.Equal(t, "widgets: NETWORK. connection refused", e.Error())
}

func TestError_MessageFormat_NoCause(t *testing.T) {
	e := newError("widgets", KindCircuitOpen, nil)
	assert.Equal(t, "widgets: CIRCUIT_OPEN", e.Error())
}

func TestError_MessageFormat_PreservesTrailingPeriodInCause(t *testing.T) {
	e := newError("widgets", KindNetwork, errors.New("connection refused."))
	assert.Equal(t, "widgets: NETWORK. connection refused.", e.Error())
}

func TestError_MessageFormat_EmptyCauseMessage(t *testing.T) {
	e := newError("widgets", KindNetwork, errors.New(""))
	assert.Equal(t, "widgets: NETWORK", e.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	e := newError("widgets", KindNetwork, cause)
	assert.ErrorIs(t, e, cause)
}

func TestError_IsComparesByKind(t *testing.T) {
	a := newError("widgets", KindNetwork, errors.New("x"))
	b := newError("widgets", KindNetwork, errors.New("y"))
	c := newError("widgets", KindReadTimeout, errors.New("z"))

	assert.True(t, a.Is(b), "same Kind should compare equal regardless of cause")
	assert.False(t, a.Is(c))
}

func TestAsError_PassesThroughExisting(t *testing.T) {
	original := newError("widgets", KindBodyStream, errors.New("x"))
	got := asError("widgets", original)
	assert.Same(t, original, got)
}

func TestAsError_WrapsUnknown(t *testing.T) {
	got := asError("widgets", errors.New("plain"))
	require.NotNil(t, got)
	assert.Equal(t, KindInternalError, got.Kind)
}

func TestAsError_Nil(t *testing.T) {
	assert.Nil(t, asError("widgets", nil))
}

func TestError_Builders(t *testing.T) {
	req := &RequestParams{Method: "GET"}
	resp := &Response{StatusCode: 500}
	one := int64(1)
	timings := &Timings{Socket: &one}
	prior := []*Error{newError("widgets", KindNetwork, nil)}

	e := newError("widgets", KindMaxRetriesReached, nil).
		withRequest(req).
		withResponse(resp).
		withTimings(timings).
		withRetryErrors(prior)

	assert.Same(t, req, e.Request)
	assert.Same(t, resp, e.Response)
	assert.Same(t, timings, e.Timings)
	assert.Len(t, e.RetryErrors, 1)
}
