package resilientclient

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsIdempotentMethod(t *testing.T) {
	assert.True(t, isIdempotentMethod("GET"))
	assert.True(t, isIdempotentMethod("get"))
	assert.True(t, isIdempotentMethod("HEAD"))
	assert.False(t, isIdempotentMethod("POST"))
	assert.False(t, isIdempotentMethod("DELETE"))
}

func TestCoalesceKey_StableForIdenticalRequests(t *testing.T) {
	p1 := &RequestParams{Method: "GET", Hostname: "api.example.com", Scheme: "https", Pathname: "/widgets", Query: url.Values{"id": {"1"}}}
	p2 := &RequestParams{Method: "GET", Hostname: "api.example.com", Scheme: "https", Pathname: "/widgets", Query: url.Values{"id": {"1"}}}

	k1, ok1 := coalesceKey(p1)
	k2, ok2 := coalesceKey(p2)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, k1, k2)
}

func TestCoalesceKey_DiffersOnBody(t *testing.T) {
	base := &RequestParams{Method: "GET", Hostname: "h", Pathname: "/x"}
	base.Body = []byte("a")
	k1, _ := coalesceKey(base)
	base.Body = []byte("b")
	k2, _ := coalesceKey(base)
	assert.NotEqual(t, k1, k2)
}

func TestCoalesceKey_RejectsNonIdempotentAndStreams(t *testing.T) {
	_, ok := coalesceKey(&RequestParams{Method: "POST", Hostname: "h"})
	assert.False(t, ok)

	_, ok = coalesceKey(&RequestParams{Method: "GET", Hostname: "h", Body: strings.NewReader("x")})
	assert.False(t, ok)
}

func TestCoalescer_DeduplicatesConcurrentCalls(t *testing.T) {
	c := &coalescer{}
	var calls atomic.Int32
	var wg sync.WaitGroup
	var entered sync.WaitGroup
	var startOnce sync.Once
	started := make(chan struct{})
	release := make(chan struct{})

	results := make([]*Response, 10)
	entered.Add(10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Done()
			resp, err := c.do("k", func() (*Response, *Error) {
				calls.Add(1)
				startOnce.Do(func() { close(started) })
				<-release
				return &Response{StatusCode: 200}, nil
			})
			require.Nil(t, err)
			results[i] = resp
		}(i)
	}

	<-started
	entered.Wait()
	// Give every goroutine time to join the in-flight call before it is
	// released; a caller arriving after it returns would start a new one.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent identical calls must share one in-flight execution")
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, 200, r.StatusCode)
	}
}
