package resilientclient

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestParams_HeaderCanonicalization(t *testing.T) {
	p := &RequestParams{}
	p.setHeaderIfAbsent("content-type", "application/json")
	v, ok := p.header("Content-Type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)
}

func TestRequestParams_SetHeaderIfAbsentDoesNotOverwrite(t *testing.T) {
	p := &RequestParams{}
	p.setHeaderIfAbsent("Accept", "application/json")
	p.setHeaderIfAbsent("Accept", "text/plain")
	v, _ := p.header("Accept")
	assert.Equal(t, "application/json", v)
}

func TestRequestParams_ResolvedPath_PathWinsOverPathname(t *testing.T) {
	p := &RequestParams{Path: "/raw?x=1", Pathname: "/widgets", Query: url.Values{"y": {"2"}}}
	assert.Equal(t, "/raw?x=1", p.resolvedPath())
}

func TestRequestParams_ResolvedPath_PathnameAndQuery(t *testing.T) {
	p := &RequestParams{Pathname: "/widgets", Query: url.Values{"id": {"7"}}}
	assert.Equal(t, "/widgets?id=7", p.resolvedPath())
}

func TestRequestParams_ResolvedPath_DefaultsToSlash(t *testing.T) {
	p := &RequestParams{}
	assert.Equal(t, "/", p.resolvedPath())
}

func TestRequestParams_URL_DefaultPortOmitted(t *testing.T) {
	p := &RequestParams{Scheme: "https", Hostname: "api.example.com", Port: 443, Pathname: "/x"}
	assert.Equal(t, "https://api.example.com/x", p.url())
}

func TestRequestParams_URL_NonDefaultPortIncluded(t *testing.T) {
	p := &RequestParams{Scheme: "http", Hostname: "api.example.com", Port: 8080, Pathname: "/x"}
	assert.Equal(t, "http://api.example.com:8080/x", p.url())
}

func TestRequestParams_Clone_DeepCopiesHeadersAndQuery(t *testing.T) {
	orig := RequestParams{
		Headers: map[string][]string{"X-A": {"1"}},
		Query:   url.Values{"q": {"1"}},
	}
	cloned := orig.clone()
	cloned.Headers["X-A"][0] = "mutated"
	cloned.Query["q"][0] = "mutated"

	assert.Equal(t, "1", orig.Headers["X-A"][0])
	assert.Equal(t, "1", orig.Query["q"][0])
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := withCorrelationID(t.Context(), "abc-123")
	id, ok := CorrelationID(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc-123", id)
}

func TestCorrelationID_AbsentByDefault(t *testing.T) {
	_, ok := CorrelationID(t.Context())
	assert.False(t, ok)
}
