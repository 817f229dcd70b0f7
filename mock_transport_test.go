package resilientclient

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doGet(t *testing.T, mt *MockTransport, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://example.com"+path, nil)
	require.NoError(t, err)
	resp, err := mt.RoundTrip(req)
	require.NoError(t, err)
	return resp
}

func TestMockTransport_StubPath(t *testing.T) {
	mt := NewMockTransport().StubPath("/widgets", 200, "application/json", `{"ok":true}`)
	resp := doGet(t, mt, "/widgets")
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestMockTransport_StubPathRegex(t *testing.T) {
	mt := NewMockTransport().StubPathRegex(`^/widgets/\d+$`, 200, "text/plain", "found")
	resp := doGet(t, mt, "/widgets/42")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestMockTransport_DefaultResponse(t *testing.T) {
	mt := NewMockTransport().StubResponse(503, "text/plain", "down")
	resp := doGet(t, mt, "/anything")
	assert.Equal(t, 503, resp.StatusCode)
}

func TestMockTransport_StubError(t *testing.T) {
	boom := errors.New("dial refused")
	mt := NewMockTransport().StubError(boom)
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/x", nil)
	_, err := mt.RoundTrip(req)
	assert.ErrorIs(t, err, boom)
}

func TestMockTransport_NoStubMatched(t *testing.T) {
	mt := NewMockTransport()
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/x", nil)
	_, err := mt.RoundTrip(req)
	assert.Error(t, err)
}

func TestMockTransport_StubSequence(t *testing.T) {
	mt := NewMockTransport().StubSequence(
		mockResponse(500, "text/plain", "fail"),
		mockResponse(500, "text/plain", "fail"),
		mockResponse(200, "application/json", `{"ok":true}`),
	)
	first := doGet(t, mt, "/x")
	second := doGet(t, mt, "/x")
	third := doGet(t, mt, "/x")
	fourth := doGet(t, mt, "/x")

	assert.Equal(t, 500, first.StatusCode)
	assert.Equal(t, 500, second.StatusCode)
	assert.Equal(t, 200, third.StatusCode)
	assert.Equal(t, 200, fourth.StatusCode, "requests past the sequence repeat the last response")
}

func TestMockTransport_RequestCount(t *testing.T) {
	mt := NewMockTransport().StubResponse(200, "text/plain", "ok")
	doGet(t, mt, "/a")
	doGet(t, mt, "/b")
	assert.Equal(t, 2, mt.RequestCount())
	assert.Len(t, mt.Requests(), 2)
}
