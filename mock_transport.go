package resilientclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"regexp"
	"sync"
)

// MockTransport is a configurable http.RoundTripper for tests: stub
// responses or errors by predicate, and inspect the requests that were
// actually sent, without touching the network.
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []mockStub
	defaultResp *http.Response
	defaultErr  error
	requests    []*http.Request
	sequence    []*http.Response
}

type mockStub struct {
	matcher  func(*http.Request) bool
	response *http.Response
	err      error
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) StubResponse(statusCode int, contentType, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = mockResponse(statusCode, contentType, body)
	return m
}

func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

func (m *MockTransport) StubPath(path string, statusCode int, contentType, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool { return req.URL.Path == path }, statusCode, contentType, body)
}

func (m *MockTransport) StubPathRegex(pattern string, statusCode int, contentType, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool { return re.MatchString(req.URL.Path) }, statusCode, contentType, body)
}

func (m *MockTransport) StubFunc(matcher func(*http.Request) bool, statusCode int, contentType, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{matcher: matcher, response: mockResponse(statusCode, contentType, body)})
	return m
}

func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{matcher: matcher, err: err})
	return m
}

// StubSequence returns the given responses in order on successive
// calls, one per request, then repeats the last one — the shape a
// "retry to success" scenario needs (fail, fail, then succeed).
func (m *MockTransport) StubSequence(responses ...*http.Response) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = responses
	return m
}

func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	seqIdx := len(m.requests) - 1
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.sequence) > 0 {
		if seqIdx < len(m.sequence) {
			return cloneMockResponse(m.sequence[seqIdx]), nil
		}
		return cloneMockResponse(m.sequence[len(m.sequence)-1]), nil
	}

	for _, s := range m.stubs {
		if s.matcher(req) {
			if s.err != nil {
				return nil, s.err
			}
			return cloneMockResponse(s.response), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return cloneMockResponse(m.defaultResp), nil
	}

	return nil, errors.New("mock transport: no stub found for " + req.Method + " " + req.URL.String())
}

func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func mockResponse(statusCode int, contentType, body string) *http.Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func cloneMockResponse(resp *http.Response) *http.Response {
	if resp == nil {
		return nil
	}
	var bodyBytes []byte
	if resp.Body != nil {
		bodyBytes, _ = io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	return &http.Response{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       io.NopCloser(bytes.NewBuffer(bodyBytes)),
	}
}

// WithMockTransport wires mock in place of the client's real transport,
// bypassing connectionTimeout/readTimeout transport construction
// entirely — the same convenience the corpus offers via
// WithMockTransport.
func WithMockTransport(mock *MockTransport) Option {
	return func(c *ClientConfig) { c.mockTransport = mock }
}
