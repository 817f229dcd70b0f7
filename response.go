package resilientclient

import (
	"regexp"

	"github.com/goccy/go-json"
)

// Response is the result of a successful attempt: status, headers, a
// body whose Go type depends on the decode flags in effect, the request
// that produced it, timings, and the retryErrors observed before this
// success (empty on a first-attempt success).
type Response struct {
	StatusCode  int
	Headers     map[string][]string
	Body        any
	Request     *RequestParams
	Timings     *Timings
	RetryErrors []*Error
}

var jsonContentType = regexp.MustCompile(`^application/(.*?\+)?json`)

// decodeBody applies autoParseJSON / autoDecodeUTF8 to raw response
// bytes. A JSON parse failure returns a BODY_PARSE_FAILED error carrying
// the raw body string on the still-attached Response.
func decodeBody(clientName string, raw []byte, contentType string, autoParseJSON, autoDecodeUTF8 bool, resp *Response) (any, *Error) {
	if autoParseJSON && jsonContentType.MatchString(contentType) {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			resp.Body = string(raw)
			return nil, newError(clientName, KindBodyParseFailed, err).withResponse(resp)
		}
		return v, nil
	}
	if autoDecodeUTF8 {
		return string(raw), nil
	}
	return raw, nil
}
