package resilientclient

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/singleflight"
)

// isIdempotentMethod reports whether coalescing is safe for method,
// mirroring the corpus's own restriction of deduplication to methods
// with no side effects.
func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return true
	default:
		return false
	}
}

// coalesceKey identifies a call for singleflight purposes: method, URL,
// and a hash of the body when it is a plain value (streaming bodies are
// never coalesced, since consuming the stream once would starve the
// other waiters).
func coalesceKey(params *RequestParams) (string, bool) {
	if !isIdempotentMethod(params.Method) {
		return "", false
	}
	h := sha256.New()
	io.WriteString(h, params.Method)
	io.WriteString(h, params.url())
	switch b := params.Body.(type) {
	case nil:
	case []byte:
		h.Write(b)
	case string:
		io.WriteString(h, b)
	default:
		// A streaming body can't be hashed without consuming it, and
		// consuming it here would leave nothing for the real attempt.
		return "", false
	}
	return fmt.Sprintf("%s:%s", params.Method, hex.EncodeToString(h.Sum(nil))), true
}

type coalescer struct {
	group singleflight.Group
}

func (c *coalescer) do(key string, fn func() (*Response, *Error)) (*Response, *Error) {
	type result struct {
		resp *Response
		err  *Error
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		resp, rerr := fn()
		return result{resp: resp, err: rerr}, nil
	})
	if err != nil {
		// fn's own return values are always nil error to singleflight;
		// this branch exists only to satisfy the Group.Do contract.
		return nil, newError("resilientclient", KindInternalError, err)
	}
	r := v.(result)
	return r.resp, r.err
}
