package resilientclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody_JSON(t *testing.T) {
	resp := &Response{}
	v, err := decodeBody("c", []byte(`{"a":1}`), "application/json; charset=utf-8", true, true, resp)
	require.Nil(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, m["a"])
}

func TestDecodeBody_JSONVariant_ProblemJSON(t *testing.T) {
	resp := &Response{}
	_, err := decodeBody("c", []byte(`{}`), "application/problem+json", true, true, resp)
	assert.Nil(t, err)
}

func TestDecodeBody_JSONParseFailureCarriesRawBody(t *testing.T) {
	resp := &Response{}
	_, err := decodeBody("c", []byte(`not json`), "application/json", true, true, resp)
	require.NotNil(t, err)
	assert.Equal(t, KindBodyParseFailed, err.Kind)
	assert.Equal(t, "not json", resp.Body)
}

func TestDecodeBody_UTF8Decode(t *testing.T) {
	resp := &Response{}
	v, err := decodeBody("c", []byte("hello"), "text/plain", true, true, resp)
	require.Nil(t, err)
	assert.Equal(t, "hello", v)
}

func TestDecodeBody_RawBytesWhenBothDisabled(t *testing.T) {
	resp := &Response{}
	v, err := decodeBody("c", []byte{1, 2, 3}, "application/octet-stream", false, false, resp)
	require.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)
}
