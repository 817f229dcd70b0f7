package resilientclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientConfig_Defaults(t *testing.T) {
	cfg, err := newClientConfig("api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "resilientclient", cfg.Name)
	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, 1000*time.Millisecond, cfg.ConnectionTimeout)
	assert.Equal(t, 2000*time.Millisecond, cfg.ReadTimeout)
	assert.True(t, cfg.AutoParseJSON)
	assert.True(t, cfg.AutoDecodeUTF8)
	assert.NotNil(t, cfg.ShouldRetry)
}

func TestNewClientConfig_EmptyHostname(t *testing.T) {
	_, err := newClientConfig("")
	assert.ErrorIs(t, err, errInvalidHostname)
}

func TestNewClientConfig_MinGreaterThanMax(t *testing.T) {
	_, err := newClientConfig("api.example.com", WithRetryPolicy(RetryPolicy{
		MinTimeout: 2 * time.Second, MaxTimeout: time.Second,
	}))
	assert.ErrorIs(t, err, errMinGreaterThanMax)
}

func TestOptions_ApplyOverDefaults(t *testing.T) {
	cfg, err := newClientConfig("api.example.com",
		WithName("widgets"),
		WithConnectionTimeout(5*time.Second),
		WithReadTimeout(9*time.Second),
		WithAutoParseJSON(false),
		WithoutBreaker(),
	)
	require.NoError(t, err)
	assert.Equal(t, "widgets", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 9*time.Second, cfg.ReadTimeout)
	assert.False(t, cfg.AutoParseJSON)
	assert.True(t, cfg.NoBreaker)
}

func TestDefaultShouldRetry(t *testing.T) {
	assert.True(t, defaultShouldRetry(&Error{Kind: KindNetwork}, nil))
	assert.True(t, defaultShouldRetry(&Error{Kind: KindReadTimeout}, nil))
	assert.True(t, defaultShouldRetry(&Error{Kind: KindResponseFilterFailed}, nil))
	assert.False(t, defaultShouldRetry(&Error{Kind: KindRequestFilterFailed}, nil))
	assert.False(t, defaultShouldRetry(&Error{Kind: KindCircuitOpen}, nil))
}
