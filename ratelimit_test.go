package resilientclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWaitRateLimit_NilLimiterIsNoop(t *testing.T) {
	err := waitRateLimit(context.Background(), nil)
	assert.NoError(t, err)
}

func TestWaitRateLimit_AdmitsWithinBurst(t *testing.T) {
	l := rate.NewLimiter(rate.Every(time.Hour), 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, waitRateLimit(context.Background(), l))
	}
}

func TestWaitRateLimit_RespectsContextDeadline(t *testing.T) {
	l := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.NoError(t, waitRateLimit(context.Background(), l))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := waitRateLimit(ctx, l)
	assert.Error(t, err, "a second call must block past the deadline once the burst is exhausted")
}
