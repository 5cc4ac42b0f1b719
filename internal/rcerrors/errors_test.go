package rcerrors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindTransientUpstream, CodeTimeout, "embedding call timed out", cause)

	require.ErrorIs(t, err, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, CodeCollectionNotFound, "collection missing")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	retryAfter := 5 * time.Second
	rl := RateLimitedf(&retryAfter, "rate limited, retry after %s", retryAfter)
	assert.True(t, IsRetryable(rl))

	perm := New(KindPermanentUpstream, CodeAuthFailed, "bad credentials")
	assert.False(t, IsRetryable(perm))
}

func TestExcerptBody(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	got := ExcerptBody(string(long), 10)
	assert.Len(t, got, 10+len("...(truncated)"))

	short := ExcerptBody("ok", 10)
	assert.Equal(t, "ok", short)
}
