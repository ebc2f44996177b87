package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
)

type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClient) Complete(_ context.Context, _ model.Request) (model.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return model.Response{}, f.err
	}
	return model.Response{Message: model.Message{Parts: []model.Part{model.TextPart{Text: "ok"}}}}, nil
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	c := WithRetry(&flakyClient{failures: 2, err: engineerrors.NewLLMError("anthropic", "rate limited", true, nil)}, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	resp, err := c.Complete(context.Background(), model.Request{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Message.Text())
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	underlying := &flakyClient{failures: 1, err: engineerrors.NewLLMError("anthropic", "bad request", false, nil)}
	c := WithRetry(underlying, DefaultRetryConfig())
	_, err := c.Complete(context.Background(), model.Request{})
	require.Error(t, err)
	require.Equal(t, 1, underlying.calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	underlying := &flakyClient{failures: 10, err: engineerrors.NewLLMError("anthropic", "rate limited", true, nil)}
	c := WithRetry(underlying, RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	_, err := c.Complete(context.Background(), model.Request{})
	require.Error(t, err)
	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, 3, exhausted.Attempts)
}
