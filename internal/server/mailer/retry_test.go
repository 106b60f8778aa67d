package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySender struct {
	failures int
	calls    int
}

func (f *flakySender) SendVerificationCode(ctx context.Context, email, code string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flakySender) SendAlreadyRegistered(ctx context.Context, email string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func TestRetrySender_SucceedsAfterTransientFailure(t *testing.T) {
	flaky := &flakySender{failures: 2}
	s := NewRetrySender(flaky, 3, time.Millisecond)

	err := s.SendVerificationCode(context.Background(), "a@x.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetrySender_GivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakySender{failures: 10}
	s := NewRetrySender(flaky, 3, time.Millisecond)

	err := s.SendAlreadyRegistered(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetrySender_NoRetryOnSuccess(t *testing.T) {
	flaky := &flakySender{}
	s := NewRetrySender(flaky, 5, time.Millisecond)

	require.NoError(t, s.SendVerificationCode(context.Background(), "a@x.com", "abc123"))
	assert.Equal(t, 1, flaky.calls)
}
