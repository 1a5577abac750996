package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliel-ai/soliel/jobs"
	_ "github.com/soliel-ai/soliel/testing"
)

type captureSender struct {
	to      string
	subject string
	body    string
	err     error
}

func (c *captureSender) Send(ctx context.Context, to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return c.err
}

func TestInvitationEmailHandler(t *testing.T) {
	task, err := jobs.NewInvitationEmailTask(jobs.InvitationEmailPayload{
		To:        "new.hire@test.local",
		Link:      "https://app.test/accept-invitation?token=abc",
		Role:      "member",
		ExpiresAt: time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeInvitationEmail, task.Type())

	sender := &captureSender{}
	handler := jobs.NewInvitationEmailHandler(sender, nil)

	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, "new.hire@test.local", sender.to)
	assert.Contains(t, sender.body, "https://app.test/accept-invitation?token=abc")
	assert.Contains(t, sender.body, "member")
}

func TestInvitationEmailHandlerSkipsRetryOnBadPayload(t *testing.T) {
	handler := jobs.NewInvitationEmailHandler(&captureSender{}, nil)

	err := handler(context.Background(), asynq.NewTask(jobs.TaskTypeInvitationEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestInvitationEmailHandlerPropagatesSendFailure(t *testing.T) {
	sendErr := errors.New("relay refused")
	handler := jobs.NewInvitationEmailHandler(&captureSender{err: sendErr}, nil)

	task, err := jobs.NewInvitationEmailTask(jobs.InvitationEmailPayload{To: "x@test.local"})
	require.NoError(t, err)
	assert.ErrorIs(t, handler(context.Background(), task), sendErr)
}

type countingSweeper struct {
	calls int
	err   error
}

func (c *countingSweeper) SweepExpired(ctx context.Context) (int64, error) {
	c.calls++
	return 3, c.err
}

func TestInvitationSweepHandler(t *testing.T) {
	sweeper := &countingSweeper{}
	handler := jobs.NewInvitationSweepHandler(sweeper, nil)

	require.NoError(t, handler(context.Background(), jobs.NewInvitationSweepTask()))
	assert.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db down")
	assert.Error(t, handler(context.Background(), jobs.NewInvitationSweepTask()))
}
