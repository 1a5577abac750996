package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInvitationEmail delivers a company invitation email.
	TaskTypeInvitationEmail = "invitation:email"
	// TaskTypeInvitationSweep garbage-collects expired invitations.
	TaskTypeInvitationSweep = "invitation:sweep"
)

// InvitationEmailPayload describes an invitation email to send.
type InvitationEmailPayload struct {
	To        string    `json:"to"`
	Link      string    `json:"link"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewInvitationEmailTask constructs an Asynq task.
func NewInvitationEmailTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvitationEmail, data, asynq.MaxRetry(5)), nil
}

// NewInvitationSweepTask constructs the periodic sweep task.
func NewInvitationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeInvitationSweep, nil)
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewInvitationEmailHandler returns the asynq handler for invitation
// emails.
func NewInvitationEmailHandler(sender Sender, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvitationEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf(
			"You have been invited to join a company on Soliel as %s.\n\nAccept your invitation: %s\n\nThe link expires %s.\n",
			payload.Role, payload.Link, payload.ExpiresAt.Format(time.RFC1123))
		if err := sender.Send(ctx, payload.To, "You are invited to Soliel", body); err != nil {
			if logger != nil {
				logger.Warn("send invitation email", slog.Any("error", err))
			}
			return err
		}
		return nil
	}
}

// InvitationSweeper removes expired, unaccepted invitations.
type InvitationSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// NewInvitationSweepHandler returns the asynq handler for the cron
// sweep.
func NewInvitationSweepHandler(sweeper InvitationSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		deleted, err := sweeper.SweepExpired(ctx)
		if err != nil {
			return err
		}
		if logger != nil && deleted > 0 {
			logger.Info("invitation sweep", slog.Int64("deleted", deleted))
		}
		return nil
	}
}
