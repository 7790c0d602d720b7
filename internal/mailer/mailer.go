// Package mailer delivers account emails queued on the message broker.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/jjudge-oj/practice/internal/mq"
	"go.uber.org/zap"
)

// VerificationChannel is the broker channel verification jobs are queued on.
const VerificationChannel = "verification-email"

// VerificationEmail is the job published when a user needs a verification link.
type VerificationEmail struct {
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

var verificationBody = template.Must(template.New("verification").Parse(`Hi {{.Username}},

Confirm your email address to start practicing:

{{.Link}}

The link expires on {{.ExpiresAt.Format "Jan 2, 2006 15:04 MST"}}.
If you did not create an account, ignore this message.
`))

// Render returns the subject and plain-text body for a verification job.
func Render(job VerificationEmail) (string, string, error) {
	var body bytes.Buffer
	if err := verificationBody.Execute(&body, job); err != nil {
		return "", "", err
	}
	return "Verify your email", body.String(), nil
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Subscriber is the part of the broker the worker consumes from.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker consumes verification jobs and hands them to a Sender.
type Worker struct {
	broker Subscriber
	sender Sender
	logger *zap.Logger
}

func NewWorker(broker Subscriber, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{broker: broker, sender: sender, logger: logger}
}

// Run blocks until ctx is done or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mail worker started", zap.String("channel", VerificationChannel))
	return w.broker.Subscribe(ctx, VerificationChannel, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var job VerificationEmail
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// Redelivering a malformed job can never succeed.
		w.logger.Warn("dropping malformed verification job", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}
	if job.Email == "" || job.Link == "" {
		w.logger.Warn("dropping incomplete verification job", zap.String("id", msg.ID), zap.Int("user_id", job.UserID))
		return nil
	}

	subject, body, err := Render(job)
	if err != nil {
		w.logger.Error("render verification email", zap.Int("user_id", job.UserID), zap.Error(err))
		return nil
	}
	if err := w.sender.Send(ctx, job.Email, subject, body); err != nil {
		w.logger.Warn("send verification email", zap.Int("user_id", job.UserID), zap.Error(err))
		return fmt.Errorf("send to %s: %w", job.Email, err)
	}
	w.logger.Info("verification email sent", zap.Int("user_id", job.UserID))
	return nil
}
