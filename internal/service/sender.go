package service

import (
	"context"
	"encoding/json"
	"time"

	apperrors "mealbot/internal/errors"
	"mealbot/internal/models"
	"mealbot/internal/retry"
	"mealbot/pkg/twilio"

	"github.com/sirupsen/logrus"
)

// Outcome is the structured result of one outbound send, after retries.
type Outcome struct {
	OK                bool
	ProviderMessageID string
	Err               error
}

// Sender delivers a reply to a chat identity. Implementations own their
// retry policy and audit persistence.
type Sender interface {
	SendText(ctx context.Context, userID *int64, to, body string) Outcome
}

// OutboxStore persists send audit rows and activity updates.
type OutboxStore interface {
	SaveOutgoingMessage(ctx context.Context, record *models.OutgoingMessageRecord) error
	TouchUserActivity(ctx context.Context, userID int64) error
}

type twilioSender struct {
	client  twilio.Client
	store   OutboxStore
	backoff *retry.Backoff
	logger  *logrus.Logger
}

// NewTwilioSender creates the production sender: bounded exponential retry
// on transient provider failures, an audit row per final attempt, and a
// last-active touch on success.
func NewTwilioSender(client twilio.Client, store OutboxStore, retryCfg models.RetryConfig, logger *logrus.Logger) Sender {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  retryCfg.MaxAttempts,
		Jitter:       true,
	})

	return &twilioSender{
		client:  client,
		store:   store,
		backoff: backoff,
		logger:  logger,
	}
}

func (s *twilioSender) SendText(ctx context.Context, userID *int64, to, body string) Outcome {
	var resp *twilio.MessageResponse

	err := s.backoff.RetryWithPredicate(ctx, func() error {
		var callErr error
		resp, callErr = s.client.SendText(ctx, to, body)
		return callErr
	}, apperrors.IsRetryable)

	outcome := Outcome{OK: err == nil, Err: err}
	if resp != nil {
		outcome.ProviderMessageID = resp.SID
	}

	s.audit(ctx, userID, to, body, resp, err)

	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldErrorCode: string(apperrors.GetCode(err)),
			LogFieldDirection: "outgoing",
		}).Error("Failed to send message")
		return outcome
	}

	if userID != nil {
		if touchErr := s.store.TouchUserActivity(ctx, *userID); touchErr != nil {
			s.logger.WithError(touchErr).WithField(LogFieldUserID, *userID).
				Warn("Failed to update user activity")
		}
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID: outcome.ProviderMessageID,
		LogFieldDirection: "outgoing",
	}).Info("Message sent")

	return outcome
}

// audit writes the outgoing record. Failures are logged, never propagated,
// so a broken audit table cannot flip the send outcome.
func (s *twilioSender) audit(ctx context.Context, userID *int64, to, body string, resp *twilio.MessageResponse, sendErr error) {
	record := &models.OutgoingMessageRecord{
		UserID:     userID,
		ToIdentity: to,
		Body:       body,
		Status:     models.SendStatusSent,
	}

	if sendErr != nil {
		record.Status = models.SendStatusFailed
		record.RawResponse = sendErr.Error()
	} else if resp != nil {
		record.ProviderMessageID = resp.SID
		if raw, err := json.Marshal(resp); err == nil {
			record.RawResponse = string(raw)
		}
	}

	if err := s.store.SaveOutgoingMessage(ctx, record); err != nil {
		s.logger.WithError(err).Warn("Failed to persist outgoing message audit")
	}
}
