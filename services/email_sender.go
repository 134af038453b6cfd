package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type EmailSender interface {
	Send(ctx context.Context, job *EmailJob) error
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type emailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// APIEmailSender posts emails to a transactional email HTTP API.
type APIEmailSender struct {
	client *resty.Client
	from   string
}

func NewAPIEmailSender(baseURL, apiKey, from string, timeout time.Duration) *APIEmailSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &APIEmailSender{client: client, from: from}
}

func (s *APIEmailSender) Send(ctx context.Context, job *EmailJob) error {
	var result emailResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(emailRequest{
			From:    s.from,
			To:      job.To,
			Cc:      job.Cc,
			Subject: job.Subject,
			Text:    job.Body,
		}).
		SetResult(&result).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("email API call failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode(), resp.String())
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"tenant_id":  job.TenantID,
		"event":      job.EventType,
		"message_id": result.ID,
	}).Info("email sent")
	return nil
}

// LogEmailSender only logs; used when no email API is configured.
type LogEmailSender struct{}

func (LogEmailSender) Send(_ context.Context, job *EmailJob) error {
	utils.InfoLogger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"tenant_id": job.TenantID,
		"event":     job.EventType,
		"to":        job.To,
		"subject":   job.Subject,
	}).Info("email delivery disabled, job dropped")
	return nil
}
