package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for delivering report emails
type EmailService interface {
	SendReport(ctx context.Context, recipient, subject, textBody string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendReport delivers a generated report as a plain text email.
func (s *AWSSESEmailService) SendReport(ctx context.Context, recipient, subject, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	s.logger.Info("report email sent", slog.String("subject", subject))

	return nil
}

// NoopEmailService is used when email delivery is disabled. Sends succeed
// without doing anything so scheduled runs still advance.
type NoopEmailService struct {
	logger *slog.Logger
}

func NewNoopEmailService(logger *slog.Logger) *NoopEmailService {
	return &NoopEmailService{logger: logger}
}

func (s *NoopEmailService) SendReport(ctx context.Context, recipient, subject, textBody string) error {
	s.logger.Info("email delivery disabled, skipping send", slog.String("subject", subject))
	return nil
}
