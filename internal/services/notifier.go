package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LockoutNotifier tells an account holder that their account was locked
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, email string, marker models.LockoutMarker) error
}

// NoopNotifier is used when no email transport is configured
type NoopNotifier struct{}

func (NoopNotifier) NotifyLockout(context.Context, string, models.LockoutMarker) error {
	return nil
}

// sesAPI is the subset of the SES client used for notifications
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier sends lockout emails using AWS SES
type SESLockoutNotifier struct {
	sesClient   sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESLockoutNotifier creates a notifier backed by AWS SES
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESLockoutNotifier(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func newSESLockoutNotifier(client sesAPI, fromAddress string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		sesClient:   client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NotifyLockout sends the lockout notice to email
func (s *SESLockoutNotifier) NotifyLockout(ctx context.Context, email string, marker models.LockoutMarker) error {
	until := marker.LockedUntil.UTC().Format("2006-01-02 15:04 MST")
	minutes := int(marker.LockedUntil.Sub(marker.LockedAt).Round(time.Minute) / time.Minute)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Your account has been temporarily locked</h1>
        </div>
        <p>We detected %d failed sign-in attempts on your account.</p>
        <div class="warning">
            Sign-in is blocked for %d minutes, until <strong>%s</strong>.
        </div>
        <p>If this was you, wait until the lock expires and try again. If it wasn't, consider changing your password once you regain access.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, marker.AttemptsAtLock, minutes, until)

	textBody := fmt.Sprintf(`Your account has been temporarily locked

We detected %d failed sign-in attempts on your account.
Sign-in is blocked for %d minutes, until %s.

If this was you, wait until the lock expires and try again. If it wasn't, consider changing your password once you regain access.

This is an automated message. Please do not reply to this email.
`, marker.AttemptsAtLock, minutes, until)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account has been temporarily locked"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send lockout email: %w", err)
	}

	s.logger.Info("lockout email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
