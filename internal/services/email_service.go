package services

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"partnerhub/internal/config"
)

// EmailService sends transactional mail. Send makes it usable as the email Dispatcher.
type EmailService interface {
	Send(ctx context.Context, to, message string) error
	SendPasswordResetEmail(ctx context.Context, to, link string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	sender mailSender
	from   string
	dryRun bool
	log    *zap.Logger
}

func NewEmailService(cfg config.EmailConfig, log *zap.Logger) EmailService {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return newEmailService(dialer, cfg.FromEmail, cfg.DryRun, log)
}

func newEmailService(sender mailSender, from string, dryRun bool, log *zap.Logger) *emailService {
	if log == nil {
		log = zap.NewNop()
	}
	return &emailService{sender: sender, from: from, dryRun: dryRun, log: log}
}

func (s *emailService) Send(ctx context.Context, to, message string) error {
	body := fmt.Sprintf(`
		<h3>Email verification</h3>
		<p>%s</p>
		<p>The code expires in a few minutes. If you did not request it, ignore this email.</p>
	`, html.EscapeString(message))
	return s.deliver(ctx, to, "[PartnerHub] Email verification code", body)
}

func (s *emailService) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p><a href="%s">Reset your password</a></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(link))
	return s.deliver(ctx, to, "[PartnerHub] Password reset", body)
}

func (s *emailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(`
		<h2>Welcome to PartnerHub, %s!</h2>
		<p>Your account has been created. Register your store and start looking for partners.</p>
	`, html.EscapeString(name))
	return s.deliver(ctx, to, "Welcome to PartnerHub!", body)
}

func (s *emailService) deliver(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.dryRun {
		s.log.Info("[email][dry-run]", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email %q: %w", subject, err)
	}
	s.log.Debug("[email][send] ok", zap.String("to", to), zap.String("subject", subject))
	return nil
}
