package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/utils/logger"
)

// EmailService sends recovery and verification emails via SMTP
type EmailService struct {
	host     string
	port     string
	username string
	password string
	from     string
	log      zerolog.Logger
}

// NewEmailService creates a new email service instance
func NewEmailService(env *config.EnvironmentVariable) *EmailService {
	from := env.SMTP_FROM
	if from == "" {
		from = env.SMTP_USERNAME
	}

	return &EmailService{
		host:     env.SMTP_HOST,
		port:     env.SMTP_PORT,
		username: env.SMTP_USERNAME,
		password: env.SMTP_PASSWORD,
		from:     from,
		log:      logger.Component("email"),
	}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #1d4ed8;">{{.Title}}</h2>
    <p>Hi {{.Name}},</p>
    <p>{{.Intro}}</p>
    <p style="text-align: center;">
        <a href="{{.Link}}" style="display: inline-block; background: #1d4ed8; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 6px;">{{.Action}}</a>
    </p>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #1d4ed8;">{{.Link}}</p>
    <p style="color: #999; font-size: 13px;">{{.Footer}}</p>
</body>
</html>`))

type emailContent struct {
	Title  string
	Name   string
	Intro  string
	Action string
	Link   string
	Footer string
}

func renderEmail(content emailContent) (string, error) {
	if strings.TrimSpace(content.Name) == "" {
		content.Name = "Student"
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, content); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

// SendRecoveryEmail sends the password reset link
func (e *EmailService) SendRecoveryEmail(ctx context.Context, to, name, link string) error {
	body, err := renderEmail(emailContent{
		Title:  "Reset your password",
		Name:   name,
		Intro:  "We received a request to reset the password of your " + config.AppName + " account. This link expires in 1 hour.",
		Action: "Reset Password",
		Link:   link,
		Footer: "If you didn't request a password reset, you can safely ignore this email.",
	})
	if err != nil {
		return err
	}
	return e.send(ctx, to, "Reset Your Password - "+config.AppName, body, link)
}

// SendVerificationEmail sends the email verification link
func (e *EmailService) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	body, err := renderEmail(emailContent{
		Title:  "Verify your email",
		Name:   name,
		Intro:  "Confirm your email address to finish setting up your " + config.AppName + " account.",
		Action: "Verify Email",
		Link:   link,
		Footer: "If you didn't create an account, you can safely ignore this email.",
	})
	if err != nil {
		return err
	}
	return e.send(ctx, to, "Verify Your Email - "+config.AppName, body, link)
}

func (e *EmailService) send(ctx context.Context, to, subject, body, link string) error {
	if !e.IsConfigured() {
		// development: the link is only logged
		e.log.Warn().Str("to", to).Str("link", link).Msg("SMTP not configured, email not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.sendEmail(to, subject, body); err != nil {
		e.log.Error().Err(err).Str("to", to).Msg("failed to send email")
		return err
	}

	e.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// buildMessage renders the headers and body of a MIME message
func buildMessage(from, to, subject, htmlBody string) []byte {
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", config.AppName, from),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var message strings.Builder
	for _, k := range keys {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)
	return []byte(message.String())
}

// sendEmail sends an email using SMTP with STARTTLS
func (e *EmailService) sendEmail(to, subject, htmlBody string) error {
	addr := e.host + ":" + e.port

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(smtp.PlainAuth("", e.username, e.password, e.host)); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(buildMessage(e.from, to, subject, htmlBody)); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return conn.Quit()
}
