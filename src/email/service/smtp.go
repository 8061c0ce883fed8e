package email_service

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/pterm/pterm"
)

var billingNoticeTemplate = template.Must(template.New("billing-notice").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Billing update</h2>
        <p>The {{.EntityKind}} <strong>{{.EntityID}}</strong> is now <strong>{{.Status}}</strong>.</p>
        <p style="color: #666;">Triggered by {{.Cause}}.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Sent automatically by OrbitDesk billing.</p>
    </div>
</body>
</html>
`))

// SMTPService implements EmailService using SMTP
type SMTPService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPService(cfg env.EmailConfig) *SMTPService {
	return &SMTPService{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		send:     smtp.SendMail,
	}
}

func (s *SMTPService) sendEmail(to []string, subject, body string) error {
	if s.host == "" {
		// Log-only mode if SMTP not configured
		pterm.DefaultLogger.Info(fmt.Sprintf("[EMAIL] To: %s, Subject: %s\n%s", strings.Join(to, ", "), subject, body))
		return nil
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.from, strings.Join(to, ", "), subject, body)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, auth, s.from, to, []byte(msg))
}

func (s *SMTPService) SendBillingNotice(to []string, notice BillingNotice) error {
	if len(to) == 0 {
		return nil
	}
	subject := fmt.Sprintf("[Billing] %s %s is now %s", notice.EntityKind, notice.EntityID, notice.Status)

	var body bytes.Buffer
	if err := billingNoticeTemplate.Execute(&body, notice); err != nil {
		return err
	}

	return s.sendEmail(to, subject, body.String())
}
