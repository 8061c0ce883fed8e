package env

import (
	"fmt"

	"github.com/pterm/pterm"
)

type EmailConfig struct {
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"billing@orbitdesk.local"`
	// NotifyTo receives a mail for every committed billing transition.
	NotifyTo []string `envconfig:"BILLING_NOTIFY_TO"`
}

func (e EmailConfig) log() {
	if len(e.NotifyTo) == 0 {
		pterm.DefaultLogger.Info("BILLING_NOTIFY_TO not set, billing notifications are only logged")
		return
	}
	if e.SMTPHost == "" {
		pterm.DefaultLogger.Warn("SMTP_HOST not set, billing notification emails are printed to the log")
		return
	}
	pterm.DefaultLogger.Info(fmt.Sprintf("Billing notifications mailed via %s:%s to %d recipient(s)", e.SMTPHost, e.SMTPPort, len(e.NotifyTo)))
}
