package billing_service

import (
	"context"
	"fmt"

	email_service "github.com/orbitdesk/orbitdesk-server/src/email/service"
	"github.com/pterm/pterm"
)

// Notification describes a committed billing transition.
type Notification struct {
	Cause      string
	EntityKind string
	EntityID   string
	Status     string
}

// Notifier is called after a transition commits. Its failures are logged and
// never undo the transition.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier only writes the notification to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	pterm.DefaultLogger.Info(fmt.Sprintf("[BILLING] %s %s -> %s (cause: %s)", n.EntityKind, n.EntityID, n.Status, n.Cause))
	return nil
}

func notifyAll(ctx context.Context, notifier Notifier, notes []Notification) {
	if notifier == nil {
		return
	}
	for _, n := range notes {
		if err := notifier.Notify(ctx, n); err != nil {
			pterm.DefaultLogger.Warn(fmt.Sprintf("Billing notification for %s %s failed: %v", n.EntityKind, n.EntityID, err))
		}
	}
}

// EmailNotifier mails every notification to a fixed recipient list.
type EmailNotifier struct {
	Mailer email_service.EmailService
	To     []string
}

func (e EmailNotifier) Notify(ctx context.Context, n Notification) error {
	LogNotifier{}.Notify(ctx, n)
	return e.Mailer.SendBillingNotice(e.To, email_service.BillingNotice{
		EntityKind: n.EntityKind,
		EntityID:   n.EntityID,
		Status:     n.Status,
		Cause:      n.Cause,
	})
}
