package email_service

// EmailService sends the billing notices mailed by the server.
type EmailService interface {
	SendBillingNotice(to []string, notice BillingNotice) error
}

// BillingNotice is the template data of a billing transition mail.
type BillingNotice struct {
	EntityKind string
	EntityID   string
	Status     string
	Cause      string
}
