package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/medtrust/ehr/pkg/config"
	"github.com/medtrust/ehr/pkg/logger"
)

// EmailNotifier delivers notification mail over SMTP. When disabled in
// configuration it logs the message instead of sending, which keeps local
// development working without a mail account.
type EmailNotifier struct {
	host     string
	port     int
	sender   string
	password string
	enabled  bool
	logger   *logger.Logger

	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new email notifier from SMTP configuration.
func NewEmailNotifier(cfg config.SMTPConfig, log *logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		host:     cfg.Host,
		port:     cfg.Port,
		sender:   cfg.Sender,
		password: cfg.Password,
		enabled:  cfg.Enabled,
		logger:   log,
		send:     smtp.SendMail,
	}
}

// SendAccessApproved notifies a requester that their request was approved.
func (n *EmailNotifier) SendAccessApproved(to, requesterName, patientName string) error {
	subject := "Access Request Approved"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour request to access the record of %s has been approved.\nThe grant is valid for 30 days.\n\nMedTrust EHR",
		requesterName, patientName,
	)
	return n.deliver(to, subject, body)
}

// SendAccessDenied notifies a requester that their request was denied.
func (n *EmailNotifier) SendAccessDenied(to, requesterName, patientName, reason string) error {
	subject := "Access Request Denied"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour request to access the record of %s has been denied.",
		requesterName, patientName,
	)
	if reason != "" {
		body += fmt.Sprintf("\nReason: %s", reason)
	}
	body += "\n\nMedTrust EHR"
	return n.deliver(to, subject, body)
}

// SendEmergencyAlert tells the admin about a break-glass grant.
func (n *EmailNotifier) SendEmergencyAlert(adminEmail, actorName, patientName, justification string) error {
	subject := "EMERGENCY ACCESS ALERT"
	body := fmt.Sprintf(
		"Emergency access was used.\n\nActor: %s\nPatient: %s\nJustification: %s\n\nReview the audit trail for details.",
		actorName, patientName, justification,
	)
	return n.deliver(adminEmail, subject, body)
}

// SendNewRequestNotification tells the admin a restricted request awaits review.
func (n *EmailNotifier) SendNewRequestNotification(adminEmail, requesterName, patientName, reason string) error {
	subject := "New Access Request Pending"
	body := fmt.Sprintf(
		"A new restricted access request awaits your review.\n\nRequester: %s\nPatient: %s\nReason: %s",
		requesterName, patientName, reason,
	)
	return n.deliver(adminEmail, subject, body)
}

// SendOTPEmail delivers a login verification code.
func (n *EmailNotifier) SendOTPEmail(to, name, code string) error {
	subject := "Your MedTrust Verification Code"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour verification code is: %s\n\nIt expires in 10 minutes. If you did not try to log in, contact your administrator.",
		name, code,
	)
	return n.deliver(to, subject, body)
}

func (n *EmailNotifier) deliver(to, subject, body string) error {
	if !n.enabled {
		n.logger.WithComponent("email_notifier").WithFields(map[string]interface{}{
			"to":      to,
			"subject": subject,
		}).Info("SMTP disabled, logging mail instead of sending")
		return nil
	}

	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", n.sender),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.sender, n.password, n.host)

	if err := n.send(addr, auth, n.sender, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
