// Package email sends operational alerts over SMTP.
package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/dmarkov/bank-ledger/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Alerter notifies operators about problems in recurring payment runs.
type Alerter struct {
	cfg *config.Config
	log *logrus.Logger
}

func NewAlerter(cfg *config.Config, log *logrus.Logger) *Alerter {
	return &Alerter{cfg: cfg, log: log}
}

// Enabled reports whether SMTP and a recipient are configured.
func (a *Alerter) Enabled() bool {
	return a.cfg.SMTPHost != "" && a.cfg.AlertEmail != ""
}

// SendDueRunAlert reports a due-payment run that left payments unsettled.
// Failed payments stay due and are retried on the next run.
func (a *Alerter) SendDueRunAlert(processed, failed int) error {
	e := email.NewEmail()
	e.From = a.cfg.SenderEmail
	e.To = []string{a.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("Recurring payments: %d failed", failed)
	e.Text = []byte(fmt.Sprintf(
		"Due-payment run at %s settled %d payment(s) and left %d unsettled.\n"+
			"Unsettled payments remain due and will be retried on the next run.\n"+
			"The usual cause is an underfunded business account.\n",
		time.Now().UTC().Format(time.RFC3339), processed, failed,
	))

	addr := fmt.Sprintf("%s:%s", a.cfg.SMTPHost, a.cfg.SMTPPort)
	auth := smtp.PlainAuth("", a.cfg.SMTPUsername, a.cfg.SMTPPassword, a.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		a.log.Errorf("Failed to send alert to %s: %v", a.cfg.AlertEmail, err)
		return fmt.Errorf("failed to send alert: %w", err)
	}

	a.log.Infof("Alert sent to %s: %s", a.cfg.AlertEmail, e.Subject)
	return nil
}
