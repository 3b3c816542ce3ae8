package worker

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/chairside-api/internal/model"
)

type MailerConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	FrontDesk string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails the front desk when a booking is created or changes slot.
type Mailer struct {
	config MailerConfig
	dialer sender
}

func NewMailer(config MailerConfig) *Mailer {
	return &Mailer{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

var subjects = map[string]string{
	model.EventBookingCreated:     "New booking",
	model.EventBookingConfirmed:   "Booking confirmed",
	model.EventBookingRescheduled: "Booking rescheduled",
	model.EventBookingMoved:       "Booking moved",
	model.EventBookingCancelled:   "Booking cancelled",
	model.EventBookingNoShow:      "Patient did not show",
}

var bodyTemplate = template.Must(template.New("booking").Parse(
	`{{.Name}} ({{.Phone}})
Doctor: {{.Doctor}}
{{if .Date}}When: {{.Date}} {{.Time}} for {{.Duration}} minutes
{{end}}{{if .PreviousDate}}Was: {{.PreviousDate}} {{.PreviousTime}} with {{.PreviousDoctor}}
{{end}}Status: {{.VisitStatus}}
`))

// Notify sends one email per event. Visit-status changes are not mailed.
func (m *Mailer) Notify(ctx context.Context, eventType string, event *model.BookingEvent) error {
	subject, ok := subjects[eventType]
	if !ok {
		return nil
	}
	if m.config.FrontDesk == "" {
		return nil
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, event); err != nil {
		return fmt.Errorf("failed to render notification: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", m.config.FrontDesk)
	msg.SetHeader("Subject", fmt.Sprintf("%s: %s", subject, event.Name))
	msg.SetBody("text/plain", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
