package mailsender

import (
	"context"
	"fmt"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewMessage builds the plain text email for msg.
func (m *Mailer) NewMessage(to, subject, body string) *gomail.Message {
	from := m.From
	if from == "" {
		from = m.Username
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return msg
}

func (m *Mailer) Send(to, subject, body string) error {
	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)

	return dialer.DialAndSend(m.NewMessage(to, subject, body))
}

// SendMessage delivers msg synchronously over SMTP.
func (m *Mailer) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "mailsender.SendMessage"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Send(msg.Email, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
