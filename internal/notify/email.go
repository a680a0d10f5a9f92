package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type EmailSender struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

func NewEmailSender(smtpHost string, smtpPort int, from, password string, to []string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(smtpHost, smtpPort, from, password),
		from:   from,
		to:     to,
	}
}

func (s *EmailSender) Name() string {
	return ChannelEmail
}

// Send delivers the message as plain text. Recipients on the message
// override the configured default list.
func (s *EmailSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := msg.Recipients
	if len(to) == 0 {
		to = s.to
	}
	if len(to) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	var body strings.Builder
	body.WriteString(msg.Body)
	body.WriteString("\n\n")
	for _, f := range msg.Fields {
		fmt.Fprintf(&body, "%s: %s\n", f.Title, f.Value)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", strings.ToUpper(string(msg.Severity)), msg.Title))
	m.SetBody("text/plain", body.String())

	return s.dialer.DialAndSend(m)
}
