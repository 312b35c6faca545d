package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

const mailerSendTimeout = 10 * time.Second

// MailerSendTransport delivers through the MailerSend HTTP API.
type MailerSendTransport struct {
	client *mailersend.Mailersend
	from   mailersend.From
	send   func(ctx context.Context, msg *mailersend.Message) error
}

func NewMailerSendTransport(apiKey, fromName, fromEmail string) (*MailerSendTransport, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(fromEmail) == "" {
		return nil, errors.New("mailersend: api key and sender address are required")
	}
	t := &MailerSendTransport{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}
	t.send = func(ctx context.Context, msg *mailersend.Message) error {
		_, err := t.client.Email.Send(ctx, msg)
		return err
	}
	return t, nil
}

func (t *MailerSendTransport) Deliver(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, mailerSendTimeout)
	defer cancel()

	out := t.client.Email.NewMessage()
	out.SetFrom(t.from)
	out.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.To}})
	out.SetSubject(msg.Subject)
	if strings.TrimSpace(msg.Text) != "" {
		out.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		out.SetHTML(msg.HTML)
	}

	if err := t.send(ctx, out); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}
