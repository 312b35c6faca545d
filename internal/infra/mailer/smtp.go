package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wizlearn/account-service/internal/infra/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPTransport sends multipart/alternative mail through a relay. Without a username it
// talks plain SMTP, which suits Mailpit and similar local catchers.
type SMTPTransport struct {
	addr     string
	host     string
	from     string
	fromName string
	username string
	password string
	send     sendMailFunc
}

func NewSMTPTransport(cfg config.MailSettings) *SMTPTransport {
	host := strings.TrimSpace(cfg.SMTPHost)
	return &SMTPTransport{
		addr:     net.JoinHostPort(host, strconv.Itoa(cfg.SMTPPort)),
		host:     host,
		from:     strings.TrimSpace(cfg.FromAddress),
		fromName: strings.TrimSpace(cfg.FromName),
		username: strings.TrimSpace(cfg.SMTPUsername),
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("smtp: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if t.username != "" {
		auth = smtp.PlainAuth("", t.username, t.password, t.host)
	}
	if err := t.send(t.addr, auth, t.from, []string{to}, t.compose(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) compose(msg Message) []byte {
	var buf bytes.Buffer
	boundary := "wiz-" + uuid.NewString()
	from := t.from
	if t.fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", t.fromName), t.from)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", msg.Text)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", msg.HTML)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}
