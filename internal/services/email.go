package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"sort"
	"strings"

	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/pkg/logger"
)

// EmailMessage is one outgoing HTML mail.
type EmailMessage struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer delivers email synchronously.
type Mailer interface {
	Send(ctx context.Context, msg *EmailMessage) error
	Enabled() bool
}

// NewMailer returns an SMTP mailer, or a mailer that drops everything when
// no SMTP host is configured.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		return disabledMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

type disabledMailer struct{}

func (disabledMailer) Send(_ context.Context, msg *EmailMessage) error {
	logger.Debug().Strs("to", msg.To).Str("subject", msg.Subject).Msg("[Email] SMTP disabled, dropping message")
	return nil
}

func (disabledMailer) Enabled() bool { return false }

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func (m *SMTPMailer) Enabled() bool { return true }

func (m *SMTPMailer) Send(_ context.Context, msg *EmailMessage) error {
	if len(msg.To) == 0 {
		return nil
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	headers := map[string]string{
		"From":         fmt.Sprintf("\"TaskHive\" <%s>", from),
		"To":           strings.Join(msg.To, ","),
		"Subject":      msg.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var message strings.Builder
	for _, k := range keys {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	message.WriteString("\r\n")
	message.WriteString(msg.HTML)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var err error
	if m.cfg.UseTLS {
		err = m.sendTLS(addr, auth, from, msg.To, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, msg.To, []byte(message.String()))
	}
	if err != nil {
		return fmt.Errorf("send mail to %v: %w", msg.To, err)
	}

	logger.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("[Email] sent")
	return nil
}

func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	return w.Close()
}

// emailBody renders the shared HTML frame around rows of label/value pairs.
type emailRow struct{ label, value string }

func emailBody(heading, intro string, rows []emailRow, linkText, link string) string {
	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h2>" + html.EscapeString(heading) + "</h2>")
	sb.WriteString("<p>" + html.EscapeString(intro) + "</p>")
	if len(rows) > 0 {
		sb.WriteString("<ul>")
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("<li><strong>%s:</strong> %s</li>", html.EscapeString(r.label), html.EscapeString(r.value)))
		}
		sb.WriteString("</ul>")
	}
	if link != "" {
		sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">%s</a></p>", html.EscapeString(link), html.EscapeString(linkText)))
	}
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">TaskHive</p>")
	sb.WriteString("</body></html>")
	return sb.String()
}
