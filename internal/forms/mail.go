// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package forms

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/olegiv/ocms-forms/web"
)

// Attachment is an uploaded file attached to a copy email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one notification email.
type Message struct {
	Subject     string
	From        string
	To          []string
	ReplyTo     []string
	TextBody    string
	Attachments []Attachment
}

// Mailer delivers notification emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Email template names below web/templates/email.
const (
	TemplateResponse       = "form_response"
	TemplateResponseCopies = "form_response_copies"
)

var emailTemplates = template.Must(template.ParseFS(web.Templates, "templates/email/*.txt"))

// emailContext is the data email templates render with.
type emailContext struct {
	Message string
	Fields  []LabeledValue
}

func renderEmail(name string, data emailContext) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name+".txt", data); err != nil {
		return "", fmt.Errorf("rendering email %s: %w", name, err)
	}
	return buf.String(), nil
}

// LogMailer logs messages instead of sending them. It is the mailer used
// when no SMTP server is configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent, no SMTP server configured",
		"subject", msg.Subject,
		"from", msg.From,
		"to", strings.Join(msg.To, ", "),
		"reply_to", strings.Join(msg.ReplyTo, ", "),
		"attachments", len(msg.Attachments),
	)
	return nil
}

// SMTPMailer sends messages through an SMTP relay. STARTTLS is used when
// the relay offers it.
type SMTPMailer struct {
	host string
	port int
	opts []mail.Option
}

// NewSMTPMailer creates a mailer for addr (host:port, port 587 when
// omitted), authenticating with PLAIN auth when a username is given.
func NewSMTPMailer(addr, username, password string) (*SMTPMailer, error) {
	host, port := addr, 587
	if h, p, err := net.SplitHostPort(addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid SMTP port in %q", addr)
		}
		host, port = h, n
	}
	if host == "" {
		return nil, fmt.Errorf("invalid SMTP address %q", addr)
	}

	m := &SMTPMailer{
		host: host,
		port: port,
		opts: []mail.Option{
			mail.WithPort(port),
			mail.WithTLSPolicy(mail.TLSOpportunistic),
			mail.WithTimeout(30 * time.Second),
		},
	}
	if username != "" {
		m.opts = append(m.opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}
	return m, nil
}

// Send delivers msg to every recipient.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := msg.Build()
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.host, m.opts...)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("sending mail to %s: %w", strings.Join(msg.To, ", "), err)
	}
	return nil
}

// Build converts msg into a MIME message. Messages with attachments are
// multipart/mixed.
func (msg Message) Build() (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients %q: %w", strings.Join(msg.To, ", "), err)
	}
	switch len(msg.ReplyTo) {
	case 0:
	case 1:
		if err := out.ReplyTo(msg.ReplyTo[0]); err != nil {
			return nil, fmt.Errorf("invalid reply-to %q: %w", msg.ReplyTo[0], err)
		}
	default:
		out.SetGenHeader(mail.HeaderReplyTo, strings.Join(msg.ReplyTo, ", "))
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextPlain, msg.TextBody)

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = http.DetectContentType(a.Content)
		}
		if err := out.AttachReader(a.Filename, bytes.NewReader(a.Content), mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", a.Filename, err)
		}
	}
	return out, nil
}

// Bytes encodes msg as an RFC 5322 message.
func (msg Message) Bytes() ([]byte, error) {
	out, err := msg.Build()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return buf.Bytes(), nil
}

// MemoryMailer records messages. Err, when set, is returned by every Send
// after the message has been recorded.
type MemoryMailer struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Send records msg.
func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.Err
}

// Messages returns a copy of the recorded messages.
func (m *MemoryMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
