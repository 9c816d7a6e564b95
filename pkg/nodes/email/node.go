// Package email provides the SMTP send node for workflow graph execution.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/voxflow/voxflow/pkg/models"
)

// Mailer delivers a built message. The SMTP implementation is the default;
// tests substitute their own.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, message []byte) error
}

// SMTPConfig is the server-level mail configuration shared by every email
// node of a deployment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// EmailNode sends one message per execution. Recipients, subject, and body
// come from node configuration with placeholders already resolved.
type EmailNode struct {
	id      string
	to      []string
	subject string
	body    string
	from    string
	mailer  Mailer
}

func NewEmailNode(id string, config map[string]any, defaultFrom string, mailer Mailer) (*EmailNode, error) {
	if mailer == nil {
		return nil, errors.New("email: no mailer configured")
	}

	node := &EmailNode{
		id:     id,
		from:   defaultFrom,
		mailer: mailer,
	}

	node.to = parseRecipients(config["to"])
	if len(node.to) == 0 {
		return nil, errors.New("at least one recipient is required")
	}

	subject, ok := config["subject"].(string)
	if !ok || subject == "" {
		return nil, errors.New("missing required field 'subject'")
	}

	node.subject = subject

	if body, ok := config["body"].(string); ok {
		node.body = body
	}

	if from, ok := config["from"].(string); ok && from != "" {
		node.from = from
	}

	return node, nil
}

func parseRecipients(value any) []string {
	switch v := value.(type) {
	case string:
		var out []string

		for _, part := range strings.Split(v, ",") {
			if addr := strings.TrimSpace(part); addr != "" {
				out = append(out, addr)
			}
		}

		return out
	case []any:
		var out []string

		for _, item := range v {
			if addr, ok := item.(string); ok && addr != "" {
				out = append(out, addr)
			}
		}

		return out
	default:
		return nil
	}
}

func (n *EmailNode) ID() string {
	return n.id
}

func (n *EmailNode) Type() string {
	return models.NodeTypeEmailTool
}

func (n *EmailNode) Execute(ctx context.Context, _ *models.ExecutionContext) (*models.NodeResult, error) {
	message := buildMessage(n.from, n.to, n.subject, n.body)

	if err := n.mailer.Send(ctx, n.from, n.to, message); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &models.NodeResult{
		ExitHandle: models.ExitHandleSuccess,
		Data: map[string]any{
			"recipients": n.to,
			"subject":    n.subject,
			"sent_at":    time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)

	return buf.Bytes()
}

// SMTPMailer sends through a plain or TLS SMTP session.
type SMTPMailer struct {
	config SMTPConfig
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) Send(_ context.Context, from string, to []string, message []byte) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if m.config.UseTLS {
		return m.sendTLS(addr, auth, from, to, message)
	}

	return smtp.SendMail(addr, auth, from, to, message)
}

func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, from string, to []string, message []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.config.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.config.Host)
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

	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}

	if _, err := writer.Write(message); err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	return client.Quit()
}
