package email

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

// EmailNodeFactory creates EmailNode instances sharing one mailer.
type EmailNodeFactory struct {
	defaultFrom string
	mailer      Mailer
}

func (f *EmailNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewEmailNode(id, config, f.defaultFrom, f.mailer)
}

func (f *EmailNodeFactory) ID() string {
	return models.NodeTypeEmailTool
}

func (f *EmailNodeFactory) Name() string {
	return "Send Email"
}

func (f *EmailNodeFactory) Description() string {
	return "Sends an email through the configured SMTP server."
}

func (f *EmailNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"description": "Recipient address, comma-separated list, or array of addresses.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Message subject. Supports placeholders.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Plain-text message body. Supports placeholders.",
			},
			"from": map[string]any{
				"type":        "string",
				"description": "Sender override; defaults to the deployment sender.",
			},
		},
		"required": []string{"to", "subject"},
	}
}

func NewEmailNodeFactory(config SMTPConfig) protocol.NodeFactory {
	return &EmailNodeFactory{
		defaultFrom: config.From,
		mailer:      NewSMTPMailer(config),
	}
}

// NewEmailNodeFactoryWithMailer injects a custom mailer, used by tests.
func NewEmailNodeFactoryWithMailer(defaultFrom string, mailer Mailer) protocol.NodeFactory {
	return &EmailNodeFactory{
		defaultFrom: defaultFrom,
		mailer:      mailer,
	}
}
