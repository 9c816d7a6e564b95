package webhooktool

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

// WebhookToolNodeFactory creates WebhookToolNode instances.
type WebhookToolNodeFactory struct{}

func (f *WebhookToolNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewWebhookToolNode(id, config)
}

func (f *WebhookToolNodeFactory) ID() string {
	return models.NodeTypeWebhookTool
}

func (f *WebhookToolNodeFactory) Name() string {
	return "Webhook"
}

func (f *WebhookToolNodeFactory) Description() string {
	return "Delivers workflow data to an external URL over HTTP."
}

func (f *WebhookToolNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Destination URL. Supports placeholders.",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method, default POST.",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers. Values support placeholders.",
			},
			"body": map[string]any{
				"description": "Request body as a string or JSON object. Supports placeholders.",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds, default 30.",
			},
			"retries": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "number"},
					"delay":    map[string]any{"type": "number"},
				},
			},
		},
		"required": []string{"url"},
	}
}

func NewWebhookToolNodeFactory() protocol.NodeFactory {
	return &WebhookToolNodeFactory{}
}
