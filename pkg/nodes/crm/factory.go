package crm

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

// CRMNodeFactory creates CRMNode instances sharing one client.
type CRMNodeFactory struct {
	client Client
}

func (f *CRMNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewCRMNode(id, config, f.client)
}

func (f *CRMNodeFactory) ID() string {
	return models.NodeTypeCRMTool
}

func (f *CRMNodeFactory) Name() string {
	return "CRM"
}

func (f *CRMNodeFactory) Description() string {
	return "Updates a contact or logs an activity in the organization's CRM."
}

func (f *CRMNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{ActionUpdateContact, ActionLogActivity},
			},
			"contact": map[string]any{
				"type":        "string",
				"description": "Contact reference, usually the dialed number. Supports placeholders.",
			},
			"fields": map[string]any{
				"type":        "object",
				"description": "Field values to write. Values support placeholders.",
			},
		},
		"required": []string{"action", "contact"},
	}
}

func NewCRMNodeFactory(client Client) protocol.NodeFactory {
	return &CRMNodeFactory{client: client}
}
