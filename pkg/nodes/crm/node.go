// Package crm provides the node that pushes call outcomes into the
// organization's CRM.
package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/voxflow/voxflow/pkg/models"
)

// Supported CRM actions.
const (
	ActionUpdateContact = "update_contact"
	ActionLogActivity   = "log_activity"
)

// Client is the CRM collaborator boundary.
type Client interface {
	UpdateContact(ctx context.Context, contactRef string, fields map[string]any) (map[string]any, error)
	LogActivity(ctx context.Context, contactRef string, activity map[string]any) (map[string]any, error)
}

// CRMNode performs one CRM action per execution. The contact reference and
// field values arrive with placeholders already resolved.
type CRMNode struct {
	id         string
	action     string
	contactRef string
	fields     map[string]any
	client     Client
}

func NewCRMNode(id string, config map[string]any, client Client) (*CRMNode, error) {
	if client == nil {
		return nil, errors.New("crm: no client configured")
	}

	action, ok := config["action"].(string)
	if !ok {
		return nil, errors.New("missing required field 'action'")
	}

	if action != ActionUpdateContact && action != ActionLogActivity {
		return nil, fmt.Errorf("unsupported CRM action '%s'", action)
	}

	contactRef, ok := config["contact"].(string)
	if !ok || contactRef == "" {
		return nil, errors.New("missing required field 'contact'")
	}

	node := &CRMNode{
		id:         id,
		action:     action,
		contactRef: contactRef,
		client:     client,
	}

	if fields, ok := config["fields"].(map[string]any); ok {
		node.fields = fields
	}

	return node, nil
}

func (n *CRMNode) ID() string {
	return n.id
}

func (n *CRMNode) Type() string {
	return models.NodeTypeCRMTool
}

func (n *CRMNode) Execute(ctx context.Context, _ *models.ExecutionContext) (*models.NodeResult, error) {
	var (
		result map[string]any
		err    error
	)

	switch n.action {
	case ActionUpdateContact:
		result, err = n.client.UpdateContact(ctx, n.contactRef, n.fields)
	case ActionLogActivity:
		result, err = n.client.LogActivity(ctx, n.contactRef, n.fields)
	}

	if err != nil {
		return nil, fmt.Errorf("CRM %s failed: %w", n.action, err)
	}

	data := map[string]any{
		"action":  n.action,
		"contact": n.contactRef,
	}

	for key, value := range result {
		data[key] = value
	}

	return &models.NodeResult{
		ExitHandle: models.ExitHandleSuccess,
		Data:       data,
	}, nil
}
