package registry

import (
	"github.com/voxflow/voxflow/pkg/nodes/aiagent"
	"github.com/voxflow/voxflow/pkg/nodes/condition"
	"github.com/voxflow/voxflow/pkg/nodes/crm"
	"github.com/voxflow/voxflow/pkg/nodes/email"
	"github.com/voxflow/voxflow/pkg/nodes/trigger"
	"github.com/voxflow/voxflow/pkg/nodes/webhooktool"
)

// Collaborators holds the external clients the built-in tool nodes depend
// on. A nil collaborator leaves the corresponding node type unregistered,
// so workflows using it fail validation instead of failing mid-run.
type Collaborators struct {
	Analyzer aiagent.Analyzer
	SMTP     *email.SMTPConfig
	CRM      crm.Client
}

// RegisterDefaultNodes registers the built-in node factories.
func (r *Registry) RegisterDefaultNodes(c Collaborators) {
	r.RegisterNode(trigger.NewTriggerNodeFactory())
	r.RegisterNode(condition.NewConditionNodeFactory())
	r.RegisterNode(webhooktool.NewWebhookToolNodeFactory())

	if c.Analyzer != nil {
		r.RegisterNode(aiagent.NewAIAgentNodeFactory(c.Analyzer))
	}

	if c.SMTP != nil {
		r.RegisterNode(email.NewEmailNodeFactory(*c.SMTP))
	}

	if c.CRM != nil {
		r.RegisterNode(crm.NewCRMNodeFactory(c.CRM))
	}
}
