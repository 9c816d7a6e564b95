package cmd

import (
	"log/slog"

	"github.com/voxflow/voxflow/pkg/nodes/aiagent"
	"github.com/voxflow/voxflow/pkg/nodes/crm"
	"github.com/voxflow/voxflow/pkg/nodes/email"
	"github.com/voxflow/voxflow/pkg/registry"
)

// NodeConfig carries the external endpoints the tool nodes talk to. Empty
// values leave the corresponding node type unregistered.
type NodeConfig struct {
	AnalyzerURL    string
	AnalyzerAPIKey string
	CRMURL         string
	CRMAPIKey      string
	SMTP           *email.SMTPConfig
}

// NewRegistry builds the node registry with every collaborator the config
// provides.
func NewRegistry(logger *slog.Logger, cfg NodeConfig) *registry.Registry {
	reg := registry.NewRegistry(logger)

	collaborators := registry.Collaborators{
		SMTP: cfg.SMTP,
	}

	if cfg.AnalyzerURL != "" {
		collaborators.Analyzer = aiagent.NewRESTAnalyzer(cfg.AnalyzerURL, cfg.AnalyzerAPIKey)
	}

	if cfg.CRMURL != "" {
		collaborators.CRM = crm.NewRESTClient(cfg.CRMURL, cfg.CRMAPIKey)
	}

	reg.RegisterDefaultNodes(collaborators)

	return reg
}
