// Package telephony defines the boundary to the external voice provider.
// Real-time signaling stays on the provider side; this package only starts
// calls and receives the correlation id webhooks are keyed by.
package telephony

import (
	"context"
	"fmt"
)

// StartCallRequest carries everything the provider needs to place a call.
// StatusCallbackURL is where the provider posts lifecycle webhooks.
type StartCallRequest struct {
	CallID            string   `json:"call_id"`
	AssistantID       string   `json:"assistant_id"`
	ToNumber          string   `json:"to_number"`
	OrganizationID    string   `json:"organization_id"`
	Tags              []string `json:"tags,omitempty"`
	StatusCallbackURL string   `json:"status_callback_url"`
}

// StartCallResponse holds the provider's session correlation id.
type StartCallResponse struct {
	ProviderCallID string `json:"provider_call_id"`
}

// Provider is the telephony collaborator contract.
type Provider interface {
	StartCall(ctx context.Context, req StartCallRequest) (*StartCallResponse, error)
}

// ProviderError is a definitive rejection from the provider; the call is
// marked FAILED and not retried here.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telephony provider %s returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("telephony provider %s: %s", e.Provider, e.Message)
}
