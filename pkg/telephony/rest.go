package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// RESTProvider posts call requests to an HTTP voice-provider endpoint.
type RESTProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRESTProvider(name, baseURL, apiKey string) *RESTProvider {
	return &RESTProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (p *RESTProvider) StartCall(ctx context.Context, req StartCallRequest) (*StartCallResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/calls", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build call request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Message: err.Error()}
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Message: string(raw)}
	}

	out := &StartCallResponse{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Message: "malformed provider response"}
	}

	if out.ProviderCallID == "" {
		return nil, &ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Message: "provider response missing call id"}
	}

	return out, nil
}

var _ Provider = (*RESTProvider)(nil)
