package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxCRMResponse = 1024 * 1024

// RESTClient talks to a CRM bridge over HTTP.
type RESTClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTClient(baseURL, apiKey string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RESTClient) UpdateContact(ctx context.Context, contactRef string, fields map[string]any) (map[string]any, error) {
	return c.post(ctx, fmt.Sprintf("/contacts/%s", url.PathEscape(contactRef)), fields)
}

func (c *RESTClient) LogActivity(ctx context.Context, contactRef string, activity map[string]any) (map[string]any, error) {
	return c.post(ctx, fmt.Sprintf("/contacts/%s/activities", url.PathEscape(contactRef)), activity)
}

func (c *RESTClient) post(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxCRMResponse))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("CRM returned status %d", resp.StatusCode)
	}

	result := map[string]any{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("CRM returned invalid JSON: %w", err)
		}
	}

	return result, nil
}
