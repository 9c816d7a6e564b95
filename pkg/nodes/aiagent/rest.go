package aiagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxAnalyzeResponse = 1024 * 1024

// RESTAnalyzer calls a completion service over HTTP. The service receives
// the prompt and input text and answers with a flat JSON object.
type RESTAnalyzer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTAnalyzer(baseURL, apiKey string) *RESTAnalyzer {
	return &RESTAnalyzer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *RESTAnalyzer) Analyze(ctx context.Context, prompt, input string) (map[string]any, error) {
	payload, err := json.Marshal(map[string]string{
		"prompt": prompt,
		"input":  input,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalyzeResponse))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("analyzer returned invalid JSON: %w", err)
	}

	return result, nil
}
