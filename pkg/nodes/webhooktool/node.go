// Package webhooktool provides the outbound HTTP node for workflow graph
// execution.
package webhooktool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxflow/voxflow/pkg/models"
)

const maxResponseBody = 1024 * 1024

// WebhookToolNode posts workflow data to an external URL. Placeholders in
// the URL, headers, and body are resolved before the node is built.
type WebhookToolNode struct {
	id      string
	url     string
	method  string
	headers map[string]string
	body    string
	timeout time.Duration
	retries retryConfig
}

type retryConfig struct {
	attempts int
	delay    time.Duration
}

func NewWebhookToolNode(id string, config map[string]any) (*WebhookToolNode, error) {
	node := &WebhookToolNode{
		id:      id,
		method:  http.MethodPost,
		headers: make(map[string]string),
		timeout: 30 * time.Second,
		retries: retryConfig{attempts: 1},
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	node.url = url

	if method, ok := config["method"].(string); ok {
		node.method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				node.headers[key] = str
			}
		}
	}

	switch body := config["body"].(type) {
	case string:
		node.body = body
	case map[string]any:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}

		node.body = string(encoded)
	}

	if timeout, ok := config["timeout"].(float64); ok && timeout > 0 {
		node.timeout = time.Duration(timeout) * time.Second
	}

	if retries, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok && attempts > 0 {
			node.retries.attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok && delay > 0 {
			node.retries.delay = time.Duration(delay) * time.Millisecond
		}
	}

	return node, nil
}

func (n *WebhookToolNode) ID() string {
	return n.id
}

func (n *WebhookToolNode) Type() string {
	return models.NodeTypeWebhookTool
}

func (n *WebhookToolNode) Execute(ctx context.Context, _ *models.ExecutionContext) (*models.NodeResult, error) {
	var lastErr error

	for attempt := 1; attempt <= n.retries.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(n.retries.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := n.perform(ctx)
		if err == nil {
			return &models.NodeResult{
				ExitHandle: models.ExitHandleSuccess,
				Data:       data,
			}, nil
		}

		lastErr = err

		// 4xx responses will not improve on retry.
		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	return nil, fmt.Errorf("webhook delivery failed after %d attempts: %w", n.retries.attempts, lastErr)
}

// HTTPError carries a non-2xx response status.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (n *WebhookToolNode) perform(ctx context.Context) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var reqBody io.Reader
	if n.body != "" {
		reqBody = strings.NewReader(n.body)
	}

	req, err := http.NewRequestWithContext(reqCtx, n.method, n.url, reqBody)
	if err != nil {
		return nil, err
	}

	if n.body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range n.headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	data := map[string]any{
		"status_code": resp.StatusCode,
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		data["body"] = parsed
	} else {
		data["body"] = string(body)
	}

	return data, nil
}
