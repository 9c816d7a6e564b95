package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxBillingResponse = 64 * 1024

// RESTBilling asks the billing service whether an organization has balance
// for outbound calls.
type RESTBilling struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTBilling(baseURL, apiKey string) *RESTBilling {
	return &RESTBilling{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *RESTBilling) CanPlaceCall(ctx context.Context, organizationID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/organizations/%s/call-allowance", b.baseURL, url.PathEscape(organizationID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBillingResponse))
	if err != nil {
		return false, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("billing returned status %d", resp.StatusCode)
	}

	var result struct {
		Allowed bool `json:"allowed"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("billing returned invalid JSON: %w", err)
	}

	return result.Allowed, nil
}
