// Package credit gates catch-up submissions on an external credit
// service. Catch-ups are billable, so the gate runs before any
// extraction work starts.
package credit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Decision is the gate's verdict for one submission.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Gate decides whether a user may spend cost credits.
type Gate interface {
	Check(ctx context.Context, userID string, cost int) (Decision, error)
}

// HTTPGate posts the check to an external credit endpoint.
type HTTPGate struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPGate creates a gate against the configured endpoint.
func NewHTTPGate(endpoint string) *HTTPGate {
	return &HTTPGate{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGate) Check(ctx context.Context, userID string, cost int) (Decision, error) {
	payload, _ := json.Marshal(map[string]any{
		"user_id": userID,
		"cost":    cost,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("credit check failed: %w", err)
	}
	defer resp.Body.Close()

	// 402 is a definitive denial, not a transport error
	if resp.StatusCode == http.StatusPaymentRequired {
		var denied struct {
			Remaining int `json:"remaining"`
		}
		json.NewDecoder(resp.Body).Decode(&denied)
		return Decision{Allowed: false, Remaining: denied.Remaining}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("credit check returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Allowed   bool `json:"allowed"`
		Remaining int  `json:"remaining"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: body.Allowed, Remaining: body.Remaining}, nil
}

// AllowAll is the no-op gate used when no credit endpoint is
// configured.
type AllowAll struct{}

func (AllowAll) Check(ctx context.Context, userID string, cost int) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1}, nil
}
