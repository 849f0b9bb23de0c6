// Package relay implements the private submission channel: an HTTP client
// for the bundle relay plus the fee model used to price executions.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/crypto"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// Client is the REST client for the bundle relay API. It submits signed
// transaction sets for slot-targeted inclusion and polls their status.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *crypto.RelayAuth
}

var _ domain.Relay = (*Client)(nil)

// NewClient creates a relay REST client.
//
// baseURL is the relay API root, e.g. "https://relay.example.com".
// auth carries the HMAC credentials issued by the relay operator; it may be
// nil for relays that accept unauthenticated submissions.
func NewClient(baseURL string, auth *crypto.RelayAuth) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth: auth,
	}
}

// Submit posts a signed transaction set targeting the given slot. The relay
// validates the payload signature before accepting; any rejection surfaces as
// ErrRelayRejected so callers can fail the attempt without retrying.
func (c *Client) Submit(ctx context.Context, set domain.TxSet, targetSlot uint64) (string, error) {
	body := map[string]any{
		"target_slot": targetSlot,
		"tx_set":      set,
	}

	respBody, status, err := c.doRequest(ctx, http.MethodPost, "/bundles", body)
	if err != nil {
		return "", fmt.Errorf("relay: submit: %w", err)
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return "", fmt.Errorf("relay: submit: %w (HTTP %d): %s", domain.ErrRelayRejected, status, string(respBody))
	}

	var result struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("relay: decode submit response: %w", err)
	}
	if result.SubmissionID == "" {
		return "", fmt.Errorf("relay: submit: %w: empty submission id", domain.ErrRelayRejected)
	}

	return result.SubmissionID, nil
}

// Status reports whether the submission landed in the given slot.
func (c *Client) Status(ctx context.Context, submissionID string, slot uint64) (domain.SubmissionStatus, error) {
	path := fmt.Sprintf("/bundles/%s?slot=%d", submissionID, slot)

	respBody, status, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.SubmissionStatus{}, fmt.Errorf("relay: status %s: %w", submissionID, err)
	}
	if status == http.StatusNotFound {
		return domain.SubmissionStatus{State: domain.SubmissionAbsent}, nil
	}
	if status != http.StatusOK {
		return domain.SubmissionStatus{}, fmt.Errorf("relay: status %s: HTTP %d: %s", submissionID, status, string(respBody))
	}

	var result struct {
		State          string  `json:"state"`
		SettlementRef  string  `json:"settlement_ref"`
		ObservedProfit float64 `json:"observed_profit"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.SubmissionStatus{}, fmt.Errorf("relay: decode status response: %w", err)
	}

	out := domain.SubmissionStatus{
		SettlementRef:  result.SettlementRef,
		ObservedProfit: result.ObservedProfit,
	}
	switch result.State {
	case string(domain.SubmissionIncluded):
		out.State = domain.SubmissionIncluded
	case string(domain.SubmissionPending):
		out.State = domain.SubmissionPending
	default:
		out.State = domain.SubmissionAbsent
	}

	return out, nil
}

// CurrentSlot returns the relay's view of the chain head slot.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	respBody, status, err := c.doRequest(ctx, http.MethodGet, "/slot", nil)
	if err != nil {
		return 0, fmt.Errorf("relay: current slot: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("relay: current slot: HTTP %d: %s", status, string(respBody))
	}

	var result struct {
		Slot uint64 `json:"slot"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("relay: decode slot response: %w", err)
	}

	return result.Slot, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, signs (HMAC), sends, and reads one HTTP request against
// the relay API. It returns the raw response body and status code; non-2xx
// responses are not errors here so callers can map them per endpoint.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.auth != nil {
		for k, v := range c.auth.Headers(method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}
