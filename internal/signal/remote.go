package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// RemoteScorer calls an HTTP scoring service implementing domain.Scorer. The
// service receives the feature vector as JSON and responds with strength and
// confidence; validation of the response range is the caller's concern.
type RemoteScorer struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteScorer creates a client for the scoring service at baseURL.
func NewRemoteScorer(baseURL string) *RemoteScorer {
	return &RemoteScorer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type scoreResponse struct {
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

// Score posts the feature vector to the scoring service.
func (r *RemoteScorer) Score(ctx context.Context, features domain.ScoreFeatures) (float64, float64, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return 0, 0, fmt.Errorf("scorer: marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("scorer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("scorer: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return 0, 0, fmt.Errorf("scorer: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, 0, fmt.Errorf("scorer: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out scoreResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return 0, 0, fmt.Errorf("scorer: decode response: %w", err)
	}
	return out.Strength, out.Confidence, nil
}

// Compile-time interface check.
var _ domain.Scorer = (*RemoteScorer)(nil)
