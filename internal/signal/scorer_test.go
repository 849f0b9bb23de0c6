package signal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

type stubRemote struct {
	strength   float64
	confidence float64
	err        error
}

func (r *stubRemote) Score(ctx context.Context, features domain.ScoreFeatures) (float64, float64, error) {
	return r.strength, r.confidence, r.err
}

type stubVol struct{ v float64 }

func (s *stubVol) Volatility(pair domain.Pair, window int) float64 { return s.v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOpp() domain.Opportunity {
	return domain.Opportunity{
		ID:              "opp-1",
		Pair:            domain.Pair{Base: "SOL", Quote: "USDC"},
		Amount:          5000,
		EstimatedProfit: 50,
	}
}

func testScorerConfig() ScorerConfig {
	return ScorerConfig{MaxTradeSize: 10_000, VolatilityWindow: 60}
}

func TestScore_RemoteResult(t *testing.T) {
	remote := &stubRemote{strength: 0.7, confidence: 0.9}
	s := NewScorer(remote, &stubVol{v: 0.02}, testScorerConfig(), testLogger())

	sig := s.Score(context.Background(), testOpp())

	assert.Equal(t, domain.SignalSourceScored, sig.Source)
	assert.Equal(t, 0.7, sig.Strength)
	assert.Equal(t, 0.9, sig.Confidence)
	assert.True(t, sig.Valid())
}

func TestScore_RemoteErrorFallsBack(t *testing.T) {
	remote := &stubRemote{err: errors.New("connection refused")}
	s := NewScorer(remote, &stubVol{}, testScorerConfig(), testLogger())

	sig := s.Score(context.Background(), testOpp())
	assert.Equal(t, domain.SignalSourceFallback, sig.Source)
	assert.True(t, sig.Valid())
}

func TestScore_OutOfRangeFallsBack(t *testing.T) {
	cases := []struct {
		name                 string
		strength, confidence float64
	}{
		{"strength above one", 1.5, 0.5},
		{"negative confidence", 0.5, -0.1},
		{"nan strength", math.NaN(), 0.5},
		{"nan confidence", 0.5, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := &stubRemote{strength: tc.strength, confidence: tc.confidence}
			s := NewScorer(remote, &stubVol{}, testScorerConfig(), testLogger())

			sig := s.Score(context.Background(), testOpp())
			assert.Equal(t, domain.SignalSourceFallback, sig.Source)
			assert.True(t, sig.Valid())
		})
	}
}

func TestScore_NilRemoteUsesFallback(t *testing.T) {
	s := NewScorer(nil, &stubVol{}, testScorerConfig(), testLogger())

	opp := testOpp() // profit ratio 0.01, size ratio 0.5
	sig := s.Score(context.Background(), opp)

	assert.Equal(t, domain.SignalSourceFallback, sig.Source)
	assert.InDelta(t, 0.255, sig.Strength, 1e-9)
	assert.InDelta(t, 0.3, sig.Confidence, 1e-9, "confidence is floored at 0.3")
}

func TestFallback_ConfidenceBounds(t *testing.T) {
	s := NewScorer(nil, nil, testScorerConfig(), testLogger())

	// Huge profit ratio drives strength to 1; confidence is capped at 0.8.
	opp := testOpp()
	opp.Amount = 10_000
	opp.EstimatedProfit = 50_000
	sig := s.fallback(opp)
	assert.Equal(t, 1.0, sig.Strength)
	assert.Equal(t, 0.8, sig.Confidence)

	// Zero-profit opportunity floors confidence at 0.3.
	opp = domain.Opportunity{Amount: 0}
	sig = s.fallback(opp)
	assert.Equal(t, 0.3, sig.Confidence)
}

func TestRemoteScorer_ScoresOverHTTP(t *testing.T) {
	var got domain.ScoreFeatures
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/score", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"strength":0.6,"confidence":0.75}`))
	}))
	defer srv.Close()

	r := NewRemoteScorer(srv.URL)
	strength, confidence, err := r.Score(context.Background(), domain.ScoreFeatures{
		ProfitRatio: 0.01,
		SizeRatio:   0.5,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.6, strength)
	assert.Equal(t, 0.75, confidence)
	assert.Equal(t, 0.01, got.ProfitRatio)
	assert.Equal(t, 0.5, got.SizeRatio)
}

func TestRemoteScorer_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewRemoteScorer(srv.URL)
	_, _, err := r.Score(context.Background(), domain.ScoreFeatures{})
	assert.Error(t, err)
}
