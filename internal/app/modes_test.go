package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

type stubPriceCache struct {
	mu     sync.Mutex
	prices map[string]float64
	reads  []string
}

func (c *stubPriceCache) SetPrice(_ context.Context, pair string, price float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = make(map[string]float64)
	}
	c.prices[pair] = price
	return nil
}

func (c *stubPriceCache) GetPrice(_ context.Context, pair string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, pair)
	price, ok := c.prices[pair]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, time.Now().UTC(), nil
}

func (c *stubPriceCache) snapshotReads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reads...)
}

func TestWatchPrices_ReadsEveryPairEachTick(t *testing.T) {
	cache := &stubPriceCache{}
	require.NoError(t, cache.SetPrice(context.Background(), "SOL/USDC", 145.2, time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := watchPrices(ctx, cache, []string{"SOL/USDC", "ETH/USDC"}, 10*time.Millisecond, logger)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	reads := cache.snapshotReads()
	assert.Contains(t, reads, "SOL/USDC")
	// a pair nobody has priced yet is skipped, not fatal
	assert.Contains(t, reads, "ETH/USDC")
}
