package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiq/internal/config"
	"optiq/internal/market"
)

type stubSource struct {
	price    float64
	priceErr error
}

func (s *stubSource) FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]market.Candle, error) {
	return nil, nil
}

func (s *stubSource) FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error) {
	if s.priceErr != nil {
		return 0, s.priceErr
	}
	return s.price, nil
}

func paperConfig() config.PaperConfig {
	return config.PaperConfig{
		InitialBalance: 1000,
		PayoutPercent:  80,
		Instruments:    []string{"BTCUSD-OTC"},
	}
}

func TestSubmitDeductsBalance(t *testing.T) {
	src := &stubSource{price: 100}
	b := New(src, paperConfig())

	res, err := b.SubmitOrder(context.Background(), 50, "BTCUSD-OTC", market.DirectionCall, 60)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.NotEmpty(t, res.OrderID)

	profile, err := b.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 950.0, profile.Balance, 1e-9)
	assert.Equal(t, market.OrderStatusOpen, profile.Orders[res.OrderID].Status)
	assert.True(t, profile.OpenInstruments["BTCUSD-OTC"])
}

func TestSubmitRejectsInsufficientBalance(t *testing.T) {
	b := New(&stubSource{price: 100}, paperConfig())
	res, err := b.SubmitOrder(context.Background(), 5000, "BTCUSD-OTC", market.DirectionPut, 60)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.NotEmpty(t, res.Reason)
}

func TestExpirySettlesExactlyOnce(t *testing.T) {
	src := &stubSource{price: 100}
	b := New(src, paperConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	res, err := b.SubmitOrder(context.Background(), 50, "BTCUSD-OTC", market.DirectionCall, 60)
	require.NoError(t, err)

	// 到期前不结算
	profile, err := b.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, market.OrderStatusOpen, profile.Orders[res.OrderID].Status)

	// 到期后按现价判定：call 且价格上涨 → 胜，返还本金 + 80% 赔付
	now = now.Add(61 * time.Second)
	src.price = 105
	profile, err = b.FetchProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, market.OrderStatusClosed, profile.Orders[res.OrderID].Status)
	assert.InDelta(t, 40.0, profile.Orders[res.OrderID].Profit, 1e-9)
	assert.InDelta(t, 1040.0, profile.Balance, 1e-9)

	// 再次查询不会重复结算
	profile, err = b.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1040.0, profile.Balance, 1e-9)
}

func TestExpiryLoss(t *testing.T) {
	src := &stubSource{price: 100}
	b := New(src, paperConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	res, err := b.SubmitOrder(context.Background(), 50, "BTCUSD-OTC", market.DirectionCall, 60)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	src.price = 95
	profile, err := b.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -50.0, profile.Orders[res.OrderID].Profit, 1e-9)
	assert.InDelta(t, 950.0, profile.Balance, 1e-9)
}

func TestSettlementDeferredWhenPriceMissing(t *testing.T) {
	src := &stubSource{price: 100}
	b := New(src, paperConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	res, err := b.SubmitOrder(context.Background(), 50, "BTCUSD-OTC", market.DirectionPut, 60)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	src.priceErr = market.ErrPriceUnavailable
	profile, err := b.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, market.OrderStatusOpen, profile.Orders[res.OrderID].Status)

	// 现价恢复后补结算
	src.priceErr = nil
	src.price = 95
	profile, err = b.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, market.OrderStatusClosed, profile.Orders[res.OrderID].Status)
	assert.InDelta(t, 40.0, profile.Orders[res.OrderID].Profit, 1e-9)
}
