package assets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiq/internal/indicator"
	"optiq/internal/market"
)

type fakeBroker struct {
	profile market.Profile
	payouts map[string]float64
	prices  map[string]float64
}

func (b *fakeBroker) FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]market.Candle, error) {
	return nil, nil
}

func (b *fakeBroker) FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error) {
	p, ok := b.prices[asset]
	if !ok {
		return 0, market.ErrPriceUnavailable
	}
	return p, nil
}

func (b *fakeBroker) FetchProfile(ctx context.Context) (market.Profile, error) {
	return b.profile, nil
}

func (b *fakeBroker) FetchPayout(ctx context.Context, asset string) (float64, error) {
	return b.payouts[asset], nil
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, amount float64, asset string, direction market.Direction, duration int) (market.SubmitResult, error) {
	return market.SubmitResult{}, nil
}

func discoveryBroker() *fakeBroker {
	return &fakeBroker{
		profile: market.Profile{OpenInstruments: map[string]bool{
			"EURUSD-OTC": true,
			"GBPUSD-OTC": true,
			"USDJPY-OTC": true,
			"AUDCAD-OTC": false, // 未开盘
			"BTCUSD":     true,  // 非 OTC
		}},
		payouts: map[string]float64{
			"EURUSD-OTC": 85,
			"GBPUSD-OTC": 60, // 低于下限
			"USDJPY-OTC": 90,
		},
		prices: map[string]float64{
			"EURUSD-OTC": 1.08,
			"USDJPY-OTC": 151.2,
		},
	}
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	d := NewDiscovery(discoveryBroker(), Options{MinPayout: 70, SortBy: "payout", SortOrder: "desc"})
	got, err := d.Discover(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "USDJPY-OTC", got[0].Asset, "赔付率降序排首位")
	assert.Equal(t, "EURUSD-OTC", got[1].Asset)
}

func TestDiscoverWhitelist(t *testing.T) {
	d := NewDiscovery(discoveryBroker(), Options{
		MinPayout: 70,
		Whitelist: []string{"eurusd-otc"},
		SortBy:    "payout",
		SortOrder: "desc",
	})
	got, err := d.Discover(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EURUSD-OTC", got[0].Asset)
}

func TestDiscoverDropsPriceless(t *testing.T) {
	b := discoveryBroker()
	delete(b.prices, "USDJPY-OTC")
	d := NewDiscovery(b, Options{MinPayout: 70, SortBy: "price", SortOrder: "asc"})
	got, err := d.Discover(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EURUSD-OTC", got[0].Asset)
}

func TestPrefilter(t *testing.T) {
	candidates := []Candidate{
		{Asset: "A"}, {Asset: "B"}, {Asset: "C"}, {Asset: "D"},
	}
	snaps := map[string]indicator.Snapshot{
		"A": {
			RSI:   indicator.Value{Val: 50, Valid: true},
			SMA:   indicator.Value{Val: 1, Valid: true},
			Stoch: indicator.StochValue{K: 40, D: 42, Valid: true},
		},
		"B": {
			RSI: indicator.Value{Valid: false},
			SMA: indicator.Value{Val: 1, Valid: true},
		},
		"C": {
			RSI:   indicator.Value{Val: 50, Valid: true},
			SMA:   indicator.Value{Val: 1, Valid: true},
			Stoch: indicator.StochValue{Valid: false},
		},
		// D 无快照
	}

	kept := Prefilter(candidates, snaps)
	require.Len(t, kept, 1)
	assert.Equal(t, "A", kept[0].Asset)
}
