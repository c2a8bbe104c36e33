package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"

	"optiq/internal/market"
)

// 币安现货单次 K 线请求上限。
const maxKlineLimit = 1000

// Source 基于币安现货行情为模拟盘提供 K 线与现价。品种名按
// OTC 习惯书写（如 BTCUSD-OTC），内部映射到现货交易对。
type Source struct {
	client       *gobinance.Client
	symbolSuffix string
}

// New 构造现货行情源。baseURL 为空时走 SDK 默认地址。
func New(baseURL, symbolSuffix string) *Source {
	client := gobinance.NewClient("", "")
	if u := strings.TrimSpace(baseURL); u != "" {
		client.BaseURL = u
	}
	if symbolSuffix == "" {
		symbolSuffix = "USDT"
	}
	return &Source{client: client, symbolSuffix: symbolSuffix}
}

// toSymbol 把 OTC 品种名映射为现货交易对：BTCUSD-OTC → BTCUSDT。
func (s *Source) toSymbol(asset string) string {
	base := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(asset)), "USD-OTC")
	return base + s.symbolSuffix
}

// interval 把分钟周期映射为币安的 K 线间隔标记。
func interval(timeframe int) string {
	if timeframe >= 60 && timeframe%60 == 0 {
		return fmt.Sprintf("%dh", timeframe/60)
	}
	return fmt.Sprintf("%dm", timeframe)
}

// FetchCandles 拉取最近 count 根 K 线，旧→新。超出单次上限时
// 以 endTime 向前翻页补齐。
func (s *Source) FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]market.Candle, error) {
	if count <= 0 {
		count = 100
	}
	symbol := s.toSymbol(asset)
	iv := interval(timeframe)

	var (
		out     []market.Candle
		endTime int64
	)
	for len(out) < count {
		limit := count - len(out)
		if limit > maxKlineLimit {
			limit = maxKlineLimit
		}
		svc := s.client.NewKlinesService().Symbol(symbol).Interval(iv).Limit(limit)
		if endTime > 0 {
			svc = svc.EndTime(endTime)
		}
		kls, err := svc.Do(ctx)
		if err != nil {
			return nil, market.Transient(fmt.Errorf("binance K 线拉取失败 %s: %w", symbol, err))
		}
		if len(kls) == 0 {
			break
		}
		page := make([]market.Candle, 0, len(kls))
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			page = append(page, market.Candle{
				Timestamp: kl.OpenTime / 1000,
				Open:      parseFloat(kl.Open),
				High:      parseFloat(kl.High),
				Low:       parseFloat(kl.Low),
				Close:     parseFloat(kl.Close),
			})
		}
		out = append(page, out...)
		endTime = kls[0].OpenTime - 1
		if len(kls) < limit {
			break
		}
	}
	if len(out) > count {
		out = out[len(out)-count:]
	}
	return out, nil
}

// FetchPrice 返回现货最新成交价。
func (s *Source) FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error) {
	symbol := s.toSymbol(asset)
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, market.Transient(fmt.Errorf("binance 现价拉取失败 %s: %w", symbol, err))
	}
	if len(prices) == 0 {
		return 0, market.ErrPriceUnavailable
	}
	p := parseFloat(prices[0].Price)
	if p <= 0 {
		return 0, market.ErrPriceUnavailable
	}
	return p, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
