package otc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"optiq/internal/config"
	"optiq/internal/market"
)

// Client 封装 OTC 经纪商的会话接口。协议按不透明 JSON 端点处理，
// 字段用 gjson 按路径提取，不对上游 schema 做整体建模。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	email      string
	password   string
	demo       bool

	mu    sync.Mutex
	token string
}

// NewClient 从配置构造经纪商会话客户端。
func NewClient(cfg config.OTCConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.otc.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 broker.otc.base_url 失败: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		email:      strings.TrimSpace(cfg.Email),
		password:   strings.TrimSpace(cfg.Password),
		demo:       cfg.Demo,
	}, nil
}

// SetHTTPClient 替换 HTTP 客户端，仅测试使用。
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Connect 登录并缓存会话令牌。断线重连时重复调用即可。
func (c *Client) Connect(ctx context.Context) error {
	payload := map[string]any{
		"email":    c.email,
		"password": c.password,
		"demo":     c.demo,
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v2/login", payload)
	if err != nil {
		return err
	}
	token := gjson.GetBytes(body, "result.token")
	if !token.Exists() || token.String() == "" {
		return fmt.Errorf("broker: 登录响应缺少令牌")
	}
	c.mu.Lock()
	c.token = token.String()
	c.mu.Unlock()
	return nil
}

var _ market.Broker = (*Client)(nil)

// FetchCandles 拉取历史 K 线，旧→新。
func (c *Client) FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]market.Candle, error) {
	path := fmt.Sprintf("/api/v2/candles?asset=%s&timeframe=%d&count=%d",
		url.QueryEscape(asset), timeframe, count)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	items := gjson.GetBytes(body, "result.candles")
	if !items.Exists() {
		return nil, fmt.Errorf("broker: K 线响应缺少 result.candles")
	}
	var candles []market.Candle
	items.ForEach(func(_, item gjson.Result) bool {
		candles = append(candles, market.Candle{
			Timestamp: item.Get("time").Int(),
			Open:      item.Get("open").Float(),
			High:      item.Get("high").Float(),
			Low:       item.Get("low").Float(),
			Close:     item.Get("close").Float(),
		})
		return true
	})
	return candles, nil
}

// FetchPrice 返回最新成交价，价格缺席时报 ErrPriceUnavailable。
func (c *Client) FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error) {
	path := fmt.Sprintf("/api/v2/price?asset=%s&timeframe=%d", url.QueryEscape(asset), timeframe)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	price := gjson.GetBytes(body, "result.price")
	if !price.Exists() || price.Float() <= 0 {
		return 0, market.ErrPriceUnavailable
	}
	return price.Float(), nil
}

// FetchProfile 查询余额、开盘品种与券商侧订单表。
func (c *Client) FetchProfile(ctx context.Context) (market.Profile, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v2/profile", nil)
	if err != nil {
		return market.Profile{}, err
	}
	profile := market.Profile{
		Balance:         gjson.GetBytes(body, "result.balance").Float(),
		IsDemo:          gjson.GetBytes(body, "result.demo").Bool(),
		Orders:          make(map[string]market.BrokerOrder),
		OpenInstruments: make(map[string]bool),
	}
	gjson.GetBytes(body, "result.binary.open").ForEach(func(key, value gjson.Result) bool {
		profile.OpenInstruments[key.String()] = value.Bool()
		return true
	})
	gjson.GetBytes(body, "result.orders").ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			return true
		}
		profile.Orders[id] = market.BrokerOrder{
			ID:     id,
			Status: item.Get("status").String(),
			Profit: item.Get("profit").Float(),
		}
		return true
	})
	return profile, nil
}

// FetchPayout 返回品种赔付率（百分比）。
func (c *Client) FetchPayout(ctx context.Context, asset string) (float64, error) {
	path := fmt.Sprintf("/api/v2/payout?asset=%s", url.QueryEscape(asset))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "result.payout").Float(), nil
}

// SubmitOrder 提交定额订单。上游业务性拒单不算错误，回执里带原因。
func (c *Client) SubmitOrder(ctx context.Context, amount float64, asset string, direction market.Direction, duration int) (market.SubmitResult, error) {
	if !direction.Valid() {
		return market.SubmitResult{}, fmt.Errorf("broker: 非法方向 %q", direction)
	}
	payload := map[string]any{
		"amount":    amount,
		"asset":     asset,
		"direction": string(direction),
		"duration":  duration,
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v2/orders", payload)
	if err != nil {
		return market.SubmitResult{}, err
	}
	if !gjson.GetBytes(body, "result.success").Bool() {
		return market.SubmitResult{
			Accepted: false,
			Reason:   gjson.GetBytes(body, "result.message").String(),
		}, nil
	}
	return market.SubmitResult{
		Accepted: true,
		OrderID:  gjson.GetBytes(body, "result.order_id").String(),
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("otc client 未初始化")
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("序列化请求失败: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 网络层失败按瞬态处理，交给上层重试
		return nil, market.Transient(fmt.Errorf("调用经纪商失败: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, market.Transient(fmt.Errorf("读取响应失败: %w", err))
	}
	if resp.StatusCode >= 500 {
		return nil, market.Transient(fmt.Errorf("经纪商返回错误(%s): %s", resp.Status, strings.TrimSpace(string(data))))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("经纪商返回错误(%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("broker 地址未设置")
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("解析请求路径失败: %w", err)
	}
	return c.baseURL.ResolveReference(ref), nil
}
