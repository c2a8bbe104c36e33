package assets

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"optiq/internal/indicator"
	"optiq/internal/logger"
	"optiq/internal/market"
)

const priceFetchConcurrency = 10

// Candidate 是通过筛选的可交易品种。
type Candidate struct {
	Asset  string
	Payout float64
	Price  float64
}

// Options 控制品种发现的过滤与排序。
type Options struct {
	MinPayout float64  // 赔付率下限（百分比）
	Whitelist []string // 非空时只保留名单内品种
	SortBy    string   // payout | price
	SortOrder string   // asc | desc
}

// Discovery 从经纪商侧枚举当前开盘的 OTC 品种，过滤赔付率与
// 白名单，预取现价并做趋势前置筛查，最后按配置排序。
type Discovery struct {
	broker market.Broker
	opts   Options
	sem    *semaphore.Weighted
}

// NewDiscovery 构造品种发现器。
func NewDiscovery(broker market.Broker, opts Options) *Discovery {
	return &Discovery{
		broker: broker,
		opts:   opts,
		sem:    semaphore.NewWeighted(priceFetchConcurrency),
	}
}

// Discover 返回本轮可交易的候选品种。经纪商侧的单品种错误只
// 丢弃该品种，不中断整轮发现。
func (d *Discovery) Discover(ctx context.Context, timeframe int) ([]Candidate, error) {
	profile, err := d.broker.FetchProfile(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for name, open := range profile.OpenInstruments {
		if !open || !strings.HasSuffix(name, "-OTC") {
			continue
		}
		if !d.inWhitelist(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		logger.Warnf("assets: 没有开盘的 OTC 品种")
		return nil, nil
	}

	candidates := d.collect(ctx, names, timeframe)

	d.sortCandidates(candidates)
	return candidates, nil
}

func (d *Discovery) inWhitelist(name string) bool {
	if len(d.opts.Whitelist) == 0 {
		return true
	}
	for _, w := range d.opts.Whitelist {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}

// collect 并发拉取赔付率与现价，信号量压住对上游的并发度。
func (d *Discovery) collect(ctx context.Context, names []string, timeframe int) []Candidate {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []Candidate
		lowPayout  int
		noPrice    int
	)
	for _, name := range names {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(asset string) {
			defer wg.Done()
			defer d.sem.Release(1)

			payout, err := d.broker.FetchPayout(ctx, asset)
			if err != nil {
				logger.Debugf("assets: %s 赔付率查询失败: %v", asset, err)
				return
			}
			if payout < d.opts.MinPayout {
				mu.Lock()
				lowPayout++
				mu.Unlock()
				return
			}
			price, err := d.broker.FetchPrice(ctx, asset, timeframe)
			if err != nil {
				mu.Lock()
				noPrice++
				mu.Unlock()
				return
			}
			mu.Lock()
			candidates = append(candidates, Candidate{Asset: asset, Payout: payout, Price: price})
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	if lowPayout > 0 || noPrice > 0 {
		logger.Infof("assets: 丢弃 %d 个低赔付、%d 个无现价品种，保留 %d 个",
			lowPayout, noPrice, len(candidates))
	}
	return candidates
}

func (d *Discovery) sortCandidates(candidates []Candidate) {
	key := func(c Candidate) float64 {
		if d.opts.SortBy == "price" {
			return c.Price
		}
		return c.Payout
	}
	asc := d.opts.SortOrder == "asc"
	sort.SliceStable(candidates, func(i, j int) bool {
		if asc {
			return key(candidates[i]) < key(candidates[j])
		}
		return key(candidates[i]) > key(candidates[j])
	})
}

// Prefilter 在指标批量计算后做趋势前置筛查：剔除缺现价、缺指标
// 或随机指标不可用的候选，统计各类丢弃原因。
func Prefilter(candidates []Candidate, snapshots map[string]indicator.Snapshot) []Candidate {
	var (
		kept         []Candidate
		noSnapshot   int
		noScalar     int
		noStochastic int
	)
	for _, c := range candidates {
		snap, ok := snapshots[c.Asset]
		if !ok {
			noSnapshot++
			continue
		}
		if !snap.RSI.Valid || !snap.SMA.Valid {
			noScalar++
			continue
		}
		if !snap.Stoch.Valid {
			noStochastic++
			continue
		}
		kept = append(kept, c)
	}
	if noSnapshot > 0 || noScalar > 0 || noStochastic > 0 {
		logger.Infof("assets: 前置筛查丢弃 无指标=%d 标量缺失=%d 随机指标缺失=%d，保留 %d",
			noSnapshot, noScalar, noStochastic, len(kept))
	}
	return kept
}
