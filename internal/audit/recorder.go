package audit

import (
	"encoding/json"

	"github.com/google/uuid"

	"optiq/internal/logger"
	"optiq/internal/trading"
)

// Recorder 把决策流同时写进 CSV 与 SQLite。两个落盘端彼此独立，
// 任一失败只告警，不中断决策循环。csvLog 或 store 为 nil 时对应
// 通道直接关闭。
type Recorder struct {
	csvLog *CSVLog
	store  *Store
}

var _ trading.AuditSink = (*Recorder)(nil)

// NewRecorder 组装审计记录器。
func NewRecorder(csvLog *CSVLog, store *Store) *Recorder {
	return &Recorder{csvLog: csvLog, store: store}
}

// Record 落一条决策记录，返回后续关联订单用的 entry id。
func (r *Recorder) Record(e trading.Entry) string {
	entryID := uuid.NewString()

	if r.csvLog != nil {
		if err := r.csvLog.Append(e.Timestamp, e.Asset, e.Price, e.Snapshot, e.Strategy, e.Decision); err != nil {
			logger.Warnf("audit: CSV 写入失败: %v", err)
		}
	}
	if r.store != nil {
		indicators, err := json.Marshal(e.Snapshot)
		if err != nil {
			logger.Warnf("audit: 指标序列化失败: %v", err)
			indicators = []byte("{}")
		}
		m := &DecisionModel{
			EntryID:    entryID,
			Timestamp:  e.Timestamp.Unix(),
			Asset:      e.Asset,
			Price:      e.Price,
			Strategy:   e.Strategy,
			Decision:   e.Decision,
			Indicators: indicators,
			CreatedAt:  e.Timestamp.Unix(),
		}
		if err := r.store.Insert(m); err != nil {
			logger.Warnf("audit: 数据库写入失败: %v", err)
		}
	}
	return entryID
}

// AttachOrder 把下单成功的订单号关联到决策行。
func (r *Recorder) AttachOrder(entryID, orderID string) {
	if r.store == nil || entryID == "" || orderID == "" {
		return
	}
	if err := r.store.AttachOrder(entryID, orderID); err != nil {
		logger.Warnf("audit: 订单关联失败 %s→%s: %v", entryID, orderID, err)
	}
}

// Resolve 按订单号回填胜负（win/loss）。
func (r *Recorder) Resolve(orderID, result string) {
	if r.store == nil || orderID == "" {
		return
	}
	if err := r.store.ResolveResult(orderID, result); err != nil {
		logger.Warnf("audit: 结果回填失败 %s=%s: %v", orderID, result, err)
	}
}
