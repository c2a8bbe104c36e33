package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"optiq/internal/indicator"
)

var csvHeader = []string{
	"Timestamp", "Asset", "Price",
	"RSI", "SMA", "Stoch_K", "Stoch_D", "MACD", "MACD_Signal",
	"Strategy", "Decision", "Result",
}

// CSVLog 是决策流水的追加式 CSV 文件，供人工翻阅与表格工具导入。
// 与 Store 不同，CSV 行写入后不再回填结果。
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog 准备 CSV 落盘路径，文件不存在时先写表头。
func NewCSVLog(path string) (*CSVLog, error) {
	if path == "" {
		return nil, fmt.Errorf("audit csv: 路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	l := &CSVLog{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.writeRow(csvHeader); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append 追加一条决策行。result 在决策时点未知，留空。
func (l *CSVLog) Append(ts time.Time, asset string, price float64, snap indicator.Snapshot, strategy, decision string) error {
	row := []string{
		ts.UTC().Format(time.RFC3339),
		asset,
		fmt.Sprintf("%.5f", price),
		formatValue(snap.RSI),
		formatValue(snap.SMA),
		formatFloat(snap.Stoch.K, snap.Stoch.Valid),
		formatFloat(snap.Stoch.D, snap.Stoch.Valid),
		formatFloat(snap.MACD.MACD, snap.MACD.Valid),
		formatFloat(snap.MACD.Signal, snap.MACD.Valid),
		strategy,
		decision,
		"",
	}
	return l.writeRow(row)
}

func (l *CSVLog) writeRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatValue(v indicator.Value) string {
	return formatFloat(v.Val, v.Valid)
}

func formatFloat(v float64, valid bool) string {
	if !valid {
		return ""
	}
	return fmt.Sprintf("%.2f", v)
}
