package audit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiq/internal/indicator"
	"optiq/internal/trading"
)

func sampleSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		RSI:   indicator.Value{Val: 27.5, Valid: true},
		SMA:   indicator.Value{Val: 101.3, Valid: true},
		Stoch: indicator.StochValue{K: 15.2, D: 18.9, Valid: true},
		// MACD 未启用时 CSV 对应列留空
	}
}

func TestCSVLogWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals_log.csv")

	l, err := NewCSVLog(path)
	require.NoError(t, err)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, l.Append(ts, "EURUSD-OTC", 1.08452, sampleSnapshot(), "trend", "call"))

	// 重新打开不会再写表头
	l2, err := NewCSVLog(path)
	require.NoError(t, err)
	require.NoError(t, l2.Append(ts.Add(time.Minute), "GBPUSD-OTC", 1.26711, sampleSnapshot(), "trend", "ignored"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "EURUSD-OTC", rows[1][1])
	assert.Equal(t, "1.08452", rows[1][2])
	assert.Equal(t, "27.50", rows[1][3])
	assert.Equal(t, "", rows[1][7], "未启用的 MACD 列应留空")
	assert.Equal(t, "", rows[1][11], "result 在决策时点必须为空")
	assert.Equal(t, "ignored", rows[2][10])
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	rec := NewRecorder(nil, store)
	entryID := rec.Record(trading.Entry{
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Asset:     "EURUSD-OTC",
		Price:     1.08452,
		Snapshot:  sampleSnapshot(),
		Strategy:  "trend",
		Decision:  "call",
	})
	require.NotEmpty(t, entryID)

	rec.AttachOrder(entryID, "ord-42")
	rec.Resolve("ord-42", "win")

	rows, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ord-42", rows[0].OrderID)
	assert.Equal(t, "win", rows[0].Result)
	assert.Equal(t, "call", rows[0].Decision)
	assert.Contains(t, string(rows[0].Indicators), "27.5")
}

func TestRecorderNilChannels(t *testing.T) {
	rec := NewRecorder(nil, nil)
	id := rec.Record(trading.Entry{Asset: "A"})
	assert.NotEmpty(t, id)
	rec.AttachOrder(id, "x")
	rec.Resolve("x", "loss")
}
