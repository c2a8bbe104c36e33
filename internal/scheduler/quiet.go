package scheduler

import "time"

// 静默窗口：UTC 22:00（含）到 03:00（不含），跨午夜。
// 该时段 OTC 盘口流动性差，不做任何决策。
const (
	quietStartHour = 22
	quietEndHour   = 3
)

// InQuietHours 判断 t 是否落在静默窗口内。
func InQuietHours(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= quietStartHour || h < quietEndHour
}
