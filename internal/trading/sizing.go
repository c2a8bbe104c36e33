package trading

import "github.com/shopspring/decimal"

var (
	minStake = decimal.NewFromFloat(1.00)
	maxStake = decimal.NewFromFloat(5000.00)
	hundred  = decimal.NewFromInt(100)
)

// StakeAmount 计算下单金额：比例 × 余额，先四舍五入到分，
// 再钳制到经纪商允许的 [1.00, 5000.00] 区间。顺序不可交换，
// 否则边界附近会出现低于最小下单额的结果。
func StakeAmount(percentage, balance float64) float64 {
	amount := decimal.NewFromFloat(percentage).
		Div(hundred).
		Mul(decimal.NewFromFloat(balance)).
		Round(2)
	if amount.LessThan(minStake) {
		amount = minStake
	}
	if amount.GreaterThan(maxStake) {
		amount = maxStake
	}
	f, _ := amount.Float64()
	return f
}
