package utils

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundMoney 金额按 scale 位小数四舍五入（远离零方向）
func RoundMoney(amount decimal.Decimal, scale int32) decimal.Decimal {
	return amount.Round(scale)
}

// PercentOf 计算 amount 的 pct%，并按 scale 取整
func PercentOf(amount, pct decimal.Decimal, scale int32) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred), scale)
}

// ClampNonNegative 负数截断为零
func ClampNonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
