package risk

import (
	"math"
)

// CalculateDailyDrawdownPercent 计算当日回撤百分比
// 仅当当日盈亏为负时产生回撤，回撤以权益的百分比表示
func CalculateDailyDrawdownPercent(dailyPnL, equity float64) float64 {
	if dailyPnL >= 0 {
		return 0
	}
	// 为避免除零错误
	if equity <= 0 {
		return 0
	}
	return math.Abs(dailyPnL) / equity * 100
}

// CalculateTotalDrawdownPercent 计算相对峰值的总回撤百分比
// 公式: (峰值 - 当前权益) / 峰值 * 100
func CalculateTotalDrawdownPercent(peakEquity, currentEquity float64) float64 {
	if peakEquity <= 0 {
		return 0
	}
	drawdown := (peakEquity - currentEquity) / peakEquity * 100
	if drawdown < 0 {
		return 0
	}
	return drawdown
}

// CalculateCurrentLeverage 计算当前杠杆倍数
// 公式: 未平仓头寸总价值 / 账户权益
func CalculateCurrentLeverage(openPositionsValue, equity float64) float64 {
	if equity <= 0 {
		return 0
	}
	return openPositionsValue / equity
}

// CalculateKellyFraction 计算凯利公式的原始仓位比例
// 公式: f = (p*b - q) / b，其中 b = 平均盈利/平均亏损，q = 1-p
// 负值截断为0（无优势时不下注）
func CalculateKellyFraction(winRate, avgWin, avgLoss float64) float64 {
	// 无亏损样本或胜率无效时无法计算赔率
	if avgLoss <= 0 || winRate <= 0 {
		return 0
	}

	b := avgWin / avgLoss
	q := 1 - winRate

	fraction := (winRate*b - q) / b
	if fraction < 0 {
		return 0
	}
	return fraction
}

// round2 保留两位小数
func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// round1 保留一位小数
func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
