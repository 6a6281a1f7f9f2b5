package risk

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/storage"
)

const (
	// 单笔仓位上限占权益的百分比（0.5表示0.5%，即权益*0.005）
	MaxPositionSizePercent = 0.5

	// 杠杆上限
	MaxLeverage = 3.0

	// 当日回撤冻结阈值（%）
	MaxDailyDrawdownPercent = 3.0

	// 总回撤停机阈值（%）
	MaxTotalDrawdownPercent = 5.0

	// 凯利公式保守系数，只下注原始凯利值的四分之一
	KellyConservativeFactor = 0.25

	// 缺省初始权益
	DefaultInitialEquity = 10000.0
)

// Engine 风险引擎
// 所有校验拒绝以返回值表达，error 仅用于存储访问等基础设施故障
type Engine struct {
	logger *zap.Logger
	peaks  storage.PeakEquityStore
}

// NewEngine 创建风险引擎
func NewEngine(logger *zap.Logger, peaks storage.PeakEquityStore) *Engine {
	return &Engine{
		logger: logger.With(zap.String("component", "risk_engine")),
		peaks:  peaks,
	}
}

// ValidateTrade 校验单笔交易是否符合风控规则
// 按顺序检查：仓位大小 -> 杠杆 -> 当日回撤 -> 总回撤
// 返回 (是否放行, 拒绝原因, 风险等级, 错误)
func (e *Engine) ValidateTrade(ctx context.Context, snap *model.PortfolioSnapshot, tradeSize float64) (bool, string, model.RiskLevel, error) {
	equity := snap.Equity

	// 1. 仓位大小检查
	maxPositionSize := equity * MaxPositionSizePercent / 100
	if tradeSize > maxPositionSize {
		reason := fmt.Sprintf("仓位大小 %.2f 超过上限 %.2f（权益的%.1f%%）",
			tradeSize, maxPositionSize, MaxPositionSizePercent)
		e.logger.Warn("交易被拒绝：仓位超限",
			zap.String("user_id", snap.UserID),
			zap.Float64("trade_size", tradeSize),
			zap.Float64("max_position_size", maxPositionSize))
		return false, reason, model.RiskLevelHigh, nil
	}

	// 2. 杠杆检查（计入本笔交易后的总敞口）
	newLeverage := CalculateCurrentLeverage(snap.OpenPositionsValue+tradeSize, equity)
	if newLeverage > MaxLeverage {
		reason := fmt.Sprintf("执行后杠杆 %.2fx 超过上限 %.1fx", newLeverage, MaxLeverage)
		e.logger.Warn("交易被拒绝：杠杆超限",
			zap.String("user_id", snap.UserID),
			zap.Float64("new_leverage", newLeverage))
		return false, reason, model.RiskLevelHigh, nil
	}

	// 3. 当日回撤检查（仅当日亏损时触发）
	dailyDrawdown := CalculateDailyDrawdownPercent(snap.DailyPnL, equity)
	if dailyDrawdown >= MaxDailyDrawdownPercent {
		reason := fmt.Sprintf("当日回撤 %.2f%% 达到冻结阈值 %.1f%%，今日禁止开新仓",
			dailyDrawdown, MaxDailyDrawdownPercent)
		e.logger.Warn("交易被拒绝：当日回撤超限",
			zap.String("user_id", snap.UserID),
			zap.Float64("daily_drawdown", dailyDrawdown))
		return false, reason, model.RiskLevelCritical, nil
	}

	// 4. 总回撤检查（相对权益峰值）
	initialEquity := snap.InitialEquity
	if initialEquity <= 0 {
		initialEquity = DefaultInitialEquity
	}
	currentEquity := initialEquity + snap.TotalPnL

	storedPeak, err := e.peaks.GetPeak(ctx, snap.UserID)
	if err != nil {
		return false, "", "", fmt.Errorf("获取权益峰值失败: %w", err)
	}
	// 峰值基准不低于初始权益，首次检查的亏损用户才能算出正确回撤
	peak := math.Max(storedPeak, math.Max(initialEquity, currentEquity))

	totalDrawdown := CalculateTotalDrawdownPercent(peak, currentEquity)
	if totalDrawdown >= MaxTotalDrawdownPercent {
		reason := fmt.Sprintf("总回撤 %.2f%% 达到停机阈值 %.1f%%，必须停止所有交易",
			totalDrawdown, MaxTotalDrawdownPercent)
		e.logger.Error("交易被拒绝：总回撤超限",
			zap.String("user_id", snap.UserID),
			zap.Float64("total_drawdown", totalDrawdown),
			zap.Float64("peak_equity", peak))
		return false, reason, model.RiskLevelCritical, nil
	}

	// 校验通过后才抬升峰值，避免被拒绝的交易污染峰值记录
	if _, err := e.peaks.RatchetPeak(ctx, snap.UserID, peak); err != nil {
		return false, "", "", fmt.Errorf("更新权益峰值失败: %w", err)
	}

	return true, "", model.RiskLevelLow, nil
}

// CheckDrawdownFreeze 检查当日回撤是否达到冻结阈值
// 返回 (是否冻结, 说明)
func (e *Engine) CheckDrawdownFreeze(dailyPnL, equity float64) (bool, string) {
	dailyDrawdown := CalculateDailyDrawdownPercent(dailyPnL, equity)
	if dailyDrawdown >= MaxDailyDrawdownPercent {
		return true, fmt.Sprintf("当日回撤 %.2f%% 达到冻结阈值 %.1f%%",
			dailyDrawdown, MaxDailyDrawdownPercent)
	}
	return false, ""
}

// CheckTotalDrawdownFreeze 检查总回撤是否达到停机阈值
// 该检查使用已存储的峰值，不将当前权益计入峰值
func (e *Engine) CheckTotalDrawdownFreeze(ctx context.Context, currentEquity, initialEquity float64, userID string) (bool, string, error) {
	if initialEquity <= 0 {
		initialEquity = DefaultInitialEquity
	}

	peak, err := e.peaks.GetPeak(ctx, userID)
	if err != nil {
		return false, "", fmt.Errorf("获取权益峰值失败: %w", err)
	}
	// 无历史峰值时以初始权益为基准
	if peak <= 0 {
		peak = initialEquity
	}

	totalDrawdown := CalculateTotalDrawdownPercent(peak, currentEquity)
	if totalDrawdown >= MaxTotalDrawdownPercent {
		return true, fmt.Sprintf("总回撤 %.2f%% 达到停机阈值 %.1f%%",
			totalDrawdown, MaxTotalDrawdownPercent), nil
	}
	return false, "", nil
}

// CalculatePositionSizeKelly 使用保守凯利公式计算建议仓位
// 最终仓位不超过单笔仓位上限
func (e *Engine) CalculatePositionSizeKelly(equity, winRate, avgWin, avgLoss, stopLossDistance, contractSize float64) float64 {
	fraction := CalculateKellyFraction(winRate, avgWin, avgLoss)
	conservative := fraction * KellyConservativeFactor

	// 止损距离为0时无法折算仓位
	if stopLossDistance <= 0 {
		return 0
	}

	rawSize := equity * conservative / (stopLossDistance * contractSize)
	maxSize := equity * MaxPositionSizePercent / 100

	return math.Min(rawSize, maxSize)
}

// GetRiskAssessment 生成当前账户的风险评估报告
// 评估过程会抬升并持久化权益峰值
func (e *Engine) GetRiskAssessment(ctx context.Context, snap *model.PortfolioSnapshot) (*model.RiskAssessment, error) {
	equity := snap.Equity

	initialEquity := snap.InitialEquity
	if initialEquity <= 0 {
		initialEquity = DefaultInitialEquity
	}
	currentEquity := initialEquity + snap.TotalPnL

	// 评估时一并抬升峰值，保证峰值单调不减；基准不低于初始权益
	peak, err := e.peaks.RatchetPeak(ctx, snap.UserID, math.Max(initialEquity, currentEquity))
	if err != nil {
		return nil, fmt.Errorf("更新权益峰值失败: %w", err)
	}

	currentLeverage := CalculateCurrentLeverage(snap.OpenPositionsValue, equity)
	dailyDrawdown := CalculateDailyDrawdownPercent(snap.DailyPnL, equity)
	totalDrawdown := CalculateTotalDrawdownPercent(peak, currentEquity)

	riskLevel := model.RiskLevelLow
	var warnings []string

	// 超过限额80%视为预警区
	if currentLeverage > MaxLeverage*0.8 {
		riskLevel = model.RiskLevelHigh
		warnings = append(warnings, fmt.Sprintf("杠杆 %.2fx 接近上限 %.1fx", currentLeverage, MaxLeverage))
	}
	if dailyDrawdown > MaxDailyDrawdownPercent*0.8 {
		riskLevel = model.RiskLevelHigh
		warnings = append(warnings, fmt.Sprintf("当日回撤 %.2f%% 接近冻结阈值 %.1f%%", dailyDrawdown, MaxDailyDrawdownPercent))
	}
	if totalDrawdown > MaxTotalDrawdownPercent*0.8 {
		riskLevel = model.RiskLevelCritical
		warnings = append(warnings, fmt.Sprintf("总回撤 %.2f%% 接近停机阈值 %.1f%%", totalDrawdown, MaxTotalDrawdownPercent))
	}

	maxPositionSize := equity * MaxPositionSizePercent / 100
	// 负值表示已超额使用的购买力，保留给调用方
	availableBuyingPower := equity*MaxLeverage - snap.OpenPositionsValue

	assessment := &model.RiskAssessment{
		RiskLevel:            riskLevel,
		CurrentLeverage:      round2(currentLeverage),
		MaxLeverage:          MaxLeverage,
		LeverageUsagePercent: round1(currentLeverage / MaxLeverage * 100),
		DailyDrawdownPercent: round2(dailyDrawdown),
		DailyDrawdownLimit:   MaxDailyDrawdownPercent,
		TotalDrawdownPercent: round2(totalDrawdown),
		TotalDrawdownLimit:   MaxTotalDrawdownPercent,
		MaxPositionSize:      round2(maxPositionSize),
		AvailableBuyingPower: round2(availableBuyingPower),
		Warnings:             warnings,
		PeakEquity:           round2(peak),
		CurrentEquity:        round2(currentEquity),
		FreezeNewTrades:      dailyDrawdown >= MaxDailyDrawdownPercent,
		CloseAllPositions:    totalDrawdown >= MaxTotalDrawdownPercent,
	}

	return assessment, nil
}
