package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/model"
)

// 模拟盘手续费率（吃单0.04%）
var paperFeeRate = decimal.NewFromFloat(0.0004)

// OrderExecutor 订单执行器接口
type OrderExecutor interface {
	// ExecuteOrder 执行交易信号，返回订单结果
	ExecuteOrder(ctx context.Context, signal *model.TradeSignal) (*model.OrderResult, error)
}

// PaperExecutor 模拟盘执行器
// 按信号价格立即成交，使用decimal计算手续费避免浮点误差
type PaperExecutor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewPaperExecutor 创建模拟盘执行器
func NewPaperExecutor(logger *zap.Logger) *PaperExecutor {
	return &PaperExecutor{
		logger: logger.With(zap.String("component", "paper_executor")),
		now:    time.Now,
	}
}

// ExecuteOrder 模拟执行交易信号
func (e *PaperExecutor) ExecuteOrder(ctx context.Context, signal *model.TradeSignal) (*model.OrderResult, error) {
	if signal.Size <= 0 {
		return nil, fmt.Errorf("无效的仓位大小: %f", signal.Size)
	}
	if signal.Price <= 0 {
		return nil, fmt.Errorf("无效的价格: %f", signal.Price)
	}

	executedAt := e.now()

	// 手续费 = 名义价值 * 费率
	size := decimal.NewFromFloat(signal.Size)
	fee := size.Mul(paperFeeRate)

	result := &model.OrderResult{
		OrderID:    fmt.Sprintf("paper-%d", executedAt.UnixNano()),
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		Size:       signal.Size,
		Price:      signal.Price,
		Fee:        fee.InexactFloat64(),
		Paper:      true,
		ExecutedAt: executedAt,
	}

	e.logger.Info("模拟订单已成交",
		zap.String("order_id", result.OrderID),
		zap.String("user_id", signal.UserID),
		zap.String("symbol", signal.Symbol),
		zap.String("side", signal.Side),
		zap.Float64("size", signal.Size),
		zap.Float64("price", signal.Price))

	return result, nil
}
