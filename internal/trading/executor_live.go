package trading

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/exchange"
	"github.com/life2you_mini/riskguard/internal/model"
)

// 合约账户的缺省杠杆倍数，与风控的最大杠杆上限一致
const defaultLeverage = 3

// LiveExecutor 实盘执行器
// 从交易所工厂解析目标交易所，下单前先设置合约杠杆，信号中的名义价值折算为合约数量
type LiveExecutor struct {
	logger    *zap.Logger
	exchanges *exchange.ExchangeFactory
	venue     string
	leverage  int
}

// NewLiveExecutor 创建实盘执行器，venue 为工厂中注册的交易所名称
func NewLiveExecutor(logger *zap.Logger, exchanges *exchange.ExchangeFactory, venue string) *LiveExecutor {
	return &LiveExecutor{
		logger:    logger.With(zap.String("component", "live_executor")),
		exchanges: exchanges,
		venue:     venue,
		leverage:  defaultLeverage,
	}
}

// ExecuteOrder 实盘执行交易信号
func (e *LiveExecutor) ExecuteOrder(ctx context.Context, signal *model.TradeSignal) (*model.OrderResult, error) {
	ex, ok := e.exchanges.Get(e.venue)
	if !ok {
		return nil, fmt.Errorf("未注册的交易所: %s", e.venue)
	}

	price := signal.Price
	if price <= 0 {
		// 信号未携带价格时查询最新价
		latest, err := ex.GetPrice(ctx, signal.Symbol)
		if err != nil {
			return nil, fmt.Errorf("获取最新价格失败: %w", err)
		}
		price = latest
	}

	if price <= 0 {
		return nil, fmt.Errorf("无效的价格: %f", price)
	}
	if signal.Size <= 0 {
		return nil, fmt.Errorf("无效的仓位大小: %f", signal.Size)
	}

	// 下单前确保交易对杠杆符合预期
	if err := ex.SetLeverage(ctx, signal.Symbol, e.leverage); err != nil {
		return nil, fmt.Errorf("设置杠杆失败: %w", err)
	}

	// 名义价值折算为合约数量
	quantity := signal.Size / price

	orderID, err := ex.CreateContractOrder(ctx, signal.Symbol, signal.Side, signal.PositionSide, "MARKET", quantity, 0)
	if err != nil {
		return nil, fmt.Errorf("下单失败: %w", err)
	}

	result := &model.OrderResult{
		OrderID:    orderID,
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		Size:       signal.Size,
		Price:      price,
		Paper:      false,
		ExecutedAt: time.Now(),
	}

	e.logger.Info("实盘订单已提交",
		zap.String("order_id", orderID),
		zap.String("user_id", signal.UserID),
		zap.String("exchange", ex.GetExchangeName()),
		zap.String("symbol", signal.Symbol),
		zap.String("side", signal.Side),
		zap.Float64("quantity", quantity))

	return result, nil
}
