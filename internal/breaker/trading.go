package breaker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// 各熔断器的默认阈值与冷却期
const (
	apiFailureThreshold = 5
	apiRecoveryTimeout  = 60 * time.Second

	tradeFailureThreshold = 3
	tradeRecoveryTimeout  = 120 * time.Second

	riskFailureThreshold = 2
	riskRecoveryTimeout  = 300 * time.Second
)

// TradingStatus 交易熔断器组状态
type TradingStatus struct {
	API     Status `json:"api"`
	Trade   Status `json:"trade"`
	Risk    Status `json:"risk"`
	AnyOpen bool   `json:"any_open"` // 任一熔断器处于打开状态
}

// TradingCircuitBreaker 交易熔断器组
// 分别保护交易所API调用、订单执行和风险阈值检查
type TradingCircuitBreaker struct {
	api   *CircuitBreaker
	trade *CircuitBreaker
	risk  *CircuitBreaker
}

// NewTradingCircuitBreaker 创建交易熔断器组
func NewTradingCircuitBreaker(logger *zap.Logger) *TradingCircuitBreaker {
	return &TradingCircuitBreaker{
		api:   New("api", apiFailureThreshold, apiRecoveryTimeout, logger),
		trade: New("trade", tradeFailureThreshold, tradeRecoveryTimeout, logger),
		risk:  New("risk", riskFailureThreshold, riskRecoveryTimeout, logger),
	}
}

// APICall 在API熔断器保护下执行交易所调用
func (t *TradingCircuitBreaker) APICall(ctx context.Context, fn func(context.Context) error) error {
	return t.api.Call(ctx, fn)
}

// ExecuteTrade 在交易熔断器保护下执行订单
func (t *TradingCircuitBreaker) ExecuteTrade(ctx context.Context, fn func(context.Context) error) error {
	return t.trade.Call(ctx, fn)
}

// CheckRiskThreshold 在风险熔断器保护下执行风险检查
func (t *TradingCircuitBreaker) CheckRiskThreshold(ctx context.Context, fn func(context.Context) error) error {
	return t.risk.Call(ctx, fn)
}

// Status 返回熔断器组的聚合状态
func (t *TradingCircuitBreaker) Status() TradingStatus {
	api := t.api.Status()
	trade := t.trade.Status()
	risk := t.risk.Status()

	return TradingStatus{
		API:     api,
		Trade:   trade,
		Risk:    risk,
		AnyOpen: api.State == "open" || trade.State == "open" || risk.State == "open",
	}
}

// ResetAll 复位所有熔断器
func (t *TradingCircuitBreaker) ResetAll() {
	t.api.Reset()
	t.trade.Reset()
	t.risk.Reset()
}
