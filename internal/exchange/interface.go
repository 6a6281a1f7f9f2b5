package exchange

import (
	"context"
)

// Exchange 交易所接口
type Exchange interface {
	// 基础信息
	GetExchangeName() string

	// 价格相关
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// 交易相关
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	CreateContractOrder(ctx context.Context, symbol string, side string, positionSide string, orderType string, quantity float64, price float64) (string, error)
}

// ExchangeFactory 交易所工厂，用于创建支持的交易所实例
type ExchangeFactory struct {
	exchanges map[string]Exchange
}

// NewExchangeFactory 创建交易所工厂
func NewExchangeFactory() *ExchangeFactory {
	return &ExchangeFactory{
		exchanges: make(map[string]Exchange),
	}
}

// Register 注册交易所实例
func (f *ExchangeFactory) Register(name string, exchange Exchange) {
	f.exchanges[name] = exchange
}

// Get 获取交易所实例
func (f *ExchangeFactory) Get(name string) (Exchange, bool) {
	exchange, exists := f.exchanges[name]
	return exchange, exists
}

// GetAll 获取所有交易所实例
func (f *ExchangeFactory) GetAll() []Exchange {
	var result []Exchange
	for _, exchange := range f.exchanges {
		result = append(result, exchange)
	}
	return result
}
