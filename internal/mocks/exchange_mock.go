package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExchange 交易所接口的模拟实现
type MockExchange struct {
	mock.Mock
}

// GetExchangeName 获取交易所名称的模拟实现
func (m *MockExchange) GetExchangeName() string {
	args := m.Called()
	return args.String(0)
}

// GetPrice 获取价格的模拟实现
func (m *MockExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

// SetLeverage 设置杠杆的模拟实现
func (m *MockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	args := m.Called(ctx, symbol, leverage)
	return args.Error(0)
}

// CreateContractOrder 创建合约订单的模拟实现
func (m *MockExchange) CreateContractOrder(ctx context.Context, symbol string, side string, positionSide string, orderType string, quantity float64, price float64) (string, error) {
	args := m.Called(ctx, symbol, side, positionSide, orderType, quantity, price)
	return args.String(0), args.Error(1)
}
