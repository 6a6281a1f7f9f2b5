package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/riskguard/internal/model"
)

// MockOrderExecutor 订单执行器接口的模拟实现
type MockOrderExecutor struct {
	mock.Mock
}

// ExecuteOrder 执行订单的模拟实现
func (m *MockOrderExecutor) ExecuteOrder(ctx context.Context, signal *model.TradeSignal) (*model.OrderResult, error) {
	args := m.Called(ctx, signal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResult), args.Error(1)
}
