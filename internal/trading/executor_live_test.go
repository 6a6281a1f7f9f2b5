package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/riskguard/internal/exchange"
	"github.com/life2you_mini/riskguard/internal/mocks"
	"github.com/life2you_mini/riskguard/internal/model"
)

func newLiveExecutorWithMock(t *testing.T) (*LiveExecutor, *mocks.MockExchange) {
	ex := new(mocks.MockExchange)
	factory := exchange.NewExchangeFactory()
	factory.Register("binance", ex)
	return NewLiveExecutor(zaptest.NewLogger(t), factory, "binance"), ex
}

func TestLiveExecutor_ExecuteOrder(t *testing.T) {
	executor, ex := newLiveExecutorWithMock(t)
	ctx := context.Background()

	ex.On("GetExchangeName").Return("binance")
	ex.On("SetLeverage", mock.Anything, "BTC/USDT", 3).Return(nil)
	ex.On("CreateContractOrder", mock.Anything, "BTC/USDT", "BUY", "LONG", "MARKET", 50.0/65000.0, 0.0).
		Return("order-1", nil)

	result, err := executor.ExecuteOrder(ctx, &model.TradeSignal{
		UserID:       "user-1",
		Symbol:       "BTC/USDT",
		Side:         "BUY",
		PositionSide: "LONG",
		Size:         50,
		Price:        65000,
	})
	require.NoError(t, err)

	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, 65000.0, result.Price)
	assert.False(t, result.Paper)
	ex.AssertExpectations(t)
}

func TestLiveExecutor_FetchesPriceWhenMissing(t *testing.T) {
	executor, ex := newLiveExecutorWithMock(t)
	ctx := context.Background()

	// 信号未携带价格时先查询最新价再折算数量
	ex.On("GetExchangeName").Return("binance")
	ex.On("GetPrice", mock.Anything, "ETH/USDT").Return(2500.0, nil)
	ex.On("SetLeverage", mock.Anything, "ETH/USDT", 3).Return(nil)
	ex.On("CreateContractOrder", mock.Anything, "ETH/USDT", "SELL", "SHORT", "MARKET", 50.0/2500.0, 0.0).
		Return("order-2", nil)

	result, err := executor.ExecuteOrder(ctx, &model.TradeSignal{
		UserID:       "user-1",
		Symbol:       "ETH/USDT",
		Side:         "SELL",
		PositionSide: "SHORT",
		Size:         50,
	})
	require.NoError(t, err)

	assert.Equal(t, 2500.0, result.Price)
	ex.AssertExpectations(t)
}

func TestLiveExecutor_SetLeverageFailure(t *testing.T) {
	executor, ex := newLiveExecutorWithMock(t)
	ctx := context.Background()

	// 杠杆设置失败时不下单
	ex.On("SetLeverage", mock.Anything, "BTC/USDT", 3).Return(errors.New("接口受限"))

	_, err := executor.ExecuteOrder(ctx, &model.TradeSignal{
		Symbol: "BTC/USDT",
		Side:   "BUY",
		Size:   50,
		Price:  65000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "设置杠杆失败")
	ex.AssertNotCalled(t, "CreateContractOrder",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLiveExecutor_UnknownVenue(t *testing.T) {
	factory := exchange.NewExchangeFactory()
	executor := NewLiveExecutor(zaptest.NewLogger(t), factory, "binance")

	_, err := executor.ExecuteOrder(context.Background(), &model.TradeSignal{
		Symbol: "BTC/USDT",
		Size:   50,
		Price:  65000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未注册的交易所")
}
