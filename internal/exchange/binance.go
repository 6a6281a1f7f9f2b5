package exchange

import (
	"context"
	"fmt"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// BinanceClient 币安交易所客户端
type BinanceClient struct {
	exchange *ccxt.Binance
	logger   *zap.Logger
}

// NewBinanceClient 创建新的币安客户端
func NewBinanceClient(apiKey, apiSecret string, logger *zap.Logger) *BinanceClient {
	// 创建CCXT的Binance实例
	binanceInstance := ccxt.NewBinance(map[string]interface{}{
		"apiKey":          apiKey,
		"secret":          apiSecret,
		"enableRateLimit": true,
	})

	// 加载市场信息
	go func() {
		<-binanceInstance.LoadMarkets()
		logger.Info("Binance市场数据加载完成")
	}()

	return &BinanceClient{
		exchange: binanceInstance,
		logger:   logger,
	}
}

// GetExchangeName 获取交易所名称
func (b *BinanceClient) GetExchangeName() string {
	return "Binance"
}

// GetPrice 获取最新价格
func (b *BinanceClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	formattedSymbol := formatBinanceSymbol(symbol)

	ticker, err := b.exchange.FetchTicker(formattedSymbol)
	if err != nil {
		b.logger.Error("获取币安价格失败",
			zap.Error(err),
			zap.String("symbol", symbol))
		return 0, fmt.Errorf("获取币安价格失败: %w", err)
	}

	lastPrice, ok := (*ticker)["last"].(float64)
	if !ok {
		return 0, fmt.Errorf("价格数据格式错误")
	}

	return lastPrice, nil
}

// SetLeverage 设置杠杆倍数
func (b *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	formattedSymbol := formatBinanceSymbol(symbol)

	// 设置杠杆
	params := map[string]interface{}{
		"leverage": leverage,
	}

	_, err := b.exchange.SetLeverage(leverage, formattedSymbol, params)
	if err != nil {
		b.logger.Error("设置币安杠杆失败",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.Int("leverage", leverage))
		return fmt.Errorf("设置币安杠杆失败: %w", err)
	}

	b.logger.Info("成功设置杠杆",
		zap.String("symbol", symbol),
		zap.Int("leverage", leverage))
	return nil
}

// CreateContractOrder 创建合约订单
func (b *BinanceClient) CreateContractOrder(ctx context.Context, symbol string, side string, positionSide string, orderType string, quantity float64, price float64) (string, error) {
	formattedSymbol := formatBinanceSymbol(symbol)

	// 转换为CCXT格式的交易类型
	var ccxtType string
	if orderType == "MARKET" {
		ccxtType = "market"
	} else {
		ccxtType = "limit"
	}

	// 转换为CCXT格式的交易方向
	var ccxtSide string
	if side == "BUY" {
		ccxtSide = "buy"
	} else {
		ccxtSide = "sell"
	}

	// 准备参数
	params := map[string]interface{}{
		"marginMode": "cross", // 全仓模式
	}

	// 添加持仓方向参数
	if positionSide == "LONG" {
		params["positionSide"] = "LONG"
	} else if positionSide == "SHORT" {
		params["positionSide"] = "SHORT"
	}

	// 创建订单
	var order *map[string]interface{}
	var err error
	if ccxtType == "limit" {
		options := []func(*ccxt.CreateOrderOpts){
			ccxt.WithCreateOrderSymbol(formattedSymbol),
			ccxt.WithCreateOrderType(ccxtType),
			ccxt.WithCreateOrderSide(ccxtSide),
			ccxt.WithCreateOrderAmount(quantity),
			ccxt.WithCreateOrderPrice(price),
			ccxt.WithCreateOrderParams(params),
		}
		order, err = b.exchange.CreateOrder(options...)
	} else {
		options := []func(*ccxt.CreateOrderOpts){
			ccxt.WithCreateOrderSymbol(formattedSymbol),
			ccxt.WithCreateOrderType(ccxtType),
			ccxt.WithCreateOrderSide(ccxtSide),
			ccxt.WithCreateOrderAmount(quantity),
			ccxt.WithCreateOrderParams(params),
		}
		order, err = b.exchange.CreateOrder(options...)
	}

	if err != nil {
		b.logger.Error("创建币安合约订单失败",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.String("side", side),
			zap.String("positionSide", positionSide),
			zap.Float64("quantity", quantity))
		return "", fmt.Errorf("创建币安合约订单失败: %w", err)
	}

	// 提取订单ID
	orderId, ok := (*order)["id"].(string)
	if !ok {
		return "", fmt.Errorf("订单ID不存在或格式错误")
	}

	b.logger.Info("成功创建合约订单",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.String("positionSide", positionSide),
		zap.String("orderId", orderId))

	return orderId, nil
}

// 辅助函数：将BTC/USDT格式的交易对转换为Binance合约使用的格式
func formatBinanceSymbol(symbol string) string {
	// 币安合约通常使用BTCUSDT格式（不带斜杠）
	return strings.ReplaceAll(symbol, "/", "")
}
