package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/breaker"
	"github.com/life2you_mini/riskguard/internal/config"
	"github.com/life2you_mini/riskguard/internal/exchange"
	"github.com/life2you_mini/riskguard/internal/killswitch"
	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/monitor"
	"github.com/life2you_mini/riskguard/internal/risk"
	"github.com/life2you_mini/riskguard/internal/storage"
	"github.com/life2you_mini/riskguard/internal/trading"
	"github.com/life2you_mini/riskguard/internal/tradingmode"
)

// riskguardService 风控核心服务
type riskguardService struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          *zap.Logger
	store           *storage.RedisStore
	engine          *risk.Engine
	breakers        *breaker.TradingCircuitBreaker
	killSwitch      *killswitch.Service
	modes           *tradingmode.Service
	pipeline        *trading.Pipeline
	drawdownMonitor *monitor.DrawdownMonitor
	monitorEnabled  bool
}

// SnapshotFunc 以函数形式适配SnapshotProvider接口
type SnapshotFunc func(ctx context.Context, userID string) (*model.PortfolioSnapshot, error)

// GetSnapshot 实现trading.SnapshotProvider
func (f SnapshotFunc) GetSnapshot(ctx context.Context, userID string) (*model.PortfolioSnapshot, error) {
	return f(ctx, userID)
}

// NewRiskguardService 创建风控核心服务
func NewRiskguardService(
	parentCtx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	snapshots trading.SnapshotProvider,
) (*riskguardService, error) {
	// 创建服务上下文
	ctx, cancel := context.WithCancel(parentCtx)

	// 初始化Redis存储
	store := storage.NewRedisStore(storage.RedisOptions{
		Host:     cfg.Redis.Host,
		Port:     strconv.Itoa(cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)

	if err := store.Initialize(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("初始化Redis存储失败: %w", err)
	}

	// 创建风控组件
	engine := risk.NewEngine(logger, store)
	breakers := breaker.NewTradingCircuitBreaker(logger)
	killSwitch := killswitch.NewService(logger, store)
	modes := tradingmode.NewService(logger, store, store)

	// 按执行模式选择订单执行器
	var executor trading.OrderExecutor
	switch cfg.Execution.Mode {
	case config.ExecutionModeLive:
		binance := exchange.NewBinanceClient(
			cfg.Execution.Binance.APIKey,
			cfg.Execution.Binance.APISecret,
			logger,
		)
		factory := exchange.NewExchangeFactory()
		factory.Register(binance.GetExchangeName(), binance)
		executor = trading.NewLiveExecutor(logger, factory, binance.GetExchangeName())

		var venues []string
		for _, ex := range factory.GetAll() {
			venues = append(venues, ex.GetExchangeName())
		}
		logger.Info("使用实盘执行器", zap.Strings("exchanges", venues))
	default:
		executor = trading.NewPaperExecutor(logger)
		logger.Info("使用模拟盘执行器")
	}

	// 创建准入流水线
	pipeline := trading.NewPipeline(logger, engine, breakers, killSwitch, modes, executor, snapshots)

	// 创建回撤监控器
	drawdownMonitor := monitor.NewDrawdownMonitor(ctx, logger, store, engine, killSwitch)

	return &riskguardService{
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
		store:           store,
		engine:          engine,
		breakers:        breakers,
		killSwitch:      killSwitch,
		modes:           modes,
		pipeline:        pipeline,
		drawdownMonitor: drawdownMonitor,
		monitorEnabled:  cfg.Monitor.Enabled,
	}, nil
}

// Pipeline 返回交易准入流水线
func (s *riskguardService) Pipeline() *trading.Pipeline {
	return s.pipeline
}

// KillSwitch 返回Kill-Switch服务
func (s *riskguardService) KillSwitch() *killswitch.Service {
	return s.killSwitch
}

// Modes 返回交易模式服务
func (s *riskguardService) Modes() *tradingmode.Service {
	return s.modes
}

// Breakers 返回交易熔断器组
func (s *riskguardService) Breakers() *breaker.TradingCircuitBreaker {
	return s.breakers
}

// Start 启动服务
func (s *riskguardService) Start() {
	s.logger.Info("启动风控核心服务")

	// 启动回撤监控
	if s.monitorEnabled {
		go func() {
			if err := s.drawdownMonitor.Start(); err != nil {
				s.logger.Error("回撤监控启动失败", zap.Error(err))
			}
		}()
	}
}

// Stop 停止服务
func (s *riskguardService) Stop(ctx context.Context) error {
	s.logger.Info("停止风控核心服务")

	// 停止回撤监控
	if err := s.drawdownMonitor.Stop(); err != nil {
		s.logger.Error("停止回撤监控失败", zap.Error(err))
	}

	// 取消服务上下文
	s.cancel()

	// 关闭Redis连接
	if err := s.store.Close(); err != nil {
		s.logger.Error("关闭Redis连接失败", zap.Error(err))
	}

	// 等待服务优雅关闭的超时时间
	shutdownTimeout := 5 * time.Second

	// 创建定时器
	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	// 等待服务关闭或超时
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
