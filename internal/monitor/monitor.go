package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/killswitch"
	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/risk"
	"github.com/life2you_mini/riskguard/internal/storage"
)

const (
	// 快照出队阻塞超时
	defaultPopTimeout = 5 * time.Second

	// 单个快照处理超时
	defaultTaskTimeout = 15 * time.Second
)

// DrawdownMonitor 回撤监控器
// 消费权益快照队列，对每条快照做风险评估并在必要时自动触发Kill-Switch
type DrawdownMonitor struct {
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
	queue       storage.SnapshotQueue
	engine      *risk.Engine
	killSwitch  *killswitch.Service
	popTimeout  time.Duration
	taskTimeout time.Duration
	wg          sync.WaitGroup
	isRunning   bool
	mutex       sync.Mutex
}

// NewDrawdownMonitor 创建回撤监控器
func NewDrawdownMonitor(
	parentCtx context.Context,
	logger *zap.Logger,
	queue storage.SnapshotQueue,
	engine *risk.Engine,
	killSwitch *killswitch.Service,
) *DrawdownMonitor {
	ctx, cancel := context.WithCancel(parentCtx)

	return &DrawdownMonitor{
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With(zap.String("component", "drawdown_monitor")),
		queue:       queue,
		engine:      engine,
		killSwitch:  killSwitch,
		popTimeout:  defaultPopTimeout,
		taskTimeout: defaultTaskTimeout,
	}
}

// Start 启动回撤监控器
func (m *DrawdownMonitor) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.isRunning {
		return fmt.Errorf("回撤监控器已在运行")
	}

	m.logger.Info("启动回撤监控器")
	m.isRunning = true

	// 启动快照队列处理协程
	m.wg.Add(1)
	go m.processSnapshotQueue()

	return nil
}

// Stop 停止回撤监控器
func (m *DrawdownMonitor) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.isRunning {
		return nil
	}

	m.logger.Info("停止回撤监控器")
	m.cancel()

	// 等待所有协程结束
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	// 等待最多5秒钟
	select {
	case <-done:
		m.logger.Info("回撤监控器已停止")
	case <-time.After(5 * time.Second):
		m.logger.Warn("回撤监控器停止超时")
	}

	m.isRunning = false
	return nil
}

// processSnapshotQueue 处理权益快照队列
func (m *DrawdownMonitor) processSnapshotQueue() {
	defer m.wg.Done()

	m.logger.Info("开始处理权益快照队列")

	for {
		// 检查上下文是否已取消
		select {
		case <-m.ctx.Done():
			m.logger.Info("结束权益快照处理")
			return
		default:
			// 继续处理
		}

		snapshot, err := m.queue.PopSnapshot(m.ctx, m.popTimeout)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Error("从快照队列获取任务失败", zap.Error(err))
			// 避免错误导致CPU空转
			time.Sleep(1 * time.Second)
			continue
		}

		// 队列为空，正常情况，继续循环
		if snapshot == nil {
			continue
		}

		// 创建处理上下文
		processCtx, cancel := context.WithTimeout(m.ctx, m.taskTimeout)

		if err := m.handleSnapshot(processCtx, snapshot); err != nil {
			m.logger.Error("处理权益快照失败",
				zap.String("user_id", snapshot.UserID),
				zap.Error(err))
		}

		cancel() // 释放上下文
	}
}

// handleSnapshot 处理单条权益快照
func (m *DrawdownMonitor) handleSnapshot(ctx context.Context, snapshot *model.PortfolioSnapshot) error {
	assessment, err := m.engine.GetRiskAssessment(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("风险评估失败: %w", err)
	}

	for _, warning := range assessment.Warnings {
		m.logger.Warn("风险预警",
			zap.String("user_id", snapshot.UserID),
			zap.String("warning", warning))
	}

	result, err := m.killSwitch.CheckAndTriggerAutomatic(ctx, snapshot.UserID, assessment)
	if err != nil {
		return fmt.Errorf("自动触发检查失败: %w", err)
	}
	if result != nil {
		m.logger.Error("回撤监控自动触发Kill-Switch",
			zap.String("user_id", snapshot.UserID),
			zap.String("reason", string(result.Reason)))
	}

	return nil
}
