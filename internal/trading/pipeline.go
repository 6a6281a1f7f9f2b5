package trading

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/breaker"
	"github.com/life2you_mini/riskguard/internal/killswitch"
	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/risk"
	"github.com/life2you_mini/riskguard/internal/tradingmode"
)

// SnapshotProvider 提供用户最新的权益快照
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, userID string) (*model.PortfolioSnapshot, error)
}

// Pipeline 交易准入流水线
// 固定顺序：Kill-Switch -> 模式网关 -> 风控校验 -> 熔断保护下执行
type Pipeline struct {
	logger     *zap.Logger
	engine     *risk.Engine
	breakers   *breaker.TradingCircuitBreaker
	killSwitch *killswitch.Service
	modes      *tradingmode.Service
	executor   OrderExecutor
	snapshots  SnapshotProvider
}

// NewPipeline 创建交易准入流水线
func NewPipeline(
	logger *zap.Logger,
	engine *risk.Engine,
	breakers *breaker.TradingCircuitBreaker,
	killSwitch *killswitch.Service,
	modes *tradingmode.Service,
	executor OrderExecutor,
	snapshots SnapshotProvider,
) *Pipeline {
	return &Pipeline{
		logger:     logger.With(zap.String("component", "admission_pipeline")),
		engine:     engine,
		breakers:   breakers,
		killSwitch: killSwitch,
		modes:      modes,
		executor:   executor,
		snapshots:  snapshots,
	}
}

// SubmitSignal 提交交易信号进入准入流水线
// 业务拒绝以AdmissionResult表达，error仅用于基础设施故障
func (p *Pipeline) SubmitSignal(ctx context.Context, signal *model.TradeSignal) (*model.AdmissionResult, error) {
	// 1. Kill-Switch 检查，已停机时任何信号立即拒绝
	halted, err := p.killSwitch.IsActive(ctx, signal.UserID)
	if err != nil {
		return nil, err
	}
	if halted {
		p.logger.Warn("信号被拒绝：Kill-Switch已触发",
			zap.String("user_id", signal.UserID),
			zap.String("symbol", signal.Symbol))
		return &model.AdmissionResult{
			Outcome: model.AdmissionRejected,
			Stage:   model.StageKillSwitch,
			Reason:  "kill_switch_active",
		}, nil
	}

	// 2. 模式网关
	execute, decision, err := p.modes.ShouldExecuteTrade(ctx, signal)
	if err != nil {
		return nil, err
	}
	if !execute {
		switch decision {
		case tradingmode.DecisionLearningMode:
			return &model.AdmissionResult{
				Outcome: model.AdmissionLogged,
				Stage:   model.StageModeGate,
				Reason:  decision,
			}, nil
		case tradingmode.DecisionUnknownMode:
			return &model.AdmissionResult{
				Outcome: model.AdmissionRejected,
				Stage:   model.StageModeGate,
				Reason:  decision,
			}, nil
		default:
			// 辅助模式返回审批ID，等待用户批准后通过ExecuteApproved执行
			return &model.AdmissionResult{
				Outcome:    model.AdmissionPendingApproval,
				Stage:      model.StageModeGate,
				ApprovalID: decision,
			}, nil
		}
	}

	// 3. 风控校验与执行
	return p.validateAndExecute(ctx, signal)
}

// ExecuteApproved 执行已批准的辅助模式交易
// 批准与执行之间存在时间差，执行前重新过Kill-Switch和风控
func (p *Pipeline) ExecuteApproved(ctx context.Context, approvalID, userID string) (*model.AdmissionResult, error) {
	decision, err := p.modes.ApproveTrade(ctx, approvalID, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Success {
		return &model.AdmissionResult{
			Outcome: model.AdmissionRejected,
			Stage:   model.StageModeGate,
			Reason:  decision.Message,
		}, nil
	}

	signal := decision.Signal

	halted, err := p.killSwitch.IsActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if halted {
		return &model.AdmissionResult{
			Outcome: model.AdmissionRejected,
			Stage:   model.StageKillSwitch,
			Reason:  "kill_switch_active",
		}, nil
	}

	return p.validateAndExecute(ctx, signal)
}

// validateAndExecute 风控校验通过后在熔断保护下执行订单
func (p *Pipeline) validateAndExecute(ctx context.Context, signal *model.TradeSignal) (*model.AdmissionResult, error) {
	snap, err := p.snapshots.GetSnapshot(ctx, signal.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取权益快照失败: %w", err)
	}

	ok, reason, riskLevel, err := p.engine.ValidateTrade(ctx, snap, signal.Size)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 风控拒绝时生成完整评估，并检查是否需要自动触发Kill-Switch
		assessment, err := p.engine.GetRiskAssessment(ctx, snap)
		if err != nil {
			return nil, err
		}

		if _, err := p.killSwitch.CheckAndTriggerAutomatic(ctx, signal.UserID, assessment); err != nil {
			return nil, err
		}

		p.logger.Warn("信号被风控拒绝",
			zap.String("user_id", signal.UserID),
			zap.String("symbol", signal.Symbol),
			zap.String("reason", reason))

		return &model.AdmissionResult{
			Outcome:    model.AdmissionRejected,
			Stage:      model.StageRiskValidation,
			Reason:     reason,
			RiskLevel:  riskLevel,
			Assessment: assessment,
		}, nil
	}

	// 熔断保护下执行订单
	var order *model.OrderResult
	err = p.breakers.ExecuteTrade(ctx, func(ctx context.Context) error {
		var execErr error
		order, execErr = p.executor.ExecuteOrder(ctx, signal)
		return execErr
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			p.logger.Warn("信号被拒绝：交易熔断器已打开",
				zap.String("user_id", signal.UserID),
				zap.String("symbol", signal.Symbol))
			return &model.AdmissionResult{
				Outcome: model.AdmissionRejected,
				Stage:   model.StageExecution,
				Reason:  "circuit_breaker_open",
			}, nil
		}
		return nil, fmt.Errorf("执行订单失败: %w", err)
	}

	p.logger.Info("信号已执行",
		zap.String("user_id", signal.UserID),
		zap.String("symbol", signal.Symbol),
		zap.String("order_id", order.OrderID))

	return &model.AdmissionResult{
		Outcome: model.AdmissionExecuted,
		Stage:   model.StageExecution,
		Order:   order,
	}, nil
}
