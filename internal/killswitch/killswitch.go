package killswitch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/storage"
)

// 历史查询的默认返回条数
const defaultHistoryLimit = 50

// Service Kill-Switch 服务
// 每个用户独立维护停机状态，触发后由调用方执行平仓、冻结等动作
type Service struct {
	logger *zap.Logger
	store  storage.KillSwitchStore
	now    func() time.Time
}

// NewService 创建 Kill-Switch 服务
func NewService(logger *zap.Logger, store storage.KillSwitchStore) *Service {
	return &Service{
		logger: logger.With(zap.String("component", "kill_switch")),
		store:  store,
		now:    time.Now,
	}
}

// IsActive 判断用户的 Kill-Switch 是否已触发（即交易是否被停止）
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	record, err := s.store.GetRecord(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("获取Kill-Switch状态失败: %w", err)
	}
	if record == nil {
		return false, nil
	}
	return record.Status == model.KillSwitchStatusTriggered, nil
}

// Activate 激活用户的 Kill-Switch
// 重复激活会覆盖当前状态并追加新的历史记录
func (s *Service) Activate(ctx context.Context, userID string, reason model.KillSwitchReason, triggeredBy string, details map[string]interface{}) (*model.ActivationResult, error) {
	triggeredAt := s.now()

	record := &model.KillSwitchRecord{
		UserID:      userID,
		Status:      model.KillSwitchStatusTriggered,
		Reason:      reason,
		TriggeredBy: triggeredBy,
		TriggeredAt: triggeredAt,
		Details:     details,
		Message:     fmt.Sprintf("Kill-Switch已触发，原因: %s", reason),
	}

	if err := s.store.SetRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("写入Kill-Switch状态失败: %w", err)
	}
	if err := s.store.AppendHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("写入Kill-Switch历史失败: %w", err)
	}

	s.logger.Error("Kill-Switch已激活",
		zap.String("user_id", userID),
		zap.String("reason", string(reason)),
		zap.String("triggered_by", triggeredBy))

	return &model.ActivationResult{
		Success:     true,
		Message:     "Kill-Switch已激活，所有交易立即停止",
		Status:      model.KillSwitchStatusTriggered,
		Reason:      reason,
		TriggeredAt: triggeredAt,
		ActionsRequired: []string{
			model.ActionCloseAllPositions,
			model.ActionFreezeNewTrades,
			model.ActionNotifyUser,
		},
	}, nil
}

// Deactivate 解除用户的 Kill-Switch
// 用户从未触发过时返回失败结果而非错误
func (s *Service) Deactivate(ctx context.Context, userID, deactivatedBy, reason string) (*model.DeactivationResult, error) {
	record, err := s.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取Kill-Switch状态失败: %w", err)
	}
	if record == nil {
		return &model.DeactivationResult{
			Success: false,
			Message: fmt.Sprintf("用户 %s 没有可解除的Kill-Switch记录", userID),
		}, nil
	}

	deactivatedAt := s.now()

	record.Status = model.KillSwitchStatusActive
	record.DeactivatedAt = &deactivatedAt
	record.DeactivatedBy = deactivatedBy
	record.DeactivateReason = reason
	record.Message = fmt.Sprintf("Kill-Switch已解除，解除原因: %s", reason)

	// 历史只记录激活事件，解除只更新当前状态记录
	if err := s.store.SetRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("写入Kill-Switch状态失败: %w", err)
	}

	s.logger.Info("Kill-Switch已解除",
		zap.String("user_id", userID),
		zap.String("deactivated_by", deactivatedBy),
		zap.String("reason", reason))

	return &model.DeactivationResult{
		Success:       true,
		Message:       "Kill-Switch已解除，交易恢复",
		Status:        model.KillSwitchStatusActive,
		DeactivatedAt: deactivatedAt,
	}, nil
}

// GetStatus 获取用户当前的 Kill-Switch 状态
// 从未触发过的用户返回缺省的正常状态记录
func (s *Service) GetStatus(ctx context.Context, userID string) (*model.KillSwitchRecord, error) {
	record, err := s.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取Kill-Switch状态失败: %w", err)
	}
	if record == nil {
		return &model.KillSwitchRecord{
			UserID:  userID,
			Status:  model.KillSwitchStatusActive,
			Message: "交易正常",
		}, nil
	}
	return record, nil
}

// GetActivationHistory 按时间顺序返回激活历史
// userID 为空时返回所有用户，limit 小于等于0时取默认值50
func (s *Service) GetActivationHistory(ctx context.Context, userID string, limit int) ([]*model.KillSwitchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := s.store.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("获取Kill-Switch历史失败: %w", err)
	}
	return records, nil
}

// CheckAndTriggerAutomatic 根据风险评估结果自动触发 Kill-Switch
// 已触发时幂等返回nil，不重复激活
func (s *Service) CheckAndTriggerAutomatic(ctx context.Context, userID string, assessment *model.RiskAssessment) (*model.ActivationResult, error) {
	triggered, err := s.IsActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if triggered {
		return nil, nil
	}

	if assessment.CloseAllPositions {
		details := map[string]interface{}{
			"total_drawdown_percent": assessment.TotalDrawdownPercent,
			"total_drawdown_limit":   assessment.TotalDrawdownLimit,
			"peak_equity":            assessment.PeakEquity,
			"current_equity":         assessment.CurrentEquity,
		}
		return s.Activate(ctx, userID, model.KillSwitchReasonTotalDrawdown, "risk_engine", details)
	}

	if assessment.FreezeNewTrades {
		details := map[string]interface{}{
			"daily_drawdown_percent": assessment.DailyDrawdownPercent,
			"daily_drawdown_limit":   assessment.DailyDrawdownLimit,
		}
		return s.Activate(ctx, userID, model.KillSwitchReasonDailyDrawdown, "risk_engine", details)
	}

	return nil, nil
}
