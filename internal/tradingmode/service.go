package tradingmode

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/storage"
)

// ApprovalTTL 待审批交易的有效期
const ApprovalTTL = 300 * time.Second

// 模式网关的决策说明常量
const (
	DecisionLearningMode = "learning_mode_no_execution"
	DecisionAutopilot    = "autopilot_execution"
	DecisionUnknownMode  = "unknown_mode"
)

// modeDescriptions 各交易模式的说明
var modeDescriptions = map[model.TradingMode]model.ModeDescription{
	model.TradingModeLearningOnly: {
		Name:        "学习模式",
		NameEN:      "Learning Only",
		Description: "AI只生成交易信号用于学习和复盘，不会执行任何真实交易",
		Features: []string{
			"生成交易信号并记录",
			"不执行任何订单",
			"适合新用户熟悉系统",
		},
		RiskLevel:        "无风险",
		RequiresApproval: false,
		AutoExecute:      false,
	},
	model.TradingModeAssisted: {
		Name:        "辅助模式",
		NameEN:      "Assisted",
		Description: "AI生成交易建议，需要用户在5分钟内审批后才会执行",
		Features: []string{
			"交易前需人工审批",
			"审批5分钟后自动过期",
			"用户保留最终决定权",
		},
		RiskLevel:        "低风险",
		RequiresApproval: true,
		AutoExecute:      false,
	},
	model.TradingModeAutopilot: {
		Name:        "自动模式",
		NameEN:      "Autopilot",
		Description: "AI在风控约束内全自动执行交易，无需人工介入",
		Features: []string{
			"信号通过风控后自动执行",
			"受熔断器和Kill-Switch保护",
			"适合经验丰富的用户",
		},
		RiskLevel:        "高风险",
		RequiresApproval: false,
		AutoExecute:      true,
	},
}

// Service 交易模式服务
// 管理用户交易模式，并在辅助模式下维护待审批交易
type Service struct {
	logger    *zap.Logger
	modes     storage.ModeStore
	approvals storage.ApprovalStore
	now       func() time.Time
}

// NewService 创建交易模式服务
func NewService(logger *zap.Logger, modes storage.ModeStore, approvals storage.ApprovalStore) *Service {
	return &Service{
		logger:    logger.With(zap.String("component", "trading_mode")),
		modes:     modes,
		approvals: approvals,
		now:       time.Now,
	}
}

// GetUserMode 获取用户交易模式，未设置时默认为学习模式
func (s *Service) GetUserMode(ctx context.Context, userID string) (model.TradingMode, error) {
	mode, err := s.modes.GetMode(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("获取交易模式失败: %w", err)
	}
	if mode == "" {
		return model.TradingModeLearningOnly, nil
	}
	return mode, nil
}

// SetUserMode 设置用户交易模式
func (s *Service) SetUserMode(ctx context.Context, userID string, mode model.TradingMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("无效的交易模式: %s", mode)
	}

	if err := s.modes.SetMode(ctx, userID, mode); err != nil {
		return fmt.Errorf("设置交易模式失败: %w", err)
	}

	s.logger.Info("交易模式已更新",
		zap.String("user_id", userID),
		zap.String("mode", string(mode)))
	return nil
}

// ShouldExecuteTrade 根据用户交易模式决定信号是否立即执行
// 返回 (是否执行, 决策说明或审批ID, 错误)
// 辅助模式下创建待审批记录并返回审批ID
func (s *Service) ShouldExecuteTrade(ctx context.Context, signal *model.TradeSignal) (bool, string, error) {
	mode, err := s.GetUserMode(ctx, signal.UserID)
	if err != nil {
		return false, "", err
	}

	switch mode {
	case model.TradingModeLearningOnly:
		s.logger.Info("学习模式：信号仅记录不执行",
			zap.String("user_id", signal.UserID),
			zap.String("symbol", signal.Symbol))
		return false, DecisionLearningMode, nil

	case model.TradingModeAssisted:
		approvalID, err := s.createPendingApproval(ctx, signal)
		if err != nil {
			return false, "", err
		}
		return false, approvalID, nil

	case model.TradingModeAutopilot:
		return true, DecisionAutopilot, nil

	default:
		s.logger.Warn("未知交易模式，拒绝执行",
			zap.String("user_id", signal.UserID),
			zap.String("mode", string(mode)))
		return false, DecisionUnknownMode, nil
	}
}

// createPendingApproval 创建待审批记录
func (s *Service) createPendingApproval(ctx context.Context, signal *model.TradeSignal) (string, error) {
	createdAt := s.now()
	approvalID := fmt.Sprintf("approval_%s_%d", signal.UserID, createdAt.UnixNano())

	approval := &model.PendingApproval{
		ID:        approvalID,
		UserID:    signal.UserID,
		Signal:    *signal,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ApprovalTTL),
		Status:    model.ApprovalStatusPending,
	}

	if err := s.approvals.SaveApproval(ctx, approval); err != nil {
		return "", fmt.Errorf("保存审批记录失败: %w", err)
	}

	s.logger.Info("辅助模式：已创建待审批交易",
		zap.String("user_id", signal.UserID),
		zap.String("approval_id", approvalID),
		zap.String("symbol", signal.Symbol))

	return approvalID, nil
}

// ApproveTrade 批准待审批交易
// 审批不存在、归属错误、已处理、已过期均以结果值表达
func (s *Service) ApproveTrade(ctx context.Context, approvalID, userID string) (*model.ApprovalDecision, error) {
	approval, err := s.approvals.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("获取审批记录失败: %w", err)
	}
	if approval == nil {
		return &model.ApprovalDecision{
			Success: false,
			Message: fmt.Sprintf("审批记录不存在: %s", approvalID),
		}, nil
	}

	if approval.UserID != userID {
		s.logger.Warn("审批归属校验失败",
			zap.String("approval_id", approvalID),
			zap.String("owner", approval.UserID),
			zap.String("requester", userID))
		return &model.ApprovalDecision{
			Success: false,
			Message: "无权操作该审批",
		}, nil
	}

	if approval.Status != model.ApprovalStatusPending {
		return &model.ApprovalDecision{
			Success: false,
			Message: fmt.Sprintf("审批已处理，当前状态: %s", approval.Status),
		}, nil
	}

	if s.now().After(approval.ExpiresAt) {
		approval.Status = model.ApprovalStatusExpired
		if err := s.approvals.UpdateApproval(ctx, approval); err != nil {
			return nil, fmt.Errorf("更新审批记录失败: %w", err)
		}
		return &model.ApprovalDecision{
			Success: false,
			Message: "审批已过期",
		}, nil
	}

	approvedAt := s.now()
	approval.Status = model.ApprovalStatusApproved
	approval.ApprovedAt = &approvedAt
	if err := s.approvals.UpdateApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("更新审批记录失败: %w", err)
	}

	s.logger.Info("交易已批准",
		zap.String("user_id", userID),
		zap.String("approval_id", approvalID))

	signal := approval.Signal
	return &model.ApprovalDecision{
		Success: true,
		Message: "交易已批准",
		Signal:  &signal,
	}, nil
}

// RejectTrade 拒绝待审批交易
func (s *Service) RejectTrade(ctx context.Context, approvalID, userID, reason string) (*model.ApprovalDecision, error) {
	approval, err := s.approvals.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("获取审批记录失败: %w", err)
	}
	if approval == nil {
		return &model.ApprovalDecision{
			Success: false,
			Message: fmt.Sprintf("审批记录不存在: %s", approvalID),
		}, nil
	}

	if approval.UserID != userID {
		return &model.ApprovalDecision{
			Success: false,
			Message: "无权操作该审批",
		}, nil
	}

	if approval.Status != model.ApprovalStatusPending {
		return &model.ApprovalDecision{
			Success: false,
			Message: fmt.Sprintf("审批已处理，当前状态: %s", approval.Status),
		}, nil
	}

	rejectedAt := s.now()
	approval.Status = model.ApprovalStatusRejected
	approval.RejectedAt = &rejectedAt
	approval.RejectReason = reason
	if err := s.approvals.UpdateApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("更新审批记录失败: %w", err)
	}

	s.logger.Info("交易已拒绝",
		zap.String("user_id", userID),
		zap.String("approval_id", approvalID),
		zap.String("reason", reason))

	return &model.ApprovalDecision{
		Success: true,
		Message: "交易已拒绝",
	}, nil
}

// GetPendingApprovals 返回用户未过期的待审批交易
// 遍历时惰性地将已过期记录标记为expired
func (s *Service) GetPendingApprovals(ctx context.Context, userID string) ([]*model.PendingApprovalView, error) {
	approvals, err := s.approvals.ListApprovalsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取审批列表失败: %w", err)
	}

	now := s.now()
	var views []*model.PendingApprovalView
	for _, approval := range approvals {
		if approval.Status != model.ApprovalStatusPending {
			continue
		}

		if now.After(approval.ExpiresAt) {
			approval.Status = model.ApprovalStatusExpired
			if err := s.approvals.UpdateApproval(ctx, approval); err != nil {
				s.logger.Warn("标记审批过期失败",
					zap.Error(err),
					zap.String("approval_id", approval.ID))
			}
			continue
		}

		views = append(views, &model.PendingApprovalView{
			ApprovalID:       approval.ID,
			Signal:           approval.Signal,
			CreatedAt:        approval.CreatedAt,
			ExpiresInSeconds: int64(approval.ExpiresAt.Sub(now).Seconds()),
		})
	}

	// 按创建时间排序，保证返回顺序稳定
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})

	return views, nil
}

// GetModeDescription 返回交易模式说明
func (s *Service) GetModeDescription(mode model.TradingMode) (*model.ModeDescription, error) {
	desc, ok := modeDescriptions[mode]
	if !ok {
		return nil, fmt.Errorf("无效的交易模式: %s", mode)
	}
	return &desc, nil
}

// GetAllModeDescriptions 返回所有交易模式说明
func (s *Service) GetAllModeDescriptions() map[model.TradingMode]model.ModeDescription {
	result := make(map[model.TradingMode]model.ModeDescription, len(modeDescriptions))
	for mode, desc := range modeDescriptions {
		result[mode] = desc
	}
	return result
}
