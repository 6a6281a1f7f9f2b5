package storage

import (
	"context"
	"time"

	"github.com/life2you_mini/riskguard/internal/model"
)

// PeakEquityStore 权益峰值存储接口
// 峰值只增不减，RatchetPeak 必须保证原子性
type PeakEquityStore interface {
	// GetPeak 获取用户权益峰值，不存在时返回0
	GetPeak(ctx context.Context, userID string) (float64, error)

	// RatchetPeak 原子地将峰值更新为 max(已存储值, candidate)，返回更新后的峰值
	RatchetPeak(ctx context.Context, userID string, candidate float64) (float64, error)

	// ResetPeak 清除用户峰值记录
	ResetPeak(ctx context.Context, userID string) error
}

// KillSwitchStore Kill-Switch 状态与历史存储接口
type KillSwitchStore interface {
	// GetRecord 获取用户当前状态记录，不存在时返回nil
	GetRecord(ctx context.Context, userID string) (*model.KillSwitchRecord, error)

	// SetRecord 覆盖写入用户当前状态记录
	SetRecord(ctx context.Context, record *model.KillSwitchRecord) error

	// AppendHistory 追加一条历史记录，历史记录一经写入不可修改
	AppendHistory(ctx context.Context, record *model.KillSwitchRecord) error

	// History 按时间顺序返回历史记录
	// userID 为空时返回所有用户，limit 限制返回最近的条数
	History(ctx context.Context, userID string, limit int) ([]*model.KillSwitchRecord, error)
}

// ModeStore 交易模式存储接口
type ModeStore interface {
	// GetMode 获取用户交易模式，不存在时返回空字符串
	GetMode(ctx context.Context, userID string) (model.TradingMode, error)

	// SetMode 设置用户交易模式
	SetMode(ctx context.Context, userID string, mode model.TradingMode) error
}

// ApprovalStore 待审批交易存储接口
type ApprovalStore interface {
	// SaveApproval 保存待审批记录
	SaveApproval(ctx context.Context, approval *model.PendingApproval) error

	// GetApproval 按审批ID获取记录，不存在时返回nil
	GetApproval(ctx context.Context, approvalID string) (*model.PendingApproval, error)

	// UpdateApproval 更新审批记录
	UpdateApproval(ctx context.Context, approval *model.PendingApproval) error

	// ListApprovalsByUser 返回用户的所有审批记录
	ListApprovalsByUser(ctx context.Context, userID string) ([]*model.PendingApproval, error)
}

// SnapshotQueue 权益快照队列接口，供回撤监控消费
type SnapshotQueue interface {
	// PushSnapshot 入队一条权益快照
	PushSnapshot(ctx context.Context, snapshot *model.PortfolioSnapshot) error

	// PopSnapshot 阻塞出队，超时返回(nil, nil)
	PopSnapshot(ctx context.Context, timeout time.Duration) (*model.PortfolioSnapshot, error)
}

// Store 风控核心存储聚合接口
type Store interface {
	PeakEquityStore
	KillSwitchStore
	ModeStore
	ApprovalStore
	SnapshotQueue

	// Initialize 初始化存储连接
	Initialize(ctx context.Context) error

	// Close 关闭存储连接
	Close() error

	// Health 检查存储连接健康状态
	Health(ctx context.Context) error
}
