package model

import (
	"time"
)

// 风险等级常量
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// PortfolioSnapshot 账户权益快照
// 每次风控检查时由调用方提供，风控核心本身不持久化快照
type PortfolioSnapshot struct {
	UserID             string    `json:"user_id"`              // 用户ID
	Equity             float64   `json:"equity"`               // 账户权益
	OpenPositionsValue float64   `json:"open_positions_value"` // 未平仓头寸总价值
	DailyPnL           float64   `json:"daily_pnl"`            // 当日盈亏
	TotalPnL           float64   `json:"total_pnl"`            // 累计盈亏
	InitialEquity      float64   `json:"initial_equity"`       // 初始权益，缺省为10000
	Timestamp          time.Time `json:"timestamp"`            // 快照时间
}

// RiskAssessment 风险评估报告
type RiskAssessment struct {
	RiskLevel            RiskLevel `json:"risk_level"`             // 综合风险等级
	CurrentLeverage      float64   `json:"current_leverage"`       // 当前杠杆倍数
	MaxLeverage          float64   `json:"max_leverage"`           // 杠杆上限
	LeverageUsagePercent float64   `json:"leverage_usage_percent"` // 杠杆使用率(%)
	DailyDrawdownPercent float64   `json:"daily_drawdown_percent"` // 当日回撤(%)
	DailyDrawdownLimit   float64   `json:"daily_drawdown_limit"`   // 当日回撤上限(%)
	TotalDrawdownPercent float64   `json:"total_drawdown_percent"` // 总回撤(%)
	TotalDrawdownLimit   float64   `json:"total_drawdown_limit"`   // 总回撤上限(%)
	MaxPositionSize      float64   `json:"max_position_size"`      // 单笔仓位上限
	AvailableBuyingPower float64   `json:"available_buying_power"` // 可用购买力
	Warnings             []string  `json:"warnings"`               // 风险警告信息
	PeakEquity           float64   `json:"peak_equity"`            // 权益峰值
	CurrentEquity        float64   `json:"current_equity"`         // 当前权益
	FreezeNewTrades      bool      `json:"freeze_new_trades"`      // 是否冻结新交易
	CloseAllPositions    bool      `json:"close_all_positions"`    // 是否需要平掉所有持仓
}

// TradeSignal 交易信号
type TradeSignal struct {
	UserID       string    `json:"user_id"`       // 用户ID
	Symbol       string    `json:"symbol"`        // 交易对
	Side         string    `json:"side"`          // 交易方向: BUY, SELL
	PositionSide string    `json:"position_side"` // 持仓方向: LONG, SHORT
	Size         float64   `json:"size"`          // 名义价值(USDT)
	Price        float64   `json:"price"`         // 参考价格
	Source       string    `json:"source"`        // 信号来源: ai, manual
	Timestamp    time.Time `json:"timestamp"`     // 信号生成时间
}

// OrderResult 订单执行结果
type OrderResult struct {
	OrderID    string    `json:"order_id"`    // 订单ID
	Symbol     string    `json:"symbol"`      // 交易对
	Side       string    `json:"side"`        // 交易方向
	Size       float64   `json:"size"`        // 成交名义价值
	Price      float64   `json:"price"`       // 成交价格
	Fee        float64   `json:"fee"`         // 手续费
	Paper      bool      `json:"paper"`       // 是否为模拟成交
	ExecutedAt time.Time `json:"executed_at"` // 成交时间
}

// Kill-Switch 状态常量
type KillSwitchStatus string

const (
	KillSwitchStatusActive    KillSwitchStatus = "active"    // 交易正常
	KillSwitchStatusTriggered KillSwitchStatus = "triggered" // 已触发停机
	// 恢复中状态目前仅作为声明保留，公开接口不会进入该状态
	KillSwitchStatusRecovering KillSwitchStatus = "recovering"
)

// Kill-Switch 触发原因常量
type KillSwitchReason string

const (
	KillSwitchReasonManual         KillSwitchReason = "manual"
	KillSwitchReasonDailyDrawdown  KillSwitchReason = "daily_drawdown_exceeded"
	KillSwitchReasonTotalDrawdown  KillSwitchReason = "total_drawdown_exceeded"
	KillSwitchReasonDataDelay      KillSwitchReason = "data_delay_exceeded"
	KillSwitchReasonCircuitBreaker KillSwitchReason = "circuit_breaker_triggered"
	KillSwitchReasonSecurity       KillSwitchReason = "security_incident"
	KillSwitchReasonSystemError    KillSwitchReason = "system_error"
)

// 触发后要求调用方执行的动作常量
const (
	ActionCloseAllPositions = "close_all_positions"
	ActionFreezeNewTrades   = "freeze_new_trades"
	ActionNotifyUser        = "notify_user"
)

// KillSwitchRecord Kill-Switch 状态记录
type KillSwitchRecord struct {
	UserID           string                 `json:"user_id"`                     // 用户ID
	Status           KillSwitchStatus       `json:"status"`                      // 当前状态
	Reason           KillSwitchReason       `json:"reason,omitempty"`            // 触发原因
	TriggeredBy      string                 `json:"triggered_by,omitempty"`      // 触发者
	TriggeredAt      time.Time              `json:"triggered_at,omitempty"`      // 触发时间
	DeactivatedAt    *time.Time             `json:"deactivated_at,omitempty"`    // 解除时间
	DeactivatedBy    string                 `json:"deactivated_by,omitempty"`    // 解除者
	DeactivateReason string                 `json:"deactivate_reason,omitempty"` // 解除原因
	Details          map[string]interface{} `json:"details,omitempty"`           // 附加信息
	Message          string                 `json:"message,omitempty"`           // 描述信息
}

// ActivationResult Kill-Switch 激活结果
type ActivationResult struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	Status          KillSwitchStatus `json:"status"`
	Reason          KillSwitchReason `json:"reason"`
	TriggeredAt     time.Time        `json:"triggered_at"`
	ActionsRequired []string         `json:"actions_required"` // 需要调用方执行的动作
}

// DeactivationResult Kill-Switch 解除结果
type DeactivationResult struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Status        KillSwitchStatus `json:"status,omitempty"`
	DeactivatedAt time.Time        `json:"deactivated_at,omitempty"`
}

// 交易模式常量
type TradingMode string

const (
	TradingModeLearningOnly TradingMode = "learning_only" // 仅学习，不执行
	TradingModeAssisted     TradingMode = "assisted"      // AI建议，用户审批
	TradingModeAutopilot    TradingMode = "autopilot"     // 全自动执行
)

// IsValid 判断交易模式是否为合法值
func (m TradingMode) IsValid() bool {
	switch m {
	case TradingModeLearningOnly, TradingModeAssisted, TradingModeAutopilot:
		return true
	}
	return false
}

// 审批状态常量
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// PendingApproval 待审批交易（辅助模式）
type PendingApproval struct {
	ID           string         `json:"id"`                      // 审批ID
	UserID       string         `json:"user_id"`                 // 用户ID
	Signal       TradeSignal    `json:"signal"`                  // 待执行的交易信号
	CreatedAt    time.Time      `json:"created_at"`              // 创建时间
	ExpiresAt    time.Time      `json:"expires_at"`              // 过期时间（创建后300秒）
	Status       ApprovalStatus `json:"status"`                  // 审批状态
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`   // 批准时间
	RejectedAt   *time.Time     `json:"rejected_at,omitempty"`   // 拒绝时间
	RejectReason string         `json:"reject_reason,omitempty"` // 拒绝原因
}

// PendingApprovalView 待审批列表视图，附带剩余有效秒数
type PendingApprovalView struct {
	ApprovalID       string      `json:"approval_id"`
	Signal           TradeSignal `json:"signal"`
	CreatedAt        time.Time   `json:"created_at"`
	ExpiresInSeconds int64       `json:"expires_in_seconds"`
}

// ApprovalDecision 审批操作结果
type ApprovalDecision struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Signal  *TradeSignal `json:"signal,omitempty"` // 批准成功时返回待执行信号
}

// ModeDescription 交易模式说明
type ModeDescription struct {
	Name             string   `json:"name"`              // 中文名称
	NameEN           string   `json:"name_en"`           // 英文名称
	Description      string   `json:"description"`       // 模式说明
	Features         []string `json:"features"`          // 功能特性
	RiskLevel        string   `json:"risk_level"`        // 风险等级描述
	RequiresApproval bool     `json:"requires_approval"` // 是否需要人工审批
	AutoExecute      bool     `json:"auto_execute"`      // 是否自动执行
}

// 准入结果类型常量
type AdmissionOutcome string

const (
	AdmissionExecuted        AdmissionOutcome = "executed"         // 已执行
	AdmissionPendingApproval AdmissionOutcome = "pending_approval" // 等待人工审批
	AdmissionLogged          AdmissionOutcome = "logged_only"      // 仅记录，不执行
	AdmissionRejected        AdmissionOutcome = "rejected"         // 被风控拒绝
)

// 准入流水线阶段常量
const (
	StageKillSwitch     = "kill_switch"
	StageModeGate       = "mode_gate"
	StageRiskValidation = "risk_validation"
	StageExecution      = "execution"
)

// AdmissionResult 准入流水线结果
// 业务拒绝一律以结果值表达，不通过error返回
type AdmissionResult struct {
	Outcome    AdmissionOutcome `json:"outcome"`               // 结果类型
	Stage      string           `json:"stage,omitempty"`       // 产生结果的阶段
	Reason     string           `json:"reason,omitempty"`      // 拒绝/记录原因
	RiskLevel  RiskLevel        `json:"risk_level,omitempty"`  // 风险等级（风控拒绝时）
	ApprovalID string           `json:"approval_id,omitempty"` // 审批ID（辅助模式）
	Order      *OrderResult     `json:"order,omitempty"`       // 订单结果（执行成功时）
	Assessment *RiskAssessment  `json:"assessment,omitempty"`  // 风险评估（风控拒绝时）
}
