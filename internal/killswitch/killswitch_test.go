package killswitch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/storage"
)

func newTestService(t *testing.T) *Service {
	return NewService(zaptest.NewLogger(t), storage.NewMemoryStore())
}

func TestService_ActivateAndDeactivate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// 初始状态未触发
	active, err := svc.IsActive(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, active)

	// 手动激活
	result, err := svc.Activate(ctx, "user-1", model.KillSwitchReasonManual, "user-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.KillSwitchStatusTriggered, result.Status)
	assert.Equal(t, []string{
		model.ActionCloseAllPositions,
		model.ActionFreezeNewTrades,
		model.ActionNotifyUser,
	}, result.ActionsRequired)

	active, err = svc.IsActive(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, active)

	// 解除后恢复正常
	deactivation, err := svc.Deactivate(ctx, "user-1", "admin", "问题已排查")
	require.NoError(t, err)
	assert.True(t, deactivation.Success)
	assert.Equal(t, model.KillSwitchStatusActive, deactivation.Status)

	active, err = svc.IsActive(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestService_DeactivateWithoutActivation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// 从未激活过的用户解除时返回失败结果而非错误
	result, err := svc.Deactivate(ctx, "nobody", "admin", "误操作")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "nobody")
}

func TestService_GetStatusDefault(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// 从未触发过的用户返回缺省正常状态
	status, err := svc.GetStatus(ctx, "fresh-user")
	require.NoError(t, err)
	assert.Equal(t, "fresh-user", status.UserID)
	assert.Equal(t, model.KillSwitchStatusActive, status.Status)

	// 激活后状态记录包含触发信息
	_, err = svc.Activate(ctx, "fresh-user", model.KillSwitchReasonSecurity, "admin", map[string]interface{}{
		"incident_id": "SEC-42",
	})
	require.NoError(t, err)

	status, err = svc.GetStatus(ctx, "fresh-user")
	require.NoError(t, err)
	assert.Equal(t, model.KillSwitchStatusTriggered, status.Status)
	assert.Equal(t, model.KillSwitchReasonSecurity, status.Reason)
	assert.Equal(t, "SEC-42", status.Details["incident_id"])
}

func TestService_ActivationHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// 只有激活追加历史，解除不追加
	_, err := svc.Activate(ctx, "user-a", model.KillSwitchReasonManual, "user-a", nil)
	require.NoError(t, err)
	_, err = svc.Activate(ctx, "user-b", model.KillSwitchReasonSystemError, "system", nil)
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, "user-a", "admin", "恢复")
	require.NoError(t, err)
	_, err = svc.Activate(ctx, "user-c", model.KillSwitchReasonManual, "user-c", nil)
	require.NoError(t, err)

	// 全量历史按时间顺序排列，全部是激活记录
	history, err := svc.GetActivationHistory(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "user-a", history[0].UserID)
	assert.Equal(t, "user-b", history[1].UserID)
	assert.Equal(t, "user-c", history[2].UserID)
	for _, record := range history {
		assert.Equal(t, model.KillSwitchStatusTriggered, record.Status)
	}

	// 按用户过滤
	history, err = svc.GetActivationHistory(ctx, "user-a", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "user-a", history[0].UserID)

	// limit 只保留最近的条数
	history, err = svc.GetActivationHistory(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user-b", history[0].UserID)
	assert.Equal(t, "user-c", history[1].UserID)
}

func TestService_CheckAndTriggerAutomatic(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("总回撤超限触发平仓停机", func(t *testing.T) {
		assessment := &model.RiskAssessment{
			TotalDrawdownPercent: 5.45,
			TotalDrawdownLimit:   5.0,
			PeakEquity:           11000,
			CurrentEquity:        10400,
			CloseAllPositions:    true,
			FreezeNewTrades:      false,
		}

		result, err := svc.CheckAndTriggerAutomatic(ctx, "auto-1", assessment)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, model.KillSwitchReasonTotalDrawdown, result.Reason)

		status, err := svc.GetStatus(ctx, "auto-1")
		require.NoError(t, err)
		assert.Equal(t, "risk_engine", status.TriggeredBy)
		assert.Equal(t, 5.45, status.Details["total_drawdown_percent"])
	})

	t.Run("当日回撤超限触发冻结", func(t *testing.T) {
		assessment := &model.RiskAssessment{
			DailyDrawdownPercent: 3.2,
			DailyDrawdownLimit:   3.0,
			FreezeNewTrades:      true,
		}

		result, err := svc.CheckAndTriggerAutomatic(ctx, "auto-2", assessment)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, model.KillSwitchReasonDailyDrawdown, result.Reason)
	})

	t.Run("已触发时幂等返回nil", func(t *testing.T) {
		assessment := &model.RiskAssessment{CloseAllPositions: true}

		result, err := svc.CheckAndTriggerAutomatic(ctx, "auto-1", assessment)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("无风险时不触发", func(t *testing.T) {
		assessment := &model.RiskAssessment{}

		result, err := svc.CheckAndTriggerAutomatic(ctx, "auto-3", assessment)
		require.NoError(t, err)
		assert.Nil(t, result)

		active, err := svc.IsActive(ctx, "auto-3")
		require.NoError(t, err)
		assert.False(t, active)
	})
}

func TestService_ReactivationOverwrites(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	_, err := svc.Activate(ctx, "user-1", model.KillSwitchReasonManual, "user-1", nil)
	require.NoError(t, err)

	// 重复激活以新原因覆盖当前状态
	_, err = svc.Activate(ctx, "user-1", model.KillSwitchReasonDataDelay, "system", nil)
	require.NoError(t, err)

	status, err := svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.KillSwitchReasonDataDelay, status.Reason)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), status.TriggeredAt)

	history, err := svc.GetActivationHistory(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
