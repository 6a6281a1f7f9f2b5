package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/riskguard/internal/killswitch"
	"github.com/life2you_mini/riskguard/internal/model"
	"github.com/life2you_mini/riskguard/internal/risk"
	"github.com/life2you_mini/riskguard/internal/storage"
)

func TestDrawdownMonitor_AutoTriggersKillSwitch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStore()
	engine := risk.NewEngine(logger, store)
	ks := killswitch.NewService(logger, store)

	monitor := NewDrawdownMonitor(context.Background(), logger, store, engine, ks)
	monitor.popTimeout = 100 * time.Millisecond

	require.NoError(t, monitor.Start())
	defer monitor.Stop()

	// 重复启动会报错
	assert.Error(t, monitor.Start())

	// 先建立峰值11000
	_, err := store.RatchetPeak(context.Background(), "user-1", 11000)
	require.NoError(t, err)

	// 入队一条总回撤超限的快照：当前权益10400，相对峰值回撤约5.45%
	err = store.PushSnapshot(context.Background(), &model.PortfolioSnapshot{
		UserID:        "user-1",
		Equity:        10400,
		TotalPnL:      400,
		InitialEquity: 10000,
	})
	require.NoError(t, err)

	// 等待监控消费并触发
	require.Eventually(t, func() bool {
		active, err := ks.IsActive(context.Background(), "user-1")
		return err == nil && active
	}, 3*time.Second, 50*time.Millisecond)

	status, err := ks.GetStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.KillSwitchReasonTotalDrawdown, status.Reason)
	assert.Equal(t, "risk_engine", status.TriggeredBy)
}

func TestDrawdownMonitor_HealthySnapshotNoTrigger(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStore()
	engine := risk.NewEngine(logger, store)
	ks := killswitch.NewService(logger, store)

	monitor := NewDrawdownMonitor(context.Background(), logger, store, engine, ks)
	monitor.popTimeout = 100 * time.Millisecond

	require.NoError(t, monitor.Start())

	err := store.PushSnapshot(context.Background(), &model.PortfolioSnapshot{
		UserID:        "healthy",
		Equity:        10500,
		DailyPnL:      100,
		TotalPnL:      500,
		InitialEquity: 10000,
	})
	require.NoError(t, err)

	// 给监控足够时间消费
	time.Sleep(500 * time.Millisecond)

	active, err := ks.IsActive(context.Background(), "healthy")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, monitor.Stop())
	// 重复停止是幂等的
	require.NoError(t, monitor.Stop())
}
