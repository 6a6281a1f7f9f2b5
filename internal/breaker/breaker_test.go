package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("下游故障")

// fakeClock 可手动推进的测试时钟
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestBreaker(t *testing.T, threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cb := New("test", threshold, timeout, zaptest.NewLogger(t))
	cb.now = clock.Now
	return cb, clock
}

func failing(ctx context.Context) error { return errBoom }
func succeeding(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, 3, 60*time.Second)
	ctx := context.Background()

	// 连续3次失败后打开，失败本身的错误原样返回
	for i := 0; i < 3; i++ {
		err := cb.Call(ctx, failing)
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, "open", cb.Status().State)

	// 打开后拒绝请求，且不再调用下游
	invoked := false
	err := cb.Call(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, invoked, "打开状态下不应调用下游")
}

func TestCircuitBreaker_InterleavedSuccessKeepsCount(t *testing.T) {
	cb, _ := newTestBreaker(t, 3, 60*time.Second)
	ctx := context.Background()

	// 关闭状态下的成功不清零失败计数
	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)
	require.NoError(t, cb.Call(ctx, succeeding))
	assert.Equal(t, 2, cb.Status().FailureCount)

	// 间歇性失败累积到阈值后打开
	err := cb.Call(ctx, failing)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "open", cb.Status().State)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(t, 3, 60*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failing)
	}
	require.Equal(t, "open", cb.Status().State)

	// 冷却期结束后放行探测，成功则恢复关闭并清零失败计数
	clock.Advance(61 * time.Second)
	err := cb.Call(ctx, succeeding)
	require.NoError(t, err)

	status := cb.Status()
	assert.Equal(t, "closed", status.State)
	assert.Equal(t, 0, status.FailureCount)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, 3, 60*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failing)
	}

	// 半开探测失败后立即重新打开
	clock.Advance(61 * time.Second)
	err := cb.Call(ctx, failing)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "open", cb.Status().State)

	// 重新打开后冷却期重新计时
	clock.Advance(30 * time.Second)
	err = cb.Call(ctx, succeeding)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestCircuitBreaker_FailureFilter(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	errBusiness := errors.New("业务拒绝")

	cb := New("filtered", 2, 60*time.Second, zaptest.NewLogger(t),
		WithFailureFilter(func(err error) bool {
			return !errors.Is(err, errBusiness)
		}))
	cb.now = clock.Now
	ctx := context.Background()

	// 业务错误透传但不计入失败
	for i := 0; i < 5; i++ {
		err := cb.Call(ctx, func(ctx context.Context) error { return errBusiness })
		assert.ErrorIs(t, err, errBusiness)
	}

	status := cb.Status()
	assert.Equal(t, "closed", status.State)
	assert.Equal(t, 0, status.FailureCount)
}

func TestCircuitBreaker_Status(t *testing.T) {
	cb, clock := newTestBreaker(t, 2, 60*time.Second)
	ctx := context.Background()

	status := cb.Status()
	assert.Equal(t, "closed", status.State)
	assert.Equal(t, 2, status.Threshold)
	assert.Zero(t, status.TimeUntilRetry, "未打开时重试倒计时为0")

	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)

	clock.Advance(20 * time.Second)
	status = cb.Status()
	assert.Equal(t, "open", status.State)
	assert.InDelta(t, 40.0, status.TimeUntilRetry, 0.1)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(t, 2, 60*time.Second)
	ctx := context.Background()

	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)
	require.Equal(t, "open", cb.Status().State)

	cb.Reset()

	status := cb.Status()
	assert.Equal(t, "closed", status.State)
	assert.Equal(t, 0, status.FailureCount)

	err := cb.Call(ctx, succeeding)
	assert.NoError(t, err)
}

func TestTradingCircuitBreaker_AggregateStatus(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tcb := NewTradingCircuitBreaker(logger)
	ctx := context.Background()

	status := tcb.Status()
	assert.False(t, status.AnyOpen)
	assert.Equal(t, 5, status.API.Threshold)
	assert.Equal(t, 3, status.Trade.Threshold)
	assert.Equal(t, 2, status.Risk.Threshold)

	// 交易熔断器连续3次失败后，聚合状态报告打开
	for i := 0; i < 3; i++ {
		_ = tcb.ExecuteTrade(ctx, failing)
	}

	status = tcb.Status()
	assert.True(t, status.AnyOpen)
	assert.Equal(t, "open", status.Trade.State)
	assert.Equal(t, "closed", status.API.State)

	// 复位后全部恢复关闭
	tcb.ResetAll()
	status = tcb.Status()
	assert.False(t, status.AnyOpen)
	assert.Equal(t, "closed", status.Trade.State)
}
