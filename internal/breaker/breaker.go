package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen 熔断器打开时的拒绝错误，调用方通过 errors.Is 识别
var ErrOpen = errors.New("熔断器已打开")

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String 返回状态的序列化名称
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Status 熔断器状态快照
type Status struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	FailureCount   int       `json:"failure_count"`
	Threshold      int       `json:"threshold"`
	LastFailure    time.Time `json:"last_failure,omitempty"`
	TimeUntilRetry float64   `json:"time_until_retry"` // 距离下次尝试的秒数，非open状态为0
}

// CircuitBreaker 熔断器
// 连续失败达到阈值后打开，冷却期结束后进入半开状态放行一次探测
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration

	// isFailure 判断错误是否计入失败，nil表示所有错误都计入
	isFailure func(error) bool

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time

	logger *zap.Logger
	now    func() time.Time
}

// Option 熔断器可选配置
type Option func(*CircuitBreaker)

// WithFailureFilter 设置失败判定函数，不匹配的错误直接透传且不计入失败
func WithFailureFilter(isFailure func(error) bool) Option {
	return func(cb *CircuitBreaker) {
		cb.isFailure = isFailure
	}
}

// New 创建熔断器
func New(name string, failureThreshold int, recoveryTimeout time.Duration, logger *zap.Logger, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		logger:           logger.With(zap.String("component", "circuit_breaker"), zap.String("breaker", name)),
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Call 在熔断器保护下执行操作
// 熔断器打开时返回包装了ErrOpen的错误，操作自身的错误原样返回
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()

	if cb.state == StateOpen {
		elapsed := cb.now().Sub(cb.lastFailureTime)
		if elapsed < cb.recoveryTimeout {
			retryIn := (cb.recoveryTimeout - elapsed).Seconds()
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s 将在 %.1f 秒后允许重试", ErrOpen, cb.name, retryIn)
		}

		// 冷却期结束，进入半开状态放行一次探测
		cb.state = StateHalfOpen
		cb.logger.Info("熔断器进入半开状态", zap.String("name", cb.name))
	}

	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		// 不匹配失败判定的错误直接透传，不影响熔断器状态
		if cb.isFailure != nil && !cb.isFailure(err) {
			return err
		}

		cb.failureCount++
		cb.lastFailureTime = cb.now()

		if cb.failureCount >= cb.failureThreshold {
			if cb.state != StateOpen {
				cb.logger.Error("熔断器打开",
					zap.String("name", cb.name),
					zap.Int("failure_count", cb.failureCount),
					zap.Int("threshold", cb.failureThreshold))
			}
			cb.state = StateOpen
		} else if cb.state == StateHalfOpen {
			// 半开状态下探测失败，立即重新打开
			cb.state = StateOpen
			cb.logger.Warn("熔断器半开探测失败，重新打开", zap.String("name", cb.name))
		}

		return err
	}

	// 只有半开探测成功才复位，关闭状态下的成功不清零失败计数
	// 间歇性失败也要能累积到阈值
	if cb.state == StateHalfOpen {
		cb.logger.Info("熔断器恢复关闭", zap.String("name", cb.name))
		cb.state = StateClosed
		cb.failureCount = 0
	}

	return nil
}

// Status 返回熔断器状态快照
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := Status{
		Name:         cb.name,
		State:        cb.state.String(),
		FailureCount: cb.failureCount,
		Threshold:    cb.failureThreshold,
		LastFailure:  cb.lastFailureTime,
	}

	if cb.state == StateOpen {
		remaining := cb.recoveryTimeout - cb.now().Sub(cb.lastFailureTime)
		if remaining > 0 {
			status.TimeUntilRetry = remaining.Seconds()
		}
	}

	return status
}

// Reset 手动复位熔断器
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}

	cb.logger.Info("熔断器已手动复位", zap.String("name", cb.name))
}
