package storage

import (
	"context"
	"sync"
	"time"

	"github.com/life2you_mini/riskguard/internal/model"
)

// MemoryStore 内存存储实现，主要用于测试与模拟盘模式
type MemoryStore struct {
	mu        sync.RWMutex
	peaks     map[string]float64
	records   map[string]*model.KillSwitchRecord
	history   []*model.KillSwitchRecord
	modes     map[string]model.TradingMode
	approvals map[string]*model.PendingApproval
	queue     []*model.PortfolioSnapshot
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		peaks:     make(map[string]float64),
		records:   make(map[string]*model.KillSwitchRecord),
		modes:     make(map[string]model.TradingMode),
		approvals: make(map[string]*model.PendingApproval),
	}
}

// Initialize 初始化存储（内存实现无需操作）
func (s *MemoryStore) Initialize(ctx context.Context) error {
	return nil
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	return nil
}

// Health 检查存储健康状态
func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// GetPeak 获取用户权益峰值
func (s *MemoryStore) GetPeak(ctx context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peaks[userID], nil
}

// RatchetPeak 原子地抬升权益峰值
func (s *MemoryStore) RatchetPeak(ctx context.Context, userID string, candidate float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if candidate > s.peaks[userID] {
		s.peaks[userID] = candidate
	}
	return s.peaks[userID], nil
}

// ResetPeak 清除用户峰值记录
func (s *MemoryStore) ResetPeak(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peaks, userID)
	return nil
}

// GetRecord 获取用户 Kill-Switch 状态记录
func (s *MemoryStore) GetRecord(ctx context.Context, userID string) (*model.KillSwitchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

// SetRecord 覆盖写入用户 Kill-Switch 状态记录
func (s *MemoryStore) SetRecord(ctx context.Context, record *model.KillSwitchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.UserID] = &clone
	return nil
}

// AppendHistory 追加 Kill-Switch 历史记录
func (s *MemoryStore) AppendHistory(ctx context.Context, record *model.KillSwitchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.history = append(s.history, &clone)
	return nil
}

// History 按时间顺序返回历史记录
func (s *MemoryStore) History(ctx context.Context, userID string, limit int) ([]*model.KillSwitchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*model.KillSwitchRecord
	for _, record := range s.history {
		if userID != "" && record.UserID != userID {
			continue
		}
		clone := *record
		filtered = append(filtered, &clone)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// GetMode 获取用户交易模式
func (s *MemoryStore) GetMode(ctx context.Context, userID string) (model.TradingMode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes[userID], nil
}

// SetMode 设置用户交易模式
func (s *MemoryStore) SetMode(ctx context.Context, userID string, mode model.TradingMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[userID] = mode
	return nil
}

// SaveApproval 保存待审批记录
func (s *MemoryStore) SaveApproval(ctx context.Context, approval *model.PendingApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *approval
	s.approvals[approval.ID] = &clone
	return nil
}

// GetApproval 按审批ID获取记录
func (s *MemoryStore) GetApproval(ctx context.Context, approvalID string) (*model.PendingApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	approval, ok := s.approvals[approvalID]
	if !ok {
		return nil, nil
	}
	clone := *approval
	return &clone, nil
}

// UpdateApproval 更新审批记录
func (s *MemoryStore) UpdateApproval(ctx context.Context, approval *model.PendingApproval) error {
	return s.SaveApproval(ctx, approval)
}

// ListApprovalsByUser 返回用户的所有审批记录
func (s *MemoryStore) ListApprovalsByUser(ctx context.Context, userID string) ([]*model.PendingApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.PendingApproval
	for _, approval := range s.approvals {
		if approval.UserID != userID {
			continue
		}
		clone := *approval
		result = append(result, &clone)
	}
	return result, nil
}

// PushSnapshot 入队一条权益快照
func (s *MemoryStore) PushSnapshot(ctx context.Context, snapshot *model.PortfolioSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *snapshot
	s.queue = append(s.queue, &clone)
	return nil
}

// PopSnapshot 出队一条权益快照，队列为空时等待直到超时
func (s *MemoryStore) PopSnapshot(ctx context.Context, timeout time.Duration) (*model.PortfolioSnapshot, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			snapshot := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return snapshot, nil
		}
		s.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
