package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/life2you_mini/riskguard/internal/model"
	"go.uber.org/zap"
)

// Redis 键前缀常量
const (
	// 权益峰值相关
	keyPeakEquityPrefix = "risk:peak:"

	// Kill-Switch 相关
	keyKillSwitchPrefix  = "killswitch:status:"
	keyKillSwitchHistory = "killswitch:history"

	// 交易模式相关
	keyTradingModes = "trading:modes"

	// 审批相关
	keyApprovalPrefix = "approval:"
	keyApprovalByUser = "approval:user:"

	// 权益快照队列
	keySnapshotQueue = "risk:snapshot:queue"

	// 过期时间（秒）
	expiryApproval   = 86400      // 1天
	expiryKillSwitch = 86400 * 90 // 90天
)

// ratchetPeakScript 峰值抬升Lua脚本
// 使用Lua脚本确保 max(旧值, 候选值) 的读改写原子性
const ratchetPeakScript = `
local current = tonumber(redis.call("get", KEYS[1]))
local candidate = tonumber(ARGV[1])
if current == nil or candidate > current then
	redis.call("set", KEYS[1], ARGV[1])
	return ARGV[1]
end
return tostring(current)`

// RedisStore Redis存储实现
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisOptions Redis连接配置选项
type RedisOptions struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NewRedisStore 创建Redis存储
func NewRedisStore(opts RedisOptions, logger *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Host + ":" + opts.Port,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	return &RedisStore{
		client: client,
		logger: logger,
	}
}

// Initialize 初始化Redis存储
func (s *RedisStore) Initialize(ctx context.Context) error {
	// 测试连接
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis连接失败", zap.Error(err))
		return fmt.Errorf("redis连接失败: %w", err)
	}

	s.logger.Info("Redis存储初始化成功")
	return nil
}

// Close 关闭Redis连接
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("关闭Redis连接失败", zap.Error(err))
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}

	s.logger.Info("Redis连接已关闭")
	return nil
}

// Health 检查Redis健康状态
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetPeak 获取用户权益峰值
func (s *RedisStore) GetPeak(ctx context.Context, userID string) (float64, error) {
	key := keyPeakEquityPrefix + userID

	peak, err := s.client.Get(ctx, key).Float64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("获取权益峰值失败: %w", err)
	}

	return peak, nil
}

// RatchetPeak 原子地抬升权益峰值
func (s *RedisStore) RatchetPeak(ctx context.Context, userID string, candidate float64) (float64, error) {
	key := keyPeakEquityPrefix + userID

	result, err := s.client.Eval(ctx, ratchetPeakScript, []string{key},
		fmt.Sprintf("%f", candidate)).Result()
	if err != nil {
		return 0, fmt.Errorf("更新权益峰值失败: %w", err)
	}

	var peak float64
	if _, err := fmt.Sscanf(result.(string), "%f", &peak); err != nil {
		return 0, fmt.Errorf("解析权益峰值失败: %w", err)
	}

	return peak, nil
}

// ResetPeak 清除用户峰值记录
func (s *RedisStore) ResetPeak(ctx context.Context, userID string) error {
	key := keyPeakEquityPrefix + userID

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("清除权益峰值失败: %w", err)
	}

	return nil
}

// GetRecord 获取用户 Kill-Switch 状态记录
func (s *RedisStore) GetRecord(ctx context.Context, userID string) (*model.KillSwitchRecord, error) {
	key := keyKillSwitchPrefix + userID

	jsonData, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("获取Kill-Switch状态失败: %w", err)
	}

	var record model.KillSwitchRecord
	if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
		return nil, fmt.Errorf("解析Kill-Switch状态失败: %w", err)
	}

	return &record, nil
}

// SetRecord 覆盖写入用户 Kill-Switch 状态记录
func (s *RedisStore) SetRecord(ctx context.Context, record *model.KillSwitchRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化Kill-Switch状态失败: %w", err)
	}

	key := keyKillSwitchPrefix + record.UserID
	if err := s.client.Set(ctx, key, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("存储Kill-Switch状态失败: %w", err)
	}

	return nil
}

// AppendHistory 追加 Kill-Switch 历史记录
func (s *RedisStore) AppendHistory(ctx context.Context, record *model.KillSwitchRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化Kill-Switch历史记录失败: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, keyKillSwitchHistory, jsonData)
	pipe.Expire(ctx, keyKillSwitchHistory, time.Duration(expiryKillSwitch)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("存储Kill-Switch历史记录失败: %w", err)
	}

	return nil
}

// History 按时间顺序返回 Kill-Switch 历史记录
func (s *RedisStore) History(ctx context.Context, userID string, limit int) ([]*model.KillSwitchRecord, error) {
	results, err := s.client.LRange(ctx, keyKillSwitchHistory, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("获取Kill-Switch历史记录失败: %w", err)
	}

	var records []*model.KillSwitchRecord
	for _, jsonData := range results {
		var record model.KillSwitchRecord
		if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
			s.logger.Warn("解析Kill-Switch历史记录失败", zap.Error(err), zap.String("data", jsonData))
			continue
		}

		if userID != "" && record.UserID != userID {
			continue
		}
		records = append(records, &record)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	return records, nil
}

// GetMode 获取用户交易模式
func (s *RedisStore) GetMode(ctx context.Context, userID string) (model.TradingMode, error) {
	mode, err := s.client.HGet(ctx, keyTradingModes, userID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("获取交易模式失败: %w", err)
	}

	return model.TradingMode(mode), nil
}

// SetMode 设置用户交易模式
func (s *RedisStore) SetMode(ctx context.Context, userID string, mode model.TradingMode) error {
	if err := s.client.HSet(ctx, keyTradingModes, userID, string(mode)).Err(); err != nil {
		return fmt.Errorf("设置交易模式失败: %w", err)
	}

	return nil
}

// SaveApproval 保存待审批记录
func (s *RedisStore) SaveApproval(ctx context.Context, approval *model.PendingApproval) error {
	jsonData, err := json.Marshal(approval)
	if err != nil {
		return fmt.Errorf("序列化审批记录失败: %w", err)
	}

	key := keyApprovalPrefix + approval.ID
	userKey := keyApprovalByUser + approval.UserID

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, jsonData, time.Duration(expiryApproval)*time.Second)
	pipe.SAdd(ctx, userKey, approval.ID)
	pipe.Expire(ctx, userKey, time.Duration(expiryApproval)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("存储审批记录失败: %w", err)
	}

	return nil
}

// GetApproval 按审批ID获取记录
func (s *RedisStore) GetApproval(ctx context.Context, approvalID string) (*model.PendingApproval, error) {
	key := keyApprovalPrefix + approvalID

	jsonData, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("获取审批记录失败: %w", err)
	}

	var approval model.PendingApproval
	if err := json.Unmarshal([]byte(jsonData), &approval); err != nil {
		return nil, fmt.Errorf("解析审批记录失败: %w", err)
	}

	return &approval, nil
}

// UpdateApproval 更新审批记录
func (s *RedisStore) UpdateApproval(ctx context.Context, approval *model.PendingApproval) error {
	return s.SaveApproval(ctx, approval)
}

// ListApprovalsByUser 返回用户的所有审批记录
func (s *RedisStore) ListApprovalsByUser(ctx context.Context, userID string) ([]*model.PendingApproval, error) {
	userKey := keyApprovalByUser + userID

	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取审批ID列表失败: %w", err)
	}

	approvals := make([]*model.PendingApproval, 0, len(ids))
	for _, id := range ids {
		approval, err := s.GetApproval(ctx, id)
		if err != nil {
			s.logger.Warn("获取审批记录失败", zap.Error(err), zap.String("approval_id", id))
			continue
		}
		if approval == nil {
			continue
		}

		approvals = append(approvals, approval)
	}

	return approvals, nil
}

// PushSnapshot 入队一条权益快照
func (s *RedisStore) PushSnapshot(ctx context.Context, snapshot *model.PortfolioSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化权益快照失败: %w", err)
	}

	if err := s.client.LPush(ctx, keySnapshotQueue, jsonData).Err(); err != nil {
		return fmt.Errorf("权益快照入队失败: %w", err)
	}

	return nil
}

// PopSnapshot 阻塞出队一条权益快照，超时返回(nil, nil)
func (s *RedisStore) PopSnapshot(ctx context.Context, timeout time.Duration) (*model.PortfolioSnapshot, error) {
	result, err := s.client.BRPop(ctx, timeout, keySnapshotQueue).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("权益快照出队失败: %w", err)
	}

	// BRPop 返回 [key, value]
	if len(result) < 2 {
		return nil, nil
	}

	var snapshot model.PortfolioSnapshot
	if err := json.Unmarshal([]byte(result[1]), &snapshot); err != nil {
		return nil, fmt.Errorf("解析权益快照失败: %w", err)
	}

	return &snapshot, nil
}
