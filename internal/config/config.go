package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 执行模式常量
const (
	ExecutionModePaper = "paper"
	ExecutionModeLive  = "live"
)

// Config 应用配置结构
type Config struct {
	System    SystemConfig    `mapstructure:"system" yaml:"system"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Execution ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Monitor   MonitorConfig   `mapstructure:"monitor" yaml:"monitor"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// ExecutionConfig 订单执行配置
type ExecutionConfig struct {
	Mode    string        `mapstructure:"mode" yaml:"mode"` // paper 或 live
	Binance BinanceConfig `mapstructure:"binance" yaml:"binance"`
}

// BinanceConfig Binance配置
type BinanceConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // 从配置文件或环境变量中读取
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"` // 从配置文件或环境变量中读取
}

// MonitorConfig 回撤监控配置
type MonitorConfig struct {
	Enabled            bool `mapstructure:"enabled" yaml:"enabled"`
	PopTimeoutSeconds  int  `mapstructure:"pop_timeout_seconds" yaml:"pop_timeout_seconds"`
	TaskTimeoutSeconds int  `mapstructure:"task_timeout_seconds" yaml:"task_timeout_seconds"`
}

// LoadConfig 从文件加载配置
func LoadConfig(filePath string) (*Config, error) {
	// 使用Viper读取配置
	v := viper.New()
	v.SetConfigFile(filePath)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 绑定环境变量（可选，如果需要从环境变量覆盖配置）
	v.AutomaticEnv()
	v.SetEnvPrefix("RISKGUARD") // 环境变量前缀，如RISKGUARD_REDIS_HOST

	// 特定环境变量映射，如果存在这些环境变量则优先使用
	if binanceApiKey := os.Getenv("BINANCE_API_KEY"); binanceApiKey != "" {
		v.Set("execution.binance.api_key", binanceApiKey)
	}
	if binanceApiSecret := os.Getenv("BINANCE_API_SECRET"); binanceApiSecret != "" {
		v.Set("execution.binance.api_secret", binanceApiSecret)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// LoadConfigFromYAML 保留原有的yaml加载函数以备不时之需
func LoadConfigFromYAML(filePath string) (*Config, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	// 验证执行模式
	if config.Execution.Mode != ExecutionModePaper && config.Execution.Mode != ExecutionModeLive {
		return fmt.Errorf("无效的执行模式: %s（必须为 paper 或 live）", config.Execution.Mode)
	}

	// 实盘模式必须启用交易所并配置API密钥
	if config.Execution.Mode == ExecutionModeLive {
		if !config.Execution.Binance.Enabled {
			return fmt.Errorf("实盘模式必须启用Binance")
		}
		if config.Execution.Binance.APIKey == "" || config.Execution.Binance.APISecret == "" {
			return fmt.Errorf("Binance已启用，但API密钥未配置")
		}
	}

	// 验证Redis配置
	if config.Redis.Host == "" {
		return fmt.Errorf("Redis主机不能为空")
	}

	if config.Redis.Port <= 0 || config.Redis.Port > 65535 {
		return fmt.Errorf("无效的Redis端口")
	}

	// 验证监控配置
	if config.Monitor.Enabled {
		if config.Monitor.PopTimeoutSeconds <= 0 {
			return fmt.Errorf("监控出队超时必须大于0")
		}
		if config.Monitor.TaskTimeoutSeconds <= 0 {
			return fmt.Errorf("监控任务超时必须大于0")
		}
	}

	return nil
}

// GetDefaultConfig 获取默认配置（用于生成示例配置）
func GetDefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel: "INFO",
			LogDir:   "./logs",
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Execution: ExecutionConfig{
			Mode: ExecutionModePaper,
			Binance: BinanceConfig{
				Enabled: false,
			},
		},
		Monitor: MonitorConfig{
			Enabled:            true,
			PopTimeoutSeconds:  5,
			TaskTimeoutSeconds: 15,
		},
	}
}
